package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/teerex/teerex/internal/domain"
	postgresrepo "github.com/teerex/teerex/internal/repository/postgres"
)

// Service covers the organizer write side: creating events. Pricing updates
// go through the chain sync instead, never through here.
type Service struct {
	store  *postgresrepo.Store
	logger *slog.Logger
}

func New(store *postgresrepo.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

var validMethods = map[domain.PaymentMethod]struct{}{
	domain.PayCrypto: {},
	domain.PayFiat:   {},
	domain.PayFree:   {},
}

func (s *Service) CreateEvent(ctx context.Context, e *domain.Event) (uuid.UUID, error) {
	const op = "service.admin.CreateEvent"

	if e.Title == "" || e.Capacity <= 0 {
		return uuid.Nil, fmt.Errorf("%s:%w", op, ErrInvalidEvent)
	}

	if e.LockAddress != "" && e.ChainID == 0 {
		return uuid.Nil, fmt.Errorf("%s: lock without chain id:%w", op, ErrInvalidEvent)
	}

	if len(e.PaymentMethods) == 0 {
		return uuid.Nil, fmt.Errorf("%s:%w", op, ErrInvalidPaymentMethods)
	}
	for _, m := range e.PaymentMethods {
		if _, ok := validMethods[m]; !ok {
			return uuid.Nil, fmt.Errorf("%s: %q:%w", op, m, ErrInvalidPaymentMethods)
		}
	}

	if e.Accepts(domain.PayFiat) && e.NGNPrice.IsZero() {
		return uuid.Nil, fmt.Errorf("%s: fiat without NGN price:%w", op, ErrInvalidEvent)
	}

	id, err := s.store.Events().Create(ctx, e)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("event created",
		"event_id", id, "title", e.Title, "lock", e.LockAddress, "chain_id", e.ChainID)

	return id, nil
}
