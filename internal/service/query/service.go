package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/teerex/teerex/internal/domain"
	"github.com/teerex/teerex/internal/repository"
	postgresrepo "github.com/teerex/teerex/internal/repository/postgres"
	redisrepo "github.com/teerex/teerex/internal/repository/redis"
)

type Config struct {
	SummaryTTL    time.Duration
	AttendanceTTL time.Duration
}

// Service serves the read side: event summaries, attendance counts and the
// "My Tickets" listing. Summaries and counts go through the cache.
type Service struct {
	store  *postgresrepo.Store
	cache  *redisrepo.Cache
	logger *slog.Logger
	cfg    Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, logger *slog.Logger, cfg Config) *Service {
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = 60 * time.Second
	}

	if cfg.AttendanceTTL <= 0 {
		cfg.AttendanceTTL = 15 * time.Second
	}

	return &Service{
		store:  store,
		cache:  cache,
		logger: logger,
		cfg:    cfg,
	}
}

// EventSummary is the cacheable public view of an event.
type EventSummary struct {
	ID             uuid.UUID              `json:"id"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description,omitempty"`
	StartsAt       time.Time              `json:"starts_at"`
	Location       string                 `json:"location,omitempty"`
	Capacity       int                    `json:"capacity"`
	LockAddress    string                 `json:"lock_address,omitempty"`
	ChainID        int64                  `json:"chain_id"`
	Price          string                 `json:"price"`
	Currency       string                 `json:"currency"`
	NGNPrice       string                 `json:"ngn_price,omitempty"`
	PaymentMethods []domain.PaymentMethod `json:"payment_methods"`
	HasAllowList   bool                   `json:"has_allow_list"`
	Transferable   bool                   `json:"transferable"`
}

func summarize(ev *domain.Event) EventSummary {
	s := EventSummary{
		ID:             ev.ID,
		Title:          ev.Title,
		Description:    ev.Description,
		StartsAt:       ev.StartsAt,
		Location:       ev.Location,
		Capacity:       ev.Capacity,
		LockAddress:    ev.LockAddress,
		ChainID:        ev.ChainID,
		Price:          ev.Price.String(),
		Currency:       ev.Currency,
		PaymentMethods: ev.PaymentMethods,
		HasAllowList:   ev.HasAllowList,
		Transferable:   ev.Transferable,
	}

	if !ev.NGNPrice.IsZero() {
		s.NGNPrice = ev.NGNPrice.String()
	}

	return s
}

func (s *Service) GetEvent(ctx context.Context, eventID uuid.UUID) (*EventSummary, error) {
	const op = "service.query.GetEvent"

	summary, err := redisrepo.GetOrSetJSON(
		ctx, s.cache, redisrepo.KeyEventSummary(eventID), s.cfg.SummaryTTL,
		func(ctx context.Context) (EventSummary, error) {
			ev, err := s.store.Events().Get(ctx, eventID)
			if err != nil {
				return EventSummary{}, err
			}
			return summarize(ev), nil
		},
	)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &summary, nil
}

// Attendance counts issued tickets against capacity. The count is cached
// briefly and invalidated on every issuance, so it can lag a few seconds
// at worst.
func (s *Service) Attendance(ctx context.Context, eventID uuid.UUID) (*domain.AttendanceCounts, error) {
	const op = "service.query.Attendance"

	counts, err := redisrepo.GetOrSetJSON(
		ctx, s.cache, redisrepo.KeyEventAttendance(eventID), s.cfg.AttendanceTTL,
		func(ctx context.Context) (domain.AttendanceCounts, error) {
			ev, err := s.store.Events().Get(ctx, eventID)
			if err != nil {
				return domain.AttendanceCounts{}, err
			}

			issued, err := s.store.Tickets().CountByEvent(ctx, eventID)
			if err != nil {
				return domain.AttendanceCounts{}, err
			}

			return domain.AttendanceCounts{
				Issued:   issued,
				Capacity: int64(ev.Capacity),
			}, nil
		},
	)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &counts, nil
}

// TicketsByWallet serves "My Tickets". Uncached: it is the recovery surface
// after a failed or timed-out purchase and must reflect the database.
func (s *Service) TicketsByWallet(ctx context.Context, wallet string) ([]domain.Ticket, error) {
	const op = "service.query.TicketsByWallet"

	tickets, err := s.store.Tickets().ListByWallet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return tickets, nil
}
