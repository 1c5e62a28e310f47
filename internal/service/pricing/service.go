package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/teerex/teerex/internal/chain"
	"github.com/teerex/teerex/internal/domain"
	"github.com/teerex/teerex/internal/repository"
	postgresrepo "github.com/teerex/teerex/internal/repository/postgres"
	redisrepo "github.com/teerex/teerex/internal/repository/redis"
)

// LockReader is the slice of the chain client the detector needs.
type LockReader interface {
	Pricing(ctx context.Context, chainID int64, lockAddress string) (*chain.PricingState, error)
	IsLockManager(ctx context.Context, chainID int64, lockAddress, wallet string) (bool, error)
}

type Config struct {
	// CacheTTL is the freshness window for detector results; identical
	// parameter tuples issue at most one RPC within it.
	CacheTTL time.Duration
}

type Service struct {
	reader LockReader
	store  *postgresrepo.Store
	cache  *redisrepo.Cache
	logger *slog.Logger
	cfg    Config
}

func New(
	reader LockReader,
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	return &Service{
		reader: reader,
		store:  store,
		cache:  cache,
		logger: logger,
		cfg:    cfg,
	}
}

// Detect compares the database pricing against the live lock. An RPC
// failure returns an error and never a mismatch: a transient outage must
// not offer the organizer a sync that would overwrite good data.
func (s *Service) Detect(
	ctx context.Context,
	lockAddress string,
	chainID int64,
	dbPrice decimal.Decimal,
	dbCurrency string,
) (*domain.LockState, error) {
	const op = "service.pricing.Detect"

	key := redisrepo.KeyLockState(
		strings.ToLower(lockAddress), chainID, dbPrice.String(), dbCurrency,
	)

	state, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.CacheTTL,
		func(ctx context.Context) (domain.LockState, error) {
			onChain, err := s.reader.Pricing(ctx, chainID, lockAddress)
			if err != nil {
				return domain.LockState{}, err
			}

			mismatch := Classify(onChain.KeyPrice, dbPrice, onChain.Symbol, dbCurrency)

			return domain.LockState{
				LockAddress:   strings.ToLower(lockAddress),
				ChainID:       chainID,
				OnChainPrice:  onChain.KeyPrice,
				OnChainSymbol: onChain.Symbol,
				TokenAddress:  onChain.TokenAddress,
				HasMismatch:   mismatch != domain.MismatchNone,
				MismatchType:  mismatch,
				FreeOnChain:   onChain.KeyPrice.IsZero(),
			}, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &state, nil
}

// Classify compares the on-chain and database pricing.
func Classify(onPrice, dbPrice decimal.Decimal, onSymbol, dbCurrency string) domain.MismatchType {
	priceDiff := !onPrice.Equal(dbPrice)
	currencyDiff := !strings.EqualFold(onSymbol, dbCurrency)

	switch {
	case priceDiff && currencyDiff:
		return domain.MismatchBoth
	case priceDiff:
		return domain.MismatchPrice
	case currencyDiff:
		return domain.MismatchCurrency
	default:
		return domain.MismatchNone
	}
}

// Sync overwrites the event's price and currency from live chain state.
// One-way only, and only for lock managers: the chain is authoritative,
// the database record follows it.
func (s *Service) Sync(ctx context.Context, eventID uuid.UUID, caller string) (*domain.Event, error) {
	const op = "service.pricing.Sync"

	ev, err := s.store.Events().Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if ev.LockAddress == "" {
		return nil, fmt.Errorf("%s:%w", op, ErrNoLock)
	}

	isManager, err := s.reader.IsLockManager(ctx, ev.ChainID, ev.LockAddress, caller)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if !isManager {
		return nil, fmt.Errorf("%s:%w", op, ErrNotLockManager)
	}

	// Authorization established; re-read the chain fresh, bypassing the
	// detector cache.
	onChain, err := s.reader.Pricing(ctx, ev.ChainID, ev.LockAddress)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := s.store.Events().UpdatePricing(ctx, eventID, onChain.KeyPrice, onChain.Symbol); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := s.cache.InvalidateEvent(ctx, eventID); err != nil {
		s.logger.Warn("event cache invalidation failed after pricing sync",
			"event_id", eventID, "error", err)
	}

	ev.Price = onChain.KeyPrice
	ev.Currency = onChain.Symbol

	s.logger.Info("event pricing synced from chain",
		"event_id", eventID, "price", ev.Price, "currency", ev.Currency)

	return ev, nil
}
