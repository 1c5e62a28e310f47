package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/teerex/teerex/internal/chain"
	"github.com/teerex/teerex/internal/domain"
	"github.com/teerex/teerex/internal/mail"
	"github.com/teerex/teerex/internal/monitoring"
	"github.com/teerex/teerex/internal/repository"
	postgresrepo "github.com/teerex/teerex/internal/repository/postgres"
	redisrepo "github.com/teerex/teerex/internal/repository/redis"
	"github.com/teerex/teerex/internal/service/access"
	"github.com/teerex/teerex/internal/service/gasless"
	"github.com/teerex/teerex/internal/service/payments"
	"github.com/teerex/teerex/internal/uow"
)

// Path is the single purchase route the orchestrator settles on.
type Path string

const (
	PathPendingApproval   Path = "pending_approval"
	PathGasless           Path = "gasless"
	PathWalletTransaction Path = "wallet_transaction"
	PathFiatCheckout      Path = "fiat_checkout"
	PathAlreadyClaimed    Path = "already_claimed"
	PathRegistered        Path = "registered"
)

// WalletIntent is everything the client wallet needs to submit the
// key-purchase transaction itself.
type WalletIntent struct {
	LockAddress  string `json:"lock_address"`
	ChainID      int64  `json:"chain_id"`
	Price        string `json:"price"`
	Currency     string `json:"currency"`
	TokenAddress string `json:"token_address,omitempty"`
}

type Outcome struct {
	Path        Path                     `json:"path"`
	TxHash      string                   `json:"tx_hash,omitempty"`
	ExplorerURL string                   `json:"explorer_url,omitempty"`
	Intent      *WalletIntent            `json:"intent,omitempty"`
	Checkout    *payments.CheckoutResult `json:"checkout,omitempty"`
	Message     string                   `json:"message,omitempty"`
	GaslessCode string                   `json:"gasless_code,omitempty"`
}

// Locks is the chain surface the orchestrator reads.
type Locks interface {
	Pricing(ctx context.Context, chainID int64, lockAddress string) (*chain.PricingState, error)
	HasValidKey(ctx context.Context, chainID int64, lockAddress, wallet string) (bool, error)
	ExplorerTxURL(chainID int64, txHash string) string
}

// Gate is the allow-list check; access.ErrPendingApproval halts the
// purchase.
type Gate interface {
	EnsureEligible(ctx context.Context, eventID uuid.UUID, wallet string) error
}

// GaslessAttempter wraps the sponsored claim with the fallback policy.
type GaslessAttempter interface {
	Attempt(ctx context.Context, req gasless.Request, fallback gasless.FallbackFunc) (*gasless.Response, error)
}

// FiatCheckout starts a Paystack charge.
type FiatCheckout interface {
	Checkout(ctx context.Context, eventID uuid.UUID, email, wallet string) (*payments.CheckoutResult, error)
}

// Events and Tickets are the store slices the decision path reads.
type Events interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Event, error)
}

type Tickets interface {
	GetByEventAndWallet(ctx context.Context, eventID uuid.UUID, wallet string) (*domain.Ticket, error)
}

// UnitOfWork is the transactional boundary for the registration write.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error) error
}

type Service struct {
	store   *postgresrepo.Store
	uow     UnitOfWork
	events  Events
	tickets Tickets
	locks   Locks
	gate    Gate
	gasless GaslessAttempter
	fiat    FiatCheckout
	cache   *redisrepo.Cache
	pubsub  *redisrepo.TicketsPubSub
	mailer  *mail.Mailer
	logger  *slog.Logger
}

func New(
	store *postgresrepo.Store,
	locks Locks,
	gate Gate,
	gaslessSvc GaslessAttempter,
	fiat FiatCheckout,
	cache *redisrepo.Cache,
	pubsub *redisrepo.TicketsPubSub,
	mailer *mail.Mailer,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:   store,
		uow:     uow.NewUoW(store),
		events:  store.Events(),
		tickets: store.Tickets(),
		locks:   locks,
		gate:    gate,
		gasless: gaslessSvc,
		fiat:    fiat,
		cache:   cache,
		pubsub:  pubsub,
		mailer:  mailer,
		logger:  logger,
	}
}

// Decide settles on exactly one purchase path for the buyer:
//
//  1. allow-listed event without an entry: record the request, halt;
//  2. free in the database or free on-chain (locks have been zeroed
//     on-chain without the database catching up): sponsored claim with
//     wallet fallback;
//  3. otherwise a client wallet transaction, or a fiat checkout when that
//     is the only accepted method.
func (s *Service) Decide(ctx context.Context, eventID uuid.UUID, wallet, email string) (*Outcome, error) {
	const op = "service.purchase.Decide"

	if !common.IsHexAddress(wallet) {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidWallet)
	}

	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if ev.HasAllowList {
		if err := s.gate.EnsureEligible(ctx, eventID, wallet); err != nil {
			if errors.Is(err, access.ErrPendingApproval) {
				monitoring.RecordPurchaseOutcome(string(PathPendingApproval), "halted")
				return &Outcome{
					Path:    PathPendingApproval,
					Message: "This event is allow-listed. Your access request is pending approval.",
				}, nil
			}
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	if existing, err := s.tickets.GetByEventAndWallet(ctx, eventID, wallet); err == nil {
		monitoring.RecordPurchaseOutcome(string(PathAlreadyClaimed), "recovered")
		return &Outcome{
			Path:        PathAlreadyClaimed,
			TxHash:      existing.GrantTxHash,
			ExplorerURL: s.locks.ExplorerTxURL(ev.ChainID, existing.GrantTxHash),
			Message:     "You already have a ticket for this event.",
		}, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	free, onChain := s.isFree(ctx, ev)
	if free {
		return s.claimFree(ctx, ev, wallet, email, onChain)
	}

	if ev.Accepts(domain.PayFiat) && !ev.Accepts(domain.PayCrypto) {
		return s.fiatOutcome(ctx, ev, wallet, email)
	}

	if !ev.Accepts(domain.PayCrypto) {
		return nil, fmt.Errorf("%s:%w", op, ErrNoPaymentPath)
	}

	monitoring.RecordPurchaseOutcome(string(PathWalletTransaction), "issued_intent")
	return &Outcome{
		Path:   PathWalletTransaction,
		Intent: s.walletIntent(ev, onChain),
	}, nil
}

// isFree checks the database record first and then the live lock. The
// on-chain check exists for events whose lock was zeroed on-chain without
// the database catching up; an RPC failure just means "not known free".
func (s *Service) isFree(ctx context.Context, ev *domain.Event) (bool, *chain.PricingState) {
	if ev.LockAddress == "" {
		return ev.FreeInDB(), nil
	}

	onChain, err := s.locks.Pricing(ctx, ev.ChainID, ev.LockAddress)
	if err != nil {
		s.logger.Warn("on-chain pricing read failed",
			"event_id", ev.ID, "lock", ev.LockAddress, "error", err)
		return ev.FreeInDB(), nil
	}

	return ev.FreeInDB() || onChain.KeyPrice.IsZero(), onChain
}

func (s *Service) claimFree(
	ctx context.Context,
	ev *domain.Event,
	wallet, email string,
	onChain *chain.PricingState,
) (*Outcome, error) {
	const op = "service.purchase.claimFree"

	// A free event without a lock has nothing to claim on-chain; the
	// ticket row is the whole artifact.
	if ev.LockAddress == "" {
		return s.RegisterTicket(ctx, ev.ID, wallet, "", email)
	}

	req := gasless.Request{
		ChainID:     ev.ChainID,
		LockAddress: ev.LockAddress,
		Wallet:      wallet,
	}

	// The fallback hands the intent back to the client wallet; for a free
	// lock the transaction costs only gas.
	fallback := func(ctx context.Context, req gasless.Request) (*gasless.Response, error) {
		return &gasless.Response{OK: false, Error: "wallet_fallback"}, nil
	}

	resp, err := s.gasless.Attempt(ctx, req, fallback)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if resp.OK {
		outcome, err := s.RegisterTicket(ctx, ev.ID, wallet, resp.TxHash, email)
		if err != nil {
			// The grant is on-chain and authoritative; registration failure
			// must not fail the purchase.
			s.logger.Error("ticket registration failed after gasless grant",
				"event_id", ev.ID, "wallet", wallet, "tx", resp.TxHash, "error", err)
			monitoring.RecordPurchaseOutcome(string(PathGasless), "registered_late")
			return &Outcome{
				Path:        PathGasless,
				TxHash:      resp.TxHash,
				ExplorerURL: s.locks.ExplorerTxURL(ev.ChainID, resp.TxHash),
				Message:     "Ticket claimed. It may take a moment to appear in My Tickets.",
			}, nil
		}
		monitoring.RecordPurchaseOutcome(string(PathGasless), "granted")
		outcome.Path = PathGasless
		return outcome, nil
	}

	if resp.Error == gasless.CodeAlreadyClaimed {
		monitoring.RecordPurchaseOutcome(string(PathAlreadyClaimed), "recovered")
		return &Outcome{
			Path:    PathAlreadyClaimed,
			Message: "You already claimed a ticket for this event.",
		}, nil
	}

	if gasless.NoFallback(resp.Error) {
		// Terminal business-rule violation: surfaced verbatim, no wallet
		// fallback offered.
		monitoring.RecordPurchaseOutcome(string(PathGasless), resp.Error)
		return &Outcome{
			Path:        PathGasless,
			GaslessCode: resp.Error,
			Message:     gaslessMessage(resp.Error),
		}, nil
	}

	monitoring.RecordPurchaseOutcome(string(PathWalletTransaction), "gasless_fallback")
	return &Outcome{
		Path:   PathWalletTransaction,
		Intent: s.walletIntent(ev, onChain),
	}, nil
}

func (s *Service) fiatOutcome(ctx context.Context, ev *domain.Event, wallet, email string) (*Outcome, error) {
	const op = "service.purchase.fiatOutcome"

	checkout, err := s.fiat.Checkout(ctx, ev.ID, email, wallet)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	monitoring.RecordPurchaseOutcome(string(PathFiatCheckout), "initialized")
	return &Outcome{
		Path:     PathFiatCheckout,
		Checkout: checkout,
	}, nil
}

// walletIntent prefers live on-chain pricing over the database record so
// the wallet signs for what the contract will actually charge.
func (s *Service) walletIntent(ev *domain.Event, onChain *chain.PricingState) *WalletIntent {
	intent := &WalletIntent{
		LockAddress: ev.LockAddress,
		ChainID:     ev.ChainID,
		Price:       ev.Price.String(),
		Currency:    ev.Currency,
	}

	if onChain != nil {
		intent.Price = onChain.KeyPrice.String()
		intent.Currency = onChain.Symbol
		intent.TokenAddress = onChain.TokenAddress
	}

	return intent
}

// RegisterTicket mirrors an on-chain grant into the database after a
// client wallet purchase (or a sponsored grant). The chain is the source
// of truth: the wallet must hold a valid key, and a duplicate row means
// the ticket is already registered, which is a recovery, not an error.
func (s *Service) RegisterTicket(
	ctx context.Context,
	eventID uuid.UUID,
	wallet, txHash, email string,
) (*Outcome, error) {
	const op = "service.purchase.RegisterTicket"

	if !common.IsHexAddress(wallet) {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidWallet)
	}

	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if ev.LockAddress != "" {
		valid, err := s.locks.HasValidKey(ctx, ev.ChainID, ev.LockAddress, wallet)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !valid {
			return nil, fmt.Errorf("%s:%w", op, ErrNoValidKey)
		}
	}

	var explorerURL string
	if txHash != "" {
		explorerURL = s.locks.ExplorerTxURL(ev.ChainID, txHash)
	}

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		_, err := s.store.Tickets().With(tx).Insert(ctx, &domain.Ticket{
			EventID:     eventID,
			OwnerWallet: wallet,
			GrantTxHash: txHash,
			Status:      domain.TicketActive,
			UserEmail:   email,
		})
		if err != nil {
			return err
		}

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateEvent(ctx, eventID)
			_ = s.pubsub.PublishTicketsChanged(ctx, eventID)

			if s.mailer != nil && email != "" {
				go func(to, title, hash, url string) {
					if err := s.mailer.SendTicket(to, title, hash, url); err != nil {
						s.logger.Warn("ticket email failed",
							"event_id", eventID, "error", err)
					}
				}(email, ev.Title, txHash, explorerURL)
			}
		})

		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return &Outcome{
				Path:        PathAlreadyClaimed,
				TxHash:      txHash,
				ExplorerURL: explorerURL,
				Message:     "Ticket already registered for this wallet.",
			}, nil
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &Outcome{
		Path:        PathRegistered,
		TxHash:      txHash,
		ExplorerURL: explorerURL,
	}, nil
}

func gaslessMessage(code string) string {
	switch code {
	case gasless.CodeLimitExceeded:
		return "Daily gasless limit exceeded. Try again tomorrow."
	case gasless.CodeMaxKeysReached:
		return "This event is sold out."
	case gasless.CodeAlreadyClaimed:
		return "You already claimed a ticket for this event."
	default:
		return "Gasless claim unavailable."
	}
}
