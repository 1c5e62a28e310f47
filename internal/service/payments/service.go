package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/teerex/teerex/internal/domain"
	"github.com/teerex/teerex/internal/mail"
	"github.com/teerex/teerex/internal/monitoring"
	"github.com/teerex/teerex/internal/paystack"
	"github.com/teerex/teerex/internal/repository"
	postgresrepo "github.com/teerex/teerex/internal/repository/postgres"
	redisrepo "github.com/teerex/teerex/internal/repository/redis"
	"github.com/teerex/teerex/internal/uow"
)

// Gateway is the Paystack surface the service uses.
type Gateway interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*paystack.VerifyResult, error)
}

// Granter submits the sponsored key grant once fiat payment clears.
type Granter interface {
	GrantKey(ctx context.Context, chainID int64, lockAddress, recipient string) (string, error)
}

// Locks is the chain surface the service needs: the explorer link and the
// duplicate check that gates every grant.
type Locks interface {
	HasValidKey(ctx context.Context, chainID int64, lockAddress, wallet string) (bool, error)
	ExplorerTxURL(chainID int64, txHash string) string
}

// Events and Transactions are the store slices the settlement paths read
// and write outside a transaction; satisfied by the postgres repos.
type Events interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Event, error)
}

type Transactions interface {
	Create(ctx context.Context, t *domain.PaystackTransaction) error
	GetByReference(ctx context.Context, reference string) (*domain.PaystackTransaction, error)
	SetOutcome(ctx context.Context, reference string, status domain.PaymentStatus, gw domain.GatewayResponse) error
	UpdateGatewayResponse(ctx context.Context, reference string, gw domain.GatewayResponse) error
	ListStalePending(ctx context.Context, olderThan, limit int64) ([]string, error)
}

// UnitOfWork is the transactional boundary for multi-row writes.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error) error
}

type Config struct {
	CallbackURL string
}

type Service struct {
	store   *postgresrepo.Store
	uow     UnitOfWork
	events  Events
	txns    Transactions
	gateway Gateway
	granter Granter
	locks   Locks
	cache   *redisrepo.Cache
	pubsub  *redisrepo.TicketsPubSub
	mailer  *mail.Mailer
	logger  *slog.Logger
	cfg     Config
}

func New(
	store *postgresrepo.Store,
	gateway Gateway,
	granter Granter,
	locks Locks,
	cache *redisrepo.Cache,
	pubsub *redisrepo.TicketsPubSub,
	mailer *mail.Mailer,
	logger *slog.Logger,
	cfg Config,
) *Service {
	return &Service{
		store:   store,
		uow:     uow.NewUoW(store),
		events:  store.Events(),
		txns:    store.Payments(),
		gateway: gateway,
		granter: granter,
		locks:   locks,
		cache:   cache,
		pubsub:  pubsub,
		mailer:  mailer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Reference builds the checkout idempotency key.
func Reference(eventID uuid.UUID) string {
	return fmt.Sprintf("TeeRex-%s-%d", eventID, time.Now().Unix())
}

type CheckoutResult struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AmountKobo       int64  `json:"amount"`
}

// Checkout records the pending transaction and initializes the gateway
// charge. The row exists before the user ever reaches Paystack, so a
// webhook for an unknown reference is always a hard error.
func (s *Service) Checkout(ctx context.Context, eventID uuid.UUID, email, wallet string) (*CheckoutResult, error) {
	const op = "service.payments.Checkout"

	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !ev.Accepts(domain.PayFiat) || ev.NGNPrice.IsZero() {
		return nil, fmt.Errorf("%s:%w", op, ErrFiatUnavailable)
	}

	reference := Reference(eventID)
	amountKobo := ev.NGNPrice.Mul(decimal.NewFromInt(100)).IntPart()

	txn := &domain.PaystackTransaction{
		Reference:  reference,
		EventID:    eventID,
		UserEmail:  email,
		Wallet:     wallet,
		AmountKobo: amountKobo,
		Status:     domain.PaymentPending,
	}

	if err := s.txns.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	init, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       email,
		AmountKobo:  amountKobo,
		Reference:   reference,
		CallbackURL: s.cfg.CallbackURL,
		Currency:    "NGN",
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &CheckoutResult{
		Reference:        reference,
		AuthorizationURL: init.AuthorizationURL,
		AmountKobo:       amountKobo,
	}, nil
}

// ApplyWebhook processes a signature-verified gateway event. Replays and
// duplicate deliveries are no-ops: the transaction row is the idempotency
// record.
func (s *Service) ApplyWebhook(ctx context.Context, ev paystack.WebhookEvent) error {
	const op = "service.payments.ApplyWebhook"

	if ev.Event != paystack.EventChargeSuccess {
		monitoring.RecordWebhook(ev.Event, "ignored")
		return nil
	}

	txn, err := s.txns.GetByReference(ctx, ev.Data.Reference)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			monitoring.RecordWebhook(ev.Event, "unknown_reference")
			return fmt.Errorf("%s:%w", op, ErrTransactionNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	if txn.Terminal() {
		monitoring.RecordWebhook(ev.Event, "replay")
		return nil
	}

	if ev.Data.AmountKobo < txn.AmountKobo {
		monitoring.RecordWebhook(ev.Event, "amount_mismatch")
		outcome := domain.GatewayResponse{
			IssueStatus: "rejected",
			Error:       "amount_mismatch",
		}
		if err := s.txns.SetOutcome(ctx, txn.Reference, domain.PaymentFailed, outcome); err != nil &&
			!errors.Is(err, repository.ErrTerminal) {
			return fmt.Errorf("%s:%w", op, err)
		}
		return nil
	}

	if err := s.settle(ctx, txn); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	monitoring.RecordWebhook(ev.Event, "processed")
	return nil
}

// settle grants the key and records the outcome. The conditional status
// update claims the row before anything touches the chain: exactly one
// settler wins per reference, so a duplicate delivery or a sweep racing a
// webhook can never both submit a grant transaction.
func (s *Service) settle(ctx context.Context, txn *domain.PaystackTransaction) error {
	const op = "service.payments.settle"

	claim := domain.GatewayResponse{IssueStatus: "granting"}
	if err := s.txns.SetOutcome(ctx, txn.Reference, domain.PaymentSuccess, claim); err != nil {
		if errors.Is(err, repository.ErrTerminal) {
			// Another delivery or the sweeper holds the row.
			return nil
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	ev, err := s.events.Get(ctx, txn.EventID)
	if err != nil {
		// The row stays at issue_status=granting; retry-grant recovers it.
		return fmt.Errorf("%s:%w", op, err)
	}

	if ev.LockAddress != "" {
		held, herr := s.locks.HasValidKey(ctx, ev.ChainID, ev.LockAddress, txn.Wallet)
		if herr != nil {
			s.logger.Warn("pre-grant key check failed, granting anyway",
				"reference", txn.Reference, "error", herr)
		} else if held {
			// The wallet already holds a key, from a wallet purchase or an
			// earlier grant whose recording was lost. Settle without minting
			// a second one.
			outcome := domain.GatewayResponse{IssueStatus: "granted", KeyGranted: true}
			if uerr := s.txns.UpdateGatewayResponse(ctx, txn.Reference, outcome); uerr != nil {
				return fmt.Errorf("%s:%w", op, uerr)
			}
			return nil
		}
	}

	txHash, err := s.granter.GrantKey(ctx, ev.ChainID, ev.LockAddress, txn.Wallet)
	if err != nil {
		// Payment cleared but issuance failed: record the terminal error for
		// the poller; the buyer is pointed at manual reconciliation.
		s.logger.Error("key grant failed after fiat payment",
			"reference", txn.Reference, "event_id", ev.ID, "error", err)
		outcome := domain.GatewayResponse{
			IssueStatus: "grant_failed",
			Error:       "key_grant_failed",
		}
		if uerr := s.txns.UpdateGatewayResponse(ctx, txn.Reference, outcome); uerr != nil {
			return fmt.Errorf("%s:%w", op, uerr)
		}
		return nil
	}

	if err := s.recordGrant(ctx, txn, txHash); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if s.mailer != nil && txn.UserEmail != "" {
		go func(to, title, hash, url string) {
			if err := s.mailer.SendTicket(to, title, hash, url); err != nil {
				s.logger.Warn("ticket email failed",
					"reference", txn.Reference, "error", err)
			}
		}(txn.UserEmail, ev.Title, txHash, s.locks.ExplorerTxURL(ev.ChainID, txHash))
	}

	return nil
}

// recordGrant writes the granted outcome and the ticket row in one
// transaction, with cache invalidation and the realtime notification after
// commit.
func (s *Service) recordGrant(ctx context.Context, txn *domain.PaystackTransaction, txHash string) error {
	outcome := domain.GatewayResponse{
		IssueStatus: "granted",
		KeyGranted:  true,
		TxHash:      txHash,
	}

	return s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		if err := s.store.Payments().With(tx).UpdateGatewayResponse(ctx, txn.Reference, outcome); err != nil {
			return err
		}

		_, err := s.store.Tickets().With(tx).Insert(ctx, &domain.Ticket{
			EventID:     txn.EventID,
			OwnerWallet: txn.Wallet,
			GrantTxHash: txHash,
			Status:      domain.TicketActive,
			UserEmail:   txn.UserEmail,
		})
		if err != nil && !errors.Is(err, repository.ErrConflict) {
			return err
		}

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateEvent(ctx, txn.EventID)
			_ = s.pubsub.PublishTicketsChanged(ctx, txn.EventID)
		})

		return nil
	})
}

// Status states reported to the poller and the status endpoint.
const (
	StatusNotFound = "not_found"
	StatusPending  = "pending"
	StatusGranted  = "granted"
	StatusFailed   = "failed"
)

type StatusResult struct {
	State       string `json:"state"`
	TxHash      string `json:"tx_hash,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Status reads the current reconciliation state of a reference. It only
// observes; the webhook handler (or the sweeper) is what makes progress.
func (s *Service) Status(ctx context.Context, reference string) (*StatusResult, error) {
	const op = "service.payments.Status"

	txn, err := s.txns.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &StatusResult{State: StatusNotFound}, nil
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	switch {
	case txn.GatewayResponse.KeyGranted:
		res := &StatusResult{
			State:  StatusGranted,
			TxHash: txn.GatewayResponse.TxHash,
		}
		if res.TxHash != "" {
			if ev, err := s.events.Get(ctx, txn.EventID); err == nil {
				res.ExplorerURL = s.locks.ExplorerTxURL(ev.ChainID, res.TxHash)
			}
		}
		return res, nil
	case txn.Status == domain.PaymentFailed || txn.GatewayResponse.Error != "":
		return &StatusResult{
			State: StatusFailed,
			Error: txn.GatewayResponse.Error,
		}, nil
	default:
		return &StatusResult{State: StatusPending}, nil
	}
}

// RetryGrant re-attempts key issuance for a paid transaction whose grant
// failed. Idempotent: a transaction that already granted, or a wallet that
// already holds a key, just reports granted. This is the manual
// reconciliation surface behind the timed-out checkout screen.
func (s *Service) RetryGrant(ctx context.Context, reference string) (*StatusResult, error) {
	const op = "service.payments.RetryGrant"

	txn, err := s.txns.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrTransactionNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if txn.GatewayResponse.KeyGranted {
		return s.Status(ctx, reference)
	}

	if txn.Status != domain.PaymentSuccess {
		return nil, fmt.Errorf("%s:%w", op, ErrNotPaid)
	}

	ev, err := s.events.Get(ctx, txn.EventID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if ev.LockAddress != "" {
		held, herr := s.locks.HasValidKey(ctx, ev.ChainID, ev.LockAddress, txn.Wallet)
		if herr == nil && held {
			// A grant already landed; only its recording was lost.
			outcome := domain.GatewayResponse{IssueStatus: "granted", KeyGranted: true}
			if uerr := s.txns.UpdateGatewayResponse(ctx, reference, outcome); uerr != nil {
				return nil, fmt.Errorf("%s:%w", op, uerr)
			}
			return &StatusResult{State: StatusGranted}, nil
		}
	}

	txHash, err := s.granter.GrantKey(ctx, ev.ChainID, ev.LockAddress, txn.Wallet)
	if err != nil {
		s.logger.Error("grant retry failed",
			"reference", reference, "event_id", ev.ID, "error", err)
		return &StatusResult{State: StatusFailed, Error: "key_grant_failed"}, nil
	}

	if err := s.recordGrant(ctx, txn, txHash); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &StatusResult{
		State:       StatusGranted,
		TxHash:      txHash,
		ExplorerURL: s.locks.ExplorerTxURL(ev.ChainID, txHash),
	}, nil
}

// ReconcilePending sweeps stale pending transactions and verifies them
// against the gateway, settling any the webhook missed. Returns how many
// were settled.
func (s *Service) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int64) (int, error) {
	const op = "service.payments.ReconcilePending"

	refs, err := s.txns.ListStalePending(ctx, int64(olderThan.Seconds()), limit)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	settled := 0
	for _, ref := range refs {
		verified, err := s.gateway.Verify(ctx, ref)
		if err != nil {
			s.logger.Warn("gateway verify failed during sweep",
				"reference", ref, "error", err)
			continue
		}

		switch {
		case verified.Paid():
			txn, err := s.txns.GetByReference(ctx, ref)
			if err != nil {
				s.logger.Warn("sweep lost transaction row", "reference", ref, "error", err)
				continue
			}
			if txn.Terminal() {
				continue
			}
			if err := s.settle(ctx, txn); err != nil {
				s.logger.Error("sweep settlement failed", "reference", ref, "error", err)
				continue
			}
			settled++
		case verified.Status == "failed" || verified.Status == "abandoned":
			outcome := domain.GatewayResponse{
				IssueStatus: "rejected",
				Error:       "payment_" + verified.Status,
			}
			if err := s.txns.SetOutcome(ctx, ref, domain.PaymentFailed, outcome); err != nil &&
				!errors.Is(err, repository.ErrTerminal) {
				s.logger.Warn("sweep failed to mark failure", "reference", ref, "error", err)
			}
		}
	}

	return settled, nil
}
