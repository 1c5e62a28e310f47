package gasless

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teerex/teerex/internal/monitoring"
)

// Error codes carried in the response envelope. The no-fallback set marks
// business-rule violations: proceeding with a wallet-paid transaction after
// one of these would break the rule the sponsor just enforced.
const (
	CodeLimitExceeded  = "limit_exceeded"
	CodeMaxKeysReached = "max_keys_reached"
	CodeAlreadyClaimed = "ticket_already_claimed"
	CodeSponsorError   = "sponsor_error"
	CodeDisabled       = "gasless_disabled"
)

var noFallbackCodes = map[string]struct{}{
	CodeLimitExceeded:  {},
	CodeMaxKeysReached: {},
	CodeAlreadyClaimed: {},
}

// NoFallback reports whether an error code must be returned to the caller
// verbatim instead of triggering the wallet fallback.
func NoFallback(code string) bool {
	_, ok := noFallbackCodes[code]
	return ok
}

// Request is a sponsored-claim intent.
type Request struct {
	ChainID     int64
	LockAddress string
	Wallet      string
}

// Response mirrors the backend-function envelope: callers never assume the
// grant happened unless OK is true.
type Response struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	TxHash string `json:"tx_hash,omitempty"`
}

// Invoker performs the sponsored claim itself.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// FallbackFunc re-executes the same intent through the buyer's own wallet.
type FallbackFunc func(ctx context.Context, req Request) (*Response, error)

type Config struct {
	Enabled bool
}

// Service wraps the sponsored path with the fallback policy: sponsorship is
// a best-effort optimization, the wallet-paid path is the safety net.
type Service struct {
	invoker Invoker
	logger  *slog.Logger
	cfg     Config
}

func New(invoker Invoker, logger *slog.Logger, cfg Config) *Service {
	if invoker == nil {
		cfg.Enabled = false
	}

	return &Service{
		invoker: invoker,
		logger:  logger,
		cfg:     cfg,
	}
}

// Attempt tries the sponsored claim and falls back per policy:
//   - disabled: fallback directly, the sponsor is never called;
//   - transport error from the sponsor: fallback;
//   - application error in the no-fallback set: returned verbatim, no fallback;
//   - any other application error: fallback, exactly once, original request.
func (s *Service) Attempt(ctx context.Context, req Request, fallback FallbackFunc) (*Response, error) {
	const op = "service.gasless.Attempt"

	if !s.cfg.Enabled {
		monitoring.RecordGaslessFallback("disabled")
		return fallback(ctx, req)
	}

	resp, err := s.invoker.Invoke(ctx, req)
	if err != nil {
		s.logger.Warn("sponsored claim transport failure, falling back",
			"lock", req.LockAddress, "wallet", req.Wallet, "error", err)
		monitoring.RecordGaslessFallback("transport")
		return fallback(ctx, req)
	}

	if resp.OK {
		return resp, nil
	}

	if NoFallback(resp.Error) {
		return resp, nil
	}

	s.logger.Info("sponsored claim rejected, falling back",
		"lock", req.LockAddress, "wallet", req.Wallet, "code", resp.Error)
	monitoring.RecordGaslessFallback(resp.Error)

	out, ferr := fallback(ctx, req)
	if ferr != nil {
		return nil, fmt.Errorf("%s: fallback:%w", op, ferr)
	}

	return out, nil
}

// Claim invokes the sponsored path with no fallback; terminal codes travel
// back to the caller untouched. This is the direct gasless endpoint.
func (s *Service) Claim(ctx context.Context, req Request) (*Response, error) {
	if !s.cfg.Enabled {
		return &Response{OK: false, Error: CodeDisabled}, nil
	}

	return s.invoker.Invoke(ctx, req)
}

// Limiter caps sponsored claims per wallet over a window.
type Limiter interface {
	Allow(ctx context.Context, suffix string) (bool, int64, time.Duration, error)
}

// KeyChecker answers "does this wallet already hold a valid key".
type KeyChecker interface {
	HasValidKey(ctx context.Context, chainID int64, lockAddress, wallet string) (bool, error)
}

// Granter submits the sponsored grant transaction.
type Granter interface {
	GrantKey(ctx context.Context, chainID int64, lockAddress, recipient string) (string, error)
}

// SponsorInvoker is the in-process implementation of the sponsored
// endpoint: daily limit, duplicate-claim check, then the grant.
type SponsorInvoker struct {
	granter Granter
	checker KeyChecker
	limiter Limiter
	logger  *slog.Logger
}

func NewSponsorInvoker(granter Granter, checker KeyChecker, limiter Limiter, logger *slog.Logger) *SponsorInvoker {
	return &SponsorInvoker{
		granter: granter,
		checker: checker,
		limiter: limiter,
		logger:  logger,
	}
}

func (i *SponsorInvoker) Invoke(ctx context.Context, req Request) (*Response, error) {
	const op = "service.gasless.SponsorInvoker.Invoke"

	already, err := i.checker.HasValidKey(ctx, req.ChainID, req.LockAddress, req.Wallet)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if already {
		return &Response{OK: false, Error: CodeAlreadyClaimed}, nil
	}

	if i.limiter != nil {
		ok, _, retry, err := i.limiter.Allow(ctx, req.Wallet)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			i.logger.Info("gasless daily limit hit",
				"wallet", req.Wallet, "retry_in", retry)
			return &Response{OK: false, Error: CodeLimitExceeded}, nil
		}
	}

	txHash, err := i.granter.GrantKey(ctx, req.ChainID, req.LockAddress, req.Wallet)
	if err != nil {
		return &Response{OK: false, Error: classifyGrantError(err)}, nil
	}

	return &Response{OK: true, TxHash: txHash}, nil
}

// classifyGrantError maps revert reasons onto envelope codes. Lock
// contracts signal capacity with MAX_KEYS / LOCK_SOLD_OUT reverts.
func classifyGrantError(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "MAX_KEYS") || strings.Contains(msg, "LOCK_SOLD_OUT") {
		return CodeMaxKeysReached
	}
	return CodeSponsorError
}
