package payments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teerex/teerex/internal/monitoring"
)

// PollState is the reconciliation poll's state machine. Transitions run
// processing → success | error | timeout and never back.
type PollState string

const (
	PollProcessing PollState = "processing"
	PollSuccess    PollState = "success"
	PollError      PollState = "error"
	PollTimeout    PollState = "timeout"
)

// StatusSource observes reconciliation progress. The poller never makes
// progress itself; the webhook handler and the sweeper do.
type StatusSource interface {
	Status(ctx context.Context, reference string) (*StatusResult, error)
}

type PollOutcome struct {
	State       PollState `json:"state"`
	TxHash      string    `json:"tx_hash,omitempty"`
	ExplorerURL string    `json:"explorer_url,omitempty"`
	Error       string    `json:"error,omitempty"`
}

type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// Poller watches a reference until issuance concludes or the attempt
// budget runs out. Defaults: 2s × 30 attempts, a ~60s budget.
type Poller struct {
	source StatusSource
	logger *slog.Logger
	cfg    PollerConfig
}

func NewPoller(source StatusSource, logger *slog.Logger, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 30
	}

	return &Poller{
		source: source,
		logger: logger,
		cfg:    cfg,
	}
}

// Run polls until a terminal state. onSuccess fires at most once, on the
// first granted observation; later granted polls cannot re-trigger it.
// Timeout and error outcomes leave recovery to the manual-reconciliation
// surface ("My Tickets").
func (p *Poller) Run(
	ctx context.Context,
	reference string,
	onSuccess func(PollOutcome),
) (PollOutcome, error) {
	const op = "service.payments.Poller.Run"

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	notified := false

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		res, err := p.source.Status(ctx, reference)
		if err != nil {
			// Transient observation failure: the attempt is spent, the loop
			// keeps going.
			p.logger.Warn("status poll failed",
				"reference", reference, "attempt", attempt, "error", err)
		} else {
			switch res.State {
			case StatusGranted:
				outcome := PollOutcome{
					State:       PollSuccess,
					TxHash:      res.TxHash,
					ExplorerURL: res.ExplorerURL,
				}
				if onSuccess != nil && !notified {
					notified = true
					onSuccess(outcome)
				}
				monitoring.RecordPollOutcome(string(PollSuccess))
				return outcome, nil
			case StatusFailed:
				monitoring.RecordPollOutcome(string(PollError))
				return PollOutcome{State: PollError, Error: res.Error}, nil
			case StatusNotFound, StatusPending:
				// keep polling
			}
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return PollOutcome{State: PollProcessing}, fmt.Errorf("%s:%w", op, ctx.Err())
		case <-ticker.C:
		}
	}

	monitoring.RecordPollOutcome(string(PollTimeout))

	return PollOutcome{State: PollTimeout}, nil
}
