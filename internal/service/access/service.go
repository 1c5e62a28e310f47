package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/teerex/teerex/internal/domain"
	"github.com/teerex/teerex/internal/repository"
	postgresrepo "github.com/teerex/teerex/internal/repository/postgres"
	"github.com/teerex/teerex/internal/uow"
)

// Mailer is the slice of the mail package the gate needs. Nil disables
// sending without disabling the gate.
type Mailer interface {
	SendWaitlistConfirmation(to, eventTitle string) error
	SendWaitlistSpotOpened(to, eventTitle, eventURL string) error
}

// Store is the repository surface the gate uses; satisfied by
// *postgresrepo.Store.
type Store interface {
	Access() *postgresrepo.AccessRepo
	Waitlist() *postgresrepo.WaitlistRepo
	Events() *postgresrepo.EventRepo
}

type Service struct {
	store  Store
	uow    *uow.UoW
	mailer Mailer
	logger *slog.Logger
}

func New(store *postgresrepo.Store, mailer Mailer, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		uow:    uow.NewUoW(store),
		mailer: mailer,
		logger: logger,
	}
}

// EnsureEligible admits an allow-listed wallet. A wallet without an entry
// gets a pending request recorded (idempotently) and ErrPendingApproval
// back; the purchase path must halt on it. Absence of an entry is never a
// silent failure.
func (s *Service) EnsureEligible(ctx context.Context, eventID uuid.UUID, wallet string) error {
	const op = "service.access.EnsureEligible"

	has, err := s.store.Access().HasEntry(ctx, eventID, wallet)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if has {
		return nil
	}

	if err := s.store.Access().InsertRequest(ctx, eventID, wallet); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Already requested: refresh the ask, still pending.
			if terr := s.store.Access().TouchRequest(ctx, eventID, wallet); terr != nil {
				s.logger.Warn("failed to touch allow list request",
					"event_id", eventID, "wallet", wallet, "error", terr)
			}
			return ErrPendingApproval
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	return ErrPendingApproval
}

// RequestAccess records an approval ask directly (the pre-purchase
// "request access" button). Duplicates report created=false, not an error.
func (s *Service) RequestAccess(ctx context.Context, eventID uuid.UUID, wallet string) (bool, error) {
	const op = "service.access.RequestAccess"

	err := s.store.Access().InsertRequest(ctx, eventID, wallet)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return false, nil
		}
		return false, fmt.Errorf("%s:%w", op, err)
	}

	return true, nil
}

// RequestStatus reports where a wallet stands with an allow-listed event:
// "listed", "pending", "approved", "rejected" or "none".
func (s *Service) RequestStatus(ctx context.Context, eventID uuid.UUID, wallet string) (string, error) {
	const op = "service.access.RequestStatus"

	has, err := s.store.Access().HasEntry(ctx, eventID, wallet)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}
	if has {
		return "listed", nil
	}

	req, err := s.store.Access().GetRequest(ctx, eventID, wallet)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "none", nil
		}
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return string(req.Status), nil
}

// Approve flips a pending request to approved and adds the allow-list
// entry in the same transaction.
func (s *Service) Approve(ctx context.Context, eventID uuid.UUID, wallet string) error {
	const op = "service.access.Approve"

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		if err := s.store.Access().With(tx).ApproveRequest(ctx, eventID, wallet); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrRequestNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := s.store.Access().With(tx).AddEntry(ctx, eventID, wallet); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil // entry already present, approval is a no-op
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		return nil
	})

	return err
}

type JoinResult struct {
	AlreadyJoined bool
}

// JoinWaitlist inserts the entry, tolerating duplicates, and fires the
// confirmation email exactly once: the confirmation_sent flag is flipped
// with a conditional update before the send.
func (s *Service) JoinWaitlist(ctx context.Context, eventID uuid.UUID, email, wallet string) (*JoinResult, error) {
	const op = "service.access.JoinWaitlist"

	entry := &domain.WaitlistEntry{
		EventID:       eventID,
		UserEmail:     email,
		WalletAddress: wallet,
	}

	id, err := s.store.Waitlist().Join(ctx, entry)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return &JoinResult{AlreadyJoined: true}, nil
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if s.mailer == nil {
		return &JoinResult{}, nil
	}

	if err := s.store.Waitlist().MarkConfirmationSent(ctx, id); err != nil {
		if !errors.Is(err, repository.ErrAlreadySent) {
			s.logger.Warn("failed to mark waitlist confirmation",
				"waitlist_id", id, "error", err)
		}
		return &JoinResult{}, nil
	}

	ev, err := s.store.Events().Get(ctx, eventID)
	if err != nil {
		s.logger.Warn("waitlist confirmation skipped, event lookup failed",
			"event_id", eventID, "error", err)
		return &JoinResult{}, nil
	}

	go func(to, title string) {
		if err := s.mailer.SendWaitlistConfirmation(to, title); err != nil {
			s.logger.Warn("waitlist confirmation email failed",
				"event_id", eventID, "error", err)
		}
	}(email, ev.Title)

	return &JoinResult{}, nil
}

// NotifyWaitlist mails every un-notified entry that a spot opened up and
// marks the batch. Returns how many were notified.
func (s *Service) NotifyWaitlist(ctx context.Context, eventID uuid.UUID, eventURL string) (int, error) {
	const op = "service.access.NotifyWaitlist"

	ev, err := s.store.Events().Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	entries, err := s.store.Waitlist().ListUnnotified(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	var sent []uuid.UUID
	for _, e := range entries {
		if s.mailer != nil {
			if err := s.mailer.SendWaitlistSpotOpened(e.UserEmail, ev.Title, eventURL); err != nil {
				s.logger.Warn("waitlist notification failed",
					"waitlist_id", e.ID, "error", err)
				continue
			}
		}
		sent = append(sent, e.ID)
	}

	if _, err := s.store.Waitlist().MarkNotified(ctx, sent); err != nil {
		return len(sent), fmt.Errorf("%s:%w", op, err)
	}

	return len(sent), nil
}
