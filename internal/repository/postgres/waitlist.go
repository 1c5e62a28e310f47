package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teerex/teerex/internal/domain"
)

type WaitlistRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *WaitlistRepo) With(db DB) *WaitlistRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *WaitlistRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Join inserts a waitlist entry. Duplicate (event, email) pairs surface as
// repository.ErrConflict.
func (r *WaitlistRepo) Join(ctx context.Context, e *domain.WaitlistEntry) (uuid.UUID, error) {
	const op = "postgres.WaitlistRepo.Join"

	db := r.handle()

	var id uuid.UUID
	err := db.QueryRow(ctx,
		`INSERT INTO event_waitlist (event_id, user_email, wallet_address)
		 VALUES ($1, lower($2), lower($3))
		 RETURNING id`,
		e.EventID, e.UserEmail, e.WalletAddress,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, wrapDBErr(op, err)
	}

	return id, nil
}

// MarkConfirmationSent flips the confirmation_sent flag. The conditional
// update makes the confirmation email a one-shot: a second caller gets
// repository.ErrAlreadySent and must not send again.
func (r *WaitlistRepo) MarkConfirmationSent(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.WaitlistRepo.MarkConfirmationSent"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE event_waitlist SET confirmation_sent = true
		 WHERE id = $1 AND confirmation_sent = false`,
		id,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, errAlreadySent)
	}

	return nil
}

func (r *WaitlistRepo) ListUnnotified(ctx context.Context, eventID uuid.UUID) ([]domain.WaitlistEntry, error) {
	const op = "postgres.WaitlistRepo.ListUnnotified"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, event_id, user_email, COALESCE(wallet_address, ''),
		        notified, confirmation_sent, created_at
		 FROM event_waitlist
		 WHERE event_id = $1 AND notified = false
		 ORDER BY created_at`,
		eventID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []domain.WaitlistEntry
	for rows.Next() {
		var e domain.WaitlistEntry
		if err := rows.Scan(&e.ID, &e.EventID, &e.UserEmail, &e.WalletAddress,
			&e.Notified, &e.ConfirmationSent, &e.CreatedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *WaitlistRepo) MarkNotified(ctx context.Context, ids []uuid.UUID) (int64, error) {
	const op = "postgres.WaitlistRepo.MarkNotified"

	if len(ids) == 0 {
		return 0, nil
	}

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE event_waitlist SET notified = true WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}
