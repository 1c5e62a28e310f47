package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teerex/teerex/internal/domain"
)

type TicketRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TicketRepo) With(db DB) *TicketRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TicketRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Insert creates a ticket row. The unique (event_id, owner_wallet) index
// makes double-issuance a repository.ErrConflict.
func (r *TicketRepo) Insert(ctx context.Context, t *domain.Ticket) (uuid.UUID, error) {
	const op = "postgres.TicketRepo.Insert"

	db := r.handle()

	var id uuid.UUID
	err := db.QueryRow(ctx,
		`INSERT INTO tickets (event_id, owner_wallet, grant_tx_hash, status, user_email)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		t.EventID, t.OwnerWallet, t.GrantTxHash, t.Status, t.UserEmail,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *TicketRepo) GetByEventAndWallet(
	ctx context.Context,
	eventID uuid.UUID,
	wallet string,
) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.GetByEventAndWallet"

	db := r.handle()

	var t domain.Ticket
	err := db.QueryRow(ctx,
		`SELECT id, event_id, owner_wallet, grant_tx_hash, status,
		        COALESCE(user_email, ''), created_at
		 FROM tickets WHERE event_id = $1 AND lower(owner_wallet) = lower($2)`,
		eventID, wallet,
	).Scan(&t.ID, &t.EventID, &t.OwnerWallet, &t.GrantTxHash, &t.Status,
		&t.UserEmail, &t.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &t, nil
}

func (r *TicketRepo) ListByWallet(ctx context.Context, wallet string) ([]domain.Ticket, error) {
	const op = "postgres.TicketRepo.ListByWallet"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, event_id, owner_wallet, grant_tx_hash, status,
		        COALESCE(user_email, ''), created_at
		 FROM tickets WHERE lower(owner_wallet) = lower($1)
		 ORDER BY created_at DESC`,
		wallet,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(&t.ID, &t.EventID, &t.OwnerWallet, &t.GrantTxHash,
			&t.Status, &t.UserEmail, &t.CreatedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, t)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *TicketRepo) CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	const op = "postgres.TicketRepo.CountByEvent"

	db := r.handle()

	var n int64
	err := db.QueryRow(ctx,
		`SELECT count(*) FROM tickets WHERE event_id = $1 AND status <> 'revoked'`,
		eventID,
	).Scan(&n)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}
