package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teerex/teerex/internal/domain"
)

type AccessRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *AccessRepo) With(db DB) *AccessRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *AccessRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *AccessRepo) HasEntry(ctx context.Context, eventID uuid.UUID, wallet string) (bool, error) {
	const op = "postgres.AccessRepo.HasEntry"

	db := r.handle()

	var exists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM event_allow_list
		   WHERE event_id = $1 AND lower(wallet_address) = lower($2)
		 )`,
		eventID, wallet,
	).Scan(&exists)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return exists, nil
}

func (r *AccessRepo) AddEntry(ctx context.Context, eventID uuid.UUID, wallet string) error {
	const op = "postgres.AccessRepo.AddEntry"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO event_allow_list (event_id, wallet_address)
		 VALUES ($1, lower($2))`,
		eventID, wallet,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// InsertRequest records a pending approval ask. A duplicate surfaces as
// repository.ErrConflict via the unique (event_id, wallet_address) index.
func (r *AccessRepo) InsertRequest(ctx context.Context, eventID uuid.UUID, wallet string) error {
	const op = "postgres.AccessRepo.InsertRequest"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO event_allow_list_requests (event_id, wallet_address, status)
		 VALUES ($1, lower($2), 'pending')`,
		eventID, wallet,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *AccessRepo) TouchRequest(ctx context.Context, eventID uuid.UUID, wallet string) error {
	const op = "postgres.AccessRepo.TouchRequest"

	db := r.handle()

	_, err := db.Exec(ctx,
		`UPDATE event_allow_list_requests SET updated_at = now()
		 WHERE event_id = $1 AND lower(wallet_address) = lower($2)`,
		eventID, wallet,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *AccessRepo) GetRequest(
	ctx context.Context,
	eventID uuid.UUID,
	wallet string,
) (*domain.AllowListRequest, error) {
	const op = "postgres.AccessRepo.GetRequest"

	db := r.handle()

	var req domain.AllowListRequest
	err := db.QueryRow(ctx,
		`SELECT event_id, wallet_address, status, created_at, updated_at
		 FROM event_allow_list_requests
		 WHERE event_id = $1 AND lower(wallet_address) = lower($2)`,
		eventID, wallet,
	).Scan(&req.EventID, &req.WalletAddress, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &req, nil
}

// ApproveRequest flips a pending request to approved and, in the same
// statement batch, is expected to be paired with AddEntry inside a tx.
func (r *AccessRepo) ApproveRequest(ctx context.Context, eventID uuid.UUID, wallet string) error {
	const op = "postgres.AccessRepo.ApproveRequest"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE event_allow_list_requests SET status = 'approved', updated_at = now()
		 WHERE event_id = $1 AND lower(wallet_address) = lower($2) AND status = 'pending'`,
		eventID, wallet,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, errNotFound)
	}

	return nil
}
