package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teerex/teerex/internal/domain"
	"github.com/teerex/teerex/internal/repository"
)

type PaymentsRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PaymentsRepo) With(db DB) *PaymentsRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PaymentsRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create records a checkout initiation. The reference is the primary key and
// the idempotency key for everything that follows.
func (r *PaymentsRepo) Create(ctx context.Context, t *domain.PaystackTransaction) error {
	const op = "postgres.PaymentsRepo.Create"

	db := r.handle()

	gw, err := json.Marshal(t.GatewayResponse)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	_, err = db.Exec(ctx,
		`INSERT INTO paystack_transactions
		   (reference, event_id, user_email, wallet, amount, status, gateway_response)
		 VALUES ($1, $2, lower($3), lower($4), $5, $6, $7)`,
		t.Reference, t.EventID, t.UserEmail, t.Wallet, t.AmountKobo, t.Status, gw,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *PaymentsRepo) GetByReference(ctx context.Context, reference string) (*domain.PaystackTransaction, error) {
	const op = "postgres.PaymentsRepo.GetByReference"

	db := r.handle()

	var (
		t  domain.PaystackTransaction
		gw []byte
	)

	err := db.QueryRow(ctx,
		`SELECT reference, event_id, user_email, COALESCE(wallet, ''), amount,
		        status, gateway_response, created_at, updated_at
		 FROM paystack_transactions WHERE reference = $1`,
		reference,
	).Scan(&t.Reference, &t.EventID, &t.UserEmail, &t.Wallet, &t.AmountKobo,
		&t.Status, &gw, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	if len(gw) > 0 {
		if err := json.Unmarshal(gw, &t.GatewayResponse); err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	return &t, nil
}

// SetOutcome moves a transaction to a new status and records the issuance
// blob. The status guard keeps terminal rows terminal: once success or
// failed is written it never changes again, which is what makes webhook
// replays harmless.
func (r *PaymentsRepo) SetOutcome(
	ctx context.Context,
	reference string,
	status domain.PaymentStatus,
	gw domain.GatewayResponse,
) error {
	const op = "postgres.PaymentsRepo.SetOutcome"

	db := r.handle()

	blob, err := json.Marshal(gw)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	tag, err := db.Exec(ctx,
		`UPDATE paystack_transactions
		 SET status = $2, gateway_response = $3, updated_at = now()
		 WHERE reference = $1 AND status = 'pending'`,
		reference, status, blob,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrTerminal)
	}

	return nil
}

// ListStalePending returns references still pending after the given age,
// oldest first. The background sweeper verifies these against the gateway
// to catch webhooks that never arrived.
func (r *PaymentsRepo) ListStalePending(ctx context.Context, olderThan, limit int64) ([]string, error) {
	const op = "postgres.PaymentsRepo.ListStalePending"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT reference FROM paystack_transactions
		 WHERE status = 'pending' AND created_at < now() - make_interval(secs => $1)
		 ORDER BY created_at
		 LIMIT $2`,
		olderThan, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, wrapDBErr(op, err)
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return refs, nil
}

// UpdateGatewayResponse amends the issuance blob of an already-successful
// payment, e.g. when a retried grant finally lands. Status is untouched.
func (r *PaymentsRepo) UpdateGatewayResponse(
	ctx context.Context,
	reference string,
	gw domain.GatewayResponse,
) error {
	const op = "postgres.PaymentsRepo.UpdateGatewayResponse"

	db := r.handle()

	blob, err := json.Marshal(gw)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	tag, err := db.Exec(ctx,
		`UPDATE paystack_transactions
		 SET gateway_response = $2, updated_at = now()
		 WHERE reference = $1`,
		reference, blob,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
