package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/teerex/teerex/internal/domain"
	"github.com/teerex/teerex/internal/repository"
)

type EventRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *EventRepo) With(db DB) *EventRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *EventRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *EventRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "postgres.EventRepo.Get"

	db := r.handle()

	var (
		e           domain.Event
		priceStr    string
		ngnPriceStr string
		methods     []string
	)

	err := db.QueryRow(ctx,
		`SELECT id, title, description, starts_at, location, capacity,
		        COALESCE(lock_address, ''), COALESCE(chain_id, 0),
		        COALESCE(price, 0)::text, COALESCE(currency, ''),
		        COALESCE(ngn_price, 0)::text, payment_methods,
		        has_allow_list, transferable, created_at
		 FROM events WHERE id = $1`,
		id,
	).Scan(
		&e.ID, &e.Title, &e.Description, &e.StartsAt, &e.Location, &e.Capacity,
		&e.LockAddress, &e.ChainID,
		&priceStr, &e.Currency,
		&ngnPriceStr, &methods,
		&e.HasAllowList, &e.Transferable, &e.CreatedAt,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	if e.Price, err = decimal.NewFromString(priceStr); err != nil {
		return nil, wrapDBErr(op, err)
	}

	if e.NGNPrice, err = decimal.NewFromString(ngnPriceStr); err != nil {
		return nil, wrapDBErr(op, err)
	}

	e.PaymentMethods = make([]domain.PaymentMethod, 0, len(methods))
	for _, m := range methods {
		e.PaymentMethods = append(e.PaymentMethods, domain.PaymentMethod(m))
	}

	return &e, nil
}

func (r *EventRepo) Create(ctx context.Context, e *domain.Event) (uuid.UUID, error) {
	const op = "postgres.EventRepo.Create"

	db := r.handle()

	methods := make([]string, 0, len(e.PaymentMethods))
	for _, m := range e.PaymentMethods {
		methods = append(methods, string(m))
	}

	var id uuid.UUID
	err := db.QueryRow(ctx,
		`INSERT INTO events
		   (title, description, starts_at, location, capacity, lock_address,
		    chain_id, price, currency, ngn_price, payment_methods,
		    has_allow_list, transferable)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8::numeric,$9,$10::numeric,$11,$12,$13)
		 RETURNING id`,
		e.Title, e.Description, e.StartsAt, e.Location, e.Capacity,
		e.LockAddress, e.ChainID, e.Price.String(), e.Currency,
		e.NGNPrice.String(), methods, e.HasAllowList, e.Transferable,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, wrapDBErr(op, err)
	}

	return id, nil
}

// UpdatePricing overwrites only the price and currency columns. Everything
// else on the event row is left untouched; the one-way chain sync depends
// on that.
func (r *EventRepo) UpdatePricing(
	ctx context.Context,
	id uuid.UUID,
	price decimal.Decimal,
	currency string,
) error {
	const op = "postgres.EventRepo.UpdatePricing"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE events SET price = $2::numeric, currency = $3 WHERE id = $1`,
		id, price.String(), currency,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
