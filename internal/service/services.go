package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/teerex/teerex/internal/chain"
	"github.com/teerex/teerex/internal/mail"
	"github.com/teerex/teerex/internal/paystack"
	postgres "github.com/teerex/teerex/internal/repository/postgres"
	redis "github.com/teerex/teerex/internal/repository/redis"
	"github.com/teerex/teerex/internal/service/access"
	"github.com/teerex/teerex/internal/service/admin"
	"github.com/teerex/teerex/internal/service/gasless"
	"github.com/teerex/teerex/internal/service/payments"
	"github.com/teerex/teerex/internal/service/pricing"
	"github.com/teerex/teerex/internal/service/purchase"
	"github.com/teerex/teerex/internal/service/query"
)

type Services struct {
	Purchase *purchase.Service
	Gasless  *gasless.Service
	Pricing  *pricing.Service
	Payments *payments.Service
	Access   *access.Service
	Query    *query.Service
	Admin    *admin.Service
}

type Config struct {
	Pricing  pricing.Config
	Payments payments.Config
	Query    query.Config
}

// NewServices wires the service layer. sponsor may be nil (no key
// configured): the gasless path is disabled and fiat settlement reports
// grant failures instead of minting keys.
func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redis.TicketsPubSub,
	limiter *redis.SlidingWindowLimiter,
	locks *chain.LockClient,
	sponsor *chain.Sponsor,
	gateway *paystack.Client,
	mailer *mail.Mailer,
	logger *slog.Logger,
	cfg Config,
) *Services {
	var granter payments.Granter = noSponsor{}
	var invoker gasless.Invoker
	if sponsor != nil {
		granter = sponsor
		invoker = gasless.NewSponsorInvoker(sponsor, locks, limiter, logger)
	}

	gaslessSvc := gasless.New(invoker, logger, gasless.Config{Enabled: sponsor != nil})
	accessSvc := access.New(store, mailerOrNil(mailer), logger)
	paymentsSvc := payments.New(store, gateway, granter, locks, cache, pubsub, mailer, logger, cfg.Payments)

	return &Services{
		Purchase: purchase.New(store, locks, accessSvc, gaslessSvc, paymentsSvc, cache, pubsub, mailer, logger),
		Gasless:  gaslessSvc,
		Pricing:  pricing.New(locks, store, cache, logger, cfg.Pricing),
		Payments: paymentsSvc,
		Access:   accessSvc,
		Query:    query.New(store, cache, logger, cfg.Query),
		Admin:    admin.New(store, logger),
	}
}

// mailerOrNil keeps a nil *mail.Mailer from becoming a non-nil interface.
func mailerOrNil(m *mail.Mailer) access.Mailer {
	if m == nil {
		return nil
	}
	return m
}

// noSponsor stands in for the granter when no sponsor key is configured.
type noSponsor struct{}

func (noSponsor) GrantKey(_ context.Context, _ int64, _, _ string) (string, error) {
	return "", errors.New("sponsor key not configured")
}
