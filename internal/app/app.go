package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teerex/teerex/internal/chain"
	"github.com/teerex/teerex/internal/config"
	"github.com/teerex/teerex/internal/mail"
	"github.com/teerex/teerex/internal/paystack"
	"github.com/teerex/teerex/internal/postgres"
	"github.com/teerex/teerex/internal/redis"
	postgresrepo "github.com/teerex/teerex/internal/repository/postgres"
	redisrepo "github.com/teerex/teerex/internal/repository/redis"
	"github.com/teerex/teerex/internal/service"
	"github.com/teerex/teerex/internal/service/payments"
	httpgin "github.com/teerex/teerex/internal/transport/http/gin"
)

// reconcileEvery / reconcileOlderThan drive the background sweep that
// settles fiat payments whose webhook never arrived.
const (
	reconcileEvery     = 60 * time.Second
	reconcileOlderThan = 2 * time.Minute
	reconcileBatch     = 50
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	payments   *payments.Service
	dialer     *chain.Dialer
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(context.Background(), redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewTicketsPubSub(rdb)
	gaslessLimiter := redisrepo.NewSlidingWindowLimiter(
		rdb, redisrepo.GaslessLimitPrefix(), cfg.Chain.GaslessDailyLimit, 24*time.Hour,
	)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Initialize chain access
	dialer := chain.NewDialer(cfg.Chain.RPCURLFor)
	locks, err := chain.NewLockClient(dialer, chain.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize lock client: %w", err)
	}

	sponsor, err := chain.NewSponsor(locks, cfg.Chain.SponsorKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sponsor: %w", err)
	}
	if sponsor == nil {
		logger.Warn("no sponsor key configured, gasless claims disabled")
	}

	gateway := paystack.New(cfg.Paystack.SecretKey, cfg.Paystack.BaseURL)
	mailer := mail.New(mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	// Initialize services
	services := service.NewServices(
		store, cache, pubsub, gaslessLimiter, locks, sponsor, gateway, mailer, logger,
		service.Config{
			Payments: payments.Config{CallbackURL: cfg.Paystack.CallbackURL},
		},
	)

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, gateway, logger, httpgin.RouterConfig{
		JWTSecret: cfg.Auth.JWTSecret,
	})

	return &App{
		cfg:      cfg,
		logger:   logger,
		payments: services.Payments,
		dialer:   dialer,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Background reconciliation sweep
	g.Go(func() error {
		ticker := time.NewTicker(reconcileEvery)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				settled, err := a.payments.ReconcilePending(gCtx, reconcileOlderThan, reconcileBatch)
				if err != nil {
					a.logger.Error("reconciliation sweep failed", "error", err)
					continue
				}
				if settled > 0 {
					a.logger.Info("reconciliation sweep settled transactions", "count", settled)
				}
			}
		}
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		defer a.dialer.Close()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
