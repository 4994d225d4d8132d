// Command server runs the invoicing API and its background worker.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/haldorsen/norn/internal"
	"github.com/haldorsen/norn/internal/cache"
	"github.com/haldorsen/norn/internal/events"
	"github.com/haldorsen/norn/internal/gateway"
	"github.com/haldorsen/norn/internal/handler/admin"
	"github.com/haldorsen/norn/internal/notify"
	"github.com/haldorsen/norn/internal/repository"
	"github.com/haldorsen/norn/internal/routes"
	"github.com/haldorsen/norn/internal/service"
	"github.com/haldorsen/norn/internal/storage"
	"github.com/haldorsen/norn/internal/telemetry"
	"github.com/haldorsen/norn/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	telemetry.InitBusinessMetrics("norn")

	// Migrations run over database/sql; the application itself uses pgx
	// natively through the pool.
	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := internal.RunMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return fmt.Errorf("run migrations: %w", err)
	}
	sqlDB.Close()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Info().Msg("database ready")

	store := repository.NewStore(pool)

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	analyticsCache, closeCache, err := newCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	exportStorage, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	var gw gateway.Provider
	if cfg.Stripe.SecretKey != "" {
		gw = gateway.NewStripeProvider(cfg.Stripe.SecretKey)
		logger.Info().Msg("stripe payment gateway enabled")
	} else {
		gw = gateway.NewMockProvider()
		logger.Info().Msg("no stripe key configured, using mock payment gateway")
	}

	notifier := notify.NewLogSender(logger)

	settingsSvc := service.NewSettingsService(store, publisher, logger)
	invoiceSvc := service.NewInvoiceService(store, settingsSvc, notifier, gw, publisher, logger)
	paymentSvc := service.NewPaymentService(store, publisher, logger)
	templateSvc := service.NewTemplateService(store, logger)
	recurringSvc := service.NewRecurringService(store, settingsSvc, notifier, logger, cfg.Worker.ItemTimeout)
	reminderSvc := service.NewReminderService(store, settingsSvc, notifier, logger)
	exportSvc := service.NewExportService(store, exportStorage, logger, cfg.Exports.TTL)
	auditSvc := service.NewAuditService(store, logger)
	analyticsSvc := service.NewAnalyticsService(store, analyticsCache, logger)
	bulkSvc := service.NewBulkService(invoiceSvc, paymentSvc, reminderSvc, exportSvc, analyticsSvc, logger, cfg.Worker.ItemTimeout)

	h := admin.NewHandler(admin.Services{
		Invoices:  invoiceSvc,
		Payments:  paymentSvc,
		Templates: templateSvc,
		Recurring: recurringSvc,
		Reminders: reminderSvc,
		Bulk:      bulkSvc,
		Exports:   exportSvc,
		Settings:  settingsSvc,
		Audit:     auditSvc,
		Analytics: analyticsSvc,
	}, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	routes.Register(e, h, logger)

	w := worker.New(invoiceSvc, recurringSvc, reminderSvc, exportSvc, cfg.Worker, logger)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		w.Run(ctx)
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	<-workerDone

	return nil
}

func newPublisher(cfg *internal.Config, logger zerolog.Logger) (events.Publisher, error) {
	if cfg.NATS.URL == "" {
		logger.Info().Msg("no NATS url configured, events disabled")
		return events.NewNoopPublisher(), nil
	}
	pub, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	logger.Info().Str("url", cfg.NATS.URL).Msg("NATS event publishing enabled")
	return pub, nil
}

func newCache(ctx context.Context, cfg *internal.Config, logger zerolog.Logger) (cache.Cache, func(), error) {
	if cfg.Redis.Addr == "" {
		logger.Info().Msg("no redis configured, analytics cache disabled")
		return cache.NewNoopCache(), func() {}, nil
	}
	rc, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis analytics cache enabled")
	return rc, func() { _ = rc.Close() }, nil
}
