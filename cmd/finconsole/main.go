package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finconsole/internal/amqp"
	"finconsole/internal/api"
	"finconsole/internal/cache"
	"finconsole/internal/cli"
	"finconsole/internal/dashboard"
	apphttp "finconsole/internal/http"
	applog "finconsole/internal/log"
	"finconsole/internal/middleware/ratelimit"
	"finconsole/internal/middleware/security"
	"finconsole/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.BootstrapLogger())
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	store, err := api.NewClient(cfg.APIBaseURL, cfg.APITimeout)
	if err != nil {
		logger.Error("Invalid entity store URL", applog.FieldError, err, "url", cfg.APIBaseURL)
		os.Exit(1)
	}

	formatter, err := dashboard.NewFormatter(cfg.CurrencyCode, cfg.NumberLocale)
	if err != nil {
		logger.Error("Invalid display settings", applog.FieldError, err)
		os.Exit(1)
	}

	// A nil *amqp.Client must not reach the service as a non-nil interface.
	var publisher services.AuditPublisher
	if cfg.AMQPEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, audit events will wait for the ledger sweep", applog.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange)
		}
	}

	options := services.NewOptionService(cfg.OptionsLimit, 512, cfg.CacheTTL)
	caches := cache.NewManager(logger.With(applog.FieldComponent, applog.ComponentCache).Logger)
	options.Register(caches)
	caches.StartCleanup(time.Minute)

	entities := services.NewEntityService(services.NewAuditService(repo, publisher), options, logger, cfg.OptionsLimit)

	detector, err := security.NewDetector(cfg.TrustedProxies)
	if err != nil {
		logger.Error("Invalid trusted proxy list", applog.FieldError, err)
		os.Exit(1)
	}
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		CleanupInterval:   5 * time.Minute,
	})

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:           cfg.Addr(),
		PageSize:       cfg.PageSize,
		SessionTTL:     cfg.SessionTTL,
		CookieSecure:   cfg.CookieSecure,
		ExportParallel: cfg.ExportParallel,
	}, apphttp.Deps{
		Store:     store,
		Sessions:  repo,
		Entities:  entities,
		Options:   options,
		Formatter: formatter,
		Logger:    logger,
		Detector:  detector,
		Limiter:   limiter,
		Caches:    caches,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}
	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting finconsole",
		"addr", cfg.Addr(),
		"entity_store", cfg.APIBaseURL,
		"currency", formatter.Code(),
		"amqp", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "addr", cfg.Addr())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
