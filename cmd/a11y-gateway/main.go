package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"a11y-gateway/internal/config"
	"a11y-gateway/internal/docx"
	"a11y-gateway/internal/http/server"
	"a11y-gateway/internal/infra/cache"
	"a11y-gateway/internal/infra/chrome"
	"a11y-gateway/internal/infra/logging"
	"a11y-gateway/internal/infra/metrics"
	"a11y-gateway/internal/infra/pdfservices"
	"a11y-gateway/internal/infra/postgres"
	"a11y-gateway/internal/infra/storage"
	"a11y-gateway/internal/normalize"
	"a11y-gateway/internal/service"
)

func main() {
	cfg := config.Load()
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)

	renderer := chrome.NewRenderer(cfg)
	defer renderer.Close()

	m := metrics.New()
	opts := service.Options{Metrics: m, JobTimeout: cfg.PDFServices.JobTimeout}

	if cfg.Cache.ReportCacheEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.ReportCacheDB,
		})
		defer rdb.Close()
		opts.Cache = cache.NewReportCache(rdb, cfg.Cache.ReportCacheTTL)
	}

	if cfg.Ledger.Postgres.Host != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		ledger, err := postgres.Open(ctx, cfg.Ledger.Postgres)
		cancel()
		if err != nil {
			logging.Error("Job ledger unavailable, continuing without it", "error", err)
		} else {
			defer ledger.Close()
			opts.Ledger = ledger
		}
	}

	normalizer := normalize.New(cfg, docx.NewConverter(), renderer)
	svc := service.New(normalizer, pdfservices.NewFromConfig(cfg), opts)

	app := server.New(server.Deps{
		Config:   cfg,
		Service:  svc,
		Store:    storage.NewReportStore(cfg.Reports.Dir),
		Renderer: renderer,
		Metrics:  m,
	})

	idleConnsClosed := make(chan struct{})
	if err := startServer(app, cfg, idleConnsClosed); err != nil {
		renderer.Close()
		os.Exit(1)
	}
	<-idleConnsClosed
}

// startServer starts the Fiber app and blocks until a shutdown signal arrives
// or the listener fails. The listener error, if any, is returned.
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) error {
	listenErr := make(chan error, 1)
	go func() {
		logging.Info("Server listening", "addr", cfg.Server.Host+cfg.Server.Port)
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			listenErr <- err
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigint)

	var err error
	select {
	case <-sigint:
		logging.Warn("Shutdown signal received, closing server...")
	case err = <-listenErr:
		logging.Error("Server error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if serr := app.ShutdownWithContext(ctx); serr != nil {
		logging.Error("Server forced to shutdown", "error", serr)
	}

	close(idleConnsClosed)
	if err == nil {
		logging.Info("Server stopped cleanly")
	}
	return err
}
