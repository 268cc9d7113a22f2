// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"infobooks/internal/config"
	"infobooks/internal/eventstore"
	"infobooks/internal/projection"
	"infobooks/internal/seed"
	"infobooks/internal/server"
	"infobooks/internal/store"
	"infobooks/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("API server failed: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	providers, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogExporter, cfg.ServiceName)
	slog.SetDefault(logger)

	st := store.New()
	var journal eventstore.Journal
	if cfg.DatabaseURL != "" {
		pg, err := eventstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer pg.Close()
		journal = pg

		summary, err := projection.Rebuild(ctx, journal, st, logger.With("component", "projection"))
		if err != nil {
			return fmt.Errorf("failed to rebuild store: %w", err)
		}
		logger.Info("store rebuilt from journal",
			"events", summary.Events,
			"skipped", summary.Skipped,
			"users", summary.Users,
			"books", summary.Books,
			"loans", summary.Loans,
		)
	} else {
		logger.Warn("DATABASE_URL not set, state is kept in memory only")
	}

	if cfg.Seed {
		res, err := seed.Load(ctx, st, journal)
		switch {
		case errors.Is(err, seed.ErrNotEmpty):
			logger.Info("store already populated, skipping seed")
		case err != nil:
			return fmt.Errorf("failed to seed store: %w", err)
		default:
			logger.Info("demo data seeded", "users", len(res.Users), "books", len(res.Books))
		}
	}

	srv := server.New(st, server.Options{
		Journal:       journal,
		Logger:        logger,
		MeterProvider: providers.MeterProvider,
		AuthLimit:     rate.Every(time.Minute / time.Duration(cfg.AuthRatePerMinute)),
		AuthBurst:     cfg.AuthBurst,
		Counters:      providers.Counters,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
