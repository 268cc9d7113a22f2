// cmd/chaos/main.go
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"infobooks/internal/chaos"
	"infobooks/internal/clients"
	"infobooks/internal/config"
	"infobooks/internal/eventstore"
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

	logger := telemetry.NewLogger(os.Stderr, cfg.LogLevel, "stdout", cfg.ServiceName+"-chaos")

	var target chaos.Target
	if cfg.ChaosTargetURL != "" {
		logger.Info("running against remote server", "url", cfg.ChaosTargetURL)
		target = clients.NewLibraryClient(cfg.ChaosTargetURL, &http.Client{Timeout: 10 * time.Second})
	} else {
		logger.Info("running against an in-process server")
		srv := server.New(store.New(), server.Options{
			Journal:   eventstore.NewMemoryStore(),
			Logger:    slog.New(slog.DiscardHandler),
			AuthLimit: rate.Inf,
		})
		target = &chaos.InProcess{
			Catalog:     srv.Catalog,
			Membership:  srv.Membership,
			Circulation: srv.Circulation,
		}
	}

	engine := chaos.NewEngine(
		chaos.WithSampleInterval(cfg.ChaosSampleInterval),
		chaos.WithPause(time.Second),
		chaos.WithLogger(logger),
	)
	engine.RegisterExperiments(target, cfg.ChaosConcurrency)

	gameDay := chaos.GameDay{
		Name:      "Weekly Chaos Game Day",
		Date:      time.Now(),
		Scenarios: engine.Experiments(),
	}

	if err := engine.RunGameDay(ctx, gameDay, os.Stdout); err != nil {
		log.Fatalf("Chaos Game Day failed: %v", err)
	}
}
