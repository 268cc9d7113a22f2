// Package server assembles the services over one shared store and exposes
// them through the chi HTTP router.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"infobooks/internal/catalog"
	"infobooks/internal/circulation"
	"infobooks/internal/eventstore"
	"infobooks/internal/httputil"
	"infobooks/internal/membership"
	"infobooks/internal/store"
)

// Options configures the services built by New. Zero values select the
// defaults of each service.
type Options struct {
	Journal       eventstore.Journal
	Logger        *slog.Logger
	Now           func() time.Time
	MeterProvider metric.MeterProvider

	// AuthLimit and AuthBurst bound register/login attempts per national ID.
	AuthLimit rate.Limit
	AuthBurst int

	// Counters, when set, backs GET /api/admin/metrics.
	Counters func(context.Context) (map[string]int64, error)
}

// Server owns the services and their HTTP handlers.
type Server struct {
	Catalog     catalog.Service
	Membership  membership.Service
	Circulation circulation.Service

	logger   *slog.Logger
	counters func(context.Context) (map[string]int64, error)
	router   chi.Router
}

// New wires every service to st.
func New(st *store.Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	memberOpts := []membership.Option{
		membership.WithJournal(opts.Journal),
		membership.WithLogger(logger.With("component", "membership")),
		membership.WithClock(opts.Now),
	}
	if opts.AuthLimit > 0 {
		memberOpts = append(memberOpts, membership.WithRateLimit(opts.AuthLimit, opts.AuthBurst))
	}

	s := &Server{
		Catalog:    catalog.NewService(st, opts.Journal, logger.With("component", "catalog")),
		Membership: membership.NewService(st, memberOpts...),
		Circulation: circulation.NewService(st,
			circulation.WithJournal(opts.Journal),
			circulation.WithLogger(logger.With("component", "circulation")),
			circulation.WithClock(opts.Now),
			circulation.WithMeterProvider(opts.MeterProvider),
		),
		logger:   logger,
		counters: opts.Counters,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	catalogHandler := catalog.NewHandler(s.Catalog, s.logger)
	membershipHandler := membership.NewHandler(s.Membership, s.logger)
	circulationHandler := circulation.NewHandler(s.Circulation, s.Membership, s.logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(tracing)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", membershipHandler.HandleRegister)
		r.Post("/login", membershipHandler.HandleLogin)

		r.Get("/books", catalogHandler.HandleBooks)
		r.Get("/books/{id}", catalogHandler.HandleBook)

		r.Post("/rent", circulationHandler.HandleRent)
		r.Post("/return", circulationHandler.HandleReturn)
		r.Get("/users/{national_id}/loans", circulationHandler.HandleLoans)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/books", catalogHandler.HandleAddBook)
			r.Post("/users/{national_id}/deactivate", membershipHandler.HandleDeactivate)
			r.Get("/stats", circulationHandler.HandleStats)
			r.Get("/metrics", s.handleMetrics)
		})
	})

	return r
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.counters == nil {
		httputil.WriteJSON(w, http.StatusOK, map[string]int64{})
		return
	}
	counters, err := s.counters(r.Context())
	if err != nil {
		httputil.WriteError(w, r, s.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, counters)
}
