package circulation

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"infobooks/internal/eventstore"
)

// Option configures the circulation service.
type Option func(*service)

// WithClock replaces the wall clock. Only the UTC calendar day of the
// returned time is used.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithJournal records loan events in j. Without a journal, loans live only in
// the store.
func WithJournal(j eventstore.Journal) Option {
	return func(s *service) { s.journal = j }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMeterProvider sets where rent/return counters are recorded.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *service) {
		if mp != nil {
			s.meterProvider = mp
		}
	}
}

// WithTracerProvider sets where engine spans are recorded.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *service) {
		if tp != nil {
			s.tracer = tp.Tracer("infobooks/circulation")
		}
	}
}
