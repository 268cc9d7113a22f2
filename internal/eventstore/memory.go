package eventstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MemoryStore is a process-local Journal. Events are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	events   []Event
	versions map[uuid.UUID]int
	tracer   trace.Tracer
}

var _ Journal = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		versions: make(map[uuid.UUID]int),
		tracer:   otel.Tracer("infobooks/eventstore"),
	}
}

// AppendEvents atomically appends events with optimistic concurrency control.
func (m *MemoryStore) AppendEvents(ctx context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, events []Event) error {
	_, span := m.tracer.Start(ctx, "eventstore.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID.String()),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if current := m.versions[aggregateID]; current != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", current),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	now := time.Now().UTC()
	for i, ev := range events {
		ev.ID = int64(len(m.events) + 1)
		ev.AggregateID = aggregateID
		ev.AggregateType = aggregateType
		ev.Version = expectedVersion + i + 1
		ev.CreatedAt = now
		m.events = append(m.events, ev)
	}
	m.versions[aggregateID] = expectedVersion + len(events)

	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

// LoadEvents returns the aggregate's events in version order.
func (m *MemoryStore) LoadEvents(ctx context.Context, aggregateID uuid.UUID) ([]Event, error) {
	_, span := m.tracer.Start(ctx, "eventstore.load",
		trace.WithAttributes(attribute.String("aggregate.id", aggregateID.String())),
	)
	defer span.End()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Event
	for _, ev := range m.events {
		if ev.AggregateID == aggregateID {
			out = append(out, ev)
		}
	}
	span.SetAttributes(attribute.Int("events.loaded", len(out)))
	return out, nil
}

// StreamEvents provides a cursor-based event stream for projections.
func (m *MemoryStore) StreamEvents(ctx context.Context, fromID int64, batchSize int) ([]Event, error) {
	_, span := m.tracer.Start(ctx, "eventstore.stream",
		trace.WithAttributes(
			attribute.Int64("from.id", fromID),
			attribute.Int("batch.size", batchSize),
		),
	)
	defer span.End()

	m.mu.RLock()
	defer m.mu.RUnlock()

	// IDs are 1-based positions in m.events.
	if fromID < 0 {
		fromID = 0
	}
	if fromID >= int64(len(m.events)) {
		return nil, nil
	}
	end := int(fromID) + batchSize
	if batchSize <= 0 || end > len(m.events) {
		end = len(m.events)
	}
	out := make([]Event, end-int(fromID))
	copy(out, m.events[fromID:end])

	span.SetAttributes(attribute.Int("events.streamed", len(out)))
	return out, nil
}
