// Package eventstore records the library's domain events in an append-only
// journal with optimistic concurrency per aggregate.
package eventstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidVersion      = errors.New("invalid version number")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is a recorded domain event.
type Event struct {
	ID            int64               `json:"id" db:"id"`
	AggregateID   uuid.UUID           `json:"aggregate_id" db:"aggregate_id"`
	AggregateType string              `json:"aggregate_type" db:"aggregate_type"`
	EventType     string              `json:"event_type" db:"event_type"`
	EventData     jsoniter.RawMessage `json:"event_data" db:"event_data"`
	Version       int                 `json:"version" db:"version"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
}

// Journal is implemented by every event store backend.
type Journal interface {
	// AppendEvents appends events for one aggregate if its current version
	// equals expectedVersion. Versions are assigned consecutively.
	AppendEvents(ctx context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, events []Event) error
	// LoadEvents returns the aggregate's events in version order.
	LoadEvents(ctx context.Context, aggregateID uuid.UUID) ([]Event, error)
	// StreamEvents returns up to batchSize events with an ID above fromID, in ID order.
	StreamEvents(ctx context.Context, fromID int64, batchSize int) ([]Event, error)
}

// NewEvent marshals payload into an event of the given type.
func NewEvent(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s event data: %w", eventType, err)
	}
	return Event{EventType: eventType, EventData: data}, nil
}

// Decode unmarshals the event payload into dst.
func (e Event) Decode(dst any) error {
	if err := json.Unmarshal(e.EventData, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s event %d: %w", e.EventType, e.ID, err)
	}
	return nil
}

// Append is a convenience wrapper that builds a single event from payload and
// appends it at expectedVersion.
func Append(ctx context.Context, j Journal, aggregateID uuid.UUID, aggregateType string, expectedVersion int, eventType string, payload any) error {
	ev, err := NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	return j.AppendEvents(ctx, aggregateID, aggregateType, expectedVersion, []Event{ev})
}
