package eventstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	Message string `json:"message"`
}

func TestMemoryStore_AppendAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	aggregateID := uuid.New()

	require.NoError(t, Append(ctx, store, aggregateID, "loan", 0, "LoanOpened", testEvent{Message: "opened"}))
	require.NoError(t, Append(ctx, store, aggregateID, "loan", 1, "LoanReturned", testEvent{Message: "returned"}))

	events, err := store.LoadEvents(ctx, aggregateID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Version)
	assert.Equal(t, 2, events[1].Version)
	assert.Equal(t, "loan", events[1].AggregateType)

	var payload testEvent
	require.NoError(t, events[1].Decode(&payload))
	assert.Equal(t, "returned", payload.Message)
}

func TestMemoryStore_VersionConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	aggregateID := uuid.New()

	require.NoError(t, Append(ctx, store, aggregateID, "loan", 0, "LoanOpened", testEvent{}))

	err := Append(ctx, store, aggregateID, "loan", 0, "LoanOpened", testEvent{})
	assert.ErrorIs(t, err, ErrConcurrencyConflict)

	err = Append(ctx, store, aggregateID, "loan", -1, "LoanOpened", testEvent{})
	assert.ErrorIs(t, err, ErrInvalidVersion)

	events, err := store.LoadEvents(ctx, aggregateID)
	require.NoError(t, err)
	assert.Len(t, events, 1, "rejected appends leave no trace")
}

func TestMemoryStore_StreamEvents(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i := 0; i < 5; i++ {
		require.NoError(t, Append(ctx, store, uuid.New(), "book", 0, "BookAdded", testEvent{}))
	}

	first, err := store.StreamEvents(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, int64(1), first[0].ID)

	rest, err := store.StreamEvents(ctx, first[len(first)-1].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 3)
	assert.Equal(t, int64(3), rest[0].ID)

	done, err := store.StreamEvents(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, done)
}

func TestRetryOnConflict(t *testing.T) {
	ctx := context.Background()

	attempts := 0
	err := RetryOnConflict(ctx, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return ErrConcurrencyConflict
		}
		return nil
	}, WithBaseDelay(0))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = RetryOnConflict(ctx, func(context.Context) error {
		attempts++
		return ErrInvalidVersion
	}, WithBaseDelay(0))
	assert.ErrorIs(t, err, ErrInvalidVersion)
	assert.Equal(t, 1, attempts, "non-conflict errors fail fast")

	attempts = 0
	err = RetryOnConflict(ctx, func(context.Context) error {
		attempts++
		return ErrConcurrencyConflict
	}, WithBaseDelay(0), WithMaxAttempts(2))
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.Equal(t, 2, attempts)
}
