package eventstore

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB connects to the PostgreSQL database described by the PG*
// environment variables and skips the test when none is reachable.
func setupTestDB(t testing.TB) *PostgresStore {
	t.Helper()

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("PGHOST", "localhost"),
		getEnv("PGPORT", "5432"),
		getEnv("PGUSER", "user"),
		getEnv("PGPASSWORD", "password"),
		getEnv("PGDATABASE", "testdb"),
	)

	store, err := Open(context.Background(), connStr)
	if err != nil {
		t.Skipf("skipping postgres tests: could not connect to postgres: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestPostgresStore_AppendLoadStream(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	aggregateID := uuid.New()

	require.NoError(t, Append(ctx, store, aggregateID, "loan", 0, "LoanOpened", testEvent{Message: "opened"}))
	assert.ErrorIs(t, Append(ctx, store, aggregateID, "loan", 0, "LoanOpened", testEvent{}), ErrConcurrencyConflict)
	require.NoError(t, Append(ctx, store, aggregateID, "loan", 1, "LoanReturned", testEvent{Message: "returned"}))

	events, err := store.LoadEvents(ctx, aggregateID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "LoanReturned", events[1].EventType)

	var payload testEvent
	require.NoError(t, events[0].Decode(&payload))
	assert.Equal(t, "opened", payload.Message)

	streamed, err := store.StreamEvents(ctx, events[0].ID-1, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(streamed), 2)
	assert.Equal(t, events[0].ID, streamed[0].ID)
}

func BenchmarkPostgresAppendEvents(b *testing.B) {
	store := setupTestDB(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := Append(ctx, store, uuid.New(), "loan", 0, "LoanOpened", testEvent{Message: fmt.Sprintf("event %d", i)}); err != nil {
			b.Fatalf("AppendEvents failed: %v", err)
		}
	}
}
