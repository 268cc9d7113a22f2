package membership

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"infobooks/internal/domain"
	"infobooks/internal/eventstore"
	"infobooks/internal/store"
)

func newTestService(t *testing.T, opts ...Option) (Service, *store.Store, *eventstore.MemoryStore) {
	t.Helper()
	st := store.New()
	journal := eventstore.NewMemoryStore()
	opts = append([]Option{
		WithJournal(journal),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithRateLimit(rate.Inf, 0),
	}, opts...)
	return NewService(st, opts...), st, journal
}

func TestPasswordHashing(t *testing.T) {
	hash, salt, err := HashPassword("adminpass")
	require.NoError(t, err)

	ok, err := verifyPassword("adminpass", salt, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifyPassword("adminpas", salt, hash)
	require.NoError(t, err)
	assert.False(t, ok)

	hash2, salt2, err := HashPassword("adminpass")
	require.NoError(t, err)
	assert.NotEqual(t, salt, salt2)
	assert.NotEqual(t, hash, hash2)

	_, err = verifyPassword("adminpass", "%%%", hash)
	assert.Error(t, err)
}

func TestRegisterUser(t *testing.T) {
	svc, st, journal := newTestService(t)
	ctx := context.Background()

	profile, err := svc.RegisterUser(ctx, Registration{Name: "Miguel Silva Santos", NationalID: "458.632.582-07", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "45863258207", profile.NationalID)
	assert.True(t, profile.Active)
	assert.False(t, profile.IsAdmin)

	stored, ok := st.FindUser("458.632.582-07")
	require.True(t, ok)
	assert.Equal(t, profile.ID, stored.ID)
	assert.NotEqual(t, "secret", stored.PasswordHash)

	events, err := journal.LoadEvents(ctx, profile.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventUserRegistered, events[0].EventType)

	_, err = svc.RegisterUser(ctx, Registration{Name: "Impostor", NationalID: "45863258207", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func TestRegisterUser_JournaledElsewhere(t *testing.T) {
	ctx := context.Background()
	journal := eventstore.NewMemoryStore()
	first := NewService(store.New(), WithJournal(journal), WithRateLimit(rate.Inf, 0), WithLogger(slog.New(slog.DiscardHandler)))
	second := NewService(store.New(), WithJournal(journal), WithRateLimit(rate.Inf, 0), WithLogger(slog.New(slog.DiscardHandler)))

	profile, err := first.RegisterUser(ctx, Registration{Name: "Lenitha Borges", NationalID: "098.356.333-04", Password: "lenitha123"})
	require.NoError(t, err)
	assert.Equal(t, domain.UserIDFor("09835633304"), profile.ID)

	// The second store has not seen the user yet, but the journal has.
	_, err = second.RegisterUser(ctx, Registration{Name: "Someone Else", NationalID: "09835633304", Password: "other"})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	events, err := journal.LoadEvents(ctx, profile.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRegisterUser_Invalid(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	for _, req := range []Registration{
		{Name: "", NationalID: "1", Password: "x"},
		{Name: "No ID", NationalID: "...-", Password: "x"},
		{Name: "No password", NationalID: "2", Password: ""},
	} {
		_, err := svc.RegisterUser(ctx, req)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
	assert.Zero(t, st.CountUsers(nil))
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	registered, err := svc.RegisterUser(ctx, Registration{Name: "Lenitha Borges", NationalID: "098.356.333-04", Password: "livros"})
	require.NoError(t, err)

	profile, err := svc.Authenticate(ctx, "09835633304", "livros")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, profile.ID)

	_, err = svc.Authenticate(ctx, "09835633304", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "00000000000", "livros")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Deactivate(ctx, "09835633304")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "09835633304", "livros")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthenticate_RateLimited(t *testing.T) {
	svc, _, _ := newTestService(t, WithRateLimit(rate.Every(time.Hour), 2))
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, Registration{Name: "Ana", NationalID: "111", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "111", "pw")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "111", "pw")
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	// other accounts have their own budget
	_, err = svc.RegisterUser(ctx, Registration{Name: "Bia", NationalID: "222", Password: "pw"})
	assert.NoError(t, err)
}

func TestResolveBorrowerAndGetUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.RegisterUser(ctx, Registration{Name: "Ana", NationalID: "123.456.789-09", Password: "pw"})
	require.NoError(t, err)

	id, err := svc.ResolveBorrower(ctx, "12345678909")
	require.NoError(t, err)
	assert.Equal(t, p.ID, id)

	id, err = svc.ResolveBorrower(ctx, "999")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, uuid.Nil, id)

	got, err := svc.GetUser(ctx, "123.456.789-09")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)

	_, err = svc.GetUser(ctx, "999")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestDeactivate(t *testing.T) {
	svc, st, journal := newTestService(t)
	ctx := context.Background()

	p, err := svc.RegisterUser(ctx, Registration{Name: "Ana", NationalID: "321", Password: "pw"})
	require.NoError(t, err)

	got, err := svc.Deactivate(ctx, "321")
	require.NoError(t, err)
	assert.False(t, got.Active)

	// idempotent: no second event
	_, err = svc.Deactivate(ctx, "321")
	require.NoError(t, err)

	events, err := journal.LoadEvents(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventUserDeactivated, events[1].EventType)
	assert.Equal(t, 2, events[1].Version)

	stored, _ := st.FindUserByID(p.ID)
	assert.False(t, stored.Active)

	_, err = svc.Deactivate(ctx, "000")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
