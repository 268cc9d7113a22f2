// internal/membership/implementation.go
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"infobooks/internal/domain"
	"infobooks/internal/eventstore"
	"infobooks/internal/store"
)

// Option configures the membership service.
type Option func(*service)

// WithJournal records user events in j.
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

// WithRateLimit sets how many register/login attempts each national ID may
// make. The default is 5 per minute.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *service) { s.limiters = newLimiters(limit, burst) }
}

// WithClock replaces the wall clock used for registration timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// service implements the Service interface.
type service struct {
	store    *store.Store
	journal  eventstore.Journal
	limiters *limiters
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new membership service instance.
func NewService(st *store.Store, opts ...Option) Service {
	s := &service{
		store:    st,
		limiters: newLimiters(rate.Every(1*time.Minute), 5),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterUser creates a new active, non-admin member.
func (s *service) RegisterUser(ctx context.Context, req Registration) (*Profile, error) {
	nationalID := domain.NormalizeNationalID(req.NationalID)
	name := strings.TrimSpace(req.Name)
	if nationalID == "" || name == "" || req.Password == "" {
		return nil, domain.ErrInvalidInput
	}
	if !s.limiters.allow(nationalID) {
		return nil, domain.ErrRateLimited
	}
	if _, ok := s.store.FindUser(nationalID); ok {
		return nil, domain.ErrDuplicateKey
	}

	passwordHash, salt, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := domain.User{
		ID:           domain.UserIDFor(nationalID),
		Name:         name,
		NationalID:   nationalID,
		PasswordHash: passwordHash,
		Salt:         salt,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	}

	if s.journal != nil {
		eventData := domain.UserRegisteredEvent{
			ID:           user.ID,
			Name:         user.Name,
			NationalID:   user.NationalID,
			PasswordHash: user.PasswordHash,
			Salt:         user.Salt,
			IsAdmin:      user.IsAdmin,
			CreatedAt:    user.CreatedAt,
		}
		err := eventstore.Append(ctx, s.journal, user.ID, domain.AggregateUser, 0, domain.EventUserRegistered, eventData)
		if errors.Is(err, eventstore.ErrConcurrencyConflict) {
			// A concurrent registration of the same national ID was journaled first.
			return nil, domain.ErrDuplicateKey
		}
		if err != nil {
			return nil, fmt.Errorf("failed to append event: %w", err)
		}
	}

	if err := s.store.InsertUser(user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return newProfile(user), nil
}

// Authenticate verifies a member's credentials and returns the profile if
// successful. Unknown national IDs and wrong passwords are indistinguishable.
func (s *service) Authenticate(ctx context.Context, nationalID, password string) (*Profile, error) {
	key := domain.NormalizeNationalID(nationalID)
	if !s.limiters.allow(key) {
		return nil, domain.ErrRateLimited
	}

	user, ok := s.store.FindUser(key)
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := verifyPassword(password, user.Salt, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		s.logger.InfoContext(ctx, "authentication failed", "user_id", user.ID)
		return nil, domain.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, domain.ErrUnauthorized
	}

	return newProfile(user), nil
}

// GetUser retrieves a member by national ID.
func (s *service) GetUser(_ context.Context, nationalID string) (*Profile, error) {
	user, ok := s.store.FindUser(nationalID)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return newProfile(user), nil
}

// ResolveBorrower maps a national ID to the borrower key used on loans.
// Unknown members are unauthorized to borrow.
func (s *service) ResolveBorrower(_ context.Context, nationalID string) (uuid.UUID, error) {
	user, ok := s.store.FindUser(nationalID)
	if !ok {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return user.ID, nil
}

// Deactivate marks a member inactive. Deactivating an inactive member is a
// no-op.
func (s *service) Deactivate(ctx context.Context, nationalID string) (*Profile, error) {
	user, ok := s.store.FindUser(nationalID)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if !user.Active {
		return newProfile(user), nil
	}

	if s.journal != nil {
		err := eventstore.RetryOnConflict(ctx, func(ctx context.Context) error {
			events, err := s.journal.LoadEvents(ctx, user.ID)
			if err != nil {
				return err
			}
			return eventstore.Append(ctx, s.journal, user.ID, domain.AggregateUser, len(events),
				domain.EventUserDeactivated, domain.UserDeactivatedEvent{ID: user.ID})
		})
		if err != nil {
			return nil, fmt.Errorf("failed to append event: %w", err)
		}
	}

	err := s.store.WithUserMut(user.ID, func(u *domain.User) error {
		u.Active = false
		user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user deactivated", "user_id", user.ID)
	return newProfile(user), nil
}
