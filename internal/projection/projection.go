// Package projection rebuilds the in-memory store from the event journal.
package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"infobooks/internal/domain"
	"infobooks/internal/eventstore"
	"infobooks/internal/store"
)

// ErrStoreNotEmpty is returned when Rebuild is pointed at a populated store.
var ErrStoreNotEmpty = errors.New("projection: store is not empty")

const batchSize = 500

// Summary counts what a rebuild applied.
type Summary struct {
	Events  int
	Skipped int
	Users   int
	Books   int
	Loans   int
}

// Rebuild replays the whole journal into the empty store st. Availability is
// re-derived from the opened and returned loans, so the availability
// invariant holds afterwards regardless of how the journal was produced.
// Events that cannot be applied are logged and skipped.
func Rebuild(ctx context.Context, journal eventstore.Journal, st *store.Store, logger *slog.Logger) (Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if st.CountUsers(nil) > 0 || st.CountBooks() > 0 {
		return Summary{}, ErrStoreNotEmpty
	}

	p := &projector{store: st, logger: logger}
	var from int64
	for {
		events, err := journal.StreamEvents(ctx, from, batchSize)
		if err != nil {
			return p.summary, fmt.Errorf("failed to stream events after %d: %w", from, err)
		}
		for _, ev := range events {
			p.summary.Events++
			if err := p.apply(ev); err != nil {
				p.summary.Skipped++
				logger.WarnContext(ctx, "skipping journal event",
					"event_id", ev.ID,
					"event_type", ev.EventType,
					"aggregate_id", ev.AggregateID,
					"error", err,
				)
			}
			from = ev.ID
		}
		if len(events) < batchSize {
			break
		}
	}

	p.summary.Users = st.CountUsers(nil)
	p.summary.Books = st.CountBooks()
	p.summary.Loans = st.CountLoans(nil)
	logger.InfoContext(ctx, "store rebuilt from journal",
		"events", p.summary.Events,
		"skipped", p.summary.Skipped,
		"users", p.summary.Users,
		"books", p.summary.Books,
		"loans", p.summary.Loans,
	)
	return p.summary, nil
}

type projector struct {
	store   *store.Store
	logger  *slog.Logger
	summary Summary
}

func (p *projector) apply(ev eventstore.Event) error {
	switch ev.EventType {
	case domain.EventUserRegistered:
		var e domain.UserRegisteredEvent
		if err := ev.Decode(&e); err != nil {
			return err
		}
		return p.store.InsertUser(domain.User{
			ID:           e.ID,
			Name:         e.Name,
			NationalID:   e.NationalID,
			PasswordHash: e.PasswordHash,
			Salt:         e.Salt,
			IsAdmin:      e.IsAdmin,
			Active:       true,
			CreatedAt:    e.CreatedAt,
		})

	case domain.EventUserDeactivated:
		var e domain.UserDeactivatedEvent
		if err := ev.Decode(&e); err != nil {
			return err
		}
		return p.store.WithUserMut(e.ID, func(u *domain.User) error {
			u.Active = false
			return nil
		})

	case domain.EventBookAdded:
		var e domain.BookAddedEvent
		if err := ev.Decode(&e); err != nil {
			return err
		}
		return p.store.InsertBook(domain.Book{
			ID:           e.ID,
			Title:        e.Title,
			Author:       e.Author,
			Category:     e.Category,
			Year:         e.Year,
			Description:  e.Description,
			TotalQty:     e.TotalQty,
			AvailableQty: e.TotalQty,
		})

	case domain.EventLoanOpened:
		var e domain.LoanOpenedEvent
		if err := ev.Decode(&e); err != nil {
			return err
		}
		err := p.store.WithBookMut(e.BookID, func(b *domain.Book) error {
			if b.AvailableQty <= 0 {
				return domain.ErrNoCopiesAvailable
			}
			b.AvailableQty--
			return nil
		})
		if err != nil {
			return err
		}
		return p.store.InsertLoan(domain.Loan{
			ID:         e.LoanID,
			BorrowerID: e.BorrowerID,
			BookID:     e.BookID,
			BorrowedAt: e.BorrowedAt,
			DueAt:      e.DueAt,
			Status:     domain.LoanBorrowed,
			Version:    ev.Version,
		})

	case domain.EventLoanReturned:
		var e domain.LoanReturnedEvent
		if err := ev.Decode(&e); err != nil {
			return err
		}
		returnedAt := e.ReturnedAt
		err := p.store.WithLoanMut(e.LoanID, func(l *domain.Loan) error {
			if l.Status == domain.LoanReturned {
				return domain.ErrAlreadyReturned
			}
			l.Status = domain.LoanReturned
			l.ReturnedAt = &returnedAt
			l.Version = ev.Version
			return nil
		})
		if err != nil {
			return err
		}
		return p.store.WithBookMut(e.BookID, func(b *domain.Book) error {
			if b.AvailableQty < b.TotalQty {
				b.AvailableQty++
			}
			return nil
		})

	default:
		return fmt.Errorf("unknown event type %q", ev.EventType)
	}
}
