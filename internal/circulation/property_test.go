package circulation

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"pgregory.net/rapid"

	"infobooks/internal/domain"
	"infobooks/internal/store"
)

// TestLoanLifecycleProperties drives random rent/return/advance-clock
// sequences and checks availability bounds, conservation of copies, and that
// every rejection leaves the store as it was.
func TestLoanLifecycleProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		st := store.New()
		c := newClock(2025, time.November, 1)
		svc := NewService(st, WithClock(c.Now), WithLogger(slog.New(slog.DiscardHandler)))
		ctx := context.Background()

		nBooks := rapid.IntRange(1, 4).Draw(t, "books")
		books := make([]domain.Book, nBooks)
		for i := range books {
			total := rapid.IntRange(0, 3).Draw(t, "total")
			books[i] = domain.Book{ID: uuid.New(), Title: "T", TotalQty: total, AvailableQty: total}
			if err := st.InsertBook(books[i]); err != nil {
				t.Fatalf("insert book: %v", err)
			}
		}
		users := make([]domain.User, 3)
		for i := range users {
			users[i] = domain.User{ID: uuid.New(), NationalID: uuid.NewString(), Active: true}
			if err := st.InsertUser(users[i]); err != nil {
				t.Fatalf("insert user: %v", err)
			}
		}

		var loanIDs []uuid.UUID
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			before := snapshot(st)
			var err error

			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				b := rapid.SampledFrom(books).Draw(t, "book")
				u := rapid.SampledFrom(users).Draw(t, "user")
				var r *LoanReceipt
				r, err = svc.RentBook(ctx, u.ID, b.ID.String())
				if err == nil {
					loanIDs = append(loanIDs, r.LoanID)
				}
			case 1:
				if len(loanIDs) == 0 {
					continue
				}
				id := rapid.SampledFrom(loanIDs).Draw(t, "loan")
				u := rapid.SampledFrom(users).Draw(t, "returner")
				_, err = svc.ReturnBook(ctx, u.ID, id.String())
			case 2:
				days := rapid.IntRange(0, 10).Draw(t, "days")
				c.mu.Lock()
				c.t = c.t.AddDate(0, 0, days)
				c.mu.Unlock()
			}

			if err != nil {
				if domain.KindOf(err) == domain.KindUnknown {
					t.Fatalf("unexpected error: %v", err)
				}
				if after := snapshot(st); !equalSnapshots(before, after) {
					t.Fatalf("rejected operation (%v) mutated the store", err)
				}
			}
			checkInvariants(t, st)
		}

		// no loan that was rejected as overdue was ever closed
		for _, id := range loanIDs {
			l, _ := st.FindLoan(id)
			if l.Status == domain.LoanReturned && l.ReturnedAt.After(l.DueAt) {
				t.Fatalf("loan %s returned after its due day", l.ID)
			}
		}
	})
}

type storeSnapshot struct {
	books []domain.Book
	loans []domain.Loan
}

func snapshot(st *store.Store) storeSnapshot {
	return storeSnapshot{books: st.Books(), loans: st.Loans()}
}

func equalSnapshots(a, b storeSnapshot) bool {
	if len(a.books) != len(b.books) || len(a.loans) != len(b.loans) {
		return false
	}
	for i := range a.books {
		if a.books[i] != b.books[i] {
			return false
		}
	}
	for i := range a.loans {
		x, y := a.loans[i], b.loans[i]
		if x.ID != y.ID || x.Status != y.Status || x.Version != y.Version || (x.ReturnedAt == nil) != (y.ReturnedAt == nil) {
			return false
		}
	}
	return true
}

func checkInvariants(t *rapid.T, st *store.Store) {
	out := make(map[uuid.UUID]int)
	for _, l := range st.Loans() {
		if l.Status == domain.LoanBorrowed {
			out[l.BookID]++
		}
		if (l.Status == domain.LoanReturned) != (l.ReturnedAt != nil) {
			t.Fatalf("loan %s: returned_at inconsistent with status %s", l.ID, l.Status)
		}
	}
	for _, b := range st.Books() {
		if b.AvailableQty < 0 || b.AvailableQty > b.TotalQty {
			t.Fatalf("book %s: available %d outside [0, %d]", b.ID, b.AvailableQty, b.TotalQty)
		}
		if got := b.AvailableQty + out[b.ID]; got != b.TotalQty {
			t.Fatalf("book %s: available %d + borrowed %d != total %d", b.ID, b.AvailableQty, out[b.ID], b.TotalQty)
		}
	}
}

func TestIsOverdueMatchesReturnGate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		st := store.New()
		c := newClock(2025, time.January, 1)
		svc := NewService(st, WithClock(c.Now), WithLogger(slog.New(slog.DiscardHandler)))
		ctx := context.Background()

		b := domain.Book{ID: uuid.New(), Title: "T", TotalQty: 1, AvailableQty: 1}
		u := domain.User{ID: uuid.New(), NationalID: "1", Active: true}
		_ = st.InsertBook(b)
		_ = st.InsertUser(u)

		r, err := svc.RentBook(ctx, u.ID, b.ID.String())
		if err != nil {
			t.Fatalf("rent: %v", err)
		}

		elapsed := rapid.IntRange(0, 40).Draw(t, "elapsed")
		c.mu.Lock()
		c.t = c.t.AddDate(0, 0, elapsed)
		c.mu.Unlock()

		_, err = svc.ReturnBook(ctx, u.ID, r.LoanID.String())
		overdue := elapsed > domain.LoanPeriodDays
		if overdue != errors.Is(err, domain.ErrOverdue) {
			t.Fatalf("elapsed %d days: overdue=%v, err=%v", elapsed, overdue, err)
		}
		if !overdue && err != nil {
			t.Fatalf("elapsed %d days: unexpected error %v", elapsed, err)
		}
	})
}
