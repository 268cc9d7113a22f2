package circulation

import (
	"context"
	"time"

	"infobooks/internal/domain"
	"infobooks/internal/store"
)

// Reporter computes read-only aggregates over the store.
type Reporter struct {
	store *store.Store
	now   func() time.Time
}

// NewReporter creates a reporter. A nil now uses the wall clock.
func NewReporter(st *store.Store, now func() time.Time) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{store: st, now: now}
}

// DashboardStats counts titles, active and overdue loans, and active users.
// Each collection is scanned once; the counts are not a single atomic
// snapshot across collections.
func (r *Reporter) DashboardStats(_ context.Context) Stats {
	today := domain.Day(r.now())

	var stats Stats
	stats.TotalBooks = r.store.CountBooks()
	r.store.EachLoan(func(l domain.Loan) {
		if l.Status != domain.LoanBorrowed {
			return
		}
		stats.ActiveLoans++
		if l.Overdue(today) {
			stats.OverdueLoans++
		}
	})
	stats.ActiveUsers = r.store.CountUsers(func(u domain.User) bool { return u.Active })
	return stats
}
