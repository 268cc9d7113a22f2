package domain

import "time"

// LoanPeriodDays is the number of days a borrower may keep a book.
const LoanPeriodDays = 14

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DueDate returns the due day for a loan borrowed on the given day.
func DueDate(borrowed time.Time) time.Time {
	return Day(borrowed).AddDate(0, 0, LoanPeriodDays)
}

// IsOverdue reports whether a loan with the given status and due day is
// overdue on today. Only borrowed loans can be overdue.
func IsOverdue(status LoanStatus, due, today time.Time) bool {
	return status == LoanBorrowed && Day(today).After(Day(due))
}
