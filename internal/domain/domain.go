// Package domain holds the library entities shared by the store and the services.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered library member.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	NationalID   string    `json:"national_id"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// userNamespace scopes the name-based IDs of members.
var userNamespace = uuid.MustParse("6f1c2a0e-3b7d-5e4a-9c1f-8d2b4e6a0c35")

// UserIDFor derives a member's ID from their normalized national ID. Every
// registration of one national ID targets the same journal stream, so the
// journal's version check admits only the first.
func UserIDFor(nationalID string) uuid.UUID {
	return uuid.NewSHA1(userNamespace, []byte(nationalID))
}

// Book represents a catalog title and its copy counts.
type Book struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	Category     string    `json:"category"`
	Year         int       `json:"year"`
	Description  string    `json:"description"`
	TotalQty     int       `json:"total_qty"`
	AvailableQty int       `json:"available_qty"`
}

// Valid reports whether the availability invariant holds.
func (b Book) Valid() bool {
	return b.TotalQty >= 0 && b.AvailableQty >= 0 && b.AvailableQty <= b.TotalQty
}

// LoanStatus is the stored state of a loan.
type LoanStatus string

const (
	LoanBorrowed LoanStatus = "borrowed"
	LoanReturned LoanStatus = "returned"
)

// DisplayStatus is the status shown to readers. Pending and Overdue are
// derived from the stored status and the current day; they are never stored.
type DisplayStatus string

const (
	DisplayPending  DisplayStatus = "pending"
	DisplayBorrowed DisplayStatus = "borrowed"
	DisplayOverdue  DisplayStatus = "overdue"
	DisplayReturned DisplayStatus = "returned"
)

// Loan represents one copy of a book lent to a borrower.
type Loan struct {
	ID         uuid.UUID  `json:"id"`
	BorrowerID uuid.UUID  `json:"borrower_id"`
	BookID     uuid.UUID  `json:"book_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueAt      time.Time  `json:"due_at"`
	Status     LoanStatus `json:"status"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	Version    int        `json:"version"`
}

// Overdue reports whether the loan is still out past its due day.
func (l Loan) Overdue(today time.Time) bool {
	return IsOverdue(l.Status, l.DueAt, today)
}

// Display derives the reader-facing status for the given day.
func (l Loan) Display(today time.Time) DisplayStatus {
	switch {
	case l.Status == LoanReturned:
		return DisplayReturned
	case l.Overdue(today):
		return DisplayOverdue
	case Day(today).Before(Day(l.BorrowedAt)):
		return DisplayPending
	default:
		return DisplayBorrowed
	}
}
