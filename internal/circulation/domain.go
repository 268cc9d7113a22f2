// internal/circulation/domain.go

// Package circulation implements the loan lifecycle: renting and returning
// books against the shared catalog store, and the dashboard aggregates
// derived from it.
package circulation

import (
	"time"

	"github.com/google/uuid"

	"infobooks/internal/domain"
)

// LoanReceipt is returned when a book is rented.
type LoanReceipt struct {
	LoanID       uuid.UUID `json:"loan_id"`
	BorrowerID   uuid.UUID `json:"borrower_id"`
	BookID       uuid.UUID `json:"book_id"`
	BookTitle    string    `json:"book_title"`
	BorrowedAt   time.Time `json:"borrowed_at"`
	DueAt        time.Time `json:"due_at"`
	AvailableQty int       `json:"available_qty"`
}

// ReturnConfirmation is returned when a loan is returned.
type ReturnConfirmation struct {
	LoanID       uuid.UUID `json:"loan_id"`
	BookID       uuid.UUID `json:"book_id"`
	ReturnedAt   time.Time `json:"returned_at"`
	AvailableQty int       `json:"available_qty"`
}

// LoanView is a loan as shown to its borrower.
type LoanView struct {
	domain.Loan
	BookTitle string               `json:"book_title"`
	Display   domain.DisplayStatus `json:"display_status"`
}

// Stats holds the dashboard aggregates.
type Stats struct {
	TotalBooks   int `json:"total_books"`
	ActiveLoans  int `json:"active_loans"`
	OverdueLoans int `json:"overdue_loans"`
	ActiveUsers  int `json:"active_users"`
}
