package domain

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate types recorded in the journal.
const (
	AggregateBook = "book"
	AggregateUser = "user"
	AggregateLoan = "loan"
)

// Event types recorded in the journal.
const (
	EventBookAdded       = "BookAdded"
	EventUserRegistered  = "UserRegistered"
	EventUserDeactivated = "UserDeactivated"
	EventLoanOpened      = "LoanOpened"
	EventLoanReturned    = "LoanReturned"
)

// BookAddedEvent is published when a title enters the catalog.
type BookAddedEvent struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Category    string    `json:"category"`
	Year        int       `json:"year"`
	Description string    `json:"description"`
	TotalQty    int       `json:"total_qty"`
}

// UserRegisteredEvent is published when a member registers.
type UserRegisteredEvent struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	NationalID   string    `json:"national_id"`
	PasswordHash string    `json:"password_hash"`
	Salt         string    `json:"salt"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserDeactivatedEvent is published when an admin deactivates a member.
type UserDeactivatedEvent struct {
	ID uuid.UUID `json:"id"`
}

// LoanOpenedEvent is published when a book is rented.
type LoanOpenedEvent struct {
	LoanID     uuid.UUID `json:"loan_id"`
	BorrowerID uuid.UUID `json:"borrower_id"`
	BookID     uuid.UUID `json:"book_id"`
	BorrowedAt time.Time `json:"borrowed_at"`
	DueAt      time.Time `json:"due_at"`
}

// LoanReturnedEvent is published when a loan is returned.
type LoanReturnedEvent struct {
	LoanID     uuid.UUID `json:"loan_id"`
	BorrowerID uuid.UUID `json:"borrower_id"`
	BookID     uuid.UUID `json:"book_id"`
	ReturnedAt time.Time `json:"returned_at"`
}
