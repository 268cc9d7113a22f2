// internal/circulation/service.go
package circulation

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the circulation service.
type Service interface {
	RentBook(ctx context.Context, borrowerID uuid.UUID, bookID string) (*LoanReceipt, error)
	ReturnBook(ctx context.Context, borrowerID uuid.UUID, loanID string) (*ReturnConfirmation, error)
	LoansFor(ctx context.Context, borrowerID uuid.UUID) ([]LoanView, error)
	DashboardStats(ctx context.Context) Stats
}
