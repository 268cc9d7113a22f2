package chaos

import (
	"context"

	"infobooks/internal/catalog"
	"infobooks/internal/circulation"
	"infobooks/internal/membership"
)

// Target is the library surface the experiments drive. clients.LibraryClient
// implements it over HTTP; InProcess implements it over the services.
type Target interface {
	Register(ctx context.Context, req membership.Registration) (*membership.Profile, error)
	AddBook(ctx context.Context, req catalog.NewBook) (*catalog.BookView, error)
	GetBook(ctx context.Context, id string) (*catalog.BookView, error)
	Rent(ctx context.Context, nationalID, bookID string) (*circulation.LoanReceipt, error)
	Return(ctx context.Context, nationalID, loanID string) (*circulation.ReturnConfirmation, error)
}

// InProcess drives the services directly, without HTTP.
type InProcess struct {
	Catalog     catalog.Service
	Membership  membership.Service
	Circulation circulation.Service
}

var _ Target = (*InProcess)(nil)

func (t *InProcess) Register(ctx context.Context, req membership.Registration) (*membership.Profile, error) {
	return t.Membership.RegisterUser(ctx, req)
}

func (t *InProcess) AddBook(ctx context.Context, req catalog.NewBook) (*catalog.BookView, error) {
	return t.Catalog.AddBook(ctx, req)
}

func (t *InProcess) GetBook(ctx context.Context, id string) (*catalog.BookView, error) {
	return t.Catalog.GetBook(ctx, id)
}

func (t *InProcess) Rent(ctx context.Context, nationalID, bookID string) (*circulation.LoanReceipt, error) {
	borrower, err := t.Membership.ResolveBorrower(ctx, nationalID)
	if err != nil {
		return nil, err
	}
	return t.Circulation.RentBook(ctx, borrower, bookID)
}

func (t *InProcess) Return(ctx context.Context, nationalID, loanID string) (*circulation.ReturnConfirmation, error) {
	borrower, err := t.Membership.ResolveBorrower(ctx, nationalID)
	if err != nil {
		return nil, err
	}
	return t.Circulation.ReturnBook(ctx, borrower, loanID)
}
