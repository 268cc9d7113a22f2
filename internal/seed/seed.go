// Package seed loads the demo catalog: an administrator, two readers, five
// titles and one open loan.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"infobooks/internal/domain"
	"infobooks/internal/eventstore"
	"infobooks/internal/membership"
	"infobooks/internal/store"
)

// ErrNotEmpty is returned when the store already holds data.
var ErrNotEmpty = errors.New("seed: store is not empty")

type seedUser struct {
	name, nationalID, password string
	admin                      bool
}

var users = []seedUser{
	{"Admin InfoBooks", "000.000.000-00", "adminpass", true},
	{"Miguel Silva Santos", "458.632.582-07", "12345678g", false},
	{"Lenitha Borges", "098.356.333-04", "lenitha123", false},
}

var books = []domain.Book{
	{Title: "Moby Dick", Author: "Herman Melville", Category: "Clássicos", Year: 1851, TotalQty: 2},
	{Title: "A Divina Comédia", Author: "Dante Alighieri", Category: "Clássicos", Year: 1320, TotalQty: 1},
	{Title: "O Homem de Giz", Author: "C. J. Tudor", Category: "Suspense", Year: 2018, TotalQty: 3},
	{Title: "O Livro do Desassossego", Author: "Fernando Pessoa", Category: "Filosofia", Year: 1982, TotalQty: 1},
	{Title: "Memórias Póstumas", Author: "Machado de Assis", Category: "Clássicos", Year: 1881, TotalQty: 4},
}

// MiguelLoanDay is the day the seeded Moby Dick loan was borrowed.
var MiguelLoanDay = time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)

// Result holds the IDs of the seeded records.
type Result struct {
	Users map[string]uuid.UUID // by normalized national ID
	Books map[string]uuid.UUID // by title
	Loan  uuid.UUID
}

// Load writes the demo data into an empty store. When journal is non-nil
// every record is journaled as well, so a rebuilt store contains it.
func Load(ctx context.Context, st *store.Store, journal eventstore.Journal) (*Result, error) {
	if st.CountUsers(nil) > 0 || st.CountBooks() > 0 {
		return nil, ErrNotEmpty
	}

	res := &Result{Users: make(map[string]uuid.UUID), Books: make(map[string]uuid.UUID)}
	now := time.Now().UTC()

	for _, su := range users {
		hash, salt, err := membership.HashPassword(su.password)
		if err != nil {
			return nil, err
		}
		nationalID := domain.NormalizeNationalID(su.nationalID)
		u := domain.User{
			ID:           domain.UserIDFor(nationalID),
			Name:         su.name,
			NationalID:   nationalID,
			PasswordHash: hash,
			Salt:         salt,
			IsAdmin:      su.admin,
			Active:       true,
			CreatedAt:    now,
		}
		err = record(ctx, journal, u.ID, domain.AggregateUser, domain.EventUserRegistered, domain.UserRegisteredEvent{
			ID: u.ID, Name: u.Name, NationalID: u.NationalID, PasswordHash: hash, Salt: salt, IsAdmin: u.IsAdmin, CreatedAt: now,
		})
		if err != nil {
			return nil, err
		}
		if err := st.InsertUser(u); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.Name, err)
		}
		res.Users[u.NationalID] = u.ID
	}

	for _, b := range books {
		b.ID = uuid.New()
		b.AvailableQty = b.TotalQty
		b.Description = "Descrição de " + b.Title
		err := record(ctx, journal, b.ID, domain.AggregateBook, domain.EventBookAdded, domain.BookAddedEvent{
			ID: b.ID, Title: b.Title, Author: b.Author, Category: b.Category, Year: b.Year, Description: b.Description, TotalQty: b.TotalQty,
		})
		if err != nil {
			return nil, err
		}
		if err := st.InsertBook(b); err != nil {
			return nil, fmt.Errorf("seed book %s: %w", b.Title, err)
		}
		res.Books[b.Title] = b.ID
	}

	// Miguel's open loan of Moby Dick. The copy is taken off the shelf so
	// availability and open loans stay consistent.
	moby := res.Books["Moby Dick"]
	loan := domain.Loan{
		ID:         uuid.New(),
		BorrowerID: res.Users["45863258207"],
		BookID:     moby,
		BorrowedAt: MiguelLoanDay,
		DueAt:      domain.DueDate(MiguelLoanDay),
		Status:     domain.LoanBorrowed,
		Version:    1,
	}
	err := record(ctx, journal, loan.ID, domain.AggregateLoan, domain.EventLoanOpened, domain.LoanOpenedEvent{
		LoanID: loan.ID, BorrowerID: loan.BorrowerID, BookID: loan.BookID, BorrowedAt: loan.BorrowedAt, DueAt: loan.DueAt,
	})
	if err != nil {
		return nil, err
	}
	err = st.WithBookMut(moby, func(b *domain.Book) error {
		b.AvailableQty--
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("seed loan: %w", err)
	}
	if err := st.InsertLoan(loan); err != nil {
		return nil, fmt.Errorf("seed loan: %w", err)
	}
	res.Loan = loan.ID

	return res, nil
}

func record(ctx context.Context, journal eventstore.Journal, id uuid.UUID, aggregateType, eventType string, payload any) error {
	if journal == nil {
		return nil
	}
	if err := eventstore.Append(ctx, journal, id, aggregateType, 0, eventType, payload); err != nil {
		return fmt.Errorf("seed %s: %w", eventType, err)
	}
	return nil
}
