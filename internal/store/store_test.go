package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infobooks/internal/domain"
)

func newBook(total, available int) domain.Book {
	return domain.Book{
		ID:           uuid.New(),
		Title:        "Moby Dick",
		Author:       "Herman Melville",
		TotalQty:     total,
		AvailableQty: available,
	}
}

func TestUserRepository(t *testing.T) {
	s := New()

	u := domain.User{ID: uuid.New(), Name: "Miguel Silva Santos", NationalID: "458.632.582-07", Active: true}
	require.NoError(t, s.InsertUser(u))

	got, ok := s.FindUser("45863258207")
	require.True(t, ok)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "45863258207", got.NationalID)

	got, ok = s.FindUser("458.632.582-07")
	require.True(t, ok)
	assert.Equal(t, u.ID, got.ID)

	_, ok = s.FindUser("000")
	assert.False(t, ok)

	dup := domain.User{ID: uuid.New(), Name: "Someone Else", NationalID: "45863258207"}
	assert.ErrorIs(t, s.InsertUser(dup), domain.ErrDuplicateKey)
	assert.ErrorIs(t, s.InsertUser(domain.User{ID: uuid.New(), NationalID: "..."}), domain.ErrInvalidInput)

	assert.Equal(t, 1, s.CountUsers(nil))
}

func TestWithUserMut(t *testing.T) {
	s := New()
	u := domain.User{ID: uuid.New(), Name: "Lenitha Borges", NationalID: "09835633304", Active: true}
	require.NoError(t, s.InsertUser(u))

	err := s.WithUserMut(u.ID, func(u *domain.User) error {
		u.Active = false
		u.NationalID = "11111111111"
		return nil
	})
	require.NoError(t, err)

	got, _ := s.FindUserByID(u.ID)
	assert.False(t, got.Active)
	assert.Equal(t, "09835633304", got.NationalID, "national id is immutable")
	assert.Equal(t, 0, s.CountUsers(func(u domain.User) bool { return u.Active }))

	assert.ErrorIs(t, s.WithUserMut(uuid.New(), func(*domain.User) error { return nil }), domain.ErrUserNotFound)
}

func TestBookRepository(t *testing.T) {
	s := New()

	first := newBook(2, 2)
	second := newBook(1, 1)
	second.Title = "A Divina Comédia"
	require.NoError(t, s.InsertBook(first))
	require.NoError(t, s.InsertBook(second))

	assert.ErrorIs(t, s.InsertBook(first), domain.ErrDuplicateKey)
	assert.ErrorIs(t, s.InsertBook(newBook(1, 2)), domain.ErrInvalidInput)

	books := s.Books()
	require.Len(t, books, 2)
	assert.Equal(t, first.ID, books[0].ID, "books keep insertion order")
	assert.Equal(t, second.ID, books[1].ID)
	assert.Equal(t, 2, s.CountBooks())

	_, ok := s.FindBook(uuid.New())
	assert.False(t, ok)
}

func TestWithBookMut_FailedMutationLeavesBookUntouched(t *testing.T) {
	s := New()
	b := newBook(2, 1)
	require.NoError(t, s.InsertBook(b))

	boom := errors.New("boom")
	err := s.WithBookMut(b.ID, func(b *domain.Book) error {
		b.AvailableQty = 0
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.WithBookMut(b.ID, func(b *domain.Book) error {
		b.AvailableQty = 3
		return nil
	})
	assert.ErrorIs(t, err, ErrInvariantViolation)

	got, _ := s.FindBook(b.ID)
	assert.Equal(t, 1, got.AvailableQty)

	assert.ErrorIs(t, s.WithBookMut(uuid.New(), func(*domain.Book) error { return nil }), domain.ErrBookNotFound)
}

func TestWithBookMut_SerializesSameBook(t *testing.T) {
	s := New()
	b := newBook(50, 50)
	require.NoError(t, s.InsertBook(b))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithBookMut(b.ID, func(b *domain.Book) error {
				if b.AvailableQty == 0 {
					return domain.ErrNoCopiesAvailable
				}
				b.AvailableQty--
				return nil
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, _ := s.FindBook(b.ID)
	assert.Equal(t, 50, succeeded)
	assert.Equal(t, 0, got.AvailableQty)
}

func TestLoanRepository(t *testing.T) {
	s := New()
	b := newBook(1, 1)
	require.NoError(t, s.InsertBook(b))

	borrower := uuid.New()
	day := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	l := domain.Loan{
		ID:         uuid.New(),
		BorrowerID: borrower,
		BookID:     b.ID,
		BorrowedAt: day,
		DueAt:      domain.DueDate(day),
		Status:     domain.LoanBorrowed,
	}
	require.NoError(t, s.InsertLoan(l))
	assert.ErrorIs(t, s.InsertLoan(l), domain.ErrDuplicateKey)

	orphan := l
	orphan.ID = uuid.New()
	orphan.BookID = uuid.New()
	assert.ErrorIs(t, s.InsertLoan(orphan), domain.ErrBookNotFound)

	err := s.WithLoanMut(l.ID, func(l *domain.Loan) error {
		returned := day.AddDate(0, 0, 3)
		l.Status = domain.LoanReturned
		l.ReturnedAt = &returned
		l.BorrowerID = uuid.New()
		return nil
	})
	require.NoError(t, err)

	got, ok := s.FindLoan(l.ID)
	require.True(t, ok)
	assert.Equal(t, domain.LoanReturned, got.Status)
	assert.Equal(t, borrower, got.BorrowerID, "borrower is immutable")
	require.NotNil(t, got.ReturnedAt)

	// Copies handed out must not alias the stored record.
	*got.ReturnedAt = time.Time{}
	again, _ := s.FindLoan(l.ID)
	assert.False(t, again.ReturnedAt.IsZero())

	assert.Len(t, s.LoansByBorrower(borrower), 1)
	assert.Empty(t, s.LoansByBorrower(uuid.New()))
	assert.Equal(t, 1, s.CountLoans(func(l domain.Loan) bool { return l.Status == domain.LoanReturned }))
	assert.ErrorIs(t, s.WithLoanMut(uuid.New(), func(*domain.Loan) error { return nil }), domain.ErrLoanNotFound)
}
