// Package store implements the in-memory catalog store that owns every
// user, book and loan record.
//
// Each collection is an arena of records keyed by ID and guarded by its own
// RWMutex; each record carries a mutex of its own. Mutations of one record
// never block reads or mutations of another record in the same collection.
package store

import (
	"sync"

	"github.com/google/uuid"

	"infobooks/internal/domain"
)

type userRecord struct {
	mu   sync.Mutex
	user domain.User
}

type bookRecord struct {
	mu   sync.Mutex
	book domain.Book
}

type loanRecord struct {
	mu   sync.Mutex
	loan domain.Loan
}

// Store is the single source of truth for users, books and loans.
type Store struct {
	usersMu      sync.RWMutex
	users        map[uuid.UUID]*userRecord
	byNationalID map[string]uuid.UUID
	userOrder    []uuid.UUID

	booksMu   sync.RWMutex
	books     map[uuid.UUID]*bookRecord
	bookOrder []uuid.UUID

	loansMu   sync.RWMutex
	loans     map[uuid.UUID]*loanRecord
	loanOrder []uuid.UUID
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:        make(map[uuid.UUID]*userRecord),
		byNationalID: make(map[string]uuid.UUID),
		books:        make(map[uuid.UUID]*bookRecord),
		loans:        make(map[uuid.UUID]*loanRecord),
	}
}

// --- Users ---

// FindUser looks a user up by national ID. The ID is normalized first.
func (s *Store) FindUser(nationalID string) (domain.User, bool) {
	s.usersMu.RLock()
	id, ok := s.byNationalID[domain.NormalizeNationalID(nationalID)]
	rec := s.users[id]
	s.usersMu.RUnlock()
	if !ok || rec == nil {
		return domain.User{}, false
	}
	return rec.get(), true
}

// FindUserByID looks a user up by ID.
func (s *Store) FindUserByID(id uuid.UUID) (domain.User, bool) {
	s.usersMu.RLock()
	rec, ok := s.users[id]
	s.usersMu.RUnlock()
	if !ok {
		return domain.User{}, false
	}
	return rec.get(), true
}

// InsertUser adds a user. It fails with ErrDuplicateKey when the ID or the
// normalized national ID is already taken.
func (s *Store) InsertUser(u domain.User) error {
	u.NationalID = domain.NormalizeNationalID(u.NationalID)
	if u.NationalID == "" || u.ID == uuid.Nil {
		return domain.ErrInvalidInput
	}

	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	if _, ok := s.byNationalID[u.NationalID]; ok {
		return domain.ErrDuplicateKey
	}
	if _, ok := s.users[u.ID]; ok {
		return domain.ErrDuplicateKey
	}
	s.users[u.ID] = &userRecord{user: u}
	s.byNationalID[u.NationalID] = u.ID
	s.userOrder = append(s.userOrder, u.ID)
	return nil
}

// WithUserMut applies fn to a copy of the user under the record's lock and
// commits the copy only when fn succeeds. ID and national ID are immutable.
func (s *Store) WithUserMut(id uuid.UUID, fn func(*domain.User) error) error {
	s.usersMu.RLock()
	rec, ok := s.users[id]
	s.usersMu.RUnlock()
	if !ok {
		return domain.ErrUserNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	u := rec.user
	if err := fn(&u); err != nil {
		return err
	}
	u.ID, u.NationalID = rec.user.ID, rec.user.NationalID
	rec.user = u
	return nil
}

// Users returns a copy of every user in registration order.
func (s *Store) Users() []domain.User {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	out := make([]domain.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, s.users[id].get())
	}
	return out
}

// CountUsers counts users matching pred under one read lock of the user
// collection. A nil pred counts every user.
func (s *Store) CountUsers(pred func(domain.User) bool) int {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	n := 0
	for _, rec := range s.users {
		if pred == nil || pred(rec.get()) {
			n++
		}
	}
	return n
}

func (r *userRecord) get() domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.user
}

// --- Books ---

// FindBook looks a book up by ID.
func (s *Store) FindBook(id uuid.UUID) (domain.Book, bool) {
	s.booksMu.RLock()
	rec, ok := s.books[id]
	s.booksMu.RUnlock()
	if !ok {
		return domain.Book{}, false
	}
	return rec.get(), true
}

// InsertBook adds a book. Books violating 0 <= available <= total are
// rejected with ErrInvalidInput.
func (s *Store) InsertBook(b domain.Book) error {
	if b.ID == uuid.Nil || !b.Valid() {
		return domain.ErrInvalidInput
	}

	s.booksMu.Lock()
	defer s.booksMu.Unlock()

	if _, ok := s.books[b.ID]; ok {
		return domain.ErrDuplicateKey
	}
	s.books[b.ID] = &bookRecord{book: b}
	s.bookOrder = append(s.bookOrder, b.ID)
	return nil
}

// WithBookMut applies fn to a copy of the book under the record's lock. The
// copy is committed only when fn succeeds and the availability invariant
// still holds, so a failed mutation leaves the book untouched.
func (s *Store) WithBookMut(id uuid.UUID, fn func(*domain.Book) error) error {
	s.booksMu.RLock()
	rec, ok := s.books[id]
	s.booksMu.RUnlock()
	if !ok {
		return domain.ErrBookNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	b := rec.book
	if err := fn(&b); err != nil {
		return err
	}
	if !b.Valid() {
		return ErrInvariantViolation
	}
	b.ID = rec.book.ID
	rec.book = b
	return nil
}

// Books returns a copy of every book in insertion order.
func (s *Store) Books() []domain.Book {
	s.booksMu.RLock()
	defer s.booksMu.RUnlock()

	out := make([]domain.Book, 0, len(s.bookOrder))
	for _, id := range s.bookOrder {
		out = append(out, s.books[id].get())
	}
	return out
}

// CountBooks returns the number of titles in the catalog.
func (s *Store) CountBooks() int {
	s.booksMu.RLock()
	defer s.booksMu.RUnlock()
	return len(s.books)
}

func (r *bookRecord) get() domain.Book {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.book
}

// --- Loans ---

// FindLoan looks a loan up by ID.
func (s *Store) FindLoan(id uuid.UUID) (domain.Loan, bool) {
	s.loansMu.RLock()
	rec, ok := s.loans[id]
	s.loansMu.RUnlock()
	if !ok {
		return domain.Loan{}, false
	}
	return rec.get(), true
}

// InsertLoan adds a loan. The referenced book must exist.
func (s *Store) InsertLoan(l domain.Loan) error {
	if l.ID == uuid.Nil {
		return domain.ErrInvalidInput
	}
	if _, ok := s.FindBook(l.BookID); !ok {
		return domain.ErrBookNotFound
	}

	s.loansMu.Lock()
	defer s.loansMu.Unlock()

	if _, ok := s.loans[l.ID]; ok {
		return domain.ErrDuplicateKey
	}
	s.loans[l.ID] = &loanRecord{loan: cloneLoan(l)}
	s.loanOrder = append(s.loanOrder, l.ID)
	return nil
}

// WithLoanMut applies fn to a copy of the loan under the record's lock and
// commits the copy only when fn succeeds. ID, borrower and book are
// immutable.
func (s *Store) WithLoanMut(id uuid.UUID, fn func(*domain.Loan) error) error {
	s.loansMu.RLock()
	rec, ok := s.loans[id]
	s.loansMu.RUnlock()
	if !ok {
		return domain.ErrLoanNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	l := cloneLoan(rec.loan)
	if err := fn(&l); err != nil {
		return err
	}
	l.ID, l.BorrowerID, l.BookID = rec.loan.ID, rec.loan.BorrowerID, rec.loan.BookID
	rec.loan = l
	return nil
}

// Loans returns a copy of every loan in creation order.
func (s *Store) Loans() []domain.Loan {
	return s.filterLoans(nil)
}

// LoansByBorrower returns the borrower's loans in creation order.
func (s *Store) LoansByBorrower(borrowerID uuid.UUID) []domain.Loan {
	return s.filterLoans(func(l domain.Loan) bool { return l.BorrowerID == borrowerID })
}

// CountLoans counts loans matching pred under one read lock of the loan
// collection. A nil pred counts every loan.
func (s *Store) CountLoans(pred func(domain.Loan) bool) int {
	s.loansMu.RLock()
	defer s.loansMu.RUnlock()

	n := 0
	for _, rec := range s.loans {
		if pred == nil || pred(rec.get()) {
			n++
		}
	}
	return n
}

// EachLoan calls fn with a copy of every loan under one read lock of the
// loan collection. fn must not call back into the store.
func (s *Store) EachLoan(fn func(domain.Loan)) {
	s.loansMu.RLock()
	defer s.loansMu.RUnlock()

	for _, id := range s.loanOrder {
		fn(s.loans[id].get())
	}
}

func (s *Store) filterLoans(pred func(domain.Loan) bool) []domain.Loan {
	s.loansMu.RLock()
	defer s.loansMu.RUnlock()

	out := make([]domain.Loan, 0, len(s.loanOrder))
	for _, id := range s.loanOrder {
		l := s.loans[id].get()
		if pred == nil || pred(l) {
			out = append(out, l)
		}
	}
	return out
}

func (r *loanRecord) get() domain.Loan {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneLoan(r.loan)
}

func cloneLoan(l domain.Loan) domain.Loan {
	if l.ReturnedAt != nil {
		t := *l.ReturnedAt
		l.ReturnedAt = &t
	}
	return l
}
