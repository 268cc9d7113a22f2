// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"infobooks/internal/domain"
	"infobooks/internal/eventstore"
	"infobooks/internal/store"
)

// service implements the Service interface.
type service struct {
	store   *store.Store
	journal eventstore.Journal
	logger  *slog.Logger
}

// NewService creates a new catalog service instance. journal may be nil.
func NewService(st *store.Store, journal eventstore.Journal, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		store:   st,
		journal: journal,
		logger:  logger,
	}
}

// AddBook creates a new title with every copy available.
func (s *service) AddBook(ctx context.Context, req NewBook) (*BookView, error) {
	req = req.normalize()
	if !req.valid() {
		return nil, domain.ErrInvalidInput
	}

	book := domain.Book{
		ID:           uuid.New(),
		Title:        req.Title,
		Author:       req.Author,
		Category:     req.Category,
		Year:         req.Year,
		Description:  req.Description,
		TotalQty:     req.TotalQty,
		AvailableQty: req.TotalQty,
	}

	if s.journal != nil {
		eventData := domain.BookAddedEvent{
			ID:          book.ID,
			Title:       book.Title,
			Author:      book.Author,
			Category:    book.Category,
			Year:        book.Year,
			Description: book.Description,
			TotalQty:    book.TotalQty,
		}
		if err := eventstore.Append(ctx, s.journal, book.ID, domain.AggregateBook, 0, domain.EventBookAdded, eventData); err != nil {
			return nil, fmt.Errorf("failed to append event: %w", err)
		}
	}

	if err := s.store.InsertBook(book); err != nil {
		return nil, fmt.Errorf("failed to insert book: %w", err)
	}

	s.logger.InfoContext(ctx, "book added", "book_id", book.ID, "title", book.Title, "total_qty", book.TotalQty)
	view := newBookView(book)
	return &view, nil
}

// GetBook retrieves a book by its ID.
func (s *service) GetBook(_ context.Context, id string) (*BookView, error) {
	bookID, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrInvalidBookReference
	}
	b, ok := s.store.FindBook(bookID)
	if !ok {
		return nil, domain.ErrBookNotFound
	}
	view := newBookView(b)
	return &view, nil
}

// ListBooks returns every title in the order it was added.
func (s *service) ListBooks(_ context.Context) []BookView {
	books := s.store.Books()
	views := make([]BookView, 0, len(books))
	for _, b := range books {
		views = append(views, newBookView(b))
	}
	return views
}

// Search finds titles whose title, author or category contains query,
// ignoring case. An empty query matches everything.
func (s *service) Search(ctx context.Context, query string) []BookView {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.ListBooks(ctx)
	}

	var views []BookView
	for _, b := range s.store.Books() {
		if strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) ||
			strings.Contains(strings.ToLower(b.Category), q) {
			views = append(views, newBookView(b))
		}
	}
	return views
}
