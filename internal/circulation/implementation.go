// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"infobooks/internal/domain"
	"infobooks/internal/eventstore"
	"infobooks/internal/store"
)

// service implements the Service interface.
type service struct {
	store         *store.Store
	journal       eventstore.Journal
	now           func() time.Time
	logger        *slog.Logger
	tracer        trace.Tracer
	meterProvider metric.MeterProvider
	metrics       *metrics
}

// NewService creates a new circulation service backed by st.
func NewService(st *store.Store, opts ...Option) Service {
	s := &service{
		store:         st,
		now:           time.Now,
		logger:        slog.Default(),
		tracer:        otel.Tracer("infobooks/circulation"),
		meterProvider: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}

	m, err := newMetrics(s.meterProvider)
	if err != nil {
		s.logger.Warn("circulation metrics disabled", "error", err)
		m, _ = newMetrics(noop.NewMeterProvider())
	}
	s.metrics = m
	return s
}

func (s *service) today() time.Time {
	return domain.Day(s.now())
}

// RentBook lends one copy of a book to the borrower.
//
// The availability check and decrement happen in a single critical section on
// the book record, so concurrent rents of the same book can never take more
// copies than exist. The loan is journaled and inserted after the book lock
// is released; if either step fails the decrement is compensated.
func (s *service) RentBook(ctx context.Context, borrowerID uuid.UUID, bookID string) (*LoanReceipt, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.rent",
		trace.WithAttributes(
			attribute.String("borrower.id", borrowerID.String()),
			attribute.String("book.id", bookID),
		),
	)
	defer span.End()

	id, err := uuid.Parse(bookID)
	if err != nil {
		return nil, s.reject(ctx, span, "rent", domain.ErrInvalidBookReference)
	}

	// Step 1: validate the borrower
	borrower, ok := s.store.FindUserByID(borrowerID)
	if !ok || !borrower.Active {
		return nil, s.reject(ctx, span, "rent", domain.ErrUnauthorized)
	}

	// Step 2: check and decrement availability
	var book domain.Book
	err = s.store.WithBookMut(id, func(b *domain.Book) error {
		if b.AvailableQty <= 0 {
			return domain.ErrNoCopiesAvailable
		}
		b.AvailableQty--
		book = *b
		return nil
	})
	if err != nil {
		if domain.KindOf(err) != domain.KindUnknown {
			return nil, s.reject(ctx, span, "rent", err)
		}
		return nil, s.fail(span, fmt.Errorf("failed to decrement availability: %w", err))
	}

	compensation := func() {
		s.logger.WarnContext(ctx, "compensating failed rent: restoring availability", "book_id", id)
		err := s.store.WithBookMut(id, func(b *domain.Book) error {
			if b.AvailableQty < b.TotalQty {
				b.AvailableQty++
			}
			return nil
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to compensate availability", "book_id", id, "error", err)
		}
	}

	// Step 3: record the loan
	today := s.today()
	loan := domain.Loan{
		ID:         uuid.New(),
		BorrowerID: borrowerID,
		BookID:     id,
		BorrowedAt: today,
		DueAt:      domain.DueDate(today),
		Status:     domain.LoanBorrowed,
		Version:    1,
	}

	opened := domain.LoanOpenedEvent{
		LoanID:     loan.ID,
		BorrowerID: loan.BorrowerID,
		BookID:     loan.BookID,
		BorrowedAt: loan.BorrowedAt,
		DueAt:      loan.DueAt,
	}
	if err := s.appendEvent(ctx, loan.ID, 0, domain.EventLoanOpened, opened); err != nil {
		compensation()
		return nil, s.fail(span, fmt.Errorf("failed to append event: %w", err))
	}

	if err := s.store.InsertLoan(loan); err != nil {
		compensation()
		return nil, s.fail(span, fmt.Errorf("failed to insert loan: %w", err))
	}

	s.metrics.rented.Add(ctx, 1)
	span.SetAttributes(attribute.String("loan.id", loan.ID.String()))
	s.logger.InfoContext(ctx, "book rented",
		"loan_id", loan.ID,
		"book_id", id,
		"borrower_id", borrowerID,
		"due_at", loan.DueAt.Format(time.DateOnly),
		"available_qty", book.AvailableQty,
	)

	return &LoanReceipt{
		LoanID:       loan.ID,
		BorrowerID:   borrowerID,
		BookID:       id,
		BookTitle:    book.Title,
		BorrowedAt:   loan.BorrowedAt,
		DueAt:        loan.DueAt,
		AvailableQty: book.AvailableQty,
	}, nil
}

// ReturnBook closes a loan and gives its copy back to the catalog.
//
// Overdue loans are rejected with domain.ErrOverdue and left untouched; they
// can only be closed at the administrative desk.
func (s *service) ReturnBook(ctx context.Context, borrowerID uuid.UUID, loanID string) (*ReturnConfirmation, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.return",
		trace.WithAttributes(
			attribute.String("borrower.id", borrowerID.String()),
			attribute.String("loan.id", loanID),
		),
	)
	defer span.End()

	id, err := uuid.Parse(loanID)
	if err != nil {
		return nil, s.reject(ctx, span, "return", domain.ErrInvalidLoanReference)
	}

	// Step 1: validate and close the loan
	today := s.today()
	var loan domain.Loan
	err = s.store.WithLoanMut(id, func(l *domain.Loan) error {
		if l.BorrowerID != borrowerID {
			return domain.ErrUnauthorized
		}
		if l.Status == domain.LoanReturned {
			return domain.ErrAlreadyReturned
		}
		if domain.IsOverdue(l.Status, l.DueAt, today) {
			return domain.ErrOverdue
		}
		l.Status = domain.LoanReturned
		l.ReturnedAt = &today
		l.Version++
		loan = *l
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, span, "return", err)
	}

	// Step 2: record the return
	returned := domain.LoanReturnedEvent{
		LoanID:     loan.ID,
		BorrowerID: loan.BorrowerID,
		BookID:     loan.BookID,
		ReturnedAt: today,
	}
	if err := s.appendEvent(ctx, loan.ID, loan.Version-1, domain.EventLoanReturned, returned); err != nil {
		s.reopen(ctx, loan.ID)
		return nil, s.fail(span, fmt.Errorf("failed to append event: %w", err))
	}

	// Step 3: give the copy back, never beyond the number owned
	var available int
	clamped := false
	err = s.store.WithBookMut(loan.BookID, func(b *domain.Book) error {
		if b.AvailableQty < b.TotalQty {
			b.AvailableQty++
		} else {
			clamped = true
		}
		available = b.AvailableQty
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "returned loan references an unknown book", "loan_id", loan.ID, "book_id", loan.BookID, "error", err)
	}
	if clamped {
		s.logger.WarnContext(ctx, "availability already at total copies on return", "loan_id", loan.ID, "book_id", loan.BookID)
	}

	s.metrics.returned.Add(ctx, 1)
	s.logger.InfoContext(ctx, "book returned",
		"loan_id", loan.ID,
		"book_id", loan.BookID,
		"borrower_id", borrowerID,
		"available_qty", available,
	)

	return &ReturnConfirmation{
		LoanID:       loan.ID,
		BookID:       loan.BookID,
		ReturnedAt:   today,
		AvailableQty: available,
	}, nil
}

// LoansFor lists the borrower's loans with their display status.
func (s *service) LoansFor(ctx context.Context, borrowerID uuid.UUID) ([]LoanView, error) {
	_, span := s.tracer.Start(ctx, "circulation.loans_for",
		trace.WithAttributes(attribute.String("borrower.id", borrowerID.String())),
	)
	defer span.End()

	if _, ok := s.store.FindUserByID(borrowerID); !ok {
		return nil, domain.ErrUserNotFound
	}

	today := s.today()
	loans := s.store.LoansByBorrower(borrowerID)
	views := make([]LoanView, 0, len(loans))
	for _, l := range loans {
		v := LoanView{Loan: l, Display: l.Display(today)}
		if b, ok := s.store.FindBook(l.BookID); ok {
			v.BookTitle = b.Title
		}
		views = append(views, v)
	}
	return views, nil
}

// DashboardStats computes the dashboard aggregates.
func (s *service) DashboardStats(ctx context.Context) Stats {
	ctx, span := s.tracer.Start(ctx, "circulation.dashboard_stats")
	defer span.End()

	stats := NewReporter(s.store, s.now).DashboardStats(ctx)
	span.SetAttributes(
		attribute.Int("stats.total_books", stats.TotalBooks),
		attribute.Int("stats.active_loans", stats.ActiveLoans),
		attribute.Int("stats.overdue_loans", stats.OverdueLoans),
		attribute.Int("stats.active_users", stats.ActiveUsers),
	)
	return stats
}

// appendEvent journals a loan transition at the version the loan record
// holds. Transitions of one loan are serialized by its record lock, so a
// version conflict means the journal and the store disagree; retrying
// cannot resolve it and the conflict is returned as is.
func (s *service) appendEvent(ctx context.Context, loanID uuid.UUID, expectedVersion int, eventType string, payload any) error {
	if s.journal == nil {
		return nil
	}
	err := eventstore.Append(ctx, s.journal, loanID, domain.AggregateLoan, expectedVersion, eventType, payload)
	if errors.Is(err, eventstore.ErrConcurrencyConflict) {
		s.logger.ErrorContext(ctx, "loan journal out of step with the store",
			"loan_id", loanID,
			"event_type", eventType,
			"expected_version", expectedVersion,
		)
	}
	return err
}

// reopen undoes the close of a loan whose return could not be journaled.
func (s *service) reopen(ctx context.Context, loanID uuid.UUID) {
	s.logger.WarnContext(ctx, "compensating failed return: reopening loan", "loan_id", loanID)
	err := s.store.WithLoanMut(loanID, func(l *domain.Loan) error {
		l.Status = domain.LoanBorrowed
		l.ReturnedAt = nil
		l.Version--
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to reopen loan", "loan_id", loanID, "error", err)
	}
}

func (s *service) reject(ctx context.Context, span trace.Span, operation string, err error) error {
	s.metrics.recordRejection(ctx, operation, err)
	span.SetAttributes(attribute.String("rejection.reason", domain.CodeOf(err)))
	s.logger.DebugContext(ctx, operation+" rejected", "reason", domain.CodeOf(err))
	return err
}

func (s *service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

var _ Service = (*service)(nil)
