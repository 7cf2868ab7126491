package lending

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// service implements the Service interface.
type service struct {
	repo   Repository
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewService creates a new lending service instance.
func NewService(repo Repository, logger *slog.Logger) Service {
	return &service{
		repo:   repo,
		logger: logger,
		tracer: otel.Tracer("librarysync/lending"),
		now:    time.Now,
	}
}

// Enroll registers a user; emails are unique.
func (s *service) Enroll(ctx context.Context, email, firstName, lastName string) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "lending.enroll")
	defer span.End()

	user := &User{
		Email:     strings.TrimSpace(email),
		FirstName: firstName,
		LastName:  lastName,
		Role:      DefaultRole,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fail(span, fmt.Errorf("failed to enroll user: %w", err))
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	return user, nil
}

// ListBooks returns every available book.
func (s *service) ListBooks(ctx context.Context) ([]Book, error) {
	ctx, span := s.tracer.Start(ctx, "lending.list_books")
	defer span.End()

	books, err := s.repo.ListAvailableBooks(ctx)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to list books: %w", err))
	}
	return books, nil
}

// FilterBooks returns available books matching f.
func (s *service) FilterBooks(ctx context.Context, f Filter) ([]Book, error) {
	ctx, span := s.tracer.Start(ctx, "lending.filter_books", trace.WithAttributes(
		attribute.String("filter.publisher", f.Publisher),
		attribute.String("filter.category", f.Category),
	))
	defer span.End()

	books, err := s.repo.FilterAvailableBooks(ctx, f)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to filter books: %w", err))
	}
	return books, nil
}

// GetBook returns a single available book.
func (s *service) GetBook(ctx context.Context, id int64) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "lending.get_book", trace.WithAttributes(attribute.Int64("book.id", id)))
	defer span.End()

	book, err := s.repo.GetAvailableBook(ctx, id)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to get book %d: %w", id, err))
	}
	return book, nil
}

// Borrow lends book bookID to userID for days days.
func (s *service) Borrow(ctx context.Context, bookID, userID int64, days int) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "lending.borrow", trace.WithAttributes(
		attribute.Int64("book.id", bookID),
		attribute.Int64("user.id", userID),
		attribute.Int("loan.days", days),
	))
	defer span.End()

	if days < 0 || days > MaxLoanDays {
		return nil, fail(span, ErrInvalidDays)
	}

	now := s.now()
	book, user, err := s.repo.LendBook(ctx, bookID, userID, func(b *Book, u *User) error {
		return b.Lend(u.ID, days, now)
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to borrow book %d: %w", bookID, err))
	}

	s.logger.InfoContext(ctx, "book lent",
		"book_id", book.ID,
		"user_id", user.ID,
		"borrowed_until", book.BorrowedUntil,
	)
	return &Loan{Book: *book, User: *user, Days: days}, nil
}

// ApplyBookSync upserts the replica of a catalogue record. Repeating the same
// payload leaves the replica unchanged.
func (s *service) ApplyBookSync(ctx context.Context, sync BookSync) error {
	ctx, span := s.tracer.Start(ctx, "lending.apply_book_sync", trace.WithAttributes(attribute.Int64("book.id", sync.ID)))
	defer span.End()

	book, err := s.repo.UpsertBook(ctx, sync)
	if err != nil {
		return fail(span, fmt.Errorf("failed to apply sync for book %d: %w", sync.ID, err))
	}
	if sync.Conflicts(book) {
		s.logger.WarnContext(ctx, "sync availability ignored, loan state is local",
			"book_id", book.ID,
			"payload_available", *sync.IsAvailable,
			"on_loan", book.OnLoan(),
		)
	}
	return nil
}

// ApplyBookDelete removes the replica of a catalogue record. Deleting an
// absent record is not an error.
func (s *service) ApplyBookDelete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "lending.apply_book_delete", trace.WithAttributes(attribute.Int64("book.id", id)))
	defer span.End()

	removed, err := s.repo.DeleteBook(ctx, id)
	if err != nil {
		return fail(span, fmt.Errorf("failed to apply delete for book %d: %w", id, err))
	}
	span.SetAttributes(attribute.Bool("book.removed", removed))
	return nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
