// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// service implements the Service interface.
type service struct {
	repo     Repository
	notifier Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewService creates a new catalogue service instance. A nil notifier
// disables propagation.
func NewService(repo Repository, notifier Notifier, logger *slog.Logger) Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &service{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		tracer:   otel.Tracer("librarysync/catalog"),
	}
}

// CreateBook stores a new available book and then pushes it downstream.
func (s *service) CreateBook(ctx context.Context, title, publisher, category string) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.create_book")
	defer span.End()

	book := &Book{
		Title:       title,
		Publisher:   publisher,
		Category:    category,
		IsAvailable: true,
	}
	if err := s.repo.CreateBook(ctx, book); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to create book: %w", err)
	}
	span.SetAttributes(attribute.Int64("book.id", book.ID))

	if err := s.notifier.BookUpserted(ctx, *book); err != nil {
		s.logger.WarnContext(ctx, "failed to notify lending service about new book",
			"book_id", book.ID,
			"error", err,
		)
	}
	return book, nil
}

// DeleteBook removes a book and then pushes the removal downstream. Nothing
// is pushed for an unknown id.
func (s *service) DeleteBook(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "catalog.delete_book", trace.WithAttributes(attribute.Int64("book.id", id)))
	defer span.End()

	removed, err := s.repo.DeleteBook(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to delete book %d: %w", id, err)
	}
	if !removed {
		return ErrNotFound
	}

	if err := s.notifier.BookDeleted(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "failed to notify lending service about book removal",
			"book_id", id,
			"error", err,
		)
	}
	return nil
}

func (s *service) ListUnavailableBooks(ctx context.Context) ([]Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.list_unavailable_books")
	defer span.End()

	books, err := s.repo.ListUnavailableBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unavailable books: %w", err)
	}
	return books, nil
}

func (s *service) ListUsers(ctx context.Context) ([]User, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.list_users")
	defer span.End()

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ListUsersWithLoans attaches to each user the books of this catalogue whose
// borrower reference names them.
func (s *service) ListUsersWithLoans(ctx context.Context) ([]UserWithLoans, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.list_users_with_loans")
	defer span.End()

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	loaned, err := s.repo.ListLoanedBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list loaned books: %w", err)
	}

	byUser := make(map[int64][]Book, len(users))
	for _, b := range loaned {
		byUser[*b.BorrowedBy] = append(byUser[*b.BorrowedBy], b)
	}

	out := make([]UserWithLoans, 0, len(users))
	for _, u := range users {
		books := byUser[u.ID]
		if books == nil {
			books = []Book{}
		}
		out = append(out, UserWithLoans{User: u, BorrowedBooks: books})
	}
	return out, nil
}
