package catalog

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const bookColumns = "id, title, publisher, category, is_available, borrowed_by, borrowed_until"

// PostgresRepository stores the catalogue in the authority database.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateBook(ctx context.Context, b *Book) error {
	query := `
		INSERT INTO books (title, publisher, category, is_available)
		VALUES ($1, $2, $3, TRUE)
		RETURNING ` + bookColumns
	if err := r.db.GetContext(ctx, b, query, b.Title, b.Publisher, b.Category); err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteBook(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) ListUnavailableBooks(ctx context.Context) ([]Book, error) {
	books := []Book{}
	query := `SELECT ` + bookColumns + ` FROM books WHERE NOT is_available ORDER BY id`
	if err := r.db.SelectContext(ctx, &books, query); err != nil {
		return nil, fmt.Errorf("failed to query unavailable books: %w", err)
	}
	return books, nil
}

func (r *PostgresRepository) ListLoanedBooks(ctx context.Context) ([]Book, error) {
	books := []Book{}
	query := `SELECT ` + bookColumns + ` FROM books WHERE borrowed_by IS NOT NULL ORDER BY borrowed_by, id`
	if err := r.db.SelectContext(ctx, &books, query); err != nil {
		return nil, fmt.Errorf("failed to query loaned books: %w", err)
	}
	return books, nil
}

func (r *PostgresRepository) ListUsers(ctx context.Context) ([]User, error) {
	users := []User{}
	query := `SELECT id, email, first_name, last_name FROM users ORDER BY id`
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return users, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
