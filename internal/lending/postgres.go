package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const bookColumns = "id, title, publisher, category, is_available, borrowed_by, borrowed_until"

var pg = goqu.Dialect("postgres")

// PostgresRepository stores the replica in the lending database.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateUser(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (email, first_name, last_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.GetContext(ctx, &u.ID, query, u.Email, u.FirstName, u.LastName, u.Role)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListAvailableBooks(ctx context.Context) ([]Book, error) {
	return r.FilterAvailableBooks(ctx, Filter{})
}

func (r *PostgresRepository) FilterAvailableBooks(ctx context.Context, f Filter) ([]Book, error) {
	ds := pg.From("books").
		Select(goqu.L(bookColumns)).
		Where(goqu.C("is_available").IsTrue()).
		Order(goqu.C("id").Asc())
	if f.Publisher != "" {
		ds = ds.Where(goqu.C("publisher").ILike(likePattern(f.Publisher)))
	}
	if f.Category != "" {
		ds = ds.Where(goqu.C("category").ILike(likePattern(f.Category)))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build filter query: %w", err)
	}

	books := []Book{}
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	return books, nil
}

func (r *PostgresRepository) GetAvailableBook(ctx context.Context, id int64) (*Book, error) {
	var b Book
	err := r.db.GetContext(ctx, &b, `SELECT `+bookColumns+` FROM books WHERE id = $1 AND is_available`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return &b, nil
}

// LendBook holds a row lock on the book for the whole transition. A second
// borrower blocked on the lock re-checks is_available after the first commits
// and finds no row.
func (r *PostgresRepository) LendBook(ctx context.Context, bookID, userID int64, lend LendFunc) (*Book, *User, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var book Book
	err = tx.GetContext(ctx, &book, `SELECT `+bookColumns+` FROM books WHERE id = $1 AND is_available FOR UPDATE`, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrBookUnavailable
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock book: %w", err)
	}

	var user User
	err = tx.GetContext(ctx, &user, `SELECT id, email, first_name, last_name, role FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrUserNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := lend(&book, &user); err != nil {
		return nil, nil, err
	}

	query := `
		UPDATE books
		SET is_available = $2, borrowed_by = $3, borrowed_until = $4
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, query, book.ID, book.IsAvailable, book.BorrowedBy, book.BorrowedUntil); err != nil {
		return nil, nil, fmt.Errorf("failed to update book: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit loan: %w", err)
	}
	return &book, &user, nil
}

// UpsertBook never writes the loan reference; availability is derived from it.
func (r *PostgresRepository) UpsertBook(ctx context.Context, s BookSync) (*Book, error) {
	query := `
		INSERT INTO books (id, title, publisher, category, is_available)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			publisher = EXCLUDED.publisher,
			category = EXCLUDED.category,
			is_available = books.borrowed_by IS NULL
		RETURNING ` + bookColumns
	var b Book
	if err := r.db.GetContext(ctx, &b, query, s.ID, s.Title, s.Publisher, s.Category); err != nil {
		return nil, fmt.Errorf("failed to upsert book: %w", err)
	}
	return &b, nil
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

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns s into a substring pattern with LIKE metacharacters escaped.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
