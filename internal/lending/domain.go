package lending

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBookUnavailable covers both a missing book and one already on loan;
	// callers cannot tell the two apart.
	ErrBookUnavailable = errors.New("book not available or doesn't exist")
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("user with this email already exists")
	ErrInvalidDays     = errors.New("days must be between 0 and 1000000")
)

const (
	// DefaultRole is assigned to every enrolled user.
	DefaultRole = "user"

	// MaxLoanDays keeps borrowed_until inside the timestamp range of the store.
	MaxLoanDays = 1_000_000
)

// Book is the lending service's replica of a catalogue record.
type Book struct {
	ID            int64      `json:"id" db:"id"`
	Title         string     `json:"title" db:"title"`
	Publisher     string     `json:"publisher" db:"publisher"`
	Category      string     `json:"category" db:"category"`
	IsAvailable   bool       `json:"is_available" db:"is_available"`
	BorrowedBy    *int64     `json:"borrowed_by" db:"borrowed_by"`
	BorrowedUntil *time.Time `json:"borrowed_until" db:"borrowed_until"`
}

// OnLoan reports whether the book carries a loan reference.
func (b *Book) OnLoan() bool {
	return b.BorrowedBy != nil
}

// Lend moves an available book onto loan for userID until now+days.
func (b *Book) Lend(userID int64, days int, now time.Time) error {
	if !b.IsAvailable {
		return ErrBookUnavailable
	}
	if days < 0 || days > MaxLoanDays {
		return ErrInvalidDays
	}
	until := now.UTC().AddDate(0, 0, days)
	b.IsAvailable = false
	b.BorrowedBy = &userID
	b.BorrowedUntil = &until
	return nil
}

// Apply overwrites the catalogue-owned fields from a sync payload. The loan
// reference belongs to this service, so it is never touched, and availability
// cannot contradict it: a book on loan stays unavailable and a book without a
// loan reference is available.
func (b *Book) Apply(s BookSync) {
	b.ID = s.ID
	b.Title = s.Title
	b.Publisher = s.Publisher
	b.Category = s.Category
	b.IsAvailable = !b.OnLoan()
}

// BookSync is the payload pushed by the catalogue authority. IsAvailable is
// advisory: the replica derives availability from its own loan reference.
type BookSync struct {
	ID          int64  `json:"id" validate:"gt=0"`
	Title       string `json:"title" validate:"required"`
	Publisher   string `json:"publisher" validate:"required"`
	Category    string `json:"category" validate:"required"`
	IsAvailable *bool  `json:"is_available" validate:"required"`
}

// Conflicts reports whether the payload's availability flag disagrees with
// the replica's own loan state.
func (s BookSync) Conflicts(b *Book) bool {
	return s.IsAvailable != nil && *s.IsAvailable == b.OnLoan()
}

// User is a library member enrolled with the lending service.
type User struct {
	ID        int64  `json:"id" db:"id"`
	Email     string `json:"email" db:"email"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Role      string `json:"role" db:"role"`
}

// Filter narrows the available books by case-insensitive substring matches.
// Empty fields match everything.
type Filter struct {
	Publisher string
	Category  string
}

// Loan is the outcome of a successful borrow.
type Loan struct {
	Book Book
	User User
	Days int
}

// Message is the confirmation returned to the borrower.
func (l Loan) Message() string {
	return fmt.Sprintf("Book '%s' borrowed by %s for %d days.", l.Book.Title, l.User.Email, l.Days)
}
