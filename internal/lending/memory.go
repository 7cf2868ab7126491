package lending

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type memoryBook struct {
	mu      sync.Mutex
	book    Book
	deleted bool
}

// MemoryRepository keeps the replica in process memory. Borrows lock only
// the book they touch.
type MemoryRepository struct {
	booksMu sync.RWMutex
	books   map[int64]*memoryBook

	usersMu    sync.RWMutex
	users      map[int64]User
	emails     map[string]int64
	nextUserID int64
}

// NewMemoryRepository returns an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		books:  make(map[int64]*memoryBook),
		users:  make(map[int64]User),
		emails: make(map[string]int64),
	}
}

func (r *MemoryRepository) CreateUser(_ context.Context, u *User) error {
	r.usersMu.Lock()
	defer r.usersMu.Unlock()

	// Emails are unique as written, matching the UNIQUE column in Postgres.
	if _, ok := r.emails[u.Email]; ok {
		return ErrEmailTaken
	}
	r.nextUserID++
	u.ID = r.nextUserID
	if u.Role == "" {
		u.Role = DefaultRole
	}
	r.users[u.ID] = *u
	r.emails[u.Email] = u.ID
	return nil
}

func (r *MemoryRepository) ListAvailableBooks(ctx context.Context) ([]Book, error) {
	return r.FilterAvailableBooks(ctx, Filter{})
}

func (r *MemoryRepository) FilterAvailableBooks(_ context.Context, f Filter) ([]Book, error) {
	r.booksMu.RLock()
	entries := make([]*memoryBook, 0, len(r.books))
	for _, e := range r.books {
		entries = append(entries, e)
	}
	r.booksMu.RUnlock()

	books := make([]Book, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		b, keep := e.book, !e.deleted && e.book.IsAvailable
		e.mu.Unlock()
		if keep && containsFold(b.Publisher, f.Publisher) && containsFold(b.Category, f.Category) {
			books = append(books, b)
		}
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

func (r *MemoryRepository) GetAvailableBook(_ context.Context, id int64) (*Book, error) {
	e := r.entry(id)
	if e == nil {
		return nil, ErrBookUnavailable
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted || !e.book.IsAvailable {
		return nil, ErrBookUnavailable
	}
	b := e.book
	return &b, nil
}

func (r *MemoryRepository) LendBook(_ context.Context, bookID, userID int64, lend LendFunc) (*Book, *User, error) {
	// Users are never removed, so reading one ahead of the book lock is safe.
	r.usersMu.RLock()
	user, userOK := r.users[userID]
	r.usersMu.RUnlock()

	e := r.entry(bookID)
	if e == nil {
		return nil, nil, ErrBookUnavailable
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted || !e.book.IsAvailable {
		return nil, nil, ErrBookUnavailable
	}
	if !userOK {
		return nil, nil, ErrUserNotFound
	}

	next := e.book
	if err := lend(&next, &user); err != nil {
		return nil, nil, err
	}
	e.book = next
	return &next, &user, nil
}

func (r *MemoryRepository) UpsertBook(_ context.Context, s BookSync) (*Book, error) {
	for {
		r.booksMu.Lock()
		e, ok := r.books[s.ID]
		if !ok {
			e = &memoryBook{}
			r.books[s.ID] = e
		}
		r.booksMu.Unlock()

		e.mu.Lock()
		if e.deleted {
			// Lost a race with a delete; the next pass inserts afresh.
			e.mu.Unlock()
			continue
		}
		e.book.Apply(s)
		b := e.book
		e.mu.Unlock()
		return &b, nil
	}
}

func (r *MemoryRepository) DeleteBook(_ context.Context, id int64) (bool, error) {
	r.booksMu.Lock()
	e, ok := r.books[id]
	delete(r.books, id)
	r.booksMu.Unlock()
	if !ok {
		return false, nil
	}

	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	return true, nil
}

// Book returns the stored record regardless of availability.
func (r *MemoryRepository) Book(id int64) (Book, bool) {
	e := r.entry(id)
	if e == nil {
		return Book{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book, !e.deleted
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }

func (r *MemoryRepository) entry(id int64) *memoryBook {
	r.booksMu.RLock()
	defer r.booksMu.RUnlock()
	return r.books[id]
}

func containsFold(s, substr string) bool {
	return substr == "" || strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
