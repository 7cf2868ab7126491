package catalog

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps the catalogue in process memory.
type MemoryRepository struct {
	mu         sync.RWMutex
	books      map[int64]Book
	users      map[int64]User
	nextBookID int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		books: make(map[int64]Book),
		users: make(map[int64]User),
	}
}

// Seed stores users and books as given, ids included. The catalogue has no
// operation that creates users or places loans, so fixtures come in here.
func (r *MemoryRepository) Seed(users []User, books []Book) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range users {
		r.users[u.ID] = u
	}
	for _, b := range books {
		r.books[b.ID] = b
		if b.ID > r.nextBookID {
			r.nextBookID = b.ID
		}
	}
}

func (r *MemoryRepository) CreateBook(_ context.Context, b *Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextBookID++
	b.ID = r.nextBookID
	b.IsAvailable = true
	b.BorrowedBy, b.BorrowedUntil = nil, nil
	r.books[b.ID] = *b
	return nil
}

func (r *MemoryRepository) DeleteBook(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return false, nil
	}
	delete(r.books, id)
	return true, nil
}

func (r *MemoryRepository) ListUnavailableBooks(context.Context) ([]Book, error) {
	return r.selectBooks(func(b Book) bool { return !b.IsAvailable }), nil
}

func (r *MemoryRepository) ListLoanedBooks(context.Context) ([]Book, error) {
	return r.selectBooks(func(b Book) bool { return b.BorrowedBy != nil }), nil
}

func (r *MemoryRepository) ListUsers(context.Context) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }

func (r *MemoryRepository) selectBooks(keep func(Book) bool) []Book {
	r.mu.RLock()
	defer r.mu.RUnlock()
	books := []Book{}
	for _, b := range r.books {
		if keep(b) {
			books = append(books, b)
		}
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books
}
