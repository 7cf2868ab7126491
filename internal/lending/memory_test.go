package lending

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertEmailCaseSensitive checks that repo treats emails differing only in
// case as distinct users and exact repeats as duplicates.
func assertEmailCaseSensitive(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	first := &User{Email: "Paul@arrakis.io", FirstName: "Paul", LastName: "Atreides", Role: DefaultRole}
	require.NoError(t, repo.CreateUser(ctx, first))

	second := &User{Email: "paul@arrakis.io", FirstName: "Paul", LastName: "Atreides", Role: DefaultRole}
	require.NoError(t, repo.CreateUser(ctx, second))
	assert.NotEqual(t, first.ID, second.ID)

	err := repo.CreateUser(ctx, &User{Email: "paul@arrakis.io", FirstName: "P", LastName: "A", Role: DefaultRole})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestMemory_CreateUserEmailCaseSensitive(t *testing.T) {
	assertEmailCaseSensitive(t, NewMemoryRepository())
}

func TestMemory_CreateUserDefaultsRole(t *testing.T) {
	repo := NewMemoryRepository()
	u := &User{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, DefaultRole, u.Role)
}
