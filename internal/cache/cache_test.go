package cache

import (
	"context"
	"testing"
	"time"

	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/repo/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Expires(t *testing.T) {
	c := New[int](time.Second)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", 1)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

// countingStore counts List calls that reach the underlying repo.
type countingStore struct {
	*memory.UsersRepo
	lists int
}

func (s *countingStore) List(ctx context.Context, f user.ListFilter) ([]user.User, int, error) {
	s.lists++
	return s.UsersRepo.List(ctx, f)
}

func seed(name string) user.User {
	return user.NewFromPending(user.Pending{
		FirstName: "F", LastName: "L", UserName: name, Email: name + "@example.com", PasswordHash: "h",
	})
}

func TestUsers_ListIsCachedUntilMutation(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{UsersRepo: memory.NewUsersRepo()}
	store := NewUsers(inner, time.Minute)

	_, err := store.Create(ctx, seed("ada"))
	require.NoError(t, err)

	f := user.ListFilter{Limit: 5}

	items, total, err := store.List(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)

	_, _, err = store.List(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.lists, "second list served from cache")

	_, err = store.ToggleBan(ctx, "ada")
	require.NoError(t, err)

	items, _, err = store.List(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.lists)
	assert.True(t, items[0].IsBanned)
}

func TestUsers_FailedMutationKeepsCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{UsersRepo: memory.NewUsersRepo()}
	store := NewUsers(inner, time.Minute)

	f := user.ListFilter{Limit: 5}
	_, _, err := store.List(ctx, f)
	require.NoError(t, err)

	_, err = store.Delete(ctx, "ghost")
	require.ErrorIs(t, err, user.ErrNotFound)

	_, _, err = store.List(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.lists)
}

func TestUsers_CachedSliceIsNotShared(t *testing.T) {
	ctx := context.Background()
	store := NewUsers(memory.NewUsersRepo(), time.Minute)

	_, err := store.Create(ctx, seed("ada"))
	require.NoError(t, err)

	f := user.ListFilter{Limit: 5}
	first, _, err := store.List(ctx, f)
	require.NoError(t, err)
	first[0].UserName = "mutated"

	second, _, err := store.List(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, "ada", second[0].UserName)
}

func TestCache_SetSweepsExpired(t *testing.T) {
	c := New[string](time.Second)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", "1")
	c.Set("b", "2")
	now = now.Add(2 * time.Second)
	c.Set("c", "3")

	assert.Equal(t, 1, c.Len())
	c.Clear()
	assert.Zero(t, c.Len())
}
