package permcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, store *fakeStore) *Service {
	t.Helper()
	svc, err := New(Config{Store: store, Directory: store})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestNewRequiresStoreAndDirectory(t *testing.T) {
	store := newFakeStore()

	_, err := New(Config{Directory: store})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = New(Config{Store: store})
	assert.ErrorIs(t, err, ErrInvalidInput)

	svc, err := New(Config{Store: store, Directory: store})
	require.NoError(t, err)
	svc.Close()
}

func TestServiceCheck(t *testing.T) {
	store := newFakeStore()
	store.permsByUser[42] = []string{"users.*"}
	svc := newTestService(t, store)

	res, err := svc.Check(context.Background(), 42, "users.delete")
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.Equal(t, MatchWildcard, res.MatchType)
	assert.Equal(t, "users.*", res.MatchedPermission)
}

func TestServiceHasAny(t *testing.T) {
	store := newFakeStore()
	store.permsByUser[42] = []string{"users.read", "users.*"}
	svc := newTestService(t, store)

	granted, err := svc.HasAny(context.Background(), 42, []string{"users.delete", "users.archive"})
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestServiceHasAll(t *testing.T) {
	store := newFakeStore()
	store.permsByUser[1] = []string{"a.read"}
	svc := newTestService(t, store)

	res, err := svc.HasAll(context.Background(), 1, []string{"a.read", "b.read"})
	require.NoError(t, err)
	assert.False(t, res.Granted)
	assert.Equal(t, []string{"b.read"}, res.MissingPermissions)
}

func TestRequirePermission(t *testing.T) {
	store := newFakeStore()
	store.permsByUser[1] = []string{"users.read"}
	svc := newTestService(t, store)
	ctx := context.Background()

	assert.NoError(t, svc.RequirePermission(ctx, 1, "users.read"))

	err := svc.RequirePermission(ctx, 1, "users.delete")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestRequirePermissionStoreFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.setErr(errors.New("down"))
	svc := newTestService(t, store)

	err := svc.RequirePermission(context.Background(), 1, "users.read")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
}

func TestScopeForUser(t *testing.T) {
	store := newFakeStore()
	store.roleByUser[1] = RoleAdmin
	store.roleByUser[3] = RoleManager
	store.teamsByUser[3] = []uint{5, 7}
	svc := newTestService(t, store)
	ctx := context.Background()

	t.Run("admin is unrestricted", func(t *testing.T) {
		scope, err := svc.ScopeForUser(ctx, 1, "users", "")
		require.NoError(t, err)
		assert.Equal(t, PredAll, scope.Predicate.Op)
	})

	t.Run("manager scope carries team memberships", func(t *testing.T) {
		scope, err := svc.ScopeForUser(ctx, 3, "users", "")
		require.NoError(t, err)
		require.Equal(t, PredAnyOf, scope.Predicate.Op)
		assert.Equal(t, []uint{5, 7}, scope.Predicate.Operands[0].TeamIDs)
	})

	t.Run("unknown user defaults to own rows", func(t *testing.T) {
		scope, err := svc.ScopeForUser(ctx, 9, "users", "")
		require.NoError(t, err)
		assert.Equal(t, PredEquals, scope.Predicate.Op)
		assert.Equal(t, uint(9), scope.Predicate.Value)
	})

	t.Run("rejects missing identifiers", func(t *testing.T) {
		_, err := svc.ScopeForUser(ctx, 0, "users", "")
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = svc.ScopeForUser(ctx, 1, "", "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestScopeForUserStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.setErr(errors.New("down"))
	svc := newTestService(t, store)

	_, err := svc.ScopeForUser(context.Background(), 1, "users", "")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestServiceInvalidation(t *testing.T) {
	store := newFakeStore()
	store.permsByUser[1] = []string{"users.read"}
	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.Check(ctx, 1, "users.read")
	require.NoError(t, err)

	svc.InvalidateUser(1)
	_, err = svc.Check(ctx, 1, "users.read")
	require.NoError(t, err)

	fetches, _ := store.counts()
	assert.Equal(t, 2, fetches)

	svc.InvalidateAll()
	stats := svc.CacheStats()
	assert.Equal(t, 0, stats["user_entries"])
}

func TestServiceDefaults(t *testing.T) {
	store := newFakeStore()
	svc, err := New(Config{
		Store:         store,
		Directory:     store,
		UserTTL:       time.Minute,
		HierarchyTTL:  time.Minute,
		SweepInterval: time.Minute,
	})
	require.NoError(t, err)
	defer svc.Close()

	stats := svc.CacheStats()
	assert.Equal(t, 60.0, stats["user_ttl_seconds"])
	assert.Equal(t, 60.0, stats["hierarchy_ttl_seconds"])
}
