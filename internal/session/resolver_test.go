package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T) (*Resolver, *MemoryStore, *memory.Store) {
	t.Helper()
	db := memory.NewStore()
	repos := memory.NewSet(db)
	store := NewMemoryStore()
	return NewResolver(store, db, repos.Users), store, db
}

func TestResolve_EmptyTokenIsAnonymous(t *testing.T) {
	r, _, _ := newResolver(t)
	id, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, id.IsAuthenticated())
	assert.False(t, id.IsStaff)
}

func TestResolve_UnknownTokenIsAuthenticationRequired(t *testing.T) {
	r, _, _ := newResolver(t)
	_, err := r.Resolve(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.CodeAuthenticationRequired))
}

func TestResolve_StoreFailureIsDependency(t *testing.T) {
	r, store, _ := newResolver(t)
	store.Err = errors.New("connection refused")
	_, err := r.Resolve(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.CodeDependencyFailure))
}

func TestResolve_KnownUser(t *testing.T) {
	r, store, db := newResolver(t)
	u := db.SeedUser("mod", "x", true)
	require.NoError(t, store.Set(context.Background(), "tok", []byte("mod"), time.Hour))

	id, err := r.Resolve(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)
	assert.Equal(t, "mod", id.Username)
	assert.True(t, id.IsStaff)
}

func TestResolve_QuotedValue(t *testing.T) {
	r, store, db := newResolver(t)
	db.SeedUser("alice", "x", false)
	require.NoError(t, store.Set(context.Background(), "tok", []byte("'alice'"), time.Hour))

	id, err := r.Resolve(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
	assert.False(t, id.IsStaff)
}

func TestResolve_UnknownUserIsAnonymous(t *testing.T) {
	r, store, _ := newResolver(t)
	require.NoError(t, store.Set(context.Background(), "tok", []byte("ghost"), time.Hour))

	id, err := r.Resolve(context.Background(), "tok")
	require.NoError(t, err)
	assert.False(t, id.IsAuthenticated())
}

func TestStripQuotes(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"alice", "alice"},
		{"'alice'", "alice"},
		{"''alice''", "'alice'"},
		{"'", "'"},
		{"''", ""},
		{"'alice", "'alice"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, StripQuotes(tt.in))
		})
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "tok", []byte("bob"), time.Minute))
	_, found, err := s.Get(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, found)

	now = now.Add(2 * time.Minute)
	_, found, err = s.Get(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, found)
}
