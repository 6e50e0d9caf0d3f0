package recon

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G381N/BugBesty/internal/store"
)

func newIdentityStore(t *testing.T) *store.SQLite {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestResolveSubjectWinsFirst(t *testing.T) {
	st := newIdentityStore(t)
	r := NewIdentityResolver(st, false, nil)

	id, err := r.Resolve(context.Background(), TokenInfo{Subject: "user-1", Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)
}

func TestResolveFallsBackToEmailLookup(t *testing.T) {
	st := newIdentityStore(t)
	u := &store.User{ID: uuid.NewString(), Email: "a@example.com"}
	require.NoError(t, st.CreateUser(context.Background(), u))

	r := NewIdentityResolver(st, false, nil)
	id, err := r.Resolve(context.Background(), TokenInfo{Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
}

func TestResolveNoMatchWithoutCreate(t *testing.T) {
	st := newIdentityStore(t)
	r := NewIdentityResolver(st, false, nil)

	_, err := r.Resolve(context.Background(), TokenInfo{Email: "nobody@example.com"})
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestResolveCreateOnMiss(t *testing.T) {
	st := newIdentityStore(t)
	ctx := context.Background()
	r := NewIdentityResolver(st, true, nil)

	id, err := r.Resolve(ctx, TokenInfo{Email: "new@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	u, err := st.GetUserByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	// a second resolution reuses the stored user instead of creating again
	again, err := r.Resolve(ctx, TokenInfo{Email: "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestResolveEmptyTokenFails(t *testing.T) {
	st := newIdentityStore(t)
	r := NewIdentityResolver(st, true, nil)

	_, err := r.Resolve(context.Background(), TokenInfo{})
	assert.ErrorIs(t, err, ErrNoIdentity)
}
