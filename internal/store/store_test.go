package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a Store backed by a temporary directory.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	return s, func() {
		require.NoError(t, s.Close())
	}
}

func TestKV_SetGet(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	err := s.Set(ctx, KeyCoins, []byte(`[{"id":"coin-1"}]`))
	require.NoError(t, err)

	got, err := s.Get(ctx, KeyCoins)
	require.NoError(t, err)
	assert.Equal(t, []byte(`[{"id":"coin-1"}]`), got)
}

func TestKV_GetMissing(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := s.Get(context.Background(), "numis-never-set")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestKV_Overwrite(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyLanguage, []byte("fr")))
	require.NoError(t, s.Set(ctx, KeyLanguage, []byte("en")))

	got, err := s.Get(ctx, KeyLanguage)
	require.NoError(t, err)
	assert.Equal(t, []byte("en"), got)
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	_, err := kv.Get(ctx, KeyTags)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, kv.Set(ctx, KeyTags, []byte("[]")))

	got, err := kv.Get(ctx, KeyTags)
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), got)
}
