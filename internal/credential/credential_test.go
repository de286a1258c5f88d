package credential

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Resolve(t *testing.T) {
	store := NewMemStore()
	require.NoError(t, store.Set(context.Background(), "Portal", FieldPassword, SecretFromString("hunter2")))

	r := NewResolver(store, nil)
	sec, err := r.Resolve(context.Background(), "Portal", FieldPassword)
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), sec.Bytes())
	assert.Equal(t, 1, store.Gets)

	sec.Clear()
}

func TestResolver_NotFound(t *testing.T) {
	r := NewResolver(NewMemStore(), nil)

	_, err := r.Resolve(context.Background(), "Portal", FieldPassword)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolver_Unavailable(t *testing.T) {
	store := NewMemStore()
	store.Fail = ErrUnavailable

	r := NewResolver(store, nil)
	_, err := r.Resolve(context.Background(), "Portal", FieldUsername)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestResolver_RejectsBadLookups(t *testing.T) {
	r := NewResolver(NewMemStore(), nil)

	_, err := r.Resolve(context.Background(), "", FieldPassword)
	require.Error(t, err)

	_, err = r.Resolve(context.Background(), "Portal", "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

// TestResolver_ErrorsNeverCarrySecrets locks in that failure paths
// mention names and fields only.
func TestResolver_ErrorsNeverCarrySecrets(t *testing.T) {
	store := NewMemStore()
	require.NoError(t, store.Set(context.Background(), "Portal", FieldPassword, SecretFromString("hunter2")))
	store.Fail = ErrUnavailable

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := NewResolver(store, logger)
	_, err := r.Resolve(context.Background(), "Portal", FieldPassword)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestMemStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	require.NoError(t, store.Set(ctx, "Portal", FieldUsername, SecretFromString("alice")))
	require.NoError(t, store.Set(ctx, "Portal", FieldPassword, SecretFromString("hunter2")))

	require.NoError(t, store.Delete(ctx, "Portal"))

	_, err := store.Get(ctx, "Portal", FieldUsername)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "Portal", FieldPassword)
	assert.ErrorIs(t, err, ErrNotFound)

	// Double delete is fine.
	require.NoError(t, store.Delete(ctx, "Portal"))
}
