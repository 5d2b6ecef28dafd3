package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRejectsInvalidKeys(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	tests := []struct {
		name    string
		key     string
		wantErr string
	}{
		{name: "empty", key: "", wantErr: "password key is empty"},
		{name: "whitespace", key: "   ", wantErr: "password key is empty"},
		{name: "absolute", key: "/etc/passwd", wantErr: "invalid password key"},
		{name: "traversal", key: "../escape", wantErr: "invalid password key"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := store.Put(context.Background(), tc.key, "hunter2")
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestStorePutGetRoundTripAndPermissions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	key := "pogo/trainer1"

	require.NoError(t, store.Put(context.Background(), key, "hunter2"))

	got, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	info, err := os.Stat(filepath.Join(root, key))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(secretFileMod), info.Mode().Perm())
}

func TestStoreGetDropsTrailingNewlineFromHandWrittenFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "trainer1"), []byte("hunter2\n"), 0o600))

	got, err := NewStore(root).Get(context.Background(), "trainer1")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
}

func TestStoreMissingPasswordIsNotFound(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())

	_, err := store.Get(context.Background(), "pogo/nobody")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)

	assert.ErrorIs(t, store.Delete(context.Background(), "pogo/nobody"), domain.ErrSecretNotFound)
}

func TestStoreEmptyFileHoldsNoPassword(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "trainer1"), []byte("\n"), 0o600))
	store := NewStore(root)

	_, err := store.Get(context.Background(), "trainer1")
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, store.Put(context.Background(), "trainer1", ""), "password is empty")
}

func TestStorePutReplacesAtomically(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	require.NoError(t, store.Put(context.Background(), "pogo/trainer1", "first"))
	require.NoError(t, store.Put(context.Background(), "pogo/trainer1", "second"))

	got, err := store.Get(context.Background(), "pogo/trainer1")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	entries, err := os.ReadDir(filepath.Join(root, "pogo"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "trainer1", entries[0].Name())
}

func TestStoreDeletePrunesEmptyDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	require.NoError(t, store.Put(context.Background(), "pogo/eu/trainer1", "hunter2"))
	require.NoError(t, store.Put(context.Background(), "pogo/trainer2", "hunter3"))

	require.NoError(t, store.Delete(context.Background(), "pogo/eu/trainer1"))

	_, err := os.Stat(filepath.Join(root, "pogo", "eu"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(filepath.Join(root, "pogo", "trainer2"))
	assert.NoError(t, err)
	_, err = os.Stat(root)
	assert.NoError(t, err, "root is never removed")
}
