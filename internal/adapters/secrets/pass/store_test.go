package pass

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scripted(t *testing.T, wantArgs []string, wantInput string, stdout, stderr string, err error) *Store {
	t.Helper()

	return &Store{
		run: func(_ context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, wantArgs, args)
			assert.Equal(t, wantInput, input)
			return stdout, stderr, err
		},
	}
}

func TestStorePutUsesPassInsert(t *testing.T) {
	t.Parallel()

	store := scripted(t, []string{"insert", "-m", "-f", "pogo/trainer1"}, "hunter2\n", "", "", nil)

	require.NoError(t, store.Put(context.Background(), "pogo/trainer1", "hunter2"))
}

func TestStoreGetReturnsFirstLineOnly(t *testing.T) {
	t.Parallel()

	store := scripted(t, []string{"show", "pogo/trainer1"}, "", "hunter2\r\nlogin: trainer1\n", "", nil)

	value, err := store.Get(context.Background(), "pogo/trainer1")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", value)
}

func TestStoreGetMissingEntryIsNotFound(t *testing.T) {
	t.Parallel()

	store := scripted(t, []string{"show", "pogo/nobody"}, "",
		"", "Error: pogo/nobody is not in the password store.", errors.New("exit status 1"))

	_, err := store.Get(context.Background(), "pogo/nobody")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreDeleteIgnoresMissingEntry(t *testing.T) {
	t.Parallel()

	store := scripted(t, []string{"rm", "-f", "pogo/nobody"}, "",
		"", "Error: pogo/nobody is not in the password store.", errors.New("exit status 1"))

	assert.NoError(t, store.Delete(context.Background(), "pogo/nobody"))
}

func TestStoreErrorIncludesStderr(t *testing.T) {
	t.Parallel()

	store := scripted(t, []string{"show", "pogo/trainer1"}, "",
		"", "gpg: decryption failed: No secret key", errors.New("exit status 2"))

	_, err := store.Get(context.Background(), "pogo/trainer1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, err, "decryption failed")
}

func TestStoreCanceledContextSkipsCommand(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(context.Context, string, ...string) (string, string, error) {
			t.Fatal("pass must not run after cancellation")
			return "", "", nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, "pogo/trainer1")
	require.ErrorIs(t, err, context.Canceled)
}
