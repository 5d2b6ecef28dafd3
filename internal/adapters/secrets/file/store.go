package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
)

const (
	dirMode      = 0o700
	passwordMode = 0o600
)

// Store keeps one password per file below root, laid out like a pass
// store: the key "pogo-accounts/trainer1" lives in root/pogo-accounts/trainer1.
// Hand-written files may end with a newline; Get drops it. An empty file
// holds no password.
type Store struct {
	root string
	mu   sync.RWMutex
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

// Put replaces the password through a temp file and rename, so readers see
// either the old password or the new one.
func (s *Store) Put(ctx context.Context, key string, password string) error {
	path, err := s.resolve(ctx, key)
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("store password %q: password is empty", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return wrapError("store", key, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return wrapError("store", key, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := tmp.Chmod(passwordMode); err != nil {
		_ = tmp.Close()
		return wrapError("store", key, err)
	}
	if _, err := tmp.WriteString(password); err != nil {
		_ = tmp.Close()
		return wrapError("store", key, err)
	}
	if err := tmp.Close(); err != nil {
		return wrapError("store", key, err)
	}

	return wrapError("store", key, os.Rename(tmpPath, path))
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	path, err := s.resolve(ctx, key)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return "", wrapError("read", key, err)
	}

	password := strings.TrimRight(string(data), "\r\n")
	if password == "" {
		return "", wrapError("read", key, os.ErrNotExist)
	}
	return password, nil
}

// Delete removes the password and any directories left empty below root.
func (s *Store) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(ctx, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		return wrapError("delete", key, err)
	}

	for dir := filepath.Dir(path); dir != s.root; dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

// resolve maps key to a path that cannot leave root.
func (s *Store) resolve(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", errors.New("password key is empty")
	}

	cleaned := filepath.Clean(trimmed)
	if filepath.IsAbs(cleaned) || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid password key %q", key)
	}

	return filepath.Join(s.root, cleaned), nil
}

// wrapError reports a missing file as domain.ErrSecretNotFound, the same
// sentinel the pass backend maps its "not in the password store" to.
func wrapError(op string, key string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("password file %s %q: %w", op, key, domain.ErrSecretNotFound)
	default:
		return fmt.Errorf("password file %s %q: %w", op, key, err)
	}
}
