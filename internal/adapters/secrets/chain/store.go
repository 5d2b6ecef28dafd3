package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/pogo-accounts/internal/adapters/secrets/file"
	passstore "github.com/bnema/pogo-accounts/internal/adapters/secrets/pass"
	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
)

// Store tries each backend in order. Get returns the first hit; Put writes to
// the first backend that accepts it; Delete removes the key everywhere.
type Store struct {
	backends []ports.SecretStore
}

var _ ports.SecretStore = (*Store)(nil)

var errNoBackends = errors.New("secret store chain has no backends")

func NewStore(backends ...ports.SecretStore) (*Store, error) {
	if len(backends) == 0 {
		return nil, errNoBackends
	}
	for i, backend := range backends {
		if backend == nil {
			return nil, fmt.Errorf("secret store backend %d is nil", i)
		}
	}

	return &Store{backends: backends}, nil
}

func NewPassFirstWithFileFallback(fileRoot string) (*Store, error) {
	return NewStore(passstore.NewStore(), filestore.NewStore(fileRoot))
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	var errs []error
	for _, backend := range s.backends {
		err := backend.Put(ctx, key, value)
		if err == nil {
			return nil
		}
		if isContextError(err) {
			return err
		}
		errs = append(errs, err)
	}

	return fmt.Errorf("store password %q: %w", key, errors.Join(errs...))
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var errs []error
	for _, backend := range s.backends {
		value, err := backend.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if isContextError(err) {
			return "", err
		}
		if !errors.Is(err, domain.ErrSecretNotFound) {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return "", fmt.Errorf("password %q: %w", key, domain.ErrSecretNotFound)
	}
	return "", fmt.Errorf("get password %q: %w", key, errors.Join(errs...))
}

func (s *Store) Delete(ctx context.Context, key string) error {
	var errs []error
	for _, backend := range s.backends {
		err := backend.Delete(ctx, key)
		if err == nil || errors.Is(err, domain.ErrSecretNotFound) {
			continue
		}
		if isContextError(err) {
			return err
		}
		errs = append(errs, err)
	}

	if len(errs) == len(s.backends) {
		return fmt.Errorf("delete password %q: %w", key, errors.Join(errs...))
	}
	return nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
