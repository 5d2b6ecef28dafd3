package ports

import "context"

// QuarantineRegistry records identities that hit a challenge so every
// scheduler sharing the registry stops leasing them.
type QuarantineRegistry interface {
	Add(ctx context.Context, username string) error
	Contains(ctx context.Context, username string) (bool, error)
	List(ctx context.Context) ([]string, error)
	// Watch delivers usernames quarantined by any participant until ctx is done.
	Watch(ctx context.Context) (<-chan string, error)
}
