package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bnema/pogo-accounts/internal/ports"
)

const watchBuffer = 16

// Registry is a process-local quarantine registry. Watchers receive every
// username added after they subscribed.
type Registry struct {
	mu          sync.Mutex
	members     map[string]struct{}
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	ctx context.Context
	ch  chan string
}

var _ ports.QuarantineRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		members:     make(map[string]struct{}),
		subscribers: make(map[*subscriber]struct{}),
	}
}

// Add records username. Adding a member twice notifies watchers once.
func (r *Registry) Add(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[username]; ok {
		return nil
	}
	r.members[username] = struct{}{}

	for sub := range r.subscribers {
		select {
		case sub.ch <- username:
		case <-sub.ctx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func (r *Registry) Contains(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.members[username]
	return ok, nil
}

func (r *Registry) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	members := make([]string, 0, len(r.members))
	for username := range r.members {
		members = append(members, username)
	}
	sort.Strings(members)
	return members, nil
}

// Watch subscribes until ctx is done, at which point the channel is closed.
func (r *Registry) Watch(ctx context.Context) (<-chan string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &subscriber{ctx: ctx, ch: make(chan string, watchBuffer)}

	r.mu.Lock()
	r.subscribers[sub] = struct{}{}
	r.mu.Unlock()

	go func() {
		<-ctx.Done()

		r.mu.Lock()
		delete(r.subscribers, sub)
		r.mu.Unlock()
		close(sub.ch)
	}()

	return sub.ch, nil
}
