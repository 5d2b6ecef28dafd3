package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bnema/pogo-accounts/internal/ports"
)

const (
	DefaultPrefix = "pogo-accounts"

	resubscribeDelay = time.Second
	subscribeBackoff = 5 * time.Second
	signalOn         = "on"
)

// Registry shares quarantined usernames between processes through a Redis
// set, with a pub/sub channel announcing additions.
type Registry struct {
	rdb     redis.UniversalClient
	setKey  string
	channel string
	logger  *zap.Logger

	resubscribeDelay time.Duration
	subscribeBackoff time.Duration
}

var _ ports.QuarantineRegistry = (*Registry)(nil)

type Option func(*Registry)

func WithPrefix(prefix string) Option {
	return func(r *Registry) {
		r.setKey = prefix + ":quarantine:set"
		r.channel = prefix + ":quarantine:signal"
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRegistry(rdb redis.UniversalClient, opts ...Option) *Registry {
	r := &Registry{
		rdb:              rdb,
		logger:           zap.NewNop(),
		resubscribeDelay: resubscribeDelay,
		subscribeBackoff: subscribeBackoff,
	}
	WithPrefix(DefaultPrefix)(r)
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("mod", "quarantine"))
	return r
}

// Add stores username and announces it in one pipeline.
func (r *Registry) Add(ctx context.Context, username string) error {
	pipe := r.rdb.TxPipeline()
	pipe.SAdd(ctx, r.setKey, username)
	pipe.Publish(ctx, r.channel, formatSignal(username))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("quarantine %s: %w", username, err)
	}
	return nil
}

func (r *Registry) Contains(ctx context.Context, username string) (bool, error) {
	ok, err := r.rdb.SIsMember(ctx, r.setKey, username).Result()
	if err != nil {
		return false, fmt.Errorf("check quarantine %s: %w", username, err)
	}
	return ok, nil
}

func (r *Registry) List(ctx context.Context) ([]string, error) {
	members, err := r.rdb.SMembers(ctx, r.setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list quarantine: %w", err)
	}
	return members, nil
}

// Watch follows the signal channel, resubscribing after connection loss.
// After every (re)subscription the full set is replayed so additions made
// while disconnected are not missed. The channel closes when ctx is done.
func (r *Registry) Watch(ctx context.Context) (<-chan string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		r.listen(ctx, out)
	}()
	return out, nil
}

func (r *Registry) listen(ctx context.Context, out chan<- string) {
	for {
		pubsub := r.rdb.Subscribe(ctx, r.channel)

		stop := context.AfterFunc(ctx, func() { _ = pubsub.Close() })

		if _, err := pubsub.Receive(ctx); err != nil {
			stop()
			_ = pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			r.logger.Error("failed to subscribe", zap.String("chan", r.channel), zap.Error(err))
			if !sleep(ctx, r.subscribeBackoff) {
				return
			}
			continue
		}

		if !r.replay(ctx, out) || !r.forward(ctx, pubsub, out) {
			stop()
			_ = pubsub.Close()
			return
		}

		stop()
		_ = pubsub.Close()
		r.logger.Warn("subscription lost, resubscribing", zap.String("chan", r.channel))
		if !sleep(ctx, r.resubscribeDelay) {
			return
		}
	}
}

func (r *Registry) replay(ctx context.Context, out chan<- string) bool {
	members, err := r.List(ctx)
	if err != nil {
		r.logger.Error("sync failed on reconnect", zap.Error(err))
		return ctx.Err() == nil
	}
	for _, username := range members {
		select {
		case out <- username:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// forward relays signals until the connection drops (true) or ctx is done
// (false). PubSub.Channel would reconnect silently and skip the replay.
func (r *Registry) forward(ctx context.Context, pubsub *redis.PubSub, out chan<- string) bool {
	for {
		received, err := pubsub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			r.logger.Error("receive failed", zap.String("chan", r.channel), zap.Error(err))
			return true
		}

		msg, ok := received.(*redis.Message)
		if !ok {
			continue
		}
		username, on, err := parseSignal(msg.Payload)
		if err != nil {
			r.logger.Error("invalid signal format", zap.String("payload", msg.Payload))
			continue
		}
		if !on {
			continue
		}
		select {
		case out <- username:
		case <-ctx.Done():
			return false
		}
	}
}

func formatSignal(username string) string {
	return username + ":" + signalOn
}

// parseSignal splits "username:status". Usernames may themselves contain a
// colon, so the status is taken after the last one.
func parseSignal(payload string) (string, bool, error) {
	idx := strings.LastIndexByte(payload, ':')
	if idx <= 0 || idx == len(payload)-1 {
		return "", false, fmt.Errorf("invalid quarantine signal %q", payload)
	}
	status := payload[idx+1:]
	return payload[:idx], status == signalOn || status == "true", nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
