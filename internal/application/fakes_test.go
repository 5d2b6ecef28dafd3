package application

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSleeper returns immediately and remembers every pause.
type recordingSleeper struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.pauses = append(s.pauses, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Pauses() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.pauses...)
}

// fixedRandom always draws the same value, clamped to the requested range.
type fixedRandom struct {
	intN    int
	float64 float64
}

func (r fixedRandom) IntN(n int) int {
	return min(r.intN, n-1)
}

func (r fixedRandom) Float64() float64 {
	return r.float64
}

// scriptedRemote answers calls through respond and records every request.
type scriptedRemote struct {
	mu        sync.Mutex
	clock     ports.Clock
	authErrs  []error
	rejected  map[string]bool
	authCalls int
	expiresAt time.Time
	requests  []*ports.Request
	respond   func(req *ports.Request) (ports.Response, error)
}

func (r *scriptedRemote) Authenticate(_ context.Context, creds domain.Credentials, _ *domain.Proxy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.authCalls++
	if r.rejected[creds.Username] {
		return domain.ErrAuthFailed
	}
	if len(r.authErrs) > 0 {
		err := r.authErrs[0]
		r.authErrs = r.authErrs[1:]
		if err != nil {
			return err
		}
	}
	r.expiresAt = r.clock.Now().Add(30 * time.Minute)
	return nil
}

func (r *scriptedRemote) TicketExpiresAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expiresAt
}

func (r *scriptedRemote) Call(_ context.Context, req *ports.Request) (ports.Response, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	respond := r.respond
	r.mu.Unlock()

	if respond == nil {
		return successResponse(req), nil
	}
	return respond(req)
}

// primaryMethods lists the first method of every recorded request.
func (r *scriptedRemote) primaryMethods() []ports.Method {
	r.mu.Lock()
	defer r.mu.Unlock()

	methods := make([]ports.Method, 0, len(r.requests))
	for _, req := range r.requests {
		if calls := req.Calls(); len(calls) > 0 {
			methods = append(methods, calls[0].Method)
		}
	}
	return methods
}

func (r *scriptedRemote) callsOf(method ports.Method) []ports.Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	var calls []ports.Call
	for _, req := range r.requests {
		for _, call := range req.Calls() {
			if call.Method == method {
				calls = append(calls, call)
			}
		}
	}
	return calls
}

func successResponse(req *ports.Request) ports.Response {
	resp := ports.Response{
		ports.MethodCheckChallenge: ports.ChallengePayload{ChallengeURL: " "},
	}
	for _, method := range req.Methods() {
		switch method {
		case ports.MethodFortSearch, ports.MethodRecycleInventoryItem,
			ports.MethodUseItemEggIncubator, ports.MethodEncounter:
			resp[method] = ports.ResultPayload{Code: 1}
		}
	}
	return resp
}

type remoteFactory struct {
	remote *scriptedRemote
}

func (f remoteFactory) NewAPI(domain.DeviceInfo, *domain.Proxy) ports.RemoteAPI {
	return f.remote
}

type memoryRegistry struct {
	mu      sync.Mutex
	members []string
}

func (r *memoryRegistry) Add(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = append(r.members, username)
	return nil
}

func (r *memoryRegistry) Contains(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, member := range r.members {
		if member == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRegistry) List(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.members...), nil
}

func (r *memoryRegistry) Watch(ctx context.Context) (<-chan string, error) {
	ch := make(chan string)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

type testEnv struct {
	clock    *fakeClock
	sleeper  *recordingSleeper
	remote   *scriptedRemote
	registry *memoryRegistry
	engine   *SessionEngine
}

func newTestEnv(config SessionConfig, random ports.Random, opts ...SessionOption) *testEnv {
	clock := newFakeClock()
	env := &testEnv{
		clock:    clock,
		sleeper:  &recordingSleeper{},
		remote:   &scriptedRemote{clock: clock},
		registry: &memoryRegistry{},
	}
	opts = append([]SessionOption{
		WithSessionClock(clock),
		WithSessionSleeper(env.sleeper),
		WithSessionRandom(random),
		WithQuarantineRegistry(env.registry),
	}, opts...)
	env.engine = NewSessionEngine(remoteFactory{remote: env.remote}, config, opts...)
	return env
}

func testSessionConfig() SessionConfig {
	config := DefaultSessionConfig()
	config.LoginDelay = time.Millisecond
	return config
}

func firstMethod(req *ports.Request) ports.Method {
	if methods := req.Methods(); len(methods) > 0 {
		return methods[0]
	}
	return ""
}
