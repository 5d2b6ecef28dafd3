package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
)

const DefaultMaxSpeedKmph = 35.0

// Scheduler leases accounts out of named sets. An account is eligible when it
// is not leased, not quarantined and has been idle long enough to travel from
// its last scan location to the new target at the configured speed.
//
// The lease table (InUse, LastScannedAt, LastCoords and the quarantine set) is
// only touched under mu. Everything else on a leased account belongs to the
// lease holder until Release.
type Scheduler struct {
	mu           sync.Mutex
	maxSpeedKmph float64
	sets         map[string]*accountSet
	order        []string
	owners       map[domain.AccountID]string
	quarantined  map[string]struct{}

	clock   ports.Clock
	logger  *zap.Logger
	metrics *Metrics
}

type accountSet struct {
	name         string
	maxSpeedKmph float64
	accounts     []*domain.Account
}

type SchedulerOption func(*Scheduler)

func WithSchedulerClock(clock ports.Clock) SchedulerOption {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithSchedulerLogger(logger *zap.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSchedulerMetrics(metrics *Metrics) SchedulerOption {
	return func(s *Scheduler) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

type SetOption func(*accountSet)

// LeaseOption narrows the candidates of a single Acquire or NextAvailableIn.
type LeaseOption func(*leaseFilter)

type leaseFilter struct {
	excluded map[string]struct{}
}

// Excluding skips the named accounts, e.g. ones discarded for the current run.
func Excluding(usernames ...string) LeaseOption {
	return func(f *leaseFilter) {
		for _, username := range usernames {
			f.excluded[username] = struct{}{}
		}
	}
}

func newLeaseFilter(opts []LeaseOption) leaseFilter {
	f := leaseFilter{excluded: make(map[string]struct{})}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

func (f leaseFilter) skips(account *domain.Account) bool {
	_, ok := f.excluded[account.Username]
	return ok
}

// WithSetMaxSpeed overrides the scheduler-wide speed ceiling for one set.
func WithSetMaxSpeed(kmph float64) SetOption {
	return func(set *accountSet) {
		if kmph > 0 {
			set.maxSpeedKmph = kmph
		}
	}
}

func NewScheduler(maxSpeedKmph float64, opts ...SchedulerOption) *Scheduler {
	if maxSpeedKmph <= 0 {
		maxSpeedKmph = DefaultMaxSpeedKmph
	}

	s := &Scheduler{
		maxSpeedKmph: maxSpeedKmph,
		sets:         make(map[string]*accountSet),
		owners:       make(map[domain.AccountID]string),
		quarantined:  make(map[string]struct{}),
		clock:        ports.SystemClock{},
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	s.logger = s.logger.With(zap.String("mod", "scheduler"))

	return s
}

// CreateSet registers a set. Member order is the scan order used by Acquire.
func (s *Scheduler) CreateSet(name string, accounts []*domain.Account, opts ...SetOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sets[name]; ok {
		return fmt.Errorf("create set %s: %w", name, domain.ErrAccountSetExists)
	}

	set := &accountSet{name: name, maxSpeedKmph: s.maxSpeedKmph}
	for _, opt := range opts {
		opt(set)
	}

	seen := make(map[domain.AccountID]struct{}, len(accounts))
	for _, account := range accounts {
		if account == nil {
			continue
		}
		id := account.ID()
		if owner, ok := s.owners[id]; ok {
			return fmt.Errorf("create set %s: %w: %s is in %s", name, domain.ErrAccountInOtherSet, id, owner)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		set.accounts = append(set.accounts, account)
	}

	for id := range seen {
		s.owners[id] = name
	}
	s.sets[name] = set
	s.order = append(s.order, name)

	return nil
}

// Acquire leases the first eligible account of the set and stamps it with
// the target location. It never blocks; domain.ErrNoAccountAvailable means
// the caller should wait (see NextAvailableIn) and ask again.
func (s *Scheduler) Acquire(setName string, target domain.Coords, opts ...LeaseOption) (*domain.Account, error) {
	filter := newLeaseFilter(opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[setName]
	if !ok {
		return nil, fmt.Errorf("acquire from %s: %w", setName, domain.ErrAccountSetNotFound)
	}

	now := s.clock.Now()
	for _, account := range set.accounts {
		if filter.skips(account) || !s.leasableLocked(account) {
			continue
		}
		if s.cooldownLocked(set, account, target, now) > 0 {
			continue
		}

		account.InUse = true
		account.LastScannedAt = now
		account.LastCoords = target
		s.metrics.Leases.WithLabelValues(setName, "acquired").Inc()

		return account, nil
	}

	s.metrics.Leases.WithLabelValues(setName, "unavailable").Inc()
	return nil, domain.ErrNoAccountAvailable
}

// NextAvailableIn reports how long until the first idle, non-quarantined
// account of the set may scan target. Zero means one is eligible now. When
// every candidate is leased it returns domain.ErrNoAccountAvailable; when no
// candidate is left that could ever come back it returns
// domain.ErrAccountSetExhausted.
func (s *Scheduler) NextAvailableIn(setName string, target domain.Coords, opts ...LeaseOption) (time.Duration, error) {
	filter := newLeaseFilter(opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[setName]
	if !ok {
		return 0, fmt.Errorf("next available in %s: %w", setName, domain.ErrAccountSetNotFound)
	}

	now := s.clock.Now()
	best := time.Duration(-1)
	leased := 0
	for _, account := range set.accounts {
		if filter.skips(account) {
			continue
		}
		if !s.leasableLocked(account) {
			if account.InUse && !s.quarantinedLocked(account) {
				leased++
			}
			continue
		}
		wait := s.cooldownLocked(set, account, target, now)
		if best < 0 || wait < best {
			best = wait
		}
	}

	switch {
	case best >= 0:
		return best, nil
	case leased > 0:
		return 0, domain.ErrNoAccountAvailable
	default:
		return 0, fmt.Errorf("next available in %s: %w", setName, domain.ErrAccountSetExhausted)
	}
}

// Release returns a leased account to its set. Releasing an account that is
// not leased is a caller bug; it is logged and otherwise ignored.
func (s *Scheduler) Release(account *domain.Account) {
	if account == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !account.InUse {
		s.logger.Warn("release protocol violation",
			zap.String("account", account.Username),
			zap.Error(domain.ErrAccountNotLeased),
		)
		return
	}

	account.InUse = false
}

// Quarantine permanently withdraws an account from scheduling. Safe to call
// while the account is leased; the current holder keeps it until Release.
func (s *Scheduler) Quarantine(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quarantined[username]; ok {
		return
	}
	s.quarantined[username] = struct{}{}
	s.logger.Info("account quarantined", zap.String("account", username))
}

// WithLease runs fn with an account leased from setName and releases it on
// every exit path, panics included.
func (s *Scheduler) WithLease(ctx context.Context, setName string, target domain.Coords, fn func(context.Context, *domain.Account) error, opts ...LeaseOption) error {
	account, err := s.Acquire(setName, target, opts...)
	if err != nil {
		return err
	}
	defer s.Release(account)

	return fn(ctx, account)
}

// WatchQuarantine loads the registry's current members and then applies
// quarantine notices until ctx is done or the registry closes the stream.
func (s *Scheduler) WatchQuarantine(ctx context.Context, registry ports.QuarantineRegistry) error {
	members, err := registry.List(ctx)
	if err != nil {
		return fmt.Errorf("list quarantined accounts: %w", err)
	}
	for _, username := range members {
		s.Quarantine(username)
	}

	notices, err := registry.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch quarantine: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case username, ok := <-notices:
			if !ok {
				return nil
			}
			s.Quarantine(username)
		}
	}
}

type AccountStatus struct {
	Username      string
	InUse         bool
	Quarantined   bool
	LastScannedAt time.Time
	LastCoords    domain.Coords
}

type SetStatus struct {
	Name         string
	MaxSpeedKmph float64
	Accounts     []AccountStatus
}

// Snapshot copies the lease table in set creation order.
func (s *Scheduler) Snapshot() []SetStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]SetStatus, 0, len(s.order))
	for _, name := range s.order {
		set := s.sets[name]
		status := SetStatus{Name: set.name, MaxSpeedKmph: set.maxSpeedKmph}
		for _, account := range set.accounts {
			status.Accounts = append(status.Accounts, AccountStatus{
				Username:      account.Username,
				InUse:         account.InUse,
				Quarantined:   s.quarantinedLocked(account),
				LastScannedAt: account.LastScannedAt,
				LastCoords:    account.LastCoords,
			})
		}
		statuses = append(statuses, status)
	}

	return statuses
}

// leasableLocked checks InUse first: CaptchaFlagged is written by the lease
// holder and may only be read once the account is back in the pool.
func (s *Scheduler) leasableLocked(account *domain.Account) bool {
	if account.InUse {
		return false
	}
	return !s.quarantinedLocked(account)
}

func (s *Scheduler) quarantinedLocked(account *domain.Account) bool {
	if _, ok := s.quarantined[account.Username]; ok {
		return true
	}
	return !account.InUse && account.CaptchaFlagged
}

func (s *Scheduler) cooldownLocked(set *accountSet, account *domain.Account, target domain.Coords, now time.Time) time.Duration {
	if !account.HasScanned() {
		return 0
	}

	distanceKm := domain.EquirectDistance(account.LastCoords, target)
	cooldown := time.Duration(distanceKm / set.maxSpeedKmph * float64(time.Hour))
	remaining := cooldown - now.Sub(account.LastScannedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}
