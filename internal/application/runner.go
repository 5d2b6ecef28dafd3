package application

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
)

const (
	defaultRunnerWorkers = 2
	defaultMaxLeaseWait  = 30 * time.Second
	busyPoolPollInterval = time.Second
)

// ScanJob asks for one account of Set to visit Target and work the forts
// found there.
type ScanJob struct {
	Set    string
	Target domain.Coords
	Forts  []domain.Fort
}

type ScanReport struct {
	Job     ScanJob
	Account string
	Spins   int
	Err     error
}

type Runner struct {
	scheduler  *Scheduler
	engine     *SessionEngine
	accounts   ports.AccountRepository
	quarantine ports.QuarantineRegistry

	workers         int
	maxLeaseWait    time.Duration
	pokestopTimeout time.Duration
	clock           ports.Clock
	sleeper         ports.Sleeper
	logger          *zap.Logger
	onReport        func(ScanReport)

	mu        sync.Mutex
	discarded map[string]struct{}
}

type RunnerOption func(*Runner)

func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithMaxLeaseWait(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.maxLeaseWait = d
		}
	}
}

// WithProgressStore persists account progression after every job.
func WithProgressStore(accounts ports.AccountRepository) RunnerOption {
	return func(r *Runner) { r.accounts = accounts }
}

// WithQuarantineWatch keeps the scheduler in sync with registry while running.
func WithQuarantineWatch(registry ports.QuarantineRegistry) RunnerOption {
	return func(r *Runner) { r.quarantine = registry }
}

func WithRunnerClock(clock ports.Clock, sleeper ports.Sleeper) RunnerOption {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
		if sleeper != nil {
			r.sleeper = sleeper
		}
	}
}

func WithRunnerLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithReportHandler(fn func(ScanReport)) RunnerOption {
	return func(r *Runner) { r.onReport = fn }
}

func NewRunner(scheduler *Scheduler, engine *SessionEngine, opts ...RunnerOption) *Runner {
	r := &Runner{
		scheduler:       scheduler,
		engine:          engine,
		workers:         defaultRunnerWorkers,
		maxLeaseWait:    defaultMaxLeaseWait,
		pokestopTimeout: engine.config.PokestopTimeout,
		clock:           ports.SystemClock{},
		sleeper:         ports.SystemSleeper{},
		logger:          zap.NewNop(),
		onReport:        func(ScanReport) {},
		discarded:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("mod", "runner"))

	return r
}

// Run drains jobs with the configured number of workers. It returns when jobs
// is closed and every worker finished, or with the context's error.
func (r *Runner) Run(ctx context.Context, jobs <-chan ScanJob) error {
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	watchDone := make(chan error, 1)
	if r.quarantine != nil {
		go func() { watchDone <- r.scheduler.WatchQuarantine(watchCtx, r.quarantine) }()
	} else {
		watchDone <- nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for worker := range r.workers {
		g.Go(func() error {
			return r.work(gctx, worker, jobs)
		})
	}

	err := g.Wait()
	stopWatch()
	if watchErr := <-watchDone; watchErr != nil {
		r.logger.Error("quarantine watch stopped", zap.Error(watchErr))
	}

	return err
}

func (r *Runner) work(ctx context.Context, worker int, jobs <-chan ScanJob) error {
	logger := r.logger.With(zap.Int("worker", worker))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, ok := <-jobs:
			if !ok {
				return nil
			}
			report := r.process(ctx, job)
			if report.Err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.Warn("scan job failed",
					zap.String("set", job.Set),
					zap.Stringer("target", job.Target),
					zap.Error(report.Err),
				)
			}
			r.onReport(report)
		}
	}
}

// process leases an account for job, waiting out cooldowns as needed. An
// account that cannot log in is discarded for the rest of the run and the job
// moves on to the next account.
func (r *Runner) process(ctx context.Context, job ScanJob) ScanReport {
	report := ScanReport{Job: job}
	for {
		exclude := Excluding(r.discardedAccounts()...)
		err := r.scheduler.WithLease(ctx, job.Set, job.Target, func(ctx context.Context, account *domain.Account) error {
			report.Account = account.Username
			spins, err := r.scan(ctx, job, account)
			report.Spins = spins
			return err
		}, exclude)
		switch {
		case errors.Is(err, domain.ErrLoginAttemptsExceeded):
			r.discard(report.Account)
			report.Account, report.Spins = "", 0
			continue
		case !errors.Is(err, domain.ErrNoAccountAvailable):
			report.Err = err
			return report
		}

		wait, waitErr := r.scheduler.NextAvailableIn(job.Set, job.Target, exclude)
		if errors.Is(waitErr, domain.ErrAccountSetExhausted) {
			report.Err = fmt.Errorf("scan %s: %w", job.Set, waitErr)
			return report
		}
		if waitErr != nil || wait <= 0 {
			wait = busyPoolPollInterval
		}
		wait = min(wait, r.maxLeaseWait)
		r.logger.Debug("no account available", zap.String("set", job.Set), zap.Duration("wait", wait))
		if err := r.sleeper.Sleep(ctx, wait); err != nil {
			report.Err = err
			return report
		}
	}
}

func (r *Runner) scan(ctx context.Context, job ScanJob, account *domain.Account) (int, error) {
	session, err := r.engine.Open(ctx, account)
	if err != nil {
		return 0, err
	}
	defer session.Close()

	logger := r.logger.With(zap.String("account", account.Username), zap.String("session", session.ID()))
	if err := session.Prepare(ctx); err != nil {
		if errors.Is(err, domain.ErrLoginAttemptsExceeded) {
			logger.Warn("account could not log in, discarding it for this run")
		}
		return 0, fmt.Errorf("prepare session: %w", err)
	}

	spins, err := r.spinForts(ctx, session, job)
	CleanupAccountStats(account, r.pokestopTimeout, r.clock.Now())

	if r.accounts != nil {
		if saveErr := r.accounts.Save(ctx, *account); saveErr != nil {
			logger.Error("persist account progress", zap.Error(saveErr))
		}
	}

	if errors.Is(err, domain.ErrSessionQuarantined) {
		logger.Warn("account quarantined during scan")
		return spins, nil
	}
	return spins, err
}

func (r *Runner) spinForts(ctx context.Context, session *Session, job ScanJob) (int, error) {
	account := session.Account()
	spins := 0

	if account.Level <= 1 {
		spun, err := session.TutorialPokestopSpin(ctx, account.Level, job.Forts, job.Target)
		if err != nil {
			return spins, err
		}
		if spun {
			spins++
		}
	}

	for _, fort := range job.Forts {
		if !fort.IsPokestop() || !Spinnable(fort, job.Target, r.clock.Now()) {
			continue
		}
		if _, used := account.UsedPokestops[fort.ID]; used {
			continue
		}

		spun, err := session.SpinningTry(ctx, fort, job.Target)
		if spun {
			spins++
		}
		if err != nil {
			return spins, err
		}
	}

	return spins, nil
}

func (r *Runner) discard(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discarded[username] = struct{}{}
}

func (r *Runner) discardedAccounts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Collect(maps.Keys(r.discarded))
}
