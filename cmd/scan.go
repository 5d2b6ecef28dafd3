package cmd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bnema/pogo-accounts/internal/adapters/proxy/static"
	"github.com/bnema/pogo-accounts/internal/adapters/remote/mock"
	"github.com/bnema/pogo-accounts/internal/adapters/remote/reliable"
	"github.com/bnema/pogo-accounts/internal/application"
	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
)

const (
	earthRadiusKm   = 6371.0
	metricsShutdown = 5 * time.Second
)

type scanOptions struct {
	set         string
	lat, lng    float64
	jobs        int
	stepMeters  float64
	workers     int
	metricsAddr string
	noDelay     bool

	challengeRate    float64
	authFailureRate  float64
	completeTutorial bool
}

func newScanCmd(app *app) *cobra.Command {
	opts := scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Walk a straight scan path with the account pool against the in-process game server",
		Long: "scan leases accounts from a set for each point of a path heading north, " +
			"logs them in, completes onboarding and spins the pokestop found at each point. " +
			"Progress is saved back to the accounts file.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runScan(ctx, cmd, app, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.set, "set", application.DefaultSetName, "Account set to lease from")
	flags.Float64Var(&opts.lat, "lat", 40.7128, "Start latitude")
	flags.Float64Var(&opts.lng, "lng", -74.006, "Start longitude")
	flags.IntVar(&opts.jobs, "jobs", 5, "Number of path points to scan")
	flags.Float64Var(&opts.stepMeters, "step", 70, "Distance between path points in meters")
	flags.IntVar(&opts.workers, "workers", 0, "Concurrent workers (0 uses runner.workers)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (default metrics.addr)")
	flags.BoolVar(&opts.noDelay, "no-delay", false, "Skip humanized pauses and request pacing")
	flags.Float64Var(&opts.challengeRate, "challenge-rate", 0, "Probability that a task call triggers a challenge")
	flags.Float64Var(&opts.authFailureRate, "auth-failure-rate", 0, "Probability that a login is rejected")
	flags.BoolVar(&opts.completeTutorial, "skip-tutorial", false, "Start new players with onboarding already done")

	return cmd
}

func runScan(ctx context.Context, cmd *cobra.Command, app *app, opts scanOptions) error {
	cfg := app.cfg
	logger := app.logger

	registry := prometheus.NewRegistry()
	metrics := application.NewMetrics(registry)

	addr := opts.metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		stopMetrics := serveMetrics(addr, registry, logger)
		defer stopMetrics()
	}

	quarantine, closeQuarantine, err := app.openQuarantine()
	if err != nil {
		return err
	}
	defer closeQuarantine()

	scheduler, accounts, err := app.loadScheduler(ctx, quarantine, metrics)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return errors.New("no accounts configured, add one with 'pa account add'")
	}

	serverOpts := []mock.Option{
		mock.WithChallengeRate(opts.challengeRate),
		mock.WithAuthFailureRate(opts.authFailureRate),
	}
	if opts.completeTutorial {
		serverOpts = append(serverOpts, mock.WithCompletedTutorial())
	}

	remote := reliable.Settings{
		RatePerSecond:   cfg.Remote.RatePerSecond,
		Burst:           cfg.Remote.Burst,
		CallTimeout:     cfg.Remote.CallTimeout,
		BreakerFailures: cfg.Remote.BreakerFailures,
		BreakerTimeout:  cfg.Remote.BreakerTimeout,
	}
	if opts.noDelay {
		remote.RatePerSecond = math.MaxFloat64
		remote.Burst = math.MaxInt32
	}
	factory := reliable.NewFactory(mock.NewServer(serverOpts...), remote,
		reliable.WithBreakerGauge(metrics.BreakerState),
		reliable.WithLogger(logger),
	)

	sessionOpts := []application.SessionOption{
		application.WithSecretStore(app.secretStore),
		application.WithQuarantineRegistry(quarantine),
		application.WithSessionLogger(logger),
		application.WithSessionMetrics(metrics),
	}
	if len(cfg.Proxy.URLs) > 0 {
		order := static.OrderRoundRobin
		if cfg.Proxy.Rotation == string(application.ProxyRotationRandom) {
			order = static.OrderRandom
		}
		source, err := static.NewSource(cfg.Proxy.URLs, static.Display(cfg.Proxy.Display), static.WithOrder(order))
		if err != nil {
			return fmt.Errorf("wire proxy source: %w", err)
		}
		sessionOpts = append(sessionOpts, application.WithProxySource(source))
	}
	if opts.noDelay {
		sessionOpts = append(sessionOpts, application.WithSessionSleeper(noSleep{}))
	}
	engine := application.NewSessionEngine(factory, cfg.SessionSettings(), sessionOpts...)

	workers := opts.workers
	if workers <= 0 {
		workers = cfg.Runner.Workers
	}

	var outMu sync.Mutex
	var failed int
	runner := application.NewRunner(scheduler, engine,
		application.WithWorkers(workers),
		application.WithMaxLeaseWait(cfg.Runner.MaxLeaseWait),
		application.WithProgressStore(app.repo),
		application.WithQuarantineWatch(quarantine),
		application.WithRunnerLogger(logger),
		application.WithReportHandler(func(report application.ScanReport) {
			outMu.Lock()
			defer outMu.Unlock()
			writeScanReport(cmd, report)
			if report.Err != nil {
				failed++
			}
		}),
	)

	jobs := make(chan application.ScanJob)
	go func() {
		defer close(jobs)
		for _, job := range scanPath(opts.set, domain.Coords{Lat: opts.lat, Lng: opts.lng}, opts.jobs, opts.stepMeters/1000) {
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := runner.Run(ctx, jobs); err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d points (%d failed)\n", opts.jobs, failed)
	return nil
}

// scanPath lays n points due north of start, each holding one pokestop.
func scanPath(set string, start domain.Coords, n int, stepKm float64) []application.ScanJob {
	jobs := make([]application.ScanJob, 0, max(n, 0))
	for i := range max(n, 0) {
		target := domain.Coords{
			Lat: start.Lat + float64(i)*stepKm/(earthRadiusKm*math.Pi/180),
			Lng: start.Lng,
		}
		jobs = append(jobs, application.ScanJob{
			Set:    set,
			Target: target,
			Forts: []domain.Fort{{
				ID:     fmt.Sprintf("stop-%d", i),
				Type:   domain.FortTypePokestop,
				Coords: target,
			}},
		})
	}
	return jobs
}

func writeScanReport(cmd *cobra.Command, report application.ScanReport) {
	account := report.Account
	if account == "" {
		account = "-"
	}
	if report.Err != nil {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\terror: %v\n", report.Job.Target, sanitizeForTerminal(account), report.Err)
		return
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tspins: %d\n", report.Job.Target, sanitizeForTerminal(account), report.Spins)
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdown)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

var _ ports.Sleeper = noSleep{}
