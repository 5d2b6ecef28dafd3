// Package reliable decorates a remote factory so every API it hands out is
// paced by a token bucket and guarded by a circuit breaker.
package reliable

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
)

var ErrBreakerOpen = errors.New("remote circuit breaker is open")

type Settings struct {
	RatePerSecond   float64
	Burst           int
	CallTimeout     time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		RatePerSecond:   2,
		Burst:           1,
		CallTimeout:     15 * time.Second,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

type Factory struct {
	next     ports.RemoteFactory
	settings Settings
	gauge    *prometheus.GaugeVec
	logger   *zap.Logger
}

var _ ports.RemoteFactory = (*Factory)(nil)

type Option func(*Factory)

// WithBreakerGauge reports each client's breaker state (0 closed, 1 half
// open, 2 open) labelled by account.
func WithBreakerGauge(gauge *prometheus.GaugeVec) Option {
	return func(f *Factory) { f.gauge = gauge }
}

func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func NewFactory(next ports.RemoteFactory, settings Settings, opts ...Option) *Factory {
	defaults := DefaultSettings()
	if settings.RatePerSecond <= 0 {
		settings.RatePerSecond = defaults.RatePerSecond
	}
	if settings.Burst <= 0 {
		settings.Burst = defaults.Burst
	}
	if settings.BreakerFailures == 0 {
		settings.BreakerFailures = defaults.BreakerFailures
	}
	if settings.BreakerTimeout <= 0 {
		settings.BreakerTimeout = defaults.BreakerTimeout
	}

	f := &Factory{next: next, settings: settings, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(zap.String("mod", "remote"))
	return f
}

func (f *Factory) NewAPI(device domain.DeviceInfo, proxy *domain.Proxy) ports.RemoteAPI {
	api := &API{
		next:     f.next.NewAPI(device, proxy),
		limiter:  rate.NewLimiter(rate.Limit(f.settings.RatePerSecond), f.settings.Burst),
		timeout:  f.settings.CallTimeout,
		gauge:    f.gauge,
		logger:   f.logger,
		identity: device.DeviceID,
	}
	api.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "remote-" + device.DeviceID,
		MaxRequests: 1,
		Timeout:     f.settings.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= f.settings.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: api.onStateChange,
	})
	return api
}

// API paces and guards one client. Authentication is paced but never counts
// towards the breaker, since a rejected login is not a transport fault.
type API struct {
	next    ports.RemoteAPI
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	gauge   *prometheus.GaugeVec
	logger  *zap.Logger

	mu       sync.Mutex
	identity string
}

var _ ports.RemoteAPI = (*API)(nil)

func (a *API) Authenticate(ctx context.Context, creds domain.Credentials, proxy *domain.Proxy) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}

	a.mu.Lock()
	a.identity = creds.Username
	a.mu.Unlock()

	return a.next.Authenticate(ctx, creds, proxy)
}

func (a *API) TicketExpiresAt() time.Time {
	return a.next.TicketExpiresAt()
}

func (a *API) Call(ctx context.Context, req *ports.Request) (ports.Response, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	result, err := a.breaker.Execute(func() (interface{}, error) {
		callCtx := ctx
		if a.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, a.timeout)
			defer cancel()
		}
		return a.next.Call(callCtx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrBreakerOpen, err)
		}
		return nil, err
	}

	resp, _ := result.(ports.Response)
	return resp, nil
}

func (a *API) onStateChange(_ string, from, to gobreaker.State) {
	a.mu.Lock()
	identity := a.identity
	a.mu.Unlock()

	a.logger.Warn("circuit breaker state changed",
		zap.String("account", identity),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	if a.gauge != nil {
		a.gauge.WithLabelValues(identity).Set(float64(to))
	}
}
