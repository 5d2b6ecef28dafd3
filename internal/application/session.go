package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
)

type ProxyRotation string

const (
	ProxyRotationNone       ProxyRotation = "none"
	ProxyRotationRoundRobin ProxyRotation = "round-robin"
	ProxyRotationRandom     ProxyRotation = "random"
)

type SessionConfig struct {
	LoginRetries     int
	LoginDelay       time.Duration
	LoginSettleDelay time.Duration
	// Credentials expiring within this margin are refreshed before use.
	CredentialMargin time.Duration
	AccountMaxSpins  int
	PokestopTimeout  time.Duration
	SpinChance       float64
	ProxyRotation    ProxyRotation
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		LoginRetries:     3,
		LoginDelay:       6 * time.Second,
		LoginSettleDelay: 20 * time.Second,
		CredentialMargin: 60 * time.Second,
		AccountMaxSpins:  20,
		PokestopTimeout:  5 * time.Minute,
		SpinChance:       0.5,
		ProxyRotation:    ProxyRotationNone,
	}
}

// SessionEngine opens sessions for leased accounts. It is shared by all
// workers; the sessions it opens are not.
type SessionEngine struct {
	config     SessionConfig
	factory    ports.RemoteFactory
	proxies    ports.ProxySource
	secrets    ports.SecretStore
	quarantine ports.QuarantineRegistry

	clock   ports.Clock
	pacer   pacer
	logger  *zap.Logger
	metrics *Metrics
}

type SessionOption func(*SessionEngine)

func WithProxySource(proxies ports.ProxySource) SessionOption {
	return func(e *SessionEngine) { e.proxies = proxies }
}

func WithSecretStore(secrets ports.SecretStore) SessionOption {
	return func(e *SessionEngine) { e.secrets = secrets }
}

func WithQuarantineRegistry(registry ports.QuarantineRegistry) SessionOption {
	return func(e *SessionEngine) { e.quarantine = registry }
}

func WithSessionClock(clock ports.Clock) SessionOption {
	return func(e *SessionEngine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func WithSessionSleeper(sleeper ports.Sleeper) SessionOption {
	return func(e *SessionEngine) {
		if sleeper != nil {
			e.pacer.sleeper = sleeper
		}
	}
}

func WithSessionRandom(random ports.Random) SessionOption {
	return func(e *SessionEngine) {
		if random != nil {
			e.pacer.random = random
		}
	}
}

func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(e *SessionEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithSessionMetrics(metrics *Metrics) SessionOption {
	return func(e *SessionEngine) {
		if metrics != nil {
			e.metrics = metrics
		}
	}
}

func NewSessionEngine(factory ports.RemoteFactory, config SessionConfig, opts ...SessionOption) *SessionEngine {
	e := &SessionEngine{
		config:  config,
		factory: factory,
		clock:   ports.SystemClock{},
		pacer:   pacer{sleeper: ports.SystemSleeper{}, random: ports.SystemRandom{}},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	if e.config.ProxyRotation == "" {
		e.config.ProxyRotation = ProxyRotationNone
	}
	e.logger = e.logger.With(zap.String("mod", "session"))

	return e
}

// Session binds one leased account to an API client for the duration of the
// lease. It must only be used by the lease holder.
type Session struct {
	id      string
	engine  *SessionEngine
	account *domain.Account
	api     ports.RemoteAPI
	proxy   *domain.Proxy
	state   domain.SessionState
	logger  *zap.Logger

	challengeURL string
}

// Open prepares a session for a leased account: it resolves the password
// reference, assigns a proxy and builds an API client with a device
// fingerprint derived from the identity. No remote call is made.
func (e *SessionEngine) Open(ctx context.Context, account *domain.Account) (*Session, error) {
	if account == nil {
		return nil, fmt.Errorf("open session: %w", domain.ErrAccountNotFound)
	}

	if account.Password == "" && account.PasswordRef != "" {
		if e.secrets == nil {
			return nil, fmt.Errorf("resolve password for %s: %w", account.Username, domain.ErrSecretNotFound)
		}
		password, err := e.secrets.Get(ctx, account.PasswordRef)
		if err != nil {
			return nil, fmt.Errorf("resolve password for %s: %w", account.Username, err)
		}
		account.Password = password
	}

	if e.proxies != nil && (account.ProxyURL == "" || e.config.ProxyRotation != ProxyRotationNone) {
		proxy, err := e.proxies.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("assign proxy to %s: %w", account.Username, err)
		}
		account.ProxyURL = proxy.URL
		account.ProxyDisplay = proxy.Label
	}

	var proxy *domain.Proxy
	if account.ProxyURL != "" {
		proxy = &domain.Proxy{Label: account.ProxyDisplay, URL: account.ProxyURL}
	}

	device := domain.NewDeviceInfo(account.Username + account.Password)
	id := uuid.NewString()
	state := domain.SessionUnauthenticated
	if account.CaptchaFlagged {
		state = domain.SessionQuarantined
	}

	session := &Session{
		id:      id,
		engine:  e,
		account: account,
		api:     e.factory.NewAPI(device, proxy),
		proxy:   proxy,
		state:   state,
		logger: e.logger.With(
			zap.String("session", id),
			zap.String("account", account.Username),
		),
	}
	if proxy != nil {
		session.logger.Debug("using proxy", zap.String("proxy", proxy.Label))
	}

	return session, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Account() *domain.Account {
	return s.account
}

func (s *Session) State() domain.SessionState {
	return s.state
}

func (s *Session) Quarantined() bool {
	return s.state == domain.SessionQuarantined
}

// Close drops the API client. The session cannot be used afterwards.
func (s *Session) Close() {
	s.api = nil
}

// Login authenticates unless the current credentials remain valid for longer
// than the configured margin. It makes LoginRetries+1 attempts before giving
// up with domain.ErrLoginAttemptsExceeded; the account itself stays usable.
func (s *Session) Login(ctx context.Context) error {
	if s.Quarantined() {
		return domain.ErrSessionQuarantined
	}

	config := s.engine.config
	now := s.engine.clock.Now()
	if expires := s.api.TicketExpiresAt(); !expires.IsZero() {
		if remaining := expires.Sub(now); remaining > config.CredentialMargin {
			s.logger.Debug("credentials remain valid", zap.Duration("remaining", remaining))
			if s.state == domain.SessionUnauthenticated {
				s.state = domain.SessionOnboarding
				if s.account.Onboarded {
					s.state = domain.SessionReady
				}
			}
			return nil
		}
	}

	s.state = domain.SessionAuthenticating
	creds := s.account.Credentials()
	attempts := uint(max(config.LoginRetries, 0) + 1)

	var lastErr error
	attempt := 0
	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(func(uint, error, retry.DelayContext) time.Duration {
			return config.LoginDelay
		}),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, domain.ErrAuthFailed)
		}),
	).Do(func() error {
		attempt++
		lastErr = s.api.Authenticate(ctx, creds, s.proxy)
		if lastErr != nil && errors.Is(lastErr, domain.ErrAuthFailed) {
			s.engine.metrics.LoginFailures.Inc()
			s.logger.Error("login failed",
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", config.LoginDelay),
				zap.Error(lastErr),
			)
		}
		return lastErr
	})
	if err != nil {
		s.state = domain.SessionUnauthenticated
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(lastErr, domain.ErrAuthFailed) {
			s.logger.Error("giving up on login", zap.Int("attempts", attempt))
			return fmt.Errorf("login %s: %w", s.account.Username, errors.Join(domain.ErrLoginAttemptsExceeded, lastErr))
		}
		return fmt.Errorf("login %s: %w", s.account.Username, lastErr)
	}

	if s.account.StartedAt.IsZero() {
		s.account.Reset(s.engine.clock.Now())
	}
	s.logger.Debug("login successful")
	s.state = domain.SessionOnboarding

	return s.engine.pacer.sleeper.Sleep(ctx, config.LoginSettleDelay)
}

// Prepare logs in and completes any missing onboarding steps, leaving the
// session ready for tasks. With credentials still valid on an account already
// onboarded it makes no remote calls.
func (s *Session) Prepare(ctx context.Context) error {
	if err := s.Login(ctx); err != nil {
		return err
	}
	if s.state == domain.SessionReady {
		return nil
	}

	state, err := s.TutorialState(ctx)
	if err != nil {
		return err
	}
	if _, err := s.CompleteTutorial(ctx, state); err != nil {
		return err
	}

	s.account.Onboarded = true
	s.state = domain.SessionReady
	return nil
}

// quarantine withdraws the account after a challenge. The flag is written by
// the lease holder; the registry tells every scheduler about it.
func (s *Session) quarantine(ctx context.Context, url string) {
	if s.state == domain.SessionQuarantined {
		return
	}

	s.state = domain.SessionQuarantined
	s.challengeURL = url
	s.account.CaptchaFlagged = true
	s.engine.metrics.AccountsQuarantined.Inc()
	s.logger.Warn("challenge detected, account quarantined", zap.String("challenge_url", url))

	if s.engine.quarantine == nil {
		return
	}
	if err := s.engine.quarantine.Add(ctx, s.account.Username); err != nil {
		s.logger.Error("publish quarantine", zap.Error(err))
	}
}
