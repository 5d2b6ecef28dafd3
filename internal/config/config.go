// Package config loads runtime settings. PA_* environment variables override
// ~/.pogo-accounts/config.toml, which overrides the built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bnema/pogo-accounts/internal/application"
)

const (
	envPrefix      = "PA"
	configDir      = ".pogo-accounts"
	configFileName = "config.toml"
)

type Config struct {
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Session    SessionConfig    `mapstructure:"session"`
	Proxy      ProxyConfig      `mapstructure:"proxy"`
	Remote     RemoteConfig     `mapstructure:"remote"`
	Quarantine QuarantineConfig `mapstructure:"quarantine"`
	Accounts   AccountsConfig   `mapstructure:"accounts"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Runner     RunnerConfig     `mapstructure:"runner"`
}

type SchedulerConfig struct {
	MaxSpeedKmph float64 `mapstructure:"max_speed_kmph"`
}

type SessionConfig struct {
	LoginRetries     int           `mapstructure:"login_retries"`
	LoginDelay       time.Duration `mapstructure:"login_delay"`
	LoginSettleDelay time.Duration `mapstructure:"login_settle_delay"`
	CredentialMargin time.Duration `mapstructure:"credential_margin"`
	AccountMaxSpins  int           `mapstructure:"account_max_spins"`
	PokestopTimeout  time.Duration `mapstructure:"pokestop_timeout"`
	SpinChance       float64       `mapstructure:"spin_chance"`
}

type ProxyConfig struct {
	URLs     []string `mapstructure:"urls"`
	Rotation string   `mapstructure:"rotation"` // none, round-robin, random
	Display  string   `mapstructure:"display"`  // index, full
}

type RemoteConfig struct {
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	Burst           int           `mapstructure:"burst"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type QuarantineConfig struct {
	Backend   string `mapstructure:"backend"` // memory, redis
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
	Prefix    string `mapstructure:"prefix"`
}

type AccountsConfig struct {
	Path string `mapstructure:"path"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type RunnerConfig struct {
	Workers      int           `mapstructure:"workers"`
	MaxLeaseWait time.Duration `mapstructure:"max_lease_wait"`
}

// Load reads the config file at path into v and decodes it. An empty path
// means ~/.pogo-accounts/config.toml; a missing file is not an error. The
// same v can be handed to adapters that read their own keys.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	v.SetConfigType("toml")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(homeDir, configDir, configFileName)
	}
	v.SetConfigFile(path)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	session := application.DefaultSessionConfig()

	v.SetDefault("scheduler.max_speed_kmph", application.DefaultMaxSpeedKmph)

	v.SetDefault("session.login_retries", session.LoginRetries)
	v.SetDefault("session.login_delay", session.LoginDelay)
	v.SetDefault("session.login_settle_delay", session.LoginSettleDelay)
	v.SetDefault("session.credential_margin", session.CredentialMargin)
	v.SetDefault("session.account_max_spins", session.AccountMaxSpins)
	v.SetDefault("session.pokestop_timeout", session.PokestopTimeout)
	v.SetDefault("session.spin_chance", session.SpinChance)

	v.SetDefault("proxy.urls", []string{})
	v.SetDefault("proxy.rotation", string(application.ProxyRotationNone))
	v.SetDefault("proxy.display", "index")

	v.SetDefault("remote.rate_per_second", 2.0)
	v.SetDefault("remote.burst", 1)
	v.SetDefault("remote.call_timeout", 15*time.Second)
	v.SetDefault("remote.breaker_failures", 5)
	v.SetDefault("remote.breaker_timeout", 30*time.Second)

	v.SetDefault("quarantine.backend", "memory")
	v.SetDefault("quarantine.redis_addr", "localhost:6379")
	v.SetDefault("quarantine.redis_db", 0)
	v.SetDefault("quarantine.prefix", "pogo-accounts")

	v.SetDefault("accounts.path", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("metrics.addr", "")

	v.SetDefault("runner.workers", 2)
	v.SetDefault("runner.max_lease_wait", 10*time.Minute)
}

// Validate rejects settings the rest of the program cannot act on.
func (c *Config) Validate() error {
	var errs []error

	if c.Scheduler.MaxSpeedKmph <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.max_speed_kmph must be positive, got %v", c.Scheduler.MaxSpeedKmph))
	}
	if c.Session.LoginRetries < 0 {
		errs = append(errs, fmt.Errorf("session.login_retries must not be negative, got %d", c.Session.LoginRetries))
	}
	if c.Session.SpinChance < 0 || c.Session.SpinChance > 1 {
		errs = append(errs, fmt.Errorf("session.spin_chance must be within [0,1], got %v", c.Session.SpinChance))
	}
	switch application.ProxyRotation(c.Proxy.Rotation) {
	case application.ProxyRotationNone, application.ProxyRotationRoundRobin, application.ProxyRotationRandom:
	default:
		errs = append(errs, fmt.Errorf("proxy.rotation %q is not one of none, round-robin, random", c.Proxy.Rotation))
	}
	switch c.Proxy.Display {
	case "index", "full":
	default:
		errs = append(errs, fmt.Errorf("proxy.display %q is not one of index, full", c.Proxy.Display))
	}
	switch c.Quarantine.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("quarantine.backend %q is not one of memory, redis", c.Quarantine.Backend))
	}
	if c.Runner.Workers < 1 {
		errs = append(errs, fmt.Errorf("runner.workers must be at least 1, got %d", c.Runner.Workers))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SessionSettings converts the session and proxy sections for the engine.
func (c *Config) SessionSettings() application.SessionConfig {
	return application.SessionConfig{
		LoginRetries:     c.Session.LoginRetries,
		LoginDelay:       c.Session.LoginDelay,
		LoginSettleDelay: c.Session.LoginSettleDelay,
		CredentialMargin: c.Session.CredentialMargin,
		AccountMaxSpins:  c.Session.AccountMaxSpins,
		PokestopTimeout:  c.Session.PokestopTimeout,
		SpinChance:       c.Session.SpinChance,
		ProxyRotation:    application.ProxyRotation(c.Proxy.Rotation),
	}
}
