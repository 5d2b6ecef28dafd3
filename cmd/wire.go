package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	memoryquarantine "github.com/bnema/pogo-accounts/internal/adapters/quarantine/memory"
	redisquarantine "github.com/bnema/pogo-accounts/internal/adapters/quarantine/redis"
	statusadapter "github.com/bnema/pogo-accounts/internal/adapters/render/status"
	tomlrepo "github.com/bnema/pogo-accounts/internal/adapters/repo/toml"
	chainstore "github.com/bnema/pogo-accounts/internal/adapters/secrets/chain"
	"github.com/bnema/pogo-accounts/internal/application"
	"github.com/bnema/pogo-accounts/internal/config"
	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
)

const (
	configPathEnv = "PA_CONFIG"
	dataDir       = ".pogo-accounts"
)

type app struct {
	cfg            *config.Config
	logger         *zap.Logger
	repo           *tomlrepo.Repository
	service        *application.Service
	secretStore    ports.SecretStore
	statusRenderer func([]application.Status, statusadapter.RenderOptions) (string, error)
	poolRenderer   func([]application.SetStatus, statusadapter.RenderOptions) (string, error)
	now            func() time.Time
}

func wireApp() (*app, error) {
	v := viper.New()
	cfg, err := config.Load(v, os.Getenv(configPathEnv))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	repo, err := tomlrepo.NewRepository(v)
	if err != nil {
		return nil, fmt.Errorf("wire account repository: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	secretStore, err := chainstore.NewPassFirstWithFileFallback(filepath.Join(homeDir, dataDir, "secrets"))
	if err != nil {
		return nil, fmt.Errorf("wire secret store chain: %w", err)
	}

	return &app{
		cfg:            cfg,
		logger:         logger,
		repo:           repo,
		service:        application.NewService(repo, secretStore),
		secretStore:    secretStore,
		statusRenderer: statusadapter.Render,
		poolRenderer:   statusadapter.RenderPool,
		now:            time.Now,
	}, nil
}

// openQuarantine connects the configured quarantine backend. The returned
// func releases its connection.
func (a *app) openQuarantine() (ports.QuarantineRegistry, func(), error) {
	switch a.cfg.Quarantine.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr: a.cfg.Quarantine.RedisAddr,
			DB:   a.cfg.Quarantine.RedisDB,
		})
		registry := redisquarantine.NewRegistry(rdb,
			redisquarantine.WithPrefix(a.cfg.Quarantine.Prefix),
			redisquarantine.WithLogger(a.logger),
		)
		return registry, func() { _ = rdb.Close() }, nil
	case "memory", "":
		return memoryquarantine.NewRegistry(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported quarantine backend %q", a.cfg.Quarantine.Backend)
	}
}

// loadScheduler loads the stored roster into a fresh scheduler and marks
// every identity the quarantine registry already holds.
func (a *app) loadScheduler(ctx context.Context, registry ports.QuarantineRegistry, metrics *application.Metrics) (*application.Scheduler, []*domain.Account, error) {
	scheduler := application.NewScheduler(a.cfg.Scheduler.MaxSpeedKmph,
		application.WithSchedulerLogger(a.logger),
		application.WithSchedulerMetrics(metrics),
	)

	accounts, err := a.service.LoadScheduler(ctx, scheduler)
	if err != nil {
		return nil, nil, fmt.Errorf("load account pool: %w", err)
	}

	if registry != nil {
		quarantined, err := registry.List(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("list quarantined accounts: %w", err)
		}
		for _, username := range quarantined {
			scheduler.Quarantine(username)
		}
	}

	return scheduler, accounts, nil
}
