package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/llmhub/llmhub/internal/config"
	"github.com/llmhub/llmhub/internal/discovery"
	"github.com/llmhub/llmhub/internal/httpserver"
	"github.com/llmhub/llmhub/internal/httpserver/deps"
	"github.com/llmhub/llmhub/internal/logger"
	"github.com/llmhub/llmhub/internal/maintenance"
	"github.com/llmhub/llmhub/internal/metrics"
	"github.com/llmhub/llmhub/internal/recovery"
	"github.com/llmhub/llmhub/internal/redis"
	"github.com/llmhub/llmhub/internal/registry"
	"github.com/llmhub/llmhub/internal/resource"
	redisstore "github.com/llmhub/llmhub/internal/store/redis"
	"github.com/llmhub/llmhub/internal/tools"
	"github.com/llmhub/llmhub/internal/translate"
	"github.com/llmhub/llmhub/internal/upstream"
	"github.com/llmhub/llmhub/internal/version"
)

// Bridge assembles and runs the inference bridge daemon.
type Bridge struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	discovery   *discovery.Poller
	resource    *resource.Monitor
	maintenance *maintenance.Monitor
}

func NewBridge() (*Bridge, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg.Logger.Level, cfg.Logger.Pretty)

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	// Redis is optional; without it completions are simply never cached.
	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = redis.New(redis.ConnectOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			RedisDB:  cfg.Redis.DB,
		}, log)
		if err != nil {
			log.Warn("redis unavailable, completion cache disabled", logger.Error(err))
			redisClient = nil
		}
	}
	cache := redisstore.NewCompletionCache(redisClient, cfg.Redis.TTL)

	monitor := resource.NewMonitor(resource.Options{
		Interval:      cfg.Resource.Interval,
		MaxCPUPercent: cfg.Resource.MaxCPUPercent,
		MaxMemPercent: cfg.Resource.MaxMemPercent,
	}, m, log)

	client := upstream.New(upstream.Options{
		BaseURL:          cfg.Upstream.BaseURL,
		Timeout:          cfg.Upstream.Timeout,
		MaxRetries:       cfg.Upstream.MaxRetries,
		BreakerThreshold: cfg.Upstream.BreakerThreshold,
		BreakerCoolOff:   cfg.Upstream.BreakerCoolOff,
	}, monitor, m, log)

	maint := maintenance.New(maintenance.Options{
		Interval: cfg.Maintenance.Interval,
		TempDir:  cfg.Maintenance.TempDir,
	}, nil, client, monitor, cache, log)

	recoverer := recovery.New(recovery.Options{
		MaxAttempts: cfg.Recovery.MaxAttempts,
		Cooldown:    cfg.Recovery.Cooldown,
	}, client, maint, m, log)

	models := registry.NewModelRegistry()
	poller := discovery.NewPoller(client, models, recoverer, monitor, m, log,
		cfg.Discovery.Interval, cfg.Discovery.MaxInterval)

	catalog, err := tools.Load(cfg.Tools.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load tool catalog: %w", err)
	}

	var translatorCache translate.Cache
	if cache.Enabled() {
		translatorCache = cache
	}
	translator := translate.New(client, models, translatorCache, log)

	d := deps.Deps{
		Logger:      log,
		StartTime:   time.Now(),
		Version:     version.Version,
		TimeNow:     time.Now,
		Metrics:     promReg,
		Upstream:    client,
		Models:      models,
		Discovery:   poller,
		Resource:    monitor,
		Maintenance: maint,
		Recovery:    recoverer,
		Translator:  translator,
		Catalog:     catalog,
	}

	server := httpserver.New(cfg.Server.Addr, log, d)

	return &Bridge{
		cfg:         cfg,
		logger:      log,
		server:      server,
		redisClient: redisClient,
		discovery:   poller,
		resource:    monitor,
		maintenance: maint,
	}, nil
}

func (b *Bridge) Run() error {
	b.logger.Infof("starting bridge v%s on %s (upstream %s)",
		version.Version, b.cfg.Server.Addr, b.cfg.Upstream.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := b.resource.Start(ctx); err != nil {
		return fmt.Errorf("failed to start resource monitor: %w", err)
	}
	b.logger.Info("resource monitor started",
		logger.Duration("interval", b.cfg.Resource.Interval))

	if err := b.discovery.Start(ctx); err != nil {
		return fmt.Errorf("failed to start model discovery: %w", err)
	}
	b.logger.Info("model discovery started",
		logger.Duration("interval", b.cfg.Discovery.Interval))

	b.maintenance.Start(ctx)
	b.logger.Info("maintenance monitor started",
		logger.Duration("interval", b.cfg.Maintenance.Interval))

	errCh := make(chan error, 1)
	go func() {
		if err := b.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		b.logger.Info("shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	b.maintenance.Stop()
	b.discovery.Stop()
	b.resource.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), b.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := b.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if b.redisClient != nil {
		if err := b.redisClient.Close(); err != nil {
			b.logger.Warnf("failed to close redis: %v", err)
		}
	}

	b.logger.Info("bridge stopped cleanly")
	return nil
}
