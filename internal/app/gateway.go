package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/llmhub/llmhub/internal/config"
	"github.com/llmhub/llmhub/internal/gateway"
	"github.com/llmhub/llmhub/internal/httpserver"
	"github.com/llmhub/llmhub/internal/httpserver/deps"
	"github.com/llmhub/llmhub/internal/logger"
	"github.com/llmhub/llmhub/internal/version"
)

// Gateway assembles and runs the unified gateway daemon.
type Gateway struct {
	cfg    *config.Config
	logger logger.Logger
	server *httpserver.Server
	poller *gateway.Poller
}

func NewGateway() (*Gateway, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg.Logger.Level, cfg.Logger.Pretty)
	promReg := prometheus.NewRegistry()

	services := gateway.NewServiceRegistry()
	poller := gateway.NewPoller(
		[]gateway.Target{{Name: cfg.Gateway.BridgeName, URL: cfg.Gateway.BridgeURL}},
		services, cfg.Gateway.PollInterval, log)
	router := gateway.NewRouter(services, cfg.Gateway.ForwardTimeout, log)
	aggregator := gateway.NewAggregator(router)

	d := deps.Deps{
		Logger:     log,
		StartTime:  time.Now(),
		Version:    version.Version,
		TimeNow:    time.Now,
		Metrics:    promReg,
		Services:   services,
		Aggregator: aggregator,
	}

	server := httpserver.New(cfg.Server.Addr, log, d)

	return &Gateway{
		cfg:    cfg,
		logger: log,
		server: server,
		poller: poller,
	}, nil
}

func (g *Gateway) Run() error {
	g.logger.Infof("starting gateway v%s on %s (bridge %s)",
		version.Version, g.cfg.Server.Addr, g.cfg.Gateway.BridgeURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g.poller.Start(ctx)
	g.logger.Info("service discovery started",
		logger.Duration("interval", g.cfg.Gateway.PollInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := g.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		g.logger.Info("shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	g.poller.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), g.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := g.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	g.logger.Info("gateway stopped cleanly")
	return nil
}
