package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/stockfeed/internal/api"
	"github.com/rickgao/stockfeed/internal/broadcast"
	"github.com/rickgao/stockfeed/internal/cache"
	"github.com/rickgao/stockfeed/internal/config"
	"github.com/rickgao/stockfeed/internal/connection"
	"github.com/rickgao/stockfeed/internal/logging"
	"github.com/rickgao/stockfeed/internal/metrics"
	"github.com/rickgao/stockfeed/internal/poller"
	"github.com/rickgao/stockfeed/internal/server"
	"github.com/rickgao/stockfeed/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to optional YAML config file")
	envPath := flag.String("env", ".env", "path to dotenv file")
	flag.Parse()

	// Until the configured logger exists
	bootLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := config.LoadEnvFile(*envPath); err != nil {
		bootLogger.Error("failed to load env file", "path", *envPath, "error", err)
		return 1
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		bootLogger.Error("failed to load config", "error", err)
		return 1
	}

	logger, logCloser, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		bootLogger.Error("failed to set up logging", "error", err)
		return 1
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting stockfeed",
		"version", version.String(),
		"config", *configPath,
	)

	mode, err := broadcast.ParseMode(cfg.Stream.Mode)
	if err != nil {
		logger.Error("invalid stream mode", "error", err)
		return 1
	}

	logger.Info("configuration loaded",
		"base_url", cfg.API.BaseURL,
		"addr", cfg.Server.Addr(),
		"stream_mode", mode,
		"proxy_preset", cfg.Server.ProxyPreset,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	apiClient := api.NewClient(
		cfg.API.BaseURL,
		cfg.API.APIKey,
		cfg.API.APISecret,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	stockCache := cache.New()
	bus := broadcast.New(mode, broadcast.WithMetrics(m))

	sched := poller.New(poller.Config{
		Interval:    cfg.Poller.Interval,
		MinInterval: cfg.Poller.MinInterval,
		Timeout:     cfg.Poller.Timeout,
	}, apiClient, stockCache, bus, logger, m)

	// No listener is opened until instrument metadata has loaded.
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start poll scheduler", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Error("failed to stop poll scheduler", "error", err)
		}
	}()

	stream := connection.NewHandler(connection.HandlerConfig{
		WriteTimeout:   cfg.Stream.WriteTimeout,
		PingInterval:   cfg.Stream.PingInterval,
		PongWait:       cfg.Stream.PongWait,
		SendBuffer:     cfg.Stream.SendBuffer,
		MaxMessageSize: cfg.Stream.MaxMessageSize,
	}, stockCache, bus,
		connection.WithLogger(logger),
		connection.WithMetrics(m),
		connection.WithAllowedOrigins(cfg.Server.CORSOrigins),
	)

	srv, err := server.New(server.Config{
		Addr:            cfg.Server.Addr(),
		ProxyPreset:     cfg.Server.ProxyPreset,
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateRequests:    cfg.Server.RateLimit.Requests,
		RateWindow:      cfg.Server.RateLimit.Window,
		StreamMode:      string(mode),
		ShutdownTimeout: 10 * time.Second,
	}, stockCache, sched, stream,
		server.WithLogger(logger),
		server.WithGatherer(reg),
	)
	if err != nil {
		logger.Error("failed to build http server", "error", err)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	logger.Info("stockfeed running",
		"addr", cfg.Server.Addr(),
		"refresh_interval", sched.Interval(),
		"stocks", stockCache.StockCount(),
	)

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		return 1
	}

	logger.Info("stockfeed stopped")
	return 0
}
