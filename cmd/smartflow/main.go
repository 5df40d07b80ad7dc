package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smartflowafrica/smartflow-sub001/internal/config"
	"github.com/smartflowafrica/smartflow-sub001/internal/constants"
	"github.com/smartflowafrica/smartflow-sub001/internal/database"
	"github.com/smartflowafrica/smartflow-sub001/internal/metrics"
	"github.com/smartflowafrica/smartflow-sub001/internal/ratelimit"
	"github.com/smartflowafrica/smartflow-sub001/internal/retry"
	"github.com/smartflowafrica/smartflow-sub001/internal/service"
	"github.com/smartflowafrica/smartflow-sub001/internal/tracing"
	"github.com/smartflowafrica/smartflow-sub001/pkg/gateway"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("SmartFlow %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting SmartFlow gateway service")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else if level, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	tracingManager := tracing.NewManager(tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// The database sits on shared storage; ride out transient mount and
	// lock errors at startup instead of crash-looping.
	var db *database.Database
	backoff := retry.NewBackoff(retry.DefaultBackoffConfig())
	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	counterStore := ratelimit.NewRedisCounterStore(redisClient)
	if err := counterStore.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
	}

	limiter := ratelimit.NewLimiter(counterStore,
		cfg.RateLimit.PerRecipientPerHour,
		time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute,
		logger)

	gatewayClient := gateway.NewClient(gateway.ClientConfig{
		BaseURL: cfg.Gateway.APIBaseURL,
		APIKey:  cfg.Gateway.APIKey,
		Timeout: time.Duration(cfg.Gateway.TimeoutSec) * time.Second,
	}, logger)

	registry := metrics.Registry("smartflow")

	dispatcher := service.NewDispatcher(gatewayClient, db, limiter, registry, logger, service.DispatcherConfig{
		PacingDelay: time.Duration(cfg.Dispatch.PacingDelayMs) * time.Millisecond,
	})

	normalizer := service.NewNormalizer(registry, logger)

	instances := gatewayClient.FetchAllInstances(ctx)
	logger.WithField("count", len(instances)).Info("Gateway instances discovered")

	server := NewServer(normalizer, dispatcher, gatewayClient, db, cfg.Server.WebhookSecret, logger)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}
