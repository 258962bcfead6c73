package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/keyseek/internal/api"
	"github.com/zsiec/keyseek/internal/config"
	"github.com/zsiec/keyseek/internal/health"
	"github.com/zsiec/keyseek/internal/indexstore"
	"github.com/zsiec/keyseek/internal/logger"
	"github.com/zsiec/keyseek/internal/server"
	"github.com/zsiec/keyseek/internal/session"
	"github.com/zsiec/keyseek/pkg/version"
)

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "configs/default.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithField("version", version.GetInfo().Short()).Info("Starting keyseek server")
	log.WithField("config_path", configPath).Debug("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisClient *redis.Client
	if cfg.Index.Cache.Enabled && cfg.Index.Cache.Backend == "redis" {
		redisClient = connectRedis(ctx, cfg.Redis, log)
	}

	store := newIndexStore(cfg.Index.Cache, redisClient, log)

	manager, err := session.NewManager(cfg.Index,
		session.WithStore(store),
		session.WithLogger(logger.NewLogrusAdapter(logger.WithComponent(log, "session"))),
	)
	if err != nil {
		log.WithError(err).Fatal("Failed to create session manager")
	}

	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics, log)
	}

	srv := server.New(&cfg.Server, log, redisClient)
	srv.RegisterHealthChecker(health.NewSessionChecker(manager, cfg.Index.MaxSessions))
	if cfg.Index.MediaRoot != "" {
		srv.RegisterHealthChecker(health.NewMediaRootChecker(cfg.Index.MediaRoot))
	}

	handler := api.NewHandler(manager, srv.ErrorHandler(),
		logger.NewLogrusAdapter(logger.WithComponent(log, "api")))
	srv.RegisterRoutes(handler.RegisterRoutes)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		log.WithError(err).Fatal("Server error")
	}

	if err := manager.CloseAll(); err != nil {
		log.WithError(err).Error("Failed to close sessions")
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.WithError(err).Error("Failed to close Redis connection")
		}
	}

	log.Info("Server shutdown complete")
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logrus.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addresses[0],
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	log.Info("Connected to Redis successfully")

	// Verify Redis is writable
	testKey := "keyseek:startup:test"
	if err := client.Set(ctx, testKey, "1", 0).Err(); err != nil {
		log.WithError(err).Fatal("Redis is not writable")
	}
	client.Del(ctx, testKey)

	return client
}

func newIndexStore(cfg config.IndexCacheConfig, client *redis.Client, log *logrus.Logger) indexstore.Store {
	if !cfg.Enabled {
		return nil
	}
	if client != nil {
		storeLog := logger.NewLogrusAdapter(logger.WithComponent(log, "indexstore"))
		return indexstore.NewRedisStore(client, storeLog, cfg.Prefix, cfg.TTL)
	}
	return indexstore.NewMemoryStore(cfg.TTL)
}

// startMetricsServer starts the Prometheus metrics server
func startMetricsServer(cfg config.MetricsConfig, log *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.WithField("addr", addr).Info("Starting metrics server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("Metrics server error")
	}
}
