package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/groveauth/grove/pkg/api"
	"github.com/groveauth/grove/pkg/autojoin"
	"github.com/groveauth/grove/pkg/config"
	"github.com/groveauth/grove/pkg/hierarchy"
	"github.com/groveauth/grove/pkg/middleware"
	"github.com/groveauth/grove/pkg/observability"
	"github.com/groveauth/grove/pkg/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "grove: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting grove authorization service")

	ctx := context.Background()

	tracerProvider, err := observability.InitTracing(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	connManager, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.PrimaryURL,
		ReplicaURLs: cfg.Database.ReplicaURLs,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	if err := hierarchy.RunMigrations(ctx, connManager.Primary()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("database migrations applied")

	var redisClient *redis.Client
	var verifyLimiter *middleware.RateLimiter
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		verifyLimiter = middleware.NewRateLimiter(redisClient, middleware.RateLimitConfig{
			RequestsPerWindow: cfg.AutoJoin.VerifyRateLimit,
			WindowDuration:    cfg.AutoJoin.VerifyRateWindow,
		}, "grove:verify")
		logger.Info("redis rate limiting enabled")
	} else {
		logger.Warn("redis disabled, domain verification is not rate limited")
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	store := hierarchy.NewPostgresStore(connManager.Reader())
	autojoinStore := autojoin.NewPostgresStore(connManager.Primary())
	autojoinService := autojoin.NewService(autojoinStore, net.DefaultResolver, cfg.AutoJoin.DNSTimeout)

	server := api.NewServer(store, autojoinService, verifyLimiter, metrics, logger)

	root := server.Router()
	health := observability.NewHealthChecker(connManager.Primary(), redisClient)
	root.HandleFunc("/health/live", health.Liveness).Methods("GET")
	root.HandleFunc("/health/ready", health.Readiness).Methods("GET")
	if metrics != nil {
		root.Handle("/metrics", metrics.Handler()).Methods("GET")
	}

	var handler http.Handler = root
	if metrics != nil {
		handler = metrics.InstrumentHandler("api", handler)
	}
	if tracerProvider != nil {
		handler = otelhttp.NewHandler(handler, "grove")
	}

	scheduler := cron.New()
	if metrics != nil {
		if _, err := scheduler.AddFunc("@every 30s", func() {
			stats := connManager.Stats()
			metrics.DBConnectionsActive.Set(float64(stats.InUse))
			metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		}); err != nil {
			return fmt.Errorf("scheduling connection stats: %w", err)
		}
	}
	// Stale PENDING records never verify on their own; sweep them daily.
	if _, err := scheduler.AddFunc("@daily", func() {
		purged, err := autojoinService.PurgeStalePending(context.Background(), cfg.AutoJoin.PendingTTL)
		if err != nil {
			logger.WithError(err).Error("stale pending domain purge failed")
			return
		}
		if purged > 0 {
			logger.Infof("purged %d stale pending domain records", purged)
		}
	}); err != nil {
		return fmt.Errorf("scheduling pending domain purge: %w", err)
	}
	scheduler.Start()

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.Register(func(ctx context.Context) error {
		stopCtx := scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
		return nil
	})
	if redisClient != nil {
		shutdown.Register(func(context.Context) error {
			return redisClient.Close()
		})
	}
	if tracerProvider != nil {
		shutdown.Register(tracerProvider.Shutdown)
	}
	shutdown.Register(func(context.Context) error {
		return connManager.Close()
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go func() {
		errCh <- shutdown.Wait()
	}()

	return <-errCh
}
