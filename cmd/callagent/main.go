package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/internal/core/services"
	httphandlers "telecall/internal/handlers/http"
	"telecall/internal/infrastructure/credentials"
	"telecall/internal/infrastructure/media"
	"telecall/internal/infrastructure/middleware"
	"telecall/internal/infrastructure/monitoring"
	"telecall/internal/infrastructure/notify"
	"telecall/internal/infrastructure/providers"
	"telecall/internal/infrastructure/sinks"
	"telecall/pkg/config"
	"telecall/pkg/logger"
	"telecall/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultVideoBitrate = 1_000_000
	defaultAudioBitrate = 48_000
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/telecall/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Tracing
	if cfg.Tracing.Enabled {
		tracingCfg := tracing.DefaultConfig()
		tracingCfg.JaegerURL = cfg.Tracing.JaegerURL
		tracingCfg.SampleRate = cfg.Tracing.SampleRate
		tp, err := tracing.Init(tracingCfg)
		if err != nil {
			log.Warnw("tracing init failed, continuing without", "error", err)
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	// Credential cache: redis when configured, in-process otherwise.
	var credCache ports.CredentialCache
	var redisCache *credentials.RedisCache
	if cfg.CredentialCache.Redis.Enabled {
		redisCache, err = credentials.NewRedisCache(
			cfg.CredentialCache.Redis.Address,
			cfg.CredentialCache.Redis.Password,
			cfg.CredentialCache.Redis.DB,
			cfg.CredentialCache.Redis.PoolSize,
			log,
		)
		if err != nil {
			log.Fatalw("redis credential cache unavailable", "error", err)
		}
		defer redisCache.Close()
		credCache = redisCache
	} else {
		memCache := credentials.NewMemoryCache(cfg.CredentialCache.TTL)
		defer memCache.Stop()
		credCache = memCache
	}

	fetcher := credentials.NewFetcher(
		cfg.Backend.BaseURL,
		cfg.Backend.TokenPath,
		cfg.Backend.RequestTimeout,
		credCache,
		cfg.CredentialCache.TTL,
		log,
	)

	// Media stack
	enumerator := media.NewEnumerator(log)
	source, err := media.NewSource(defaultVideoBitrate, defaultAudioBitrate, log)
	if err != nil {
		log.Fatalw("media source init failed", "error", err)
	}

	// Provider binding
	client, err := providers.New(cfg, log)
	if err != nil {
		log.Fatalw("provider init failed", "error", err)
	}

	notifier := notify.NewHTTPNotifier(
		cfg.Backend.BaseURL,
		cfg.Backend.RequestTimeout,
		cfg.Backend.NotifyRetries,
		log,
	)

	collector := monitoring.NewPrometheusCollector()
	registry := sinks.NewFromConfig(cfg, log)

	manager := services.NewManager(
		services.ManagerConfig{
			Provider: domain.ProviderKind(cfg.Provider.Kind),
			Anchor:   domain.BillingAnchor(cfg.Billing.Anchor),
		},
		fetcher,
		services.NewProbeService(enumerator, log),
		services.NewAcquireService(source, log),
		client,
		registry,
		notifier,
		collector,
		log,
	)

	// Health checks
	health := monitoring.NewHealthChecker()
	health.AddBackendCheck(cfg.Backend.BaseURL, 5*time.Second)
	if redisCache != nil {
		health.AddRedisCheck(redisCache.Client(), 2*time.Second)
	}

	// HTTP layer
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestIDMiddleware(logger.NewContextLogger(zapLogger)))
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	sessionHandler := httphandlers.NewSessionHandler(manager, enumerator, fetcher, health)
	sessionHandler.SetupRoutes(router)

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting telecall agent on %s (provider=%s)", cfg.Server.Address, cfg.Provider.Kind)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down telecall agent...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// End live sessions first so cameras are released and billing
	// durations reported before the process goes away.
	manager.Shutdown(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	log.Info("telecall agent stopped")
}
