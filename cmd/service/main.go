package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/forecast-lab/internal/cache"
	"github.com/kjstillabower/forecast-lab/internal/circuitbreaker"
	"github.com/kjstillabower/forecast-lab/internal/config"
	"github.com/kjstillabower/forecast-lab/internal/forecast"
	httphandler "github.com/kjstillabower/forecast-lab/internal/http"
	"github.com/kjstillabower/forecast-lab/internal/lifecycle"
	"github.com/kjstillabower/forecast-lab/internal/observability"
	"github.com/kjstillabower/forecast-lab/internal/randsrc"
	"github.com/kjstillabower/forecast-lab/internal/series"
	"github.com/kjstillabower/forecast-lab/internal/service"
	"github.com/kjstillabower/forecast-lab/internal/traffic"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	engineSources, seriesSources := randsrc.NewFactory(), randsrc.NewFactory()
	if cfg.EngineSeed != 0 {
		engineSources = randsrc.NewSeededFactory(cfg.EngineSeed)
		seriesSources = randsrc.NewSeededFactory(cfg.EngineSeed + 1)
		logger.Info("seeded randomness", zap.Uint64("seed", cfg.EngineSeed))
	}
	engine := forecast.NewEngine(forecast.Config{
		LatencyMin: cfg.EngineLatencyMin,
		LatencyMax: cfg.EngineLatencyMax,
		Sources:    engineSources,
	})
	generator := series.NewGenerator(seriesSources)

	snapshots, closer := openSnapshotCache(cfg, logger)
	forecastService := service.NewForecastService(engine, generator, snapshots, service.Options{
		SnapshotTTL:    cfg.SnapshotTTL,
		SnapshotPoints: cfg.SnapshotPoints,
		BuildTimeout:   cfg.RequestTimeout,
	})

	healthConfig := &httphandler.HealthConfig{
		Thresholds: traffic.Thresholds{
			RateLimitRPS:           cfg.RateLimitRPS,
			OverloadWindow:         cfg.OverloadWindow,
			OverloadThresholdPct:   cfg.OverloadThresholdPct,
			DegradedWindow:         cfg.DegradedWindow,
			DegradedErrorPct:       cfg.DegradedErrorPct,
			IdleWindow:             cfg.IdleWindow,
			IdleThresholdReqPerMin: cfg.IdleThresholdReqPerMin,
			MinimumLifespan:        cfg.MinimumLifespan,
		},
	}
	if p, ok := snapshots.(cache.Pinger); ok && cfg.SnapshotBackend != cache.BackendInMemory {
		healthConfig.CachePing = p.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(forecastService, healthConfig, logger, httphandler.Options{
		StrictValidation: cfg.StrictValidation,
		DefaultPoints:    cfg.HistoryDefaultPoints,
		MaxPoints:        cfg.HistoryMaxPoints,
	})
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Logger:         logger,
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
	})

	observability.RegisterHealthGauges(cfg.OverloadWindow)

	warmCtx, stopWarming := context.WithCancel(context.Background())
	defer stopWarming()
	if cfg.SnapshotWarmInterval > 0 {
		warmer := cache.NewSnapshotWarmer(forecastService, snapshots, cfg.SnapshotTTL, logger)
		go func() {
			err := warmer.WarmPeriodic(warmCtx, cfg.SnapshotWarmLengths, cfg.SnapshotWarmInterval)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("periodic snapshot warming stopped", zap.Error(err))
			}
		}()
		logger.Info("snapshot warming enabled",
			zap.Ints("lengths", cfg.SnapshotWarmLengths),
			zap.Duration("interval", cfg.SnapshotWarmInterval))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	lifecycle.MarkStarted(time.Now())
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	stopWarming()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	var closers []io.Closer
	if closer != nil {
		closers = append(closers, closer)
	}
	if err := observability.FlushTelemetry(context.Background(), logger, closers...); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// openSnapshotCache builds the configured snapshot backend. Remote backends sit
// behind a circuit breaker and return a closer for shutdown.
func openSnapshotCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, io.Closer) {
	var (
		remote interface {
			cache.Cache
			io.Closer
		}
		component string
	)
	switch cfg.SnapshotBackend {
	case cache.BackendMemcached:
		remote = cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		component = "memcached"
		logger.Info("snapshot backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	case cache.BackendRedis:
		remote = cache.NewRedisCache(cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Timeout:  cfg.RedisTimeout,
		})
		component = "redis"
		logger.Info("snapshot backend: redis", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
	default:
		logger.Info("snapshot backend: in_memory")
		return cache.NewInMemoryCache(), nil
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		OpenTimeout:      cfg.BreakerOpenTimeout,
		Component:        component,
		OnStateChange: func(component string, from, to circuitbreaker.State) {
			observability.RecordCircuitBreakerTransition(component, from.String(), to.String(), int(to))
			logger.Warn("snapshot cache breaker transition",
				zap.String("component", component),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	observability.CircuitBreakerState.WithLabelValues(component).Set(0)
	return cache.NewBreakerCache(remote, breaker), remote
}
