package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"fleet/internal/app"
	"fleet/internal/config"
	"fleet/internal/geo"
	"fleet/internal/logger"
	"fleet/internal/metrics"
	"fleet/internal/middleware"
	internalRedis "fleet/internal/redis"
	"fleet/internal/repository/postgres"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Errorf(context.Background(), "server stopped: %v", err)
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	bg := context.Background()

	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(bg, 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Warnf(bg, "failed to initialize New Relic: %v", err)
		} else {
			log.Infof(bg, "New Relic enabled: app=%s", cfg.NewRelic.AppName)
			defer nrApp.Shutdown(5 * time.Second)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.InitSchema(ctx, db); err != nil {
		return err
	}
	log.Infof(bg, "connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	log.Infof(bg, "connected to Redis")

	estimator, err := geo.New(cfg.Geo)
	if err != nil {
		return err
	}
	estimator = geo.NewCached(estimator, internalRedis.NewGeocodeCache(redisClient, cfg.Geo.CacheTTL), log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	defer limiter.Close()

	services := app.NewServices(cfg, app.Backend{
		Tx:        postgres.NewTxManager(db),
		Repos:     postgres.NewRepositories(db),
		Estimator: estimator,
		Positions: internalRedis.NewPositionStore(redisClient),
		Locks:     internalRedis.NewLockStore(redisClient),
	}, policy, rec, log.With(zap.String("component", "service")))

	dispatchHandler, fleetHandler, trackingHandler := services.Handlers()
	router := app.NewRouter(app.RouterDeps{
		DispatchHandler: dispatchHandler,
		FleetHandler:    fleetHandler,
		TrackingHandler: trackingHandler,
		RedisClient:     redisClient,
		RateLimiter:     limiter,
		Gatherer:        reg,
		NewRelicApp:     nrApp,
		Logger:          log.With(zap.String("component", "http")),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof(bg, "starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Infof(bg, "shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(bg, 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Infof(bg, "server exited")
	return nil
}
