package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/metalquote/internal/config"
	"github.com/kailas-cloud/metalquote/internal/db"
	dbRedis "github.com/kailas-cloud/metalquote/internal/db/redis"
	"github.com/kailas-cloud/metalquote/internal/domain"
	"github.com/kailas-cloud/metalquote/internal/domain/market"
	logpkg "github.com/kailas-cloud/metalquote/internal/logger"
	"github.com/kailas-cloud/metalquote/internal/metrics"
	"github.com/kailas-cloud/metalquote/internal/repository/pricecache"
	usagerepo "github.com/kailas-cloud/metalquote/internal/repository/usage"
	chiTransport "github.com/kailas-cloud/metalquote/internal/transport/chi"
	"github.com/kailas-cloud/metalquote/internal/transport/tanshu"
	"github.com/kailas-cloud/metalquote/internal/usecase/counter"
	"github.com/kailas-cloud/metalquote/internal/usecase/fetcher"
	healthuc "github.com/kailas-cloud/metalquote/internal/usecase/health"
	"github.com/kailas-cloud/metalquote/internal/usecase/poller"
	quoteuc "github.com/kailas-cloud/metalquote/internal/usecase/quote"
	statusuc "github.com/kailas-cloud/metalquote/internal/usecase/status"
	"github.com/kailas-cloud/metalquote/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	policy := cfg.QuotaPolicy()
	logger.Info("Starting metalquote API server",
		zap.String("version", version.String()),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Int("max_calls_per_month", policy.MaxCallsPerMonth),
		zap.Duration("cache_ttl", policy.CacheTTL),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	if !cfg.AuthEnabled() {
		if env == "prod" {
			logger.Warn("No API keys configured, quota-spending routes are unauthenticated")
		} else {
			logger.Info("Authentication disabled")
		}
	}

	// Register quote metrics explicitly (no init())
	metrics.RegisterQuoteMetrics()

	ctx := context.Background()

	// Persistence is optional: without addrs counters and cache live in memory.
	var store *dbRedis.Store
	if len(cfg.Database.Addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))
	} else {
		logger.Warn("No database configured, usage counters reset on restart")
	}

	calls := counter.New(policy, time.Now(), logger)
	var cache fetcher.Cache
	if store != nil {
		calls.WithStore(ctx, usagerepo.New(store, usagerepo.DefaultDailyTTL, usagerepo.DefaultMonthlyTTL), cfg.Storage.KeyPrefix)
		cache = pricecache.NewKV(store, cfg.Storage.KeyPrefix, logger)
	} else {
		cache = pricecache.NewMemory()
	}

	client := tanshu.NewClient(&tanshu.Config{
		APIKey:            cfg.API.APIKey,
		BaseURL:           cfg.API.BaseURL,
		Timeout:           time.Duration(cfg.API.TimeoutSec) * time.Second,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Logger:            logger,
	})

	f := fetcher.New(client, cache, calls, metrics.FetchTotal, logger).
		WithValidator(domain.ValidatePayload)
	quoteSvc := quoteuc.New(f, logger)
	statusSvc := statusuc.New(calls, f)

	// Pass nil interface (not typed nil pointer!) when running in memory.
	// Go gotcha: (*redis.Store)(nil) wrapped in DBPinger != nil.
	var pinger db.Pinger
	if store != nil {
		pinger = store
	}
	healthSvc := healthuc.New(pinger, client)

	var refresher *poller.Poller
	if *cfg.Poller.Enabled {
		pollCfg := poller.Config{
			Interval: time.Duration(cfg.Poller.RefreshIntervalSec) * time.Second,
			Keys:     cfg.TrackedKeys(),
		}
		if *cfg.Poller.RespectTradingHours {
			pollCfg.Hours = market.NewHours(market.London())
		}
		refresher = poller.New(quoteSvc, pollCfg, logger)
		refresher.Start(ctx)
	}

	server := chiTransport.NewServer(quoteSvc, statusSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if refresher != nil {
		if err := refresher.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping poller", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
