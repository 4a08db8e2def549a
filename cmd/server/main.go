// Command server starts the interview pipeline HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	ai "github.com/fairyhunter13/ai-interview-pipeline/internal/adapter/ai"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/adapter/ai/catalog"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/adapter/ai/openrouter"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/adapter/ai/stub"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/adapter/bank"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/adapter/cache"
	httpserver "github.com/fairyhunter13/ai-interview-pipeline/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/app"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/config"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()

	// Infra: DB pool and schema
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	resultRepo := postgres.NewResultRepo(pool)
	if err := resultRepo.Migrate(ctx); err != nil {
		slog.Error("db migrate failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Redis bundle cache
	var bundleCache *cache.BundleCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		bundleCache = cache.New(rdb, cfg.ResultTTL)
		if err := bundleCache.Ping(ctx); err != nil {
			slog.Warn("redis unavailable at startup", slog.Any("error", err))
		}
	}

	// Bundle fan-out (Redpanda)
	var publisher domain.BundlePublisher
	if cfg.PublishBundle {
		producer, err := redpanda.NewProducer(ctx, cfg.KafkaBrokers)
		if err != nil {
			slog.Error("redpanda producer connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer producer.Close()
		publisher = producer
	}

	// Reasoning client: the stub keeps the pipeline fully local when no
	// provider key is configured.
	var client domain.ReasoningClient
	if cfg.ProviderAPIKey == "" {
		slog.Warn("no provider api key, using local stub reasoning client")
		client = stub.New()
	} else {
		client = openrouter.New(cfg)
		models := catalog.NewService(cfg.ProviderAPIKey, cfg.ProviderBaseURL, cfg.ModelCatalogRefresh)
		for _, id := range []string{cfg.FastModel, cfg.StrongModel, cfg.PlannerModel} {
			ok, err := models.Has(ctx, id)
			switch {
			case err != nil:
				slog.Warn("model catalog unavailable", slog.Any("error", err))
			case !ok:
				slog.Warn("configured model not in provider catalog", slog.String("model", id))
			}
		}
	}

	newGate := func() domain.CallGate {
		return ai.NewGovernor(client,
			domain.NewCallBudget(cfg.MaxReasoningCalls, cfg.MinCallSpacing),
			cfg.ReasoningTimeout)
	}

	orchestrator := usecase.NewOrchestrator(cfg, bank.MustNew(), newGate, bank.RoleKey, resultRepo, publisher)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go app.NewSessionSweeper(orchestrator, cfg.SessionRetention, cfg.SessionSweepInterval).Run(sweepCtx)

	var cachePort httpserver.BundleCache
	var cachePinger app.Pinger
	if bundleCache != nil {
		cachePort = bundleCache
		cachePinger = bundleCache
	}
	dbCheck, redisCheck := app.BuildReadinessChecks(pool, cachePinger)
	srv := httpserver.NewServer(cfg, orchestrator, resultRepo, cachePort, dbCheck, redisCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
