package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waitline/internal/config"
	"waitline/internal/estimate"
	"waitline/internal/httpapi"
	"waitline/internal/queue"
	"waitline/internal/store/postgres"
	"waitline/internal/telemetry"
	"waitline/internal/worker"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracing := telemetry.Setup(context.Background(), "waitline", logger)

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	st := postgres.NewStore(pool)

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer cache.Close()
	}

	estimator := estimate.NewClient(estimate.Options{
		URL:      cfg.PredictorURL,
		Timeout:  cfg.PredictorTimeout,
		Cache:    cache,
		CacheTTL: cfg.EstimateCacheTTL,
		Logger:   logger,
	})

	manager := queue.NewManager(queue.Options{
		Store:      st,
		Estimator:  estimator,
		Throughput: cfg.HistoricalThroughput,
		Logger:     logger,
	})

	handler := httpapi.NewHandler(st, manager)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute: cfg.RateLimitPerMinute,
		IPBurst:     cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(limiter.Middleware(httpapi.LoggingMiddleware(handler.Routes())), "waitline"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	if cfg.RedisAddr != "" {
		w := worker.New(worker.Options{
			Queue:     manager,
			Store:     st,
			RedisAddr: cfg.RedisAddr,
			CronSpec:  cfg.EstimateSweepCron,
			Batch:     cfg.EstimateSweepBatch,
			Logger:    logger,
		})
		go func() {
			if err := w.Run(workerCtx); err != nil {
				log.Printf("worker error: %v", err)
			}
		}()
	}

	go func() {
		log.Printf("waitline listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	stopWorker()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		log.Printf("tracing shutdown error: %v", err)
	}
}
