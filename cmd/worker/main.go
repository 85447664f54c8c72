package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/audience-engine/internal/api"
	"github.com/ignite/audience-engine/internal/automation"
	"github.com/ignite/audience-engine/internal/config"
	"github.com/ignite/audience-engine/internal/pkg/logger"
	"github.com/ignite/audience-engine/internal/queue"
	"github.com/ignite/audience-engine/internal/repository/postgres"
	"github.com/ignite/audience-engine/internal/service/membership"
	"github.com/ignite/audience-engine/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.RedactPIIEnabled())
	log := logger.Default()
	log.Info("starting audience engine worker", "addr", cfg.Server.Addr(), "queue_backend", cfg.Queue.Backend)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := postgres.Open(ctx, cfg.Database)
	cancel()
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("connected to database")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// The hooks still work without Redis when triggers go to SQS.
		log.Warn("redis ping failed", "addr", cfg.Redis.Addr, "error", err)
	}
	cancel()

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	triggers, err := queue.New(ctx, cfg.Queue, redisClient)
	cancel()
	if err != nil {
		log.Error("failed to create trigger queue", "backend", cfg.Queue.Backend, "error", err)
		os.Exit(1)
	}

	segmentRepo := postgres.NewSegmentationRepo(db)
	dispatcher := automation.NewDispatcher(postgres.NewFlowRepo(db), triggers, log)
	svc := membership.NewService(segmentRepo, dispatcher,
		membership.WithLogger(log),
		membership.WithEventWindow(cfg.Segmentation.EventWindow),
	)

	pool := worker.NewReconcilePool(svc, worker.PoolConfig{
		Concurrency: cfg.Worker.Concurrency,
		QueueSize:   cfg.Worker.QueueSize,
	}, log)
	pool.Start()

	var backlog api.QueueLength
	if rq, ok := triggers.(*queue.RedisQueue); ok {
		backlog = rq
	}
	handler := api.NewRouter(
		api.NewHookHandler(pool, log, 0),
		api.NewHealthChecker(db, redisClient, pool, backlog),
		api.NewSegmentHandler(segmentRepo),
		cfg.Server.AllowedOrigins,
	)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("hook server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			done <- syscall.SIGTERM
		}
	}()

	<-done
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}

	// Hooks are closed; let queued passes finish before the DB goes away.
	pool.Stop()
	log.Info("worker stopped")
}
