package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/joho/godotenv/autoload"

	"filedrop/internal/config"
	"filedrop/internal/database"
	"filedrop/internal/database/migration"
	"filedrop/internal/queue"
	"filedrop/internal/repository/postgres"
	"filedrop/internal/storage"
	"filedrop/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	if cfg.Redis.Addr == "" {
		log.Fatal("REDIS_ADDR is required for the worker")
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, time.UTC, cfg.Database.Host); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	processor := worker.NewProcessor(postgres.NewFilePostgres(db), objStore)

	redisOpt := queue.RedisOpt(cfg.Redis)
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
	})

	// The orphan sweep runs on a fixed schedule; scan tasks arrive from the
	// API server on every upload.
	scheduler := asynq.NewScheduler(redisOpt, nil)
	if _, err := scheduler.Register(cfg.OrphanSweepCron, asynq.NewTask(queue.OrphanSweepTask, nil)); err != nil {
		log.Fatalf("failed to register orphan sweep: %v", err)
	}

	go func() {
		<-ctx.Done()
		scheduler.Shutdown()
		server.Shutdown()
	}()

	go func() {
		if err := scheduler.Run(); err != nil {
			log.Fatalf("scheduler stopped: %v", err)
		}
	}()

	if err := server.Run(processor.Handler()); err != nil {
		log.Fatalf("worker stopped: %v", err)
	}
}
