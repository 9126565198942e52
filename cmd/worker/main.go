package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"printsync/internal/config"
	"printsync/internal/database"
	"printsync/internal/logger"
	"printsync/internal/printify"
	"printsync/internal/queue"
	"printsync/internal/repository"
	"printsync/internal/service"
	"printsync/internal/storage"
	"printsync/internal/worker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, "worker")
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if err := cfg.Sync.Validate(); err != nil {
		log.Fatal("Invalid sync configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbService, err := database.New(cfg.Database)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer dbService.Close()

	if err := database.RunMigrations(dbService.DB(), database.DefaultMigrationsDir, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	store, err := storage.NewFileStore(cfg.Sync.ImageDir)
	if err != nil {
		log.Fatal("Failed to prepare image storage", zap.Error(err))
	}

	db := dbService.DB()
	productRepo := repository.NewProductRepository(db)
	variationRepo := repository.NewVariationRepository(db)
	attributeRepo := repository.NewAttributeRepository(db)
	imageRepo := repository.NewImageRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)

	client := printify.NewClient(cfg.Printify, log)
	taskQueue := queue.NewRedisQueue(redisClient, queue.DefaultPrefix, log)

	mapper := service.NewAttributeMapper(attributeRepo, log)
	images := service.NewImageIngester(imageRepo, productRepo, store, &http.Client{Timeout: cfg.Printify.Timeout}, cfg.Sync.ImageFingerprint, log)
	syncer := service.NewProductSyncService(productRepo, variationRepo, syncLogRepo, mapper, images, client, cfg.Sync.DefaultStatus, log)
	dispatcher := service.NewDispatcher(productRepo, taskQueue, cfg.Sync.TaskDelay, log)

	w := worker.New(taskQueue, syncer, dispatcher, client, worker.Config{
		Concurrency:  cfg.Sync.WorkerConcurrency,
		PollInterval: cfg.Sync.PollInterval,
		Interval:     cfg.Sync.Interval,
	}, log)

	if err := w.Run(ctx); err != nil {
		log.Fatal("Worker stopped", zap.Error(err))
	}
	log.Info("Worker shutdown complete")
}
