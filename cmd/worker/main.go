package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/station-engine/internal/config"
	"github.com/jwebster45206/station-engine/internal/logger"
	"github.com/jwebster45206/station-engine/internal/services"
	"github.com/jwebster45206/station-engine/internal/services/queue"
	"github.com/jwebster45206/station-engine/internal/storage"
	"github.com/jwebster45206/station-engine/internal/worker"
	"github.com/jwebster45206/station-engine/pkg/gm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Station Engine Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL)

	// Initialize queue service
	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()

	prefetchQueue := queue.NewPrefetchQueue(queueClient)
	log.Info("Queue service initialized successfully")

	// Initialize storage service
	store, err := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage connection", "error", err)
		}
	}()
	log.Info("Storage service initialized successfully")

	// Initialize the generator service
	if cfg.GMURL == "" {
		log.Error("GM_URL is required for the worker")
		os.Exit(1)
	}
	var gms gm.Service = services.NewHTTPGMService(cfg.GMURL)
	log.Info("Generator service initialized", "url", cfg.GMURL)

	// Create and start worker
	w := worker.New(prefetchQueue, gms, store, queueClient.GetRedisClient(), log, os.Getenv("WORKER_ID"))

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("Worker is shutting down...")
		w.Stop()
	}()

	if err := w.Start(); err != nil {
		log.Error("Worker failed", "error", err)
		os.Exit(1)
	}

	log.Info("Worker exited")
}
