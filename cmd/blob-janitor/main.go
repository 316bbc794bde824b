package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Clark-Hu/videostore/internal/blob"
	"github.com/Clark-Hu/videostore/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if cfg.AMQPURL == "" {
		log.Fatal("AMQP_URL is required")
	}
	if !cfg.HasCloudinary() {
		log.Fatal("cloudinary credentials are required")
	}

	logger := log.New(os.Stdout, "[blob-janitor] ", log.LstdFlags|log.Lshortfile)

	store, err := blob.NewCloudinary(blob.CloudinaryOptions{
		URL:       cfg.CloudinaryURL,
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("init blob store: %v", err)
	}

	janitor := blob.NewJanitor(cfg.AMQPURL, store, time.Duration(cfg.BlobCleanupTimeoutSecs)*time.Second, logger)
	logger.Println("consuming image cleanup jobs")
	if err := janitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("janitor stopped: %v", err)
	}
	logger.Println("shut down")
}
