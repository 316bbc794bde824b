package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Clark-Hu/videostore/db"
	"github.com/Clark-Hu/videostore/internal/auth"
	"github.com/Clark-Hu/videostore/internal/blob"
	"github.com/Clark-Hu/videostore/internal/catalog"
	"github.com/Clark-Hu/videostore/internal/config"
	httpserver "github.com/Clark-Hu/videostore/internal/http"
	"github.com/Clark-Hu/videostore/internal/repository"
	"github.com/Clark-Hu/videostore/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := log.New(os.Stdout, "[videostore] ", log.LstdFlags|log.Lshortfile)

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer st.Close()

	if cfg.DBAutoMigrate {
		if err := st.Migrate(dbCtx, db.Migrations, "migrations"); err != nil {
			log.Fatalf("migrate database: %v", err)
		}
	}

	blobs, err := newBlobStore(cfg, logger)
	if err != nil {
		log.Fatalf("init blob store: %v", err)
	}

	cleanupTimeout := time.Duration(cfg.BlobCleanupTimeoutSecs) * time.Second
	inline := blob.NewAsyncCleaner(blobs, cleanupTimeout, logger)
	var (
		cleaner blob.Cleaner = inline
		queue   *blob.QueueCleaner
	)
	if cfg.BlobCleanupMode == config.CleanupQueue {
		queue = blob.NewQueueCleaner(cfg.AMQPURL, inline, logger)
		cleaner = queue
	}

	rdb, err := httpserver.NewRedisClient(dbCtx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}
	cache := httpserver.NewCache(rdb, time.Duration(cfg.CacheTTLSecs)*time.Second, logger)

	repo := repository.New(st)
	svc := catalog.New(repo, blobs, cleaner, logger,
		catalog.WithIssuer(auth.NewIssuer(cfg.JWTSecret, time.Duration(cfg.JWTTTLMinutes)*time.Minute)),
		catalog.WithBcryptCost(cfg.BcryptCost))

	if cfg.AdminPassword != "" {
		admin, err := svc.EnsureAdmin(dbCtx, catalog.RegisterInput{
			UserName: cfg.AdminUserName,
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
		})
		if err != nil {
			log.Fatalf("ensure admin: %v", err)
		}
		logger.Printf("admin account %q ready", admin.UserName)
	}

	server := httpserver.New(cfg, st, svc, cache, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			log.Printf("server error: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("graceful shutdown error: %v", err)
	}
	if queue != nil {
		_ = queue.Close()
	}
	if err := inline.Wait(shutdownCtx); err != nil {
		log.Printf("pending image cleanups abandoned: %v", err)
	}
}

func newBlobStore(cfg config.Config, logger *log.Logger) (blob.Store, error) {
	if !cfg.HasCloudinary() {
		logger.Println("no cloudinary credentials; images are kept in memory")
		return blob.NewMemoryStore("http://localhost:" + cfg.Port + "/blobs"), nil
	}
	return blob.NewCloudinary(blob.CloudinaryOptions{
		URL:       cfg.CloudinaryURL,
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Logger:    logger,
	})
}
