package blob

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Cleaner discards images that no record references any more. Discard never
// blocks the caller and never reports failures; they are logged.
type Cleaner interface {
	Discard(url, reason string)
}

// Purge removes the image behind url if it still exists.
func Purge(ctx context.Context, store Store, url, reason string, logger *log.Logger) error {
	if url == "" {
		return nil
	}
	publicID := PublicID(url)
	exists, err := store.Exists(ctx, publicID)
	if err != nil {
		return fmt.Errorf("check %s: %w", publicID, err)
	}
	if !exists {
		return nil
	}
	if err := store.Delete(ctx, publicID); err != nil {
		return err
	}
	if logger != nil {
		logger.Printf("blob: archivo %q eliminado debido a: %s", publicID, reason)
	}
	return nil
}

// AsyncCleaner purges each image on its own goroutine with a bounded timeout.
type AsyncCleaner struct {
	store   Store
	logger  *log.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsyncCleaner builds a cleaner backed by store.
func NewAsyncCleaner(store Store, timeout time.Duration, logger *log.Logger) *AsyncCleaner {
	if logger == nil {
		logger = log.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AsyncCleaner{store: store, logger: logger, timeout: timeout}
}

// Discard schedules the removal of url.
func (c *AsyncCleaner) Discard(url, reason string) {
	if url == "" {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := Purge(ctx, c.store, url, reason, c.logger); err != nil {
			c.logger.Printf("blob: discard %s failed: %v", url, err)
		}
	}()
}

// Wait blocks until every scheduled removal finished or ctx is done.
func (c *AsyncCleaner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
