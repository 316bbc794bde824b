package httpserver

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCachePrefix = "videostore:http"

// Cache stores GET responses in Redis. Every successful write bumps a
// generation counter that is part of each key, so stale entries are never
// read again and simply expire.
type Cache struct {
	rdb     *redis.Client
	ttl     time.Duration
	prefix  string
	maxBody int64
	logger  *log.Logger
}

// NewCache returns a cache backed by rdb. A nil client yields nil, which
// disables caching.
func NewCache(rdb *redis.Client, ttl time.Duration, logger *log.Logger) *Cache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{rdb: rdb, ttl: ttl, prefix: defaultCachePrefix, maxBody: 1 << 20, logger: logger}
}

// NewRedisClient parses url and pings the server. It returns nil when url is
// empty.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Ping checks the Redis connection. A disabled cache is always healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) generationKey() string {
	return c.prefix + ":gen"
}

func (c *Cache) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *Cache) key(gen int64, r *http.Request) string {
	sum := sha1.Sum([]byte(r.URL.Path + "?" + r.URL.RawQuery))
	return fmt.Sprintf("%s:%d:%x", c.prefix, gen, sum[:])
}

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	// a negative limit only tracks the status
	if cw.limit == 0 || (cw.limit > 0 && cw.size+int64(len(b)) <= cw.limit) {
		cw.buf.Write(b)
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// Middleware serves cached GET responses and stores fresh 200 responses.
func (c *Cache) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		gen, err := c.generation(ctx)
		if err != nil {
			c.logger.Printf("cache: read generation: %v", err)
			next.ServeHTTP(w, r)
			return
		}
		key := c.key(gen, r)

		if bs, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
			if status, hdr, body, ok := decodePayload(bs); ok {
				for k, vals := range hdr {
					if strings.EqualFold(k, "Content-Length") {
						continue
					}
					for _, v := range vals {
						w.Header().Add(k, v)
					}
				}
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(status)
				_, _ = w.Write(body)
				return
			}
		}

		w.Header().Set("X-Cache", "MISS")
		cw := &captureWriter{ResponseWriter: w, status: http.StatusOK, limit: c.maxBody}
		next.ServeHTTP(cw, r)

		if cw.status != http.StatusOK || (c.maxBody > 0 && cw.size > c.maxBody) {
			return
		}
		hdr := w.Header().Clone()
		hdr.Del("X-Cache")
		payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
		if err != nil {
			return
		}
		storeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := c.rdb.Set(storeCtx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Printf("cache: store %s: %v", r.URL.Path, err)
		}
	})
}

// Invalidate bumps the generation after every write answered below 400.
func (c *Cache) Invalidate(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cw := &captureWriter{ResponseWriter: w, status: http.StatusOK, limit: -1}
		next.ServeHTTP(cw, r)
		if cw.status >= http.StatusBadRequest {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := c.rdb.Incr(ctx, c.generationKey()).Err(); err != nil {
			c.logger.Printf("cache: bump generation: %v", err)
		}
	})
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:8+len(hdrJSON)], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}
