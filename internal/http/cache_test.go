package httpserver

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(rdb, time.Minute, log.New(io.Discard, "", 0)), mr
}

func countingHandler(calls *int32, status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func TestCacheMiddlewareHitAfterMiss(t *testing.T) {
	cache, _ := newTestCache(t)
	var calls int32
	h := cache.Middleware(countingHandler(&calls, http.StatusOK, `[{"title":"Dune"}]`))

	for i, want := range []string{"MISS", "HIT"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/movies?title=dune", nil))
		if got := rec.Header().Get("X-Cache"); got != want {
			t.Fatalf("request %d X-Cache = %q, want %q", i, got, want)
		}
		if rec.Body.String() != `[{"title":"Dune"}]` {
			t.Fatalf("request %d body = %q", i, rec.Body.String())
		}
		if rec.Header().Get("Content-Type") != "application/json" {
			t.Fatalf("request %d content type = %q", i, rec.Header().Get("Content-Type"))
		}
	}
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/movies?title=arrival", nil))
	if rec.Header().Get("X-Cache") != "MISS" || calls != 2 {
		t.Fatalf("different query served from cache")
	}
}

func TestCacheSkipsErrorResponses(t *testing.T) {
	cache, _ := newTestCache(t)
	var calls int32
	h := cache.Middleware(countingHandler(&calls, http.StatusNotFound, `{"code":"NOT_FOUND"}`))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/movies", nil))
		if rec.Code != http.StatusNotFound || rec.Header().Get("X-Cache") != "MISS" {
			t.Fatalf("request %d: status %d cache %q", i, rec.Code, rec.Header().Get("X-Cache"))
		}
	}
	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2", calls)
	}
}

func TestCacheInvalidateOnWrite(t *testing.T) {
	cache, mr := newTestCache(t)
	var reads, writes int32
	read := cache.Middleware(countingHandler(&reads, http.StatusOK, `[]`))
	okWrite := cache.Invalidate(countingHandler(&writes, http.StatusCreated, `{}`))
	badWrite := cache.Invalidate(countingHandler(&writes, http.StatusBadRequest, `{}`))

	get := func() string {
		rec := httptest.NewRecorder()
		read.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/directors", nil))
		return rec.Header().Get("X-Cache")
	}

	get()
	if got := get(); got != "HIT" {
		t.Fatalf("X-Cache = %q, want HIT", got)
	}

	badWrite.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/directors", nil))
	if got := get(); got != "HIT" {
		t.Fatalf("rejected write invalidated cache: X-Cache = %q", got)
	}

	okWrite.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/directors", nil))
	if got := get(); got != "MISS" {
		t.Fatalf("X-Cache after write = %q, want MISS", got)
	}
	if gen, _ := mr.Get(cache.generationKey()); gen != "1" {
		t.Fatalf("generation = %q, want 1", gen)
	}
}

func TestCacheExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	var calls int32
	h := cache.Middleware(countingHandler(&calls, http.StatusOK, `[]`))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/products", nil))
	mr.FastForward(2 * time.Minute)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
	if rec.Header().Get("X-Cache") != "MISS" || calls != 2 {
		t.Fatalf("expired entry served: X-Cache %q calls %d", rec.Header().Get("X-Cache"), calls)
	}
}

func TestNilCacheIsTransparent(t *testing.T) {
	var cache *Cache
	var calls int32
	h := cache.Invalidate(cache.Middleware(countingHandler(&calls, http.StatusOK, `ok`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Cache") != "" || calls != 1 {
		t.Fatalf("nil cache altered response")
	}
	if err := cache.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if NewCache(nil, time.Minute, nil) != nil {
		t.Fatal("NewCache(nil) should disable caching")
	}
}

func TestPayloadRoundTripRejectsGarbage(t *testing.T) {
	if _, _, _, ok := decodePayload([]byte{0, 1}); ok {
		t.Fatal("short payload accepted")
	}
	if _, _, _, ok := decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0}); ok {
		t.Fatal("header length past end accepted")
	}
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte("body"))
	if err != nil {
		t.Fatal(err)
	}
	status, got, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || got.Get("Content-Type") != "application/json" || string(body) != "body" {
		t.Fatalf("decoded %d %v %q %v", status, got, body, ok)
	}
}
