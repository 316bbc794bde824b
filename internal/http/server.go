package httpserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Clark-Hu/videostore/internal/catalog"
	"github.com/Clark-Hu/videostore/internal/config"
	"github.com/Clark-Hu/videostore/internal/store"
)

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg     config.Config
	store   *store.Store
	catalog *catalog.Service
	cache   *Cache
	logger  *log.Logger
	router  chi.Router
	httpSrv *http.Server
}

// New constructs the HTTP server with base middleware and routes. cache may
// be nil, which disables response caching.
func New(cfg config.Config, st *store.Store, svc *catalog.Service, cache *Cache, logger *log.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		cfg:     cfg,
		store:   st,
		catalog: svc,
		cache:   cache,
		logger:  logger,
		router:  r,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/movies", func(r chi.Router) {
			r.With(s.cache.Middleware).Get("/", s.handleListMovies)
			r.With(s.cache.Middleware).Get("/{id}", s.handleGetMovie)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin, s.limitBody, s.cache.Invalidate)
				r.Post("/", s.handleCreateMovie)
				r.Put("/{id}", s.handleUpdateMovie)
				r.Delete("/{id}", s.handleDeleteMovie)
			})
		})

		r.Route("/directors", func(r chi.Router) {
			r.With(s.cache.Middleware).Get("/", s.handleListDirectors)
			r.With(s.cache.Middleware).Get("/{id}", s.handleGetDirector)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin, s.limitBody, s.cache.Invalidate)
				r.Post("/", s.handleCreateDirector)
				r.Post("/import", s.handleImportDirectors)
				r.Put("/{id}", s.handleUpdateDirector)
				r.Delete("/{id}", s.handleDeleteDirector)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(s.limitBody)
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Get("/", s.handleListUsers)
			r.Get("/{id}", s.handleGetUser)
			r.Put("/{id}", s.handleUpdateUser)
			r.Delete("/{id}", s.handleDeleteUser)
		})

		r.Route("/products", func(r chi.Router) {
			r.With(s.cache.Middleware).Get("/", s.handleListProducts)
			r.With(s.cache.Middleware).Get("/{id}", s.handleGetProduct)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin, s.limitBody, s.cache.Invalidate)
				r.Post("/", s.handleCreateProduct)
				r.Put("/{id}", s.handleUpdateProduct)
				r.Delete("/{id}", s.handleDeleteProduct)
			})
		})
	})
}

// Start boots the HTTP server asynchronously.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type healthResponse struct {
	Status string      `json:"status"`
	Pool   *poolHealth `json:"pool,omitempty"`
}

type poolHealth struct {
	Total    int32 `json:"total"`
	Idle     int32 `json:"idle"`
	Acquired int32 `json:"acquired"`
	Max      int32 `json:"max"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.store != nil {
		if err := s.store.HealthCheck(ctx); err != nil {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
	}
	if err := s.cache.Ping(ctx); err != nil {
		s.logger.Printf("cache ping failed: %v", err)
	}

	resp := healthResponse{Status: "ok"}
	if stat := s.store.Stats(); stat != nil {
		resp.Pool = &poolHealth{
			Total:    stat.TotalConns(),
			Idle:     stat.IdleConns(),
			Acquired: stat.AcquiredConns(),
			Max:      stat.MaxConns(),
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}
