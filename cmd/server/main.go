package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liamcoop/mbsrules/catalog"
	"github.com/liamcoop/mbsrules/internal/config"
	"github.com/liamcoop/mbsrules/internal/logger"
	"github.com/liamcoop/mbsrules/internal/metrics"
	"github.com/liamcoop/mbsrules/rules"
	_ "github.com/lib/pq"
)

// CatalogSource is the catalog as the server sees it: readable and refreshable.
type CatalogSource interface {
	catalog.Provider
	catalog.Refresher
}

// ServerOptions configures a Server.
type ServerOptions struct {
	// RequestTimeout bounds each request. Zero disables the timeout middleware.
	RequestTimeout time.Duration

	// Metrics, when set, instruments requests and serves /metrics.
	Metrics *metrics.Manager
}

type Server struct {
	catalog    CatalogSource
	validator  *rules.Validator
	conditions *rules.ConditionChecker
	metrics    *metrics.Manager
	router     *chi.Mux
}

func NewServer(source CatalogSource, opts ServerOptions) (*Server, error) {
	checker, err := rules.NewConditionChecker(source)
	if err != nil {
		return nil, fmt.Errorf("failed to create condition checker: %w", err)
	}

	s := &Server{
		catalog:    source,
		validator:  rules.NewValidator(source),
		conditions: checker,
		metrics:    opts.Metrics,
	}

	s.setupRoutes(opts.RequestTimeout)

	return s, nil
}

func (s *Server) setupRoutes(timeout time.Duration) {
	r := chi.NewRouter()

	// Middleware
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	if s.metrics != nil {
		r.Use(s.instrument)
	}
	r.Use(middleware.Recoverer)
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	r.Get("/api/v1/health", s.handleHealth)

	r.Post("/api/v1/rules/evaluate", s.handleEvaluate)

	r.Route("/api/v1/selection", func(r chi.Router) {
		r.Post("/validate", s.handleValidateSelection)
		r.Post("/conditions", s.handleCheckConditions)
	})

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/", s.handleListCatalog)
		r.Post("/refresh", s.handleRefreshCatalog)
		r.Get("/{code}", s.handleGetCatalogEntry)
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// openCatalog builds the catalog cache for the configured source. The returned
// cleanup closes whatever the source opened.
func openCatalog(ctx context.Context, cfg *config.Config, m *metrics.Manager) (*catalog.Cache, func(), error) {
	cacheCfg := catalog.DefaultCacheConfig()
	cacheCfg.TTL = cfg.CatalogTTL
	cacheCfg.Logger = logger.Logger
	if m != nil {
		cacheCfg.OnLoad = m.ObserveCatalogLoad
	}

	switch cfg.CatalogSource {
	case config.SourcePostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		store := catalog.NewPostgresCatalogStore(db)
		cache := catalog.NewCache(catalog.NewStoreLoader(store), cacheCfg)
		return cache, func() { db.Close() }, nil

	default:
		loader := catalog.NewFileLoader(cfg.Paths()...)
		logger.Info("Catalog file source", "paths", loader.Paths())
		cache := catalog.NewCache(loader, cacheCfg)
		if !cfg.WatchCatalog {
			return cache, func() {}, nil
		}

		path, err := loader.Resolve()
		if err != nil {
			logger.Warn("catalog watch disabled, no catalog file found", "error", err)
			return cache, func() {}, nil
		}
		watcher, err := catalog.NewWatcher(catalog.WatcherConfig{Path: path, Logger: logger.Logger}, cache)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create catalog watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			watcher.Close()
			return nil, nil, fmt.Errorf("failed to start catalog watcher: %w", err)
		}
		return cache, func() { watcher.Close() }, nil
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}
	if err := logger.Configure(cfg.LogLevel, cfg.ErrorSampleRate); err != nil {
		logger.Warn("Invalid log level, using INFO", "error", err)
	}

	var m *metrics.Manager
	if cfg.MetricsEnabled {
		m = metrics.NewManager()
	}

	cache, closeCatalog, err := openCatalog(ctx, cfg, m)
	if err != nil {
		logger.Fatal("Failed to open catalog", "source", cfg.CatalogSource, "error", err)
	}
	defer closeCatalog()

	// Warm the catalog so the first request does not pay for the load.
	logger.Info("Catalog ready", "source", cfg.CatalogSource, "entries", cache.Snapshot(ctx).Len())

	server, err := NewServer(cache, ServerOptions{RequestTimeout: cfg.RequestTimeout, Metrics: m})
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}
