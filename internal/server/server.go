// Package server wires the chi router, middleware, and handlers into the
// geolytics HTTP service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/geolytics/geolytics/internal/cluster"
	"github.com/geolytics/geolytics/internal/drivetest"
	"github.com/geolytics/geolytics/internal/federation"
	"github.com/geolytics/geolytics/internal/gridmap"
	"github.com/geolytics/geolytics/internal/handler"
	"github.com/geolytics/geolytics/internal/project"
	"github.com/geolytics/geolytics/internal/schema"
	"github.com/geolytics/geolytics/internal/server/middleware"
	"github.com/geolytics/geolytics/internal/template"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	UploadPerMinute int
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8000,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		UploadPerMinute: 30,
	}
}

// Server is the top-level HTTP server. It owns the router, the cluster
// registry, and the query engine.
type Server struct {
	cfg        Config
	router     chi.Router
	registry   *cluster.Registry
	engine     *federation.Engine
	templates  *template.Store
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes and middleware wired, ready to
// listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, registry *cluster.Registry, resolver *project.Resolver, engine *federation.Engine, templates *template.Store, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		registry:  registry,
		engine:    engine,
		templates: templates,
		logger:    logger,
	}
	s.setupRouter(resolver)
	return s
}

func (s *Server) setupRouter(resolver *project.Resolver) {
	r := chi.NewRouter()

	r.Use(middleware.Correlate)
	r.Use(middleware.AccessLog(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{middleware.CorrelationHeader, "Content-Disposition"},
		MaxAge:         300,
	}))
	r.Use(chimw.Compress(5))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	catalog := handler.NewCatalogHandler(s.registry, resolver, s.engine)
	query := handler.NewQueryHandler(s.engine)
	templates := handler.NewTemplateHandler(s.templates)
	uploads := handler.NewUploadHandler(drivetest.NewStore(), gridmap.NewStore(), gridmap.NewLoader(schema.NewProber(s.registry)))
	exports := handler.NewExportHandler()

	r.Get("/databases", catalog.ListDatabases)
	r.Get("/projects", catalog.ListProjects)
	r.Get("/projects/{project}/types", catalog.ListTypes)
	r.Get("/projects/{project}/config", catalog.GetConfig)
	r.Get("/columns/{project}", catalog.Columns)
	r.Get("/distinct-values/{table}", catalog.DistinctValues)
	r.Get("/bands/{table}", catalog.Bands)
	r.Get("/column-range", catalog.ColumnRange)

	r.Get("/query", query.Query)
	r.Get("/progress", query.Progress)

	r.Get("/templates", templates.List)
	r.Get("/template/{name}", templates.Get)
	r.Post("/save-template", templates.Save)

	r.Post("/export", exports.Export)

	r.Get("/drive-test/columns", uploads.DriveTestColumns)
	r.Get("/drive-test/column-range", uploads.DriveTestColumnRange)
	r.Get("/grid-map/column-range", uploads.GridMapColumnRange)
	r.Get("/grid-map/from-table", uploads.GridMapFromTable)

	// Uploads are rate limited; parsing a big XLSX is not free.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(s.cfg.UploadPerMinute))
		r.Post("/upload-drive-test", uploads.UploadDriveTest)
		r.Post("/upload-grid-map", uploads.UploadGridMap)
		r.Post("/generate-grid", uploads.GenerateGrid)
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 once the registry holds at
// least one discovered database, 503 before the first successful scan.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	if s.registry.Len() == 0 {
		status = "no databases discovered"
		httpStatus = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"databases": s.registry.Len(),
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing all database connections.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.registry.Close()
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
