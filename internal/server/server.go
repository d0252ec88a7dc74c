// Package server exposes the RAG pipeline over HTTP.
//
// It implements a graceful Echo server with upload, query, status, and
// health endpoints. Query failures never surface as HTTP errors: the
// handler degrades to an error answer so chat clients always get a
// well-formed response body.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/fyrsmithlabs/ragd/internal/query"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// queryService answers a query for a tenant. Satisfied by
// *query.Service.
type queryService interface {
	Answer(ctx context.Context, q string, tenant vectorstore.Tenant) (query.Result, error)
}

// pipelineRunner ingests a saved upload. Satisfied by *ingest.Pipeline.
type pipelineRunner interface {
	Run(ctx context.Context, path string, meta ingest.FileMetadata) error
}

// Server is the HTTP server for the RAG service.
type Server struct {
	cfg      *config.Config
	echo     *echo.Echo
	logger   *zap.Logger
	query    queryService
	pipeline pipelineRunner
	store    vectorstore.Store
}

// HealthResponse is the JSON response for the /health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(cfg *config.Config, querySvc queryService, pipeline pipelineRunner, store vectorstore.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		cfg:      cfg,
		echo:     e,
		logger:   logger,
		query:    querySvc,
		pipeline: pipeline,
		store:    store,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/query", s.handleQuery)
	v1.POST("/upload", s.handleUpload,
		middleware.BodyLimit(fmt.Sprintf("%dM", s.cfg.Ingest.MaxUploadMB)))
	v1.GET("/status/:file_id", s.handleStatus)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "ragd",
	})
}

// Start runs the server and blocks until ctx is cancelled. Returns
// http.ErrServerClosed on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			s.cfg.Server.ShutdownTimeout.Duration(),
		)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo returns the underlying Echo instance, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
