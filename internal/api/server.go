package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"homekeep/internal/engine"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the scheduling engine over HTTP/JSON.
type Server struct {
	svc    *engine.Service
	router *gin.Engine
	logger *slog.Logger
}

type Options struct {
	Logger *slog.Logger
	// JWTKey enables HMAC bearer-token auth on /api routes.
	JWTKey string
}

func NewServer(svc *engine.Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		svc:    svc,
		router: router,
		logger: logger,
	}

	router.GET("/health", s.handleHealth)

	api := router.Group("/api")
	if opts.JWTKey != "" {
		api.Use(auth(opts.JWTKey))
	}
	{
		api.GET("/tasks", s.handleListTasks)
		api.POST("/tasks", s.handleCreateTask)
		api.GET("/tasks/due", s.handleDueTasks)
		api.GET("/tasks/:id", s.handleGetTask)
		api.POST("/tasks/:id/complete", s.handleCompleteTask)
		api.GET("/tasks/:id/history", s.handleTaskHistory)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
