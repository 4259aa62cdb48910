// Package server exposes the task store over an HTTP control API and fans
// every store change out to connected push channels.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tasksync/internal/logging"
	"tasksync/internal/store"
	"tasksync/internal/wire"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	Store  *store.Store
	Token  string
	Logger *slog.Logger
	Hub    HubOptions
}

// Server is the sync server.
type Server struct {
	store       *store.Store
	hub         *Hub
	logger      *slog.Logger
	router      *gin.Engine
	unsubscribe func()
}

// New creates a server and subscribes it to store changes.
func New(opts Options) *Server {
	logger := logging.OrDiscard(opts.Logger)
	if opts.Hub.Logger == nil {
		opts.Hub.Logger = logger
	}

	router := gin.New()
	// Match on the escaped path so task ids may contain '/'.
	router.UseRawPath = true
	router.UnescapePathValues = true
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		store:  opts.Store,
		hub:    NewHub(opts.Hub),
		logger: logger,
		router: router,
	}

	router.GET("/healthz", s.handleHealth)
	router.GET("/ws", s.handlePush)

	api := router.Group("/api")
	{
		api.GET("/tasks", s.handleList)
		api.GET("/snapshot", s.handleSnapshot)
	}

	control := router.Group("/api", requireToken(opts.Token))
	{
		control.POST("/tasks", s.handleAdd)
		control.POST("/tasks/toggle-next", s.handleToggleNext)
		control.POST("/tasks/reset", s.handleReset)
		control.POST("/tasks/:id/toggle", s.handleToggle)
		control.DELETE("/tasks/:id", s.handleDelete)
		control.PUT("/tasks/:id", s.handleEdit)
		control.POST("/tasks/:id/move-up", s.handleMoveUp)
		control.POST("/tasks/:id/move-down", s.handleMoveDown)
		control.POST("/tasks/:id/move", s.handleMoveTo)
		control.POST("/select", s.handleSelect)
	}

	s.unsubscribe = opts.Store.Subscribe(s.publish)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the push channel registry.
func (s *Server) Hub() *Hub { return s.hub }

// publish runs under the store lock for every change.
func (s *Server) publish(ch store.Change) {
	frame, err := wire.Encode(ch.Snapshot, wire.SourceWS)
	if err != nil {
		s.logger.Error("encode snapshot failed", "op", ch.Op, "error", err)
		return
	}
	s.hub.Broadcast(frame)
}

// Serve accepts connections on ln until ctx is cancelled, then drains
// in-flight requests, disconnects push channels and flushes the store.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("sync server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.hub.Close()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Close detaches from the store, closes push channels and flushes any
// pending mirror write.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.hub.Close()
	if err := s.store.Flush(); err != nil {
		s.logger.Error("flush on shutdown failed", "error", err)
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/ws" {
			return
		}
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
