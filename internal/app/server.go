package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/security"
)

type Server struct {
	router     *gin.Engine
	container  *Container
	httpServer *http.Server
	workers    *Workers
}

func NewServer(container *Container) *Server {
	s := &Server{
		router:    SetupRouter(container),
		container: container,
	}
	if container.Config.Server.EmbeddedWorkers {
		s.workers = NewWorkers(container)
	}
	return s
}

func (s *Server) Start() error {
	ctx := context.Background()
	if s.workers != nil {
		s.workers.Start()
	}

	limiterCtx, stopLimiter := context.WithCancel(ctx)
	defer stopLimiter()
	if rl, ok := s.container.GetRateLimiter().(*security.InMemoryRateLimiter); ok {
		go rl.Run(limiterCtx, 5*time.Minute)
	}

	cfg := s.container.Config.Server
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    durationOr(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:   durationOr(cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:    durationOr(cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes: 1 << 20,
	}

	s.container.Logger.Info(ctx,
		fmt.Sprintf("Starting server on %s", addr),
		zap.String("env", cfg.Env),
		zap.Bool("embedded_workers", s.workers != nil),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server failed: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		s.stopWorkers()
		return err
	case sig := <-sigChan:
		s.container.Logger.Info(ctx, "Shutdown signal received", zap.String("signal", sig.String()))
		return s.gracefulShutdown()
	}
}

func (s *Server) stopWorkers() {
	if s.workers == nil {
		return
	}
	s.container.Logger.Info(context.Background(), "Stopping background workers...")
	s.workers.Stop(10 * time.Second)
}

func (s *Server) gracefulShutdown() error {
	ctx := context.Background()
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, durationOr(s.container.Config.Server.ShutdownTimeout, 30*time.Second))
	defer shutdownCancel()

	s.container.Logger.Info(ctx, "Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.container.Logger.Error(ctx, "HTTP server shutdown failed", zap.Error(err))
	}

	s.stopWorkers()

	s.container.Logger.Info(ctx, "Closing infrastructure connections...")
	s.container.Close()
	s.container.Logger.Info(ctx, "Server exited gracefully")
	return nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
