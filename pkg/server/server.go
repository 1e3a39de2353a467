// Package server exposes the HTTP API over the issue registry, the
// remediation engine and the patch pipeline.
package server

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/adityassharma-ss/kubefix/pkg/patch"
	"github.com/adityassharma-ss/kubefix/pkg/registry"
	"github.com/adityassharma-ss/kubefix/pkg/remediate"
)

// Server wraps the echo engine and its handler wiring.
type Server struct {
	echo   *echo.Echo
	addr   string
	logger *zap.Logger
}

// New assembles the HTTP server. The remediation engine may be nil; the
// analyze/remediate endpoints then answer 503.
func New(addr string, reg *registry.Registry, pipeline *patch.Pipeline, engine *remediate.Engine, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h := &Handler{
		registry: reg,
		pipeline: pipeline,
		engine:   engine,
		logger:   logger.Named("api"),
	}
	h.SetupRoutes(e)

	return &Server{echo: e, addr: addr, logger: logger.Named("server")}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.addr))
	return s.echo.Start(s.addr)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
