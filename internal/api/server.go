package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Server owns the HTTP listener.
type Server struct {
	echo *echo.Echo
	addr string
}

// NewServer builds the routes for deps and binds them to addr on Start.
func NewServer(addr string, deps *Dependencies) *Server {
	e := New(deps)
	e.Server.ReadHeaderTimeout = 10 * time.Second
	return &Server{echo: e, addr: addr}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
