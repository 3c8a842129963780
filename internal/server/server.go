// Package server runs the admin HTTP listener.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"overlay-router/internal/common/logging"
)

// Server represents an HTTP server
type Server struct {
	srv    *http.Server
	logger logging.Logger

	listener net.Listener
	done     chan struct{}
}

// New creates a server for handler on address
func New(handler http.Handler, address string, logger logging.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         address,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logging.Component(logger, "server"),
	}
}

// Start binds the listener and serves in the background. Bind errors are
// returned here rather than from the serving goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Admin server stopped", err, logging.String("address", ln.Addr().String()))
		}
	}()

	s.logger.Info("Admin server listening", logging.String("address", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.srv.Addr
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	<-s.done
	return nil
}
