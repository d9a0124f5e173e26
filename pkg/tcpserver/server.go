// Package tcpserver runs a context-aware TCP accept loop, handing each
// accepted connection to a handler on its own goroutine.
package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// ConnHandler owns one accepted connection until it returns.
type ConnHandler func(conn net.Conn)

// Server wraps the TCP listener lifecycle.
type Server struct {
	Addr string

	logger *slog.Logger
}

// New creates a Server for the given listen address.
func New(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Addr:   addr,
		logger: logger,
	}
}

// ListenAndServe listens on the server's address and accepts connections
// until the context is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, handler ConnHandler) error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("tcpserver: listen %q: %w", s.Addr, err)
	}
	return s.Serve(ctx, listener, handler)
}

// Serve accepts connections from an existing listener until the context is
// cancelled. Cancellation closes the listener, which deterministically
// unblocks the pending Accept; in-flight handlers keep their connections.
func (s *Server) Serve(ctx context.Context, listener net.Listener, handler ConnHandler) error {
	defer listener.Close()

	if handler == nil {
		return errors.New("tcpserver: connection handler required")
	}

	shutdown := make(chan struct{})
	defer close(shutdown)

	go func() {
		select {
		case <-ctx.Done():
			if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Error("listener close failed", "error", err)
			}
		case <-shutdown:
		}
	}()

	s.logger.Info("listening", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		go handler(conn)
	}
}
