// Package server implements the plugin side of the command protocol: a TCP
// listener that reads one command frame at a time from each connection,
// dispatches it and writes back exactly one response frame.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadbridge/cadbridge/pkg/plugin/protocol"
	"github.com/cadbridge/cadbridge/pkg/telemetry"
)

// Dispatcher turns a command into a response. Implementations must not panic
// out of Dispatch; the server recovers anyway.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd *protocol.Command) protocol.Response
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, cmd *protocol.Command) protocol.Response

// Dispatch calls f(ctx, cmd).
func (f DispatcherFunc) Dispatch(ctx context.Context, cmd *protocol.Command) protocol.Response {
	return f(ctx, cmd)
}

// Config contains server configuration options.
type Config struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"gte=0,lte=65535"`

	// IdleTimeout bounds the wait for the next frame on a connection.
	IdleTimeout time.Duration `yaml:"idle_timeout" validate:"gte=0"`
}

// DefaultConfig returns the default listen configuration.
func DefaultConfig() Config {
	return Config{
		Host:        "localhost",
		Port:        8765,
		IdleTimeout: 30 * time.Second,
	}
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server accepts plugin connections and serves commands on them.
type Server struct {
	config     Config
	dispatcher Dispatcher
	logger     zerolog.Logger
	metrics    *telemetry.Metrics
	tracer     *telemetry.Tracer

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger.With().Str("component", "server").Logger()
	}
}

// WithMetrics records per-command and per-connection metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithTracer starts a span per dispatched command.
func WithTracer(t *telemetry.Tracer) Option {
	return func(s *Server) {
		s.tracer = t
	}
}

// New creates a stopped server.
func New(cfg Config, dispatcher Dispatcher, opts ...Option) *Server {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultConfig().IdleTimeout
	}
	s := &Server{
		config:     cfg,
		dispatcher: dispatcher,
		logger:     zerolog.Nop(),
		conns:      make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listener and begins accepting connections. It returns once
// the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("server already running on %s", s.listener.Addr())
	}

	listener, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.listener = listener
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.acceptLoop(ctx, listener)
	}()

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("plugin server listening")
	return nil
}

// Addr returns the bound address, or nil when the server is stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Running reports whether the server is listening.
func (s *Server) Running() bool {
	return s.Addr() != nil
}

// Stop closes the listener and every open connection, then waits for all
// connection goroutines to exit. Stop on a stopped server is a no-op.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.listener.Close()
	for conn := range s.conns {
		conn.Close()
	}
	done := s.done
	s.listener = nil
	s.mu.Unlock()

	<-done
	s.logger.Info().Msg("plugin server stopped")
}

// Serve starts the server and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// acceptLoop accepts connections until the listener is closed. It waits for
// all connection goroutines before returning.
func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) {
	defer s.wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error().Err(err).Msg("accept failed")
			continue
		}

		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	s.metrics.ConnectionOpened()
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
	s.metrics.ConnectionClosed()
}

// serveConn runs the read, dispatch, write loop for one connection.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	logger := s.logger.With().Str("remote_addr", conn.RemoteAddr().String()).Logger()
	logger.Debug().Msg("connection accepted")

	decoder := protocol.NewDecoder(conn)
	encoder := protocol.NewEncoder(conn)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout)); err != nil {
			logger.Debug().Err(err).Msg("failed to set read deadline")
			return
		}

		cmd, err := decoder.DecodeCommand()
		switch {
		case err == nil:
		case errors.Is(err, protocol.ErrMissingCommand):
			// Answered by the dispatcher like any other command.
		case errors.Is(err, io.EOF):
			logger.Debug().Msg("connection closed by peer")
			return
		case errors.Is(err, os.ErrDeadlineExceeded):
			logger.Debug().Dur("idle_timeout", s.config.IdleTimeout).Msg("connection idle, closing")
			return
		case protocol.IsDecodeError(err):
			logger.Warn().Err(err).Msg("malformed frame")
			if werr := encoder.EncodeResponse(protocol.Failure(err.Error())); werr != nil {
				logger.Debug().Err(werr).Msg("failed to send parse error")
			}
			return
		default:
			if ctx.Err() == nil {
				logger.Debug().Err(err).Msg("read failed")
			}
			return
		}

		resp := s.dispatch(ctx, cmd)
		if err := encoder.EncodeResponse(resp); err != nil {
			logger.Debug().Err(err).Msg("write failed")
			return
		}
	}
}

// dispatch runs one command, recovering panics from the dispatcher.
func (s *Server) dispatch(ctx context.Context, cmd *protocol.Command) (resp protocol.Response) {
	timer := telemetry.NewTimer()
	ctx, span := s.tracer.StartCommandSpan(ctx, cmd.Name)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("command", cmd.Name).Msg("dispatcher panicked")
			resp = protocol.Failure("Command '%s' execution failed: %v", cmd.Name, r)
		}
		if resp.Failed() {
			telemetry.RecordFailure(span, resp.Error)
		} else {
			telemetry.RecordSuccess(span)
		}
		span.End()
		s.metrics.RecordCommand(cmd.Name, resp.Failed(), timer.Duration())
	}()

	return s.dispatcher.Dispatch(ctx, cmd)
}
