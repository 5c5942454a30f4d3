package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raniellyferreira/resp-server/protocol"
)

// Logger is the logging interface used by the server. Fields are passed as
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// MetricsCollector receives server and codec events
type MetricsCollector interface {
	RecordConnectionOpened()
	RecordConnectionClosed()
	RecordBytesReceived(n int)
	RecordFrameDecoded(t protocol.Type)
	RecordProtocolError(kind string)
	RecordCommand(cmd string, duration time.Duration)
}

// Config holds the network settings and decoder limits of a Server
type Config struct {
	// Addr is the TCP address to listen on
	Addr string

	// ReadTimeout bounds a single read from a client. Zero disables it.
	ReadTimeout time.Duration

	// WriteTimeout bounds flushing the replies of one read batch
	WriteTimeout time.Duration

	// IdleTimeout closes connections that send nothing for this long
	IdleTimeout time.Duration

	// RateLimit is the number of commands per second allowed on a single
	// connection, with RateBurst extra. Zero means unlimited.
	RateLimit float64
	RateBurst int

	// Limits bound what is accepted from clients
	Limits protocol.Limits
}

// DefaultConfig returns the configuration used by the resp-server binary
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:6379",
		ReadTimeout:  0,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  5 * time.Minute,
		Limits:       protocol.DefaultLimits(),
	}
}

// Option configures optional Server collaborators
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(metrics MetricsCollector) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// ErrServerClosed is returned by Start after Stop has been called
var ErrServerClosed = errors.New("server: closed")

// Server accepts RESP connections and dispatches their commands to a Handler
type Server struct {
	cfg     Config
	handler Handler
	logger  Logger
	metrics MetricsCollector

	// Connection management
	mu       sync.Mutex
	listener net.Listener
	clients  *registry
	closed   bool

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Counters
	connCount     atomic.Int64
	commandCount  atomic.Int64
	errorCount    atomic.Int64
	protocolCount atomic.Int64
	bytesReceived atomic.Int64
}

// New creates a server. A nil handler selects BasicHandler.
func New(cfg Config, handler Handler, opts ...Option) *Server {
	if handler == nil {
		handler = BasicHandler{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  nopLogger{},
		clients: newRegistry(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins listening and accepting connections in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.listener != nil {
		return fmt.Errorf("server already listening on %s", s.listener.Addr())
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.serveListener(ln)
	return nil
}

// serveListener starts accepting on ln. The caller holds s.mu.
func (s *Server) serveListener(ln net.Listener) {
	s.listener = ln
	s.logger.Info("Listening", "addr", ln.Addr().String())

	s.wg.Add(1)
	go s.acceptConnections(ln)
}

// Stop closes the listener and every client connection, then waits for the
// connection goroutines to exit
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.listener
	s.mu.Unlock()

	s.cancel()

	var err error
	if ln != nil {
		err = ln.Close()
	}

	s.clients.each(func(c *Client) {
		c.Close()
	})

	s.wg.Wait()
	s.logger.Info("Server stopped", "connections", s.connCount.Load())
	return err
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Stats returns server statistics
func (s *Server) Stats() map[string]interface{} {
	return map[string]interface{}{
		"connected_clients": s.clients.len(),
		"total_connections": s.connCount.Load(),
		"total_commands":    s.commandCount.Load(),
		"total_errors":      s.errorCount.Load(),
		"protocol_errors":   s.protocolCount.Load(),
		"bytes_received":    s.bytesReceived.Load(),
	}
}

// CloseClient disconnects the client with the given id. It reports whether
// such a client was connected.
func (s *Server) CloseClient(id string) bool {
	c, ok := s.clients.get(id)
	if ok {
		c.Close()
	}
	return ok
}

// acceptConnections accepts new client connections
func (s *Server) acceptConnections(ln net.Listener) {
	defer s.wg.Done()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			// EMFILE, ECONNABORTED and the like are retried
			delay = backoff(delay)
			s.logger.Error("Accept failed", "error", err, "retry_in", delay)
			select {
			case <-time.After(delay):
			case <-s.ctx.Done():
				return
			}
			continue
		}
		delay = 0

		s.handleNewClient(conn)
	}
}

func backoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}

// handleNewClient registers a connection and starts serving it
func (s *Server) handleNewClient(conn net.Conn) {
	s.connCount.Add(1)
	if s.metrics != nil {
		s.metrics.RecordConnectionOpened()
	}

	client := newClient(s, conn)
	s.clients.add(client)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.clients.remove(client.id)
		client.serve()
	}()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
