package respserver

import (
	"context"
	"fmt"
	"sync"

	"github.com/raniellyferreira/resp-server/lua"
	"github.com/raniellyferreira/resp-server/server"
)

// Instance is a RESP2 server with its configuration applied
type Instance struct {
	config *config
	server *server.Server
	script *lua.Engine

	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
}

// New creates a new Instance with the given options
//
// The instance is created but not started. Use Start() to begin accepting
// connections.
//
// Example:
//
//	inst, err := respserver.New(
//		respserver.WithAddr("127.0.0.1:6379"),
//		respserver.WithHandler(myHandler),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
func New(opts ...Option) (*Instance, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := &serverLogger{logger: cfg.logger}
	inst := &Instance{
		config: cfg,
		done:   make(chan struct{}),
	}

	handler := cfg.handler
	if cfg.scriptPath != "" {
		engine, err := lua.LoadFile(cfg.scriptFs, cfg.scriptPath, lua.WithLogger(logger))
		if err != nil {
			return nil, &ConfigError{Option: "script", Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err)}
		}
		inst.script = engine
		handler = engine
	}

	serverOpts := []server.Option{server.WithLogger(logger)}
	if cfg.metrics != nil {
		serverOpts = append(serverOpts, server.WithMetrics(cfg.metrics))
	}
	inst.server = server.New(cfg.serverConfig(), handler, serverOpts...)

	return inst, nil
}

// Start begins accepting connections. It returns once the listener is
// bound. Cancelling ctx closes the instance.
func (i *Instance) Start(ctx context.Context) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return ErrClosed
	}
	if i.started {
		i.mu.Unlock()
		return ErrAlreadyStarted
	}
	if err := i.server.Start(); err != nil {
		i.mu.Unlock()
		return &ConnectionError{Addr: i.config.addr, Err: err}
	}
	i.started = true
	i.mu.Unlock()

	i.config.logger.Info("RESP server started",
		Field{Key: "addr", Value: i.server.Addr()},
		Field{Key: "version", Value: Version})

	go func() {
		select {
		case <-ctx.Done():
			_ = i.Close()
		case <-i.done:
		}
	}()

	return nil
}

// Close stops the listener and disconnects every client. It is safe to call
// more than once.
func (i *Instance) Close() error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	close(i.done)
	i.mu.Unlock()

	err := i.server.Stop()
	if i.script != nil {
		i.script.Close()
	}
	return err
}

// Done is closed when the instance is closed
func (i *Instance) Done() <-chan struct{} {
	return i.done
}

// Addr returns the listening address, which resolves port 0 after Start
func (i *Instance) Addr() string {
	return i.server.Addr()
}

// CloseClient disconnects a client by the id handlers see in
// server.ClientFromContext
func (i *Instance) CloseClient(id string) bool {
	return i.server.CloseClient(id)
}

// Stats returns a snapshot of server activity
func (i *Instance) Stats() Stats {
	m := i.server.Stats()

	stats := Stats{}
	stats.ConnectedClients, _ = m["connected_clients"].(int)
	stats.TotalConnections, _ = m["total_connections"].(int64)
	stats.TotalCommands, _ = m["total_commands"].(int64)
	stats.TotalErrors, _ = m["total_errors"].(int64)
	stats.ProtocolErrors, _ = m["protocol_errors"].(int64)
	stats.BytesReceived, _ = m["bytes_received"].(int64)
	return stats
}
