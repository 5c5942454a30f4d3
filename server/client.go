package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/raniellyferreira/resp-server/protocol"
)

// Client is one accepted connection. It owns its decoder and writer; neither
// is shared with another connection.
type Client struct {
	id      string
	conn    net.Conn
	dec     *protocol.Decoder
	writer  *protocol.Writer
	limiter *rate.Limiter
	server  *Server

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newClient(s *Server, conn net.Conn) *Client {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(s.ctx)
	ctx = withClientInfo(ctx, ClientInfo{
		ID:         id,
		RemoteAddr: conn.RemoteAddr().String(),
	})

	c := &Client{
		id:     id,
		conn:   conn,
		dec:    protocol.NewDecoder(s.cfg.Limits),
		writer: protocol.NewWriter(conn),
		server: s,
		ctx:    ctx,
		cancel: cancel,
	}

	if s.cfg.RateLimit > 0 {
		burst := s.cfg.RateBurst
		if burst < 1 {
			burst = max(1, int(s.cfg.RateLimit))
		}
		c.limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), burst)
	}

	return c
}

// ID returns the connection identifier used in logs
func (c *Client) ID() string {
	return c.id
}

// Close closes the client connection. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close()
		if c.server.metrics != nil {
			c.server.metrics.RecordConnectionClosed()
		}
	})
}

// serve reads from the connection until it fails, the peer leaves or a
// protocol error ends it
func (c *Client) serve() {
	defer c.Close()

	if c.ctx.Err() != nil {
		return
	}

	log := c.server.logger
	log.Debug("Client connected", "conn_id", c.id, "remote_addr", c.conn.RemoteAddr().String())

	for {
		c.setReadDeadline()

		n, err := c.dec.Fill(c.conn)
		if n > 0 {
			c.server.bytesReceived.Add(int64(n))
			if c.server.metrics != nil {
				c.server.metrics.RecordBytesReceived(n)
			}
			if !c.processBuffered() {
				return
			}
		}
		if err != nil {
			c.logDisconnect(err)
			return
		}
	}
}

// setReadDeadline applies the idle timeout between frames and the read
// timeout while a frame is partially received. Without a read timeout a
// partial frame is bounded by the idle timeout.
func (c *Client) setReadDeadline() {
	timeout := c.server.cfg.IdleTimeout
	if rt := c.server.cfg.ReadTimeout; rt > 0 && c.dec.Buffered() > 0 {
		timeout = rt
	}
	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		c.conn.SetReadDeadline(time.Time{})
	}
}

// processBuffered dispatches every complete frame in the receive buffer and
// flushes the replies once. It returns false when the connection must close.
func (c *Client) processBuffered() bool {
	if wt := c.server.cfg.WriteTimeout; wt > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(wt))
	}

	for {
		frame, ok, err := c.dec.Decode()
		if err != nil {
			c.protocolError(err)
			return false
		}
		if !ok {
			break
		}

		if c.server.metrics != nil {
			c.server.metrics.RecordFrameDecoded(frame.Type)
		}
		if !c.dispatch(frame) {
			c.flush()
			return false
		}
	}

	return c.flush()
}

// protocolError answers the way Redis does before dropping the connection
func (c *Client) protocolError(err error) {
	c.server.protocolCount.Add(1)
	kind := protocol.ErrorKind(err)
	if c.server.metrics != nil {
		c.server.metrics.RecordProtocolError(kind)
	}

	c.server.logger.Error("Protocol error",
		"conn_id", c.id,
		"kind", kind,
		"error", err,
		"buffered", c.dec.Buffered())

	c.writeError("ERR Protocol error: " + protocol.Reason(err))
	c.flush()
}

// dispatch runs one command and buffers its reply. It returns false when the
// connection must close afterwards.
func (c *Client) dispatch(frame protocol.Frame) bool {
	cmd, err := protocol.ParseCommand(frame)
	if err != nil {
		c.writeError("ERR Protocol error: " + err.Error())
		return true
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(c.ctx); err != nil {
			return false
		}
	}

	start := time.Now()
	reply := c.execute(cmd)
	duration := time.Since(start)

	c.server.commandCount.Add(1)
	if c.server.metrics != nil {
		c.server.metrics.RecordCommand(cmd.Name, duration)
	}
	c.server.logger.Debug("Command processed",
		"conn_id", c.id,
		"command", cmd.Name,
		"args", len(cmd.Args),
		"duration", duration)

	if reply.IsError() {
		c.server.errorCount.Add(1)
	}
	if err := c.writer.WriteFrame(reply); err != nil {
		if !errors.Is(err, protocol.ErrProtocol) {
			return false
		}
		c.server.logger.Error("Handler returned an invalid reply",
			"conn_id", c.id,
			"command", cmd.Name,
			"error", err)
		c.writeError("ERR invalid reply for '" + cmd.Name + "'")
	}

	return cmd.Name != "QUIT"
}

func (c *Client) execute(cmd *protocol.Command) (reply protocol.Frame) {
	defer func() {
		if r := recover(); r != nil {
			c.server.logger.Error("Handler panicked",
				"conn_id", c.id,
				"command", cmd.Name,
				"panic", r)
			reply = protocol.Error("ERR internal error")
		}
	}()
	return c.server.handler.ServeRESP(c.ctx, cmd)
}

func (c *Client) writeError(msg string) {
	c.server.errorCount.Add(1)
	// CR and LF would end the error line early
	msg = strings.ReplaceAll(msg, "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	c.writer.WriteError(msg)
}

func (c *Client) flush() bool {
	if c.writer.Buffered() == 0 {
		return true
	}
	if err := c.writer.Flush(); err != nil {
		c.server.logger.Debug("Write failed", "conn_id", c.id, "error", err)
		return false
	}
	return true
}

func (c *Client) logDisconnect(err error) {
	log := c.server.logger
	var ne net.Error

	switch {
	case errors.Is(err, io.EOF):
		log.Debug("Client disconnected", "conn_id", c.id, "pending_bytes", c.dec.Buffered())
	case c.ctx.Err() != nil:
		log.Debug("Client closed", "conn_id", c.id)
	case errors.As(err, &ne) && ne.Timeout():
		log.Info("Client timed out", "conn_id", c.id, "pending_bytes", c.dec.Buffered())
	default:
		log.Error("Read failed", "conn_id", c.id, "error", err)
	}
}
