package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/raniellyferreira/resp-server/protocol"
)

// Handler produces the reply to one command. Calls for the same connection
// are sequential; calls for different connections run concurrently.
type Handler interface {
	ServeRESP(ctx context.Context, cmd *protocol.Command) protocol.Frame
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, cmd *protocol.Command) protocol.Frame

// ServeRESP calls f(ctx, cmd)
func (f HandlerFunc) ServeRESP(ctx context.Context, cmd *protocol.Command) protocol.Frame {
	return f(ctx, cmd)
}

// BasicHandler answers the connection level commands and rejects the rest.
// The server closes the connection after replying to QUIT whatever the
// handler returns.
type BasicHandler struct{}

// ServeRESP implements Handler
func (BasicHandler) ServeRESP(_ context.Context, cmd *protocol.Command) protocol.Frame {
	switch cmd.Name {
	case "PING":
		switch len(cmd.Args) {
		case 0:
			return protocol.SimpleString("PONG")
		case 1:
			return protocol.BulkString(cmd.Args[0])
		default:
			return WrongArity(cmd.Name)
		}
	case "ECHO":
		if len(cmd.Args) != 1 {
			return WrongArity(cmd.Name)
		}
		return protocol.BulkString(cmd.Args[0])
	case "QUIT":
		return protocol.SimpleString("OK")
	case "COMMAND":
		return protocol.Array()
	default:
		return UnknownCommand(cmd.Name)
	}
}

// WrongArity returns the Redis error for a bad argument count
func WrongArity(name string) protocol.Frame {
	return protocol.Error(fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(name)))
}

// UnknownCommand returns the Redis error for an unsupported command
func UnknownCommand(name string) protocol.Frame {
	return protocol.Error(fmt.Sprintf("ERR unknown command '%s'", name))
}

// ClientInfo describes the connection a command arrived on
type ClientInfo struct {
	ID         string
	RemoteAddr string
}

type clientInfoKey struct{}

func withClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

// ClientFromContext returns the connection of the command being served
func ClientFromContext(ctx context.Context) (ClientInfo, bool) {
	info, ok := ctx.Value(clientInfoKey{}).(ClientInfo)
	return info, ok
}
