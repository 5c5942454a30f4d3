package respserver

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/raniellyferreira/resp-server/protocol"
)

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// Logger interface for custom logging implementations
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// MetricsCollector interface for metrics collection. It has the same method
// set as server.MetricsCollector and is satisfied by metrics.Collector.
type MetricsCollector interface {
	// RecordConnectionOpened records an accepted client connection
	RecordConnectionOpened()

	// RecordConnectionClosed records a closed client connection
	RecordConnectionClosed()

	// RecordBytesReceived records bytes read from a client
	RecordBytesReceived(n int)

	// RecordFrameDecoded records a decoded top-level frame
	RecordFrameDecoded(t protocol.Type)

	// RecordProtocolError records a connection dropped for a protocol error
	RecordProtocolError(kind string)

	// RecordCommand records a processed command with its duration
	RecordCommand(cmd string, duration time.Duration)
}

// Stats is a snapshot of server activity
type Stats struct {
	ConnectedClients int
	TotalConnections int64
	TotalCommands    int64
	TotalErrors      int64
	ProtocolErrors   int64
	BytesReceived    int64
}

// NewLogger returns a Logger backed by log/slog. Level is one of debug,
// info, warn or error; format is text or json.
func NewLogger(w io.Writer, level, format string) Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return &slogLogger{logger: slog.New(handler)}
}

// ParseLevel converts a level name to a slog.Level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// defaultLogger writes text logs at info level to stderr
func defaultLogger() Logger {
	return NewLogger(os.Stderr, "info", "text")
}

type slogLogger struct {
	logger *slog.Logger
}

func (l *slogLogger) Debug(msg string, fields ...Field) {
	l.logger.Debug(msg, attrs(fields)...)
}

func (l *slogLogger) Info(msg string, fields ...Field) {
	l.logger.Info(msg, attrs(fields)...)
}

func (l *slogLogger) Error(msg string, fields ...Field) {
	l.logger.Error(msg, attrs(fields)...)
}

func attrs(fields []Field) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = slog.Any(f.Key, formatValue(f.Value))
	}
	return out
}

func formatValue(v interface{}) interface{} {
	switch val := v.(type) {
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	default:
		return val
	}
}
