package respserver

import (
	"errors"
	"fmt"

	"github.com/raniellyferreira/resp-server/protocol"
)

var (
	// ErrInvalidConfig indicates invalid configuration options
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClosed indicates the instance has been closed
	ErrClosed = errors.New("instance is closed")

	// ErrAlreadyStarted indicates Start was called twice
	ErrAlreadyStarted = errors.New("instance already started")
)

// ConfigError reports which option was rejected
type ConfigError struct {
	Option string
	Err    error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("option %s: %v", e.Option, e.Err)
}

// Unwrap returns the wrapped error
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ConnectionError represents a listener failure
type ConnectionError struct {
	Addr string
	Err  error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error on %s: %v", e.Addr, e.Err)
}

// Unwrap returns the wrapped error
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ProtocolError is a fatal decode error together with the stream offset of
// the frame that could not be decoded
type ProtocolError struct {
	Offset int64
	Err    error
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("at offset %d: %v", e.Offset, e.Err)
}

// Unwrap returns the wrapped error
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Kind returns the error category, such as "invalid_integer"
func (e *ProtocolError) Kind() string {
	return protocol.ErrorKind(e.Err)
}
