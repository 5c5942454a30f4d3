package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTruncated reports that the available bytes end before the frame does.
// It is not a protocol violation: the caller should wait for more data and
// retry from the start of the same frame.
var ErrTruncated = errors.New("resp: truncated frame")

// ErrProtocol is wrapped by every error that makes a connection unusable.
// RESP has no resynchronization point, so none of them can be recovered from.
var ErrProtocol = errors.New("resp: protocol error")

var (
	// ErrInvalidFrame reports a malformed structural marker, such as "$-2",
	// a bad bulk terminator or a line that outgrew the line limit.
	ErrInvalidFrame = fmt.Errorf("%w: invalid frame", ErrProtocol)

	// ErrInvalidInteger reports non-numeric content where an integer or a
	// length was expected.
	ErrInvalidInteger = fmt.Errorf("%w: invalid integer", ErrProtocol)

	// ErrUnknownType reports an unrecognized leading tag byte.
	ErrUnknownType = fmt.Errorf("%w: unknown frame type", ErrProtocol)

	// ErrInvalidPayload is returned by the encoder when a simple string or
	// error carries a line terminator.
	ErrInvalidPayload = fmt.Errorf("%w: invalid payload", ErrProtocol)

	// ErrFrameTooLarge reports a declared length or a pending frame beyond
	// the configured Limits.
	ErrFrameTooLarge = fmt.Errorf("%w: frame too large", ErrProtocol)
)

// IsFatal reports whether err must terminate the connection it came from.
// Truncation and nil are not fatal.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrTruncated)
}

func unknownType(tag byte) error {
	return fmt.Errorf("%w: %q (0x%02x)", ErrUnknownType, tag, tag)
}

// ErrorKind returns a short stable label for err, suitable for metrics and
// logs: "truncated", "invalid_frame", "invalid_integer", "unknown_type",
// "invalid_payload", "frame_too_large", or "" for nil and foreign errors.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTruncated):
		return "truncated"
	case errors.Is(err, ErrInvalidFrame):
		return "invalid_frame"
	case errors.Is(err, ErrInvalidInteger):
		return "invalid_integer"
	case errors.Is(err, ErrUnknownType):
		return "unknown_type"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrFrameTooLarge):
		return "frame_too_large"
	default:
		return ""
	}
}

// Reason strips the package prefix from a protocol error so the text can be
// sent back to a client.
func Reason(err error) string {
	return strings.TrimPrefix(err.Error(), ErrProtocol.Error()+": ")
}
