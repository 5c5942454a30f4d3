package protocol

import (
	"bytes"
	"fmt"
	"strconv"
)

// CRLF is the Redis protocol line terminator
const CRLF = "\r\n"

// Encode returns the wire encoding of f
func Encode(f Frame) ([]byte, error) {
	return AppendFrame(nil, f)
}

// AppendFrame appends the wire encoding of f to dst. On error dst is
// returned unchanged, so a frame is either encoded completely or not at all.
func AppendFrame(dst []byte, f Frame) ([]byte, error) {
	out, err := appendFrame(dst, f)
	if err != nil {
		return dst, err
	}
	return out, nil
}

func appendFrame(dst []byte, f Frame) ([]byte, error) {
	switch f.Type {
	case TypeSimpleString, TypeError:
		if err := checkText(f.Type, f.Data); err != nil {
			return dst, err
		}
		dst = append(dst, byte(f.Type))
		dst = append(dst, f.Data...)
		return append(dst, CRLF...), nil
	case TypeInteger:
		dst = append(dst, byte(TypeInteger))
		dst = strconv.AppendInt(dst, f.Integer, 10)
		return append(dst, CRLF...), nil
	case TypeBulkString:
		return appendBulk(dst, f.Data), nil
	case TypeNull:
		return append(dst, "$-1\r\n"...), nil
	case TypeArray:
		if f.IsNull {
			return append(dst, "*-1\r\n"...), nil
		}
		dst = appendHeader(dst, TypeArray, len(f.Array))
		var err error
		for _, item := range f.Array {
			if dst, err = appendFrame(dst, item); err != nil {
				return dst, err
			}
		}
		return dst, nil
	default:
		return dst, unknownType(byte(f.Type))
	}
}

func appendHeader(dst []byte, t Type, n int) []byte {
	dst = append(dst, byte(t))
	dst = strconv.AppendInt(dst, int64(n), 10)
	return append(dst, CRLF...)
}

func appendBulk(dst []byte, data []byte) []byte {
	dst = appendHeader(dst, TypeBulkString, len(data))
	dst = append(dst, data...)
	return append(dst, CRLF...)
}

// checkText rejects simple string and error payloads that would corrupt
// the line framing
func checkText(t Type, data []byte) error {
	if bytes.ContainsAny(data, CRLF) {
		return fmt.Errorf("%w: %s contains a line terminator", ErrInvalidPayload, t)
	}
	return nil
}
