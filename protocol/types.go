package protocol

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Type identifies the variant of a Frame. For wire types the value is the
// RESP prefix byte.
type Type byte

const (
	// RESP2 frame types
	TypeSimpleString Type = '+'
	TypeError        Type = '-'
	TypeInteger      Type = ':'
	TypeBulkString   Type = '$'
	TypeArray        Type = '*'

	// TypeNull is the null bulk string, encoded as "$-1\r\n"
	TypeNull Type = '_'
)

// String returns a human readable type name
func (t Type) String() string {
	switch t {
	case TypeSimpleString:
		return "simple_string"
	case TypeError:
		return "error"
	case TypeInteger:
		return "integer"
	case TypeBulkString:
		return "bulk_string"
	case TypeArray:
		return "array"
	case TypeNull:
		return "null"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}

// Frame is one decoded RESP protocol unit.
//
// Data holds the payload of simple strings, errors and bulk strings, Integer
// the value of integer frames and Array the elements of an array. IsNull is
// only meaningful for arrays and marks the null array ("*-1\r\n"); the null
// bulk string has its own type, TypeNull.
//
// Frames returned by the decoder own their memory.
type Frame struct {
	Type    Type
	Data    []byte
	Integer int64
	Array   []Frame
	IsNull  bool
}

// SimpleString returns a simple string frame
func SimpleString(s string) Frame {
	return Frame{Type: TypeSimpleString, Data: []byte(s)}
}

// Error returns an error frame
func Error(msg string) Frame {
	return Frame{Type: TypeError, Data: []byte(msg)}
}

// Integer returns an integer frame
func Integer(n int64) Frame {
	return Frame{Type: TypeInteger, Integer: n}
}

// BulkString returns a bulk string frame. A nil slice is an empty bulk
// string, not a null one.
func BulkString(b []byte) Frame {
	if b == nil {
		b = []byte{}
	}
	return Frame{Type: TypeBulkString, Data: b}
}

// BulkStringFromString returns a bulk string frame holding s
func BulkStringFromString(s string) Frame {
	return BulkString([]byte(s))
}

// Null returns the null bulk string frame
func Null() Frame {
	return Frame{Type: TypeNull}
}

// NullArray returns the null array frame
func NullArray() Frame {
	return Frame{Type: TypeArray, IsNull: true}
}

// Array returns an array frame holding items. An empty call yields an empty
// (non-null) array.
func Array(items ...Frame) Frame {
	if items == nil {
		items = []Frame{}
	}
	return Frame{Type: TypeArray, Array: items}
}

// Equal reports whether f and other describe the same frame
func (f Frame) Equal(other Frame) bool {
	if f.Type != other.Type {
		return false
	}
	switch f.Type {
	case TypeSimpleString, TypeError, TypeBulkString:
		return bytes.Equal(f.Data, other.Data)
	case TypeInteger:
		return f.Integer == other.Integer
	case TypeNull:
		return true
	case TypeArray:
		if f.IsNull || other.IsNull {
			return f.IsNull == other.IsNull
		}
		if len(f.Array) != len(other.Array) {
			return false
		}
		for i := range f.Array {
			if !f.Array[i].Equal(other.Array[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String returns a string representation of the frame
func (f Frame) String() string {
	switch f.Type {
	case TypeSimpleString, TypeError, TypeBulkString:
		return string(f.Data)
	case TypeInteger:
		return strconv.FormatInt(f.Integer, 10)
	case TypeNull:
		return "(nil)"
	case TypeArray:
		if f.IsNull {
			return "(nil)"
		}
		parts := make([]string, len(f.Array))
		for i, item := range f.Array {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("unknown type %c", f.Type)
	}
}

// Bytes returns the payload of the frame
func (f Frame) Bytes() []byte {
	return f.Data
}

// Int returns the integer value, or 0 if not an integer
func (f Frame) Int() int64 {
	return f.Integer
}

// IsError returns true if this is an error frame
func (f Frame) IsError() bool {
	return f.Type == TypeError
}

// Error returns the error message if this is an error frame
func (f Frame) Error() string {
	if f.Type == TypeError {
		return string(f.Data)
	}
	return ""
}

// Command represents a Redis command parsed from a RESP array
type Command struct {
	Name string
	Args [][]byte
}

// ParseCommand parses a RESP array frame into a Command. Clients always send
// commands as an array of bulk strings; anything else is rejected.
func ParseCommand(f Frame) (*Command, error) {
	if f.Type != TypeArray || f.IsNull || len(f.Array) == 0 {
		return nil, fmt.Errorf("invalid command format: expected non-empty array, got %s", f.Type)
	}

	cmd := &Command{
		Args: make([][]byte, len(f.Array)-1),
	}

	if f.Array[0].Type != TypeBulkString {
		return nil, fmt.Errorf("command name must be bulk string")
	}
	cmd.Name = strings.ToUpper(string(f.Array[0].Data))

	for i := 1; i < len(f.Array); i++ {
		if f.Array[i].Type != TypeBulkString {
			return nil, fmt.Errorf("command arguments must be bulk strings")
		}
		cmd.Args[i-1] = f.Array[i].Data
	}

	return cmd, nil
}

// String returns a string representation of the command
func (c *Command) String() string {
	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		args[i] = string(arg)
	}
	return strings.TrimSpace(c.Name + " " + strings.Join(args, " "))
}
