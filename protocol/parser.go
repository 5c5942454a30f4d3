package protocol

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// minFrameLen is the size of the shortest possible frame ("+\r\n")
const minFrameLen = 3

// Parse decodes exactly one frame from the start of b and returns it with
// the number of bytes it occupies. If b ends before the frame does, Parse
// returns ErrTruncated; b is never modified and the returned frame does not
// alias it.
func Parse(b []byte, limits Limits) (Frame, int, error) {
	return parseWithHint(b, limits.normalize(), nil)
}

// parser is a recursive descent RESP2 parser over a cursor
type parser struct {
	c      cursor
	limits Limits
}

// parseWithHint is Parse with resume state shared across retries
func parseWithHint(b []byte, limits Limits, hint *resume) (Frame, int, error) {
	p := parser{
		c:      cursor{buf: b, maxLineLen: limits.MaxLineLen, hint: hint},
		limits: limits,
	}
	f, err := p.parseFrame(0)
	if err != nil {
		return Frame{}, 0, err
	}
	return f, p.c.pos, nil
}

func (p *parser) parseFrame(depth int) (Frame, error) {
	tag, err := p.c.takeByte()
	if err != nil {
		return Frame{}, err
	}

	switch Type(tag) {
	case TypeSimpleString, TypeError:
		return p.parseText(Type(tag))
	case TypeInteger:
		return p.parseInteger()
	case TypeBulkString:
		return p.parseBulkString()
	case TypeArray:
		return p.parseArray(depth + 1)
	default:
		return Frame{}, unknownType(tag)
	}
}

// parseText reads a simple string or error line
func (p *parser) parseText(t Type) (Frame, error) {
	line, err := p.c.readLine()
	if err != nil {
		return Frame{}, err
	}
	if !utf8.Valid(line) {
		return Frame{}, fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidFrame, t)
	}

	data := make([]byte, len(line))
	copy(data, line)
	return Frame{Type: t, Data: data}, nil
}

func (p *parser) parseInteger() (Frame, error) {
	line, err := p.c.readLine()
	if err != nil {
		return Frame{}, err
	}

	n, err := parseInt64(line)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: TypeInteger, Integer: n}, nil
}

// readLength reads a length header. It returns -1 for the null marker;
// every other negative length is invalid.
func (p *parser) readLength(t Type) (int64, error) {
	b, err := p.c.peekByte()
	if err != nil {
		return 0, err
	}

	line, err := p.c.readLine()
	if err != nil {
		return 0, err
	}

	if b == '-' {
		if string(line) != "-1" {
			return 0, fmt.Errorf("%w: invalid %s length %q", ErrInvalidFrame, t, line)
		}
		return -1, nil
	}

	return parseLength(line)
}

func (p *parser) parseBulkString() (Frame, error) {
	n, err := p.readLength(TypeBulkString)
	if err != nil {
		return Frame{}, err
	}
	if n == -1 {
		return Frame{Type: TypeNull}, nil
	}
	if limit := p.limits.MaxBulkLen; limit > 0 && n > limit {
		return Frame{}, fmt.Errorf("%w: bulk string length %d exceeds limit %d", ErrFrameTooLarge, n, limit)
	}
	if n > math.MaxInt-2 {
		return Frame{}, fmt.Errorf("%w: bulk string length %d", ErrFrameTooLarge, n)
	}

	size := int(n)
	if p.c.remaining() < size+2 {
		return Frame{}, p.c.truncated(saturatingAdd(p.c.pos, size+2))
	}

	start := p.c.pos
	data := make([]byte, size)
	copy(data, p.c.buf[start:start+size])

	if p.c.buf[start+size] != '\r' || p.c.buf[start+size+1] != '\n' {
		return Frame{}, fmt.Errorf("%w: bulk string not terminated by CRLF", ErrInvalidFrame)
	}
	if err := p.c.skip(size + 2); err != nil {
		return Frame{}, err
	}

	return Frame{Type: TypeBulkString, Data: data}, nil
}

func (p *parser) parseArray(depth int) (Frame, error) {
	if limit := p.limits.MaxDepth; limit > 0 && depth > limit {
		return Frame{}, fmt.Errorf("%w: array nesting exceeds %d levels", ErrInvalidFrame, limit)
	}

	n, err := p.readLength(TypeArray)
	if err != nil {
		return Frame{}, err
	}
	if n == -1 {
		return Frame{Type: TypeArray, IsNull: true}, nil
	}
	if limit := p.limits.MaxArrayLen; limit > 0 && n > limit {
		return Frame{}, fmt.Errorf("%w: array length %d exceeds limit %d", ErrFrameTooLarge, n, limit)
	}

	// every element takes at least minFrameLen bytes; the header alone
	// never decides how much is allocated
	items := make([]Frame, 0, min(n, int64(p.c.remaining()/minFrameLen)))
	for i := int64(0); i < n; i++ {
		item, err := p.parseFrame(depth)
		if err != nil {
			return Frame{}, err
		}
		items = append(items, item)
	}

	return Frame{Type: TypeArray, Array: items}, nil
}

// parseInt64 parses a base-10 integer with an optional leading '-'
func parseInt64(b []byte) (int64, error) {
	neg := len(b) > 0 && b[0] == '-'
	digits := b
	if neg {
		digits = b[1:]
	}

	u, err := parseUint(digits, b)
	if err != nil {
		return 0, err
	}

	if neg {
		if u > 1<<63 {
			return 0, fmt.Errorf("%w: %q out of range", ErrInvalidInteger, b)
		}
		return -int64(u), nil
	}
	if u > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidInteger, b)
	}
	return int64(u), nil
}

// parseLength parses a non-negative length header
func parseLength(b []byte) (int64, error) {
	u, err := parseUint(b, b)
	if err != nil {
		return 0, err
	}
	if u > math.MaxInt64 {
		return 0, fmt.Errorf("%w: length %q out of range", ErrInvalidInteger, b)
	}
	return int64(u), nil
}

// parseUint parses digits without allocating; line is used in errors
func parseUint(digits, line []byte) (uint64, error) {
	if len(digits) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInteger, line)
	}

	var n uint64
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidInteger, line)
		}
		if n > (math.MaxUint64-9)/10 {
			return 0, fmt.Errorf("%w: %q out of range", ErrInvalidInteger, line)
		}
		n = n*10 + uint64(c-'0')
	}
	return n, nil
}
