package protocol

import (
	"bytes"
	"fmt"
	"math"
)

var crlfBytes = []byte(CRLF)

// resume carries what a truncated parse learned about the buffer, so the
// next attempt on the same (grown) buffer can skip work. Offsets are relative
// to the start of the unconsumed data.
type resume struct {
	// need is the buffer length below which a retry cannot make progress
	need int

	// lineStart and scanned describe a line whose terminator was not found:
	// no CRLF starts before scanned
	lineStart int
	scanned   int
}

func (r *resume) reset() {
	*r = resume{lineStart: -1}
}

// cursor walks a byte slice without copying or modifying it. Running out of
// bytes is reported as ErrTruncated.
type cursor struct {
	buf        []byte
	pos        int
	maxLineLen int
	hint       *resume
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

// truncated records the buffer length required before retrying
func (c *cursor) truncated(need int) error {
	if c.hint != nil {
		c.hint.need = need
	}
	return ErrTruncated
}

func (c *cursor) peekByte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, c.truncated(len(c.buf) + 1)
	}
	return c.buf[c.pos], nil
}

func (c *cursor) takeByte() (byte, error) {
	b, err := c.peekByte()
	if err != nil {
		return 0, err
	}
	c.pos++
	return b, nil
}

// skip advances past n bytes
func (c *cursor) skip(n int) error {
	if c.remaining() < n {
		return c.truncated(saturatingAdd(c.pos, n))
	}
	c.pos += n
	return nil
}

// readLine returns the bytes up to the next CRLF and moves past it. The
// returned slice aliases the buffer.
func (c *cursor) readLine() ([]byte, error) {
	start := c.pos
	from := start
	if c.hint != nil && c.hint.lineStart == start && c.hint.scanned > start && c.hint.scanned <= len(c.buf) {
		from = c.hint.scanned
	}

	idx := bytes.Index(c.buf[from:], crlfBytes)
	if idx < 0 {
		if c.maxLineLen > 0 && len(c.buf)-start > c.maxLineLen+1 {
			return nil, fmt.Errorf("%w: line exceeds %d bytes without terminator", ErrInvalidFrame, c.maxLineLen)
		}
		if c.hint != nil {
			c.hint.lineStart = start
			// a trailing '\r' may be the first half of the terminator
			c.hint.scanned = max(start, len(c.buf)-1)
		}
		return nil, c.truncated(len(c.buf) + 1)
	}

	end := from + idx
	if c.maxLineLen > 0 && end-start > c.maxLineLen {
		return nil, fmt.Errorf("%w: line exceeds %d bytes", ErrInvalidFrame, c.maxLineLen)
	}
	c.pos = end + 2
	return c.buf[start:end], nil
}

func saturatingAdd(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}
