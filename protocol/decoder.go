package protocol

import (
	"errors"
	"fmt"
	"io"
)

const (
	// minReadSize is the smallest free space Fill offers to a read
	minReadSize = 4096
)

// Decoder turns an append-only stream of bytes into frames.
//
// Bytes are added with Write or Fill in chunks of any size and frames are
// taken out with Decode. Consumed bytes are dropped only after a complete
// frame was parsed; an incomplete frame leaves the buffer as it was, and the
// next Decode starts over from the beginning of that frame.
//
// A Decoder is not safe for concurrent use. Each connection owns one.
type Decoder struct {
	limits Limits

	buf []byte
	off int // start of unconsumed data in buf

	hint resume
	err  error
}

// NewDecoder creates a decoder enforcing limits. Zero fields take defaults.
func NewDecoder(limits Limits) *Decoder {
	d := &Decoder{limits: limits.normalize()}
	d.hint.reset()
	return d
}

// Write appends p to the receive buffer. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.grow(len(p))
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Fill performs a single Read from r directly into the receive buffer and
// returns the number of bytes added.
func (d *Decoder) Fill(r io.Reader) (int, error) {
	d.grow(minReadSize)
	free := d.buf[len(d.buf):cap(d.buf)]
	n, err := r.Read(free)
	if n < 0 || n > len(free) {
		return 0, errors.New("resp: reader returned invalid count")
	}
	d.buf = d.buf[:len(d.buf)+n]
	return n, err
}

// Decode returns the next complete frame. When the buffer does not yet hold
// one it returns ok == false and a nil error, and the buffer is unchanged.
// A non-nil error is a protocol violation: nothing is consumed and every
// later call returns the same error.
func (d *Decoder) Decode() (f Frame, ok bool, err error) {
	if d.err != nil {
		return Frame{}, false, d.err
	}

	view := d.buf[d.off:]
	if len(view) == 0 {
		return Frame{}, false, nil
	}
	if len(view) < d.hint.need {
		return Frame{}, false, d.checkBuffered(len(view))
	}

	f, n, err := parseWithHint(view, d.limits, &d.hint)
	switch {
	case err == nil:
		d.consume(n)
		return f, true, nil
	case errors.Is(err, ErrTruncated):
		return Frame{}, false, d.checkBuffered(len(view))
	default:
		d.err = err
		return Frame{}, false, err
	}
}

// checkBuffered fails the decoder when an incomplete frame holds more
// bytes than allowed
func (d *Decoder) checkBuffered(n int) error {
	if limit := d.limits.MaxBufferSize; limit > 0 && n > limit {
		d.err = fmt.Errorf("%w: %d bytes buffered without a complete frame (limit %d)", ErrFrameTooLarge, n, limit)
		return d.err
	}
	return nil
}

// Buffered returns the number of received bytes not yet consumed
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.off
}

// Bytes returns the unconsumed bytes. The slice is only valid until the next
// call that modifies the decoder and must not be written to.
func (d *Decoder) Bytes() []byte {
	return d.buf[d.off:]
}

// Err returns the protocol error that stopped the decoder, if any
func (d *Decoder) Err() error {
	return d.err
}

// Reset drops all buffered data and any previous error
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.off = 0
	d.err = nil
	d.hint.reset()
}

func (d *Decoder) consume(n int) {
	d.off += n
	d.hint.reset()
	if d.off == len(d.buf) {
		d.buf = d.buf[:0]
		d.off = 0
	}
}

// grow makes room for n more bytes, first by moving unconsumed data to the
// front of the buffer. Resume offsets are relative to the unconsumed data,
// so moving it keeps them valid.
func (d *Decoder) grow(n int) {
	if cap(d.buf)-len(d.buf) >= n {
		return
	}
	if d.off > 0 {
		m := copy(d.buf, d.buf[d.off:])
		d.buf = d.buf[:m]
		d.off = 0
		if cap(d.buf)-len(d.buf) >= n {
			return
		}
	}
	next := make([]byte, len(d.buf), 2*cap(d.buf)+n)
	copy(next, d.buf)
	d.buf = next
}
