package protocol

import (
	"io"
)

// maxEmptyReads is how many (0, nil) reads are tolerated in a row
const maxEmptyReads = 100

// Reader is a streaming RESP reader. It couples a Decoder to any io.Reader,
// such as a network connection, a pipe or an in-memory buffer.
type Reader struct {
	rd  io.Reader
	dec *Decoder
}

// NewReader creates a new streaming RESP reader with default limits
func NewReader(r io.Reader) *Reader {
	return NewReaderLimits(r, Limits{})
}

// NewReaderLimits creates a streaming RESP reader enforcing limits
func NewReaderLimits(r io.Reader, limits Limits) *Reader {
	return &Reader{
		rd:  r,
		dec: NewDecoder(limits),
	}
}

// ReadFrame reads the next frame from the stream, reading from the
// underlying reader only when no complete frame is buffered.
//
// It returns io.EOF when the stream ends between frames and
// io.ErrUnexpectedEOF when it ends inside one.
func (r *Reader) ReadFrame() (Frame, error) {
	empty := 0
	for {
		f, ok, err := r.dec.Decode()
		if err != nil {
			return Frame{}, err
		}
		if ok {
			return f, nil
		}

		n, err := r.dec.Fill(r.rd)
		if n > 0 {
			empty = 0
			continue
		}
		if err == io.EOF {
			if r.dec.Buffered() > 0 {
				return Frame{}, io.ErrUnexpectedEOF
			}
			return Frame{}, io.EOF
		}
		if err != nil {
			return Frame{}, err
		}
		if empty++; empty >= maxEmptyReads {
			return Frame{}, io.ErrNoProgress
		}
	}
}

// Buffered returns the number of bytes received but not yet decoded
func (r *Reader) Buffered() int {
	return r.dec.Buffered()
}

// Reset discards buffered data and reads from rd from now on
func (r *Reader) Reset(rd io.Reader) {
	r.rd = rd
	r.dec.Reset()
}
