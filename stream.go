package respserver

import (
	"errors"
	"io"

	"github.com/raniellyferreira/resp-server/protocol"
)

const maxEmptyReads = 100

// FrameFunc receives a decoded frame and the stream offset it started at.
// Returning an error stops decoding and is passed back to the caller.
type FrameFunc func(offset int64, frame protocol.Frame) error

// DecodeStream decodes every frame in r, in order, until r is exhausted.
//
// A protocol violation is returned as a *ProtocolError carrying the offset
// of the offending frame. A stream that ends inside a frame yields a
// *ProtocolError wrapping io.ErrUnexpectedEOF.
func DecodeStream(r io.Reader, limits protocol.Limits, fn FrameFunc) error {
	dec := protocol.NewDecoder(limits)

	var received, offset int64
	empty := 0
	for {
		n, rerr := dec.Fill(r)
		received += int64(n)

		for {
			frame, ok, err := dec.Decode()
			if err != nil {
				return &ProtocolError{Offset: offset, Err: err}
			}
			if !ok {
				break
			}
			start := offset
			offset = received - int64(dec.Buffered())
			if err := fn(start, frame); err != nil {
				return err
			}
		}

		switch {
		case errors.Is(rerr, io.EOF):
			if dec.Buffered() > 0 {
				return &ProtocolError{Offset: offset, Err: io.ErrUnexpectedEOF}
			}
			return nil
		case rerr != nil:
			return rerr
		case n == 0:
			empty++
			if empty >= maxEmptyReads {
				return io.ErrNoProgress
			}
		default:
			empty = 0
		}
	}
}
