package protocol

import (
	"bufio"
	"io"
	"strconv"
)

// maxScratchSize is the largest encoding buffer a Writer keeps between frames
const maxScratchSize = 64 * 1024

// Writer provides buffered writing of RESP replies. Nothing reaches the
// underlying writer until Flush is called or the buffer fills up.
type Writer struct {
	bw      *bufio.Writer
	scratch []byte
}

// NewWriter creates a new RESP protocol writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		bw:      bufio.NewWriter(w),
		scratch: make([]byte, 0, 512),
	}
}

// WriteFrame writes a complete frame. A frame that fails validation is not
// written at all, even partially.
func (w *Writer) WriteFrame(f Frame) error {
	out, err := AppendFrame(w.scratch[:0], f)
	if err != nil {
		return err
	}
	_, err = w.bw.Write(out)
	if cap(out) <= maxScratchSize {
		w.scratch = out
	}
	return err
}

// WriteSimpleString writes a simple string
func (w *Writer) WriteSimpleString(s string) error {
	return w.writeText(TypeSimpleString, s)
}

// WriteError writes an error message
func (w *Writer) WriteError(msg string) error {
	return w.writeText(TypeError, msg)
}

func (w *Writer) writeText(t Type, s string) error {
	if err := checkText(t, []byte(s)); err != nil {
		return err
	}
	if err := w.bw.WriteByte(byte(t)); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(s); err != nil {
		return err
	}
	return w.writeCRLF()
}

// WriteInteger writes an integer
func (w *Writer) WriteInteger(n int64) error {
	w.scratch = append(w.scratch[:0], byte(TypeInteger))
	w.scratch = strconv.AppendInt(w.scratch, n, 10)
	w.scratch = append(w.scratch, CRLF...)
	_, err := w.bw.Write(w.scratch)
	return err
}

// WriteBulkString writes a bulk string
func (w *Writer) WriteBulkString(data []byte) error {
	if err := w.writeHeader(TypeBulkString, len(data)); err != nil {
		return err
	}
	if _, err := w.bw.Write(data); err != nil {
		return err
	}
	return w.writeCRLF()
}

// WriteBulkStringFromString writes a bulk string from a string
func (w *Writer) WriteBulkStringFromString(s string) error {
	if err := w.writeHeader(TypeBulkString, len(s)); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(s); err != nil {
		return err
	}
	return w.writeCRLF()
}

// WriteNull writes a null bulk string
func (w *Writer) WriteNull() error {
	_, err := w.bw.WriteString("$-1\r\n")
	return err
}

// WriteArray writes an array of frames
func (w *Writer) WriteArray(items []Frame) error {
	return w.WriteFrame(Array(items...))
}

// WriteNullArray writes a null array
func (w *Writer) WriteNullArray() error {
	_, err := w.bw.WriteString("*-1\r\n")
	return err
}

// WriteCommand writes a Redis command as a RESP array of bulk strings
func (w *Writer) WriteCommand(cmd string, args ...string) error {
	if err := w.writeHeader(TypeArray, 1+len(args)); err != nil {
		return err
	}
	if err := w.WriteBulkStringFromString(cmd); err != nil {
		return err
	}
	for _, arg := range args {
		if err := w.WriteBulkStringFromString(arg); err != nil {
			return err
		}
	}
	return nil
}

// WriteOK writes a simple "OK" response
func (w *Writer) WriteOK() error {
	return w.WriteSimpleString("OK")
}

// WritePONG writes a simple "PONG" response
func (w *Writer) WritePONG() error {
	return w.WriteSimpleString("PONG")
}

// Buffered returns the number of bytes waiting for Flush
func (w *Writer) Buffered() int {
	return w.bw.Buffered()
}

// Flush flushes any buffered data to the underlying writer
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// Reset discards buffered data and writes to a new underlying writer
func (w *Writer) Reset(writer io.Writer) {
	w.bw.Reset(writer)
}

func (w *Writer) writeHeader(t Type, n int) error {
	w.scratch = appendHeader(w.scratch[:0], t, n)
	_, err := w.bw.Write(w.scratch)
	return err
}

func (w *Writer) writeCRLF() error {
	_, err := w.bw.WriteString(CRLF)
	return err
}
