package protocol_test

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/raniellyferreira/resp-server/protocol"
)

var sampleFrames = []protocol.Frame{
	protocol.SimpleString("OK"),
	protocol.Error("ERR unknown command"),
	protocol.Integer(-9000),
	protocol.BulkStringFromString("hello\r\nworld"),
	protocol.BulkString([]byte{}),
	protocol.Null(),
	protocol.NullArray(),
	protocol.Array(),
	protocol.Array(
		protocol.BulkStringFromString("SET"),
		protocol.BulkStringFromString("key"),
		protocol.BulkString(bytes.Repeat([]byte{0, '\r', '\n', 0xff}, 300)),
	),
	protocol.Array(
		protocol.Array(protocol.Integer(1), protocol.Integer(2)),
		protocol.BulkStringFromString("x"),
		protocol.Array(protocol.Null(), protocol.Array(protocol.SimpleString("deep"))),
	),
}

func mustEncode(t testing.TB, f protocol.Frame) []byte {
	t.Helper()
	b, err := protocol.Encode(f)
	if err != nil {
		t.Fatalf("Encode(%v) error = %v", f, err)
	}
	return b
}

func TestDecoderExample(t *testing.T) {
	dec := protocol.NewDecoder(protocol.Limits{})
	dec.Write([]byte("*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"))

	frame, ok, err := dec.Decode()
	if err != nil || !ok {
		t.Fatalf("Decode() = ok %v, err %v", ok, err)
	}

	want := protocol.Array(protocol.BulkStringFromString("GET"), protocol.BulkStringFromString("foo"))
	if !frame.Equal(want) {
		t.Errorf("Decode() = %v, want %v", frame, want)
	}
	if dec.Buffered() != 0 {
		t.Errorf("Buffered() = %d, want 0", dec.Buffered())
	}
}

func TestDecoderEmptyBuffer(t *testing.T) {
	dec := protocol.NewDecoder(protocol.Limits{})

	_, ok, err := dec.Decode()
	if ok || err != nil {
		t.Fatalf("Decode() on empty buffer = ok %v, err %v", ok, err)
	}
}

// Feeding an encoded frame one chunk at a time produces exactly that frame
// once, whatever the chunk boundaries.
func TestDecoderIncrementalDelivery(t *testing.T) {
	for _, want := range sampleFrames {
		encoded := mustEncode(t, want)

		for split := 1; split <= len(encoded); split++ {
			dec := protocol.NewDecoder(protocol.Limits{})
			var got []protocol.Frame

			for off := 0; off < len(encoded); off += split {
				end := min(off+split, len(encoded))
				dec.Write(encoded[off:end])

				frame, ok, err := dec.Decode()
				if err != nil {
					t.Fatalf("Decode() of %v with chunk size %d error = %v", want, split, err)
				}
				if ok {
					got = append(got, frame)
				}
			}

			if len(got) != 1 {
				t.Fatalf("chunk size %d decoded %d frames, want 1", split, len(got))
			}
			if !got[0].Equal(want) {
				t.Errorf("chunk size %d decoded %v, want %v", split, got[0], want)
			}
			if dec.Buffered() != 0 {
				t.Errorf("chunk size %d left %d bytes buffered", split, dec.Buffered())
			}
		}
	}
}

func TestDecoderRandomChunks(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	var stream []byte
	for _, f := range sampleFrames {
		stream = append(stream, mustEncode(t, f)...)
	}

	for round := 0; round < 50; round++ {
		dec := protocol.NewDecoder(protocol.Limits{})
		var got []protocol.Frame

		for off := 0; off < len(stream); {
			end := min(off+1+rng.Intn(64), len(stream))
			dec.Write(stream[off:end])
			off = end

			for {
				frame, ok, err := dec.Decode()
				if err != nil {
					t.Fatalf("round %d: Decode() error = %v", round, err)
				}
				if !ok {
					break
				}
				got = append(got, frame)
			}
		}

		if len(got) != len(sampleFrames) {
			t.Fatalf("round %d: decoded %d frames, want %d", round, len(got), len(sampleFrames))
		}
		for i := range got {
			if !got[i].Equal(sampleFrames[i]) {
				t.Errorf("round %d: frame %d = %v, want %v", round, i, got[i], sampleFrames[i])
			}
		}
	}
}

func TestDecoderTruncationLeavesBufferUntouched(t *testing.T) {
	partial := []byte("*2\r\n$3\r\nGET\r\n$3\r\nfo")
	dec := protocol.NewDecoder(protocol.Limits{})
	dec.Write(partial)

	for i := 0; i < 5; i++ {
		_, ok, err := dec.Decode()
		if ok || err != nil {
			t.Fatalf("Decode() attempt %d = ok %v, err %v", i, ok, err)
		}
		if !bytes.Equal(dec.Bytes(), partial) {
			t.Fatalf("attempt %d: buffer = %q, want %q", i, dec.Bytes(), partial)
		}
	}

	dec.Write([]byte("o\r\n"))
	frame, ok, err := dec.Decode()
	if err != nil || !ok {
		t.Fatalf("Decode() after completion = ok %v, err %v", ok, err)
	}
	if len(frame.Array) != 2 || string(frame.Array[1].Data) != "foo" {
		t.Errorf("Decode() = %v, want [GET, foo]", frame)
	}
}

func TestDecoderMalformedInput(t *testing.T) {
	inputs := []string{
		"$-2\r\n",
		":abc\r\n",
		"@\r\n",
		"*2\r\n@\r\n",
		"*3\r\n:abc\r\n",
		"*4\r\n$-2\r\n",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			dec := protocol.NewDecoder(protocol.Limits{})
			dec.Write([]byte(input))

			_, ok, err := dec.Decode()
			if ok || !protocol.IsFatal(err) {
				t.Fatalf("Decode() = ok %v, err %v, want fatal error", ok, err)
			}
			if dec.Buffered() != len(input) {
				t.Errorf("Buffered() = %d, want %d (nothing consumed)", dec.Buffered(), len(input))
			}

			// the decoder stays failed
			dec.Write([]byte("+OK\r\n"))
			if _, _, again := dec.Decode(); !errors.Is(again, err) {
				t.Errorf("second Decode() error = %v, want %v", again, err)
			}
			if !errors.Is(dec.Err(), err) {
				t.Errorf("Err() = %v, want %v", dec.Err(), err)
			}
		})
	}
}

func TestDecoderPipelinedFrames(t *testing.T) {
	dec := protocol.NewDecoder(protocol.Limits{})
	dec.Write([]byte("+PONG\r\n:1\r\n$3\r\nabc\r\n*1\r\n"))

	want := []protocol.Frame{
		protocol.SimpleString("PONG"),
		protocol.Integer(1),
		protocol.BulkStringFromString("abc"),
	}
	for i, w := range want {
		frame, ok, err := dec.Decode()
		if err != nil || !ok {
			t.Fatalf("Decode() #%d = ok %v, err %v", i, ok, err)
		}
		if !frame.Equal(w) {
			t.Errorf("Decode() #%d = %v, want %v", i, frame, w)
		}
	}

	if _, ok, err := dec.Decode(); ok || err != nil {
		t.Fatalf("Decode() on partial array = ok %v, err %v", ok, err)
	}
	if got := string(dec.Bytes()); got != "*1\r\n" {
		t.Errorf("Bytes() = %q, want %q", got, "*1\r\n")
	}
}

func TestDecoderMaxBufferSize(t *testing.T) {
	dec := protocol.NewDecoder(protocol.Limits{MaxBufferSize: 64})
	dec.Write([]byte("$100\r\n"))

	if _, ok, err := dec.Decode(); ok || err != nil {
		t.Fatalf("Decode() = ok %v, err %v", ok, err)
	}

	dec.Write(bytes.Repeat([]byte("a"), 80))
	_, _, err := dec.Decode()
	if !errors.Is(err, protocol.ErrFrameTooLarge) {
		t.Fatalf("Decode() error = %v, want ErrFrameTooLarge", err)
	}
}

func TestDecoderLargeBulkInSmallChunks(t *testing.T) {
	payload := strings.Repeat("0123456789", 10000)
	encoded := mustEncode(t, protocol.BulkStringFromString(payload))

	dec := protocol.NewDecoder(protocol.Limits{})
	var got protocol.Frame
	var decoded int
	for off := 0; off < len(encoded); off += 7 {
		dec.Write(encoded[off:min(off+7, len(encoded))])
		frame, ok, err := dec.Decode()
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if ok {
			got = frame
			decoded++
		}
	}

	if decoded != 1 || string(got.Data) != payload {
		t.Fatalf("decoded %d frames, payload match %v", decoded, string(got.Data) == payload)
	}
}

func TestDecoderReset(t *testing.T) {
	dec := protocol.NewDecoder(protocol.Limits{})
	dec.Write([]byte("@bad\r\n"))
	if _, _, err := dec.Decode(); err == nil {
		t.Fatal("Decode() expected error")
	}

	dec.Reset()
	dec.Write([]byte(":5\r\n"))
	frame, ok, err := dec.Decode()
	if err != nil || !ok || frame.Integer != 5 {
		t.Fatalf("Decode() after Reset = %v, ok %v, err %v", frame, ok, err)
	}
}

func TestDecoderFill(t *testing.T) {
	dec := protocol.NewDecoder(protocol.Limits{})
	src := strings.NewReader(":1\r\n:2\r\n")

	n, err := dec.Fill(src)
	if err != nil {
		t.Fatalf("Fill() error = %v", err)
	}
	if n != 8 || dec.Buffered() != 8 {
		t.Fatalf("Fill() = %d, Buffered() = %d, want 8", n, dec.Buffered())
	}

	for want := int64(1); want <= 2; want++ {
		frame, ok, err := dec.Decode()
		if err != nil || !ok || frame.Integer != want {
			t.Fatalf("Decode() = %v, ok %v, err %v, want %d", frame, ok, err, want)
		}
	}
}
