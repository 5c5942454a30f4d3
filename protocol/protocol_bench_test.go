package protocol

import (
	"bytes"
	"strconv"
	"testing"
)

// BenchmarkParseSimpleString benchmarks parsing simple strings
func BenchmarkParseSimpleString(b *testing.B) {
	input := []byte("+OK\r\n")

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, _, err := Parse(input, Limits{}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkParseInteger benchmarks parsing integers
func BenchmarkParseInteger(b *testing.B) {
	input := []byte(":-1234567890\r\n")

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, _, err := Parse(input, Limits{}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkParseBulkString benchmarks parsing bulk strings of various sizes
func BenchmarkParseBulkString(b *testing.B) {
	sizes := []struct {
		name string
		size int
	}{
		{"16B", 16},
		{"1KB", 1024},
		{"64KB", 64 * 1024},
	}

	for _, sz := range sizes {
		input := appendBulk(nil, bytes.Repeat([]byte("x"), sz.size))
		b.Run(sz.name, func(b *testing.B) {
			b.SetBytes(int64(len(input)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, _, err := Parse(input, Limits{}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkParseCommand benchmarks parsing typical client commands
func BenchmarkParseCommand(b *testing.B) {
	commands := []struct {
		name string
		args []string
	}{
		{"PING", []string{"PING"}},
		{"GET", []string{"GET", "user:1000"}},
		{"SET", []string{"SET", "user:1000", "some value that is a bit longer"}},
	}

	for _, cmd := range commands {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		if err := w.WriteCommand(cmd.args[0], cmd.args[1:]...); err != nil {
			b.Fatal(err)
		}
		w.Flush()
		input := buf.Bytes()

		b.Run(cmd.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, _, err := Parse(input, Limits{}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkDecoderPipeline benchmarks decoding a batch of pipelined commands
func BenchmarkDecoderPipeline(b *testing.B) {
	var batch []byte
	for i := 0; i < 100; i++ {
		batch, _ = AppendFrame(batch, Array(
			BulkStringFromString("SET"),
			BulkStringFromString("key:"+strconv.Itoa(i)),
			BulkStringFromString("value:"+strconv.Itoa(i)),
		))
	}

	dec := NewDecoder(Limits{})
	b.SetBytes(int64(len(batch)))
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		dec.Write(batch)
		for {
			_, ok, err := dec.Decode()
			if err != nil {
				b.Fatal(err)
			}
			if !ok {
				break
			}
		}
	}
}

// BenchmarkDecoderLargeBulkChunked measures retries while a large bulk
// string arrives in small reads
func BenchmarkDecoderLargeBulkChunked(b *testing.B) {
	input := appendBulk(nil, bytes.Repeat([]byte("y"), 1024*1024))
	const chunk = 1500

	b.SetBytes(int64(len(input)))
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		dec := NewDecoder(Limits{})
		for off := 0; off < len(input); off += chunk {
			dec.Write(input[off:min(off+chunk, len(input))])
			if _, _, err := dec.Decode(); err != nil {
				b.Fatal(err)
			}
		}
	}
}

// BenchmarkWriterSimpleString benchmarks writing simple strings
func BenchmarkWriterSimpleString(b *testing.B) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		buf.Reset()
		w.Reset(&buf)
		if err := w.WriteSimpleString("OK"); err != nil {
			b.Fatal(err)
		}
		w.Flush()
	}
}

// BenchmarkWriterArray benchmarks writing arrays of integers
func BenchmarkWriterArray(b *testing.B) {
	items := make([]Frame, 10)
	for i := range items {
		items[i] = Integer(int64(i))
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		buf.Reset()
		w.Reset(&buf)
		if err := w.WriteArray(items); err != nil {
			b.Fatal(err)
		}
		w.Flush()
	}
}
