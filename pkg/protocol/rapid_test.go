package protocol

import (
	"bytes"
	"io"
	"testing"

	"pgregory.net/rapid"
)

// chunkedReader replays data in caller-chosen chunk sizes, simulating
// arbitrary TCP read boundaries.
type chunkedReader struct {
	data   []byte
	chunks []int
	pos    int
	chunk  int
}

func (r *chunkedReader) Read(b []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	size := len(r.data) - r.pos
	if r.chunk < len(r.chunks) && r.chunks[r.chunk] < size {
		size = r.chunks[r.chunk]
	}
	r.chunk++
	if size > len(b) {
		size = len(b)
	}
	n := copy(b, r.data[r.pos:r.pos+size])
	r.pos += n
	return n, nil
}

// TestDecoderReassemblyRoundTrip checks that any sequence of lines is
// recovered intact regardless of how the stream is fragmented.
func TestDecoderReassemblyRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lineCount := rapid.IntRange(1, 10).Draw(t, "lineCount")
		lines := make([][]byte, lineCount)
		var stream bytes.Buffer
		for i := range lines {
			// Line content excludes the frame delimiter
			content := rapid.SliceOfN(
				rapid.ByteRange(32, 126), 0, 200,
			).Draw(t, "line")
			lines[i] = content
			stream.Write(content)
			stream.WriteByte('\n')
		}

		chunkCount := rapid.IntRange(0, 20).Draw(t, "chunkCount")
		chunks := make([]int, chunkCount)
		for i := range chunks {
			chunks[i] = rapid.IntRange(1, 64).Draw(t, "chunkSize")
		}

		dec := NewDecoder(&chunkedReader{data: stream.Bytes(), chunks: chunks}, 0)
		for i := range lines {
			got, err := dec.Next()
			if err != nil {
				t.Fatalf("line %d: decode failed: %v", i, err)
			}
			if !bytes.Equal(got, lines[i]) {
				t.Fatalf("line %d mismatch: got %q, want %q", i, got, lines[i])
			}
		}
		if _, err := dec.Next(); err != io.EOF {
			t.Fatalf("expected EOF after all lines, got %v", err)
		}
	})
}

// TestRequestDecodeNeverPanics feeds arbitrary bytes through the
// request decoder; malformed input must yield an error, not a panic.
func TestRequestDecodeNeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		line := rapid.SliceOfN(rapid.Byte(), 0, 256).Draw(t, "line")
		req, err := DecodeRequest(line)
		if err == nil && req == nil {
			t.Fatal("nil request without error")
		}
	})
}
