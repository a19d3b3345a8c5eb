package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// ErrLineTooLong indicates a wire line exceeded the configured maximum.
// The connection cannot be resynchronized after this, so callers should
// close it.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// Decoder reassembles newline-delimited JSON lines from a stream. One
// network read may carry zero, one, or several complete lines, and a
// line may span multiple reads; the decoder buffers partial data and
// only yields on each '\n' boundary.
type Decoder struct {
	r       *bufio.Reader
	maxLine int
}

// NewDecoder wraps r with a line decoder. maxLine bounds the length of a
// single line in bytes; zero or negative means no bound.
func NewDecoder(r io.Reader, maxLine int) *Decoder {
	return &Decoder{
		r:       bufio.NewReader(r),
		maxLine: maxLine,
	}
}

// Next returns the next complete line without its trailing newline.
// It returns io.EOF when the stream ends cleanly and ErrLineTooLong when
// a line outgrows the configured bound.
func (d *Decoder) Next() ([]byte, error) {
	var line []byte
	for {
		chunk, err := d.r.ReadSlice('\n')
		line = append(line, chunk...)
		if d.maxLine > 0 && len(line) > d.maxLine {
			return nil, ErrLineTooLong
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			// Partial trailing line with no newline is discarded on EOF,
			// matching the framing contract: only '\n'-terminated lines
			// are requests.
			return nil, err
		}
		return bytes.TrimRight(line, "\r\n"), nil
	}
}
