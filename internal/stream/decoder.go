package stream

import (
	"bytes"

	"github.com/zeebo/errs"
)

// ErrTruncated marks a stream that ended mid-frame. The partial tail is
// discarded; the condition is reported, not fatal.
var ErrTruncated = errs.Class("truncated stream")

// delimiter terminates every frame on the wire. No length prefix.
var delimiter = []byte("\r\n")

// Decoder turns an arbitrarily-chunked byte stream into complete frames.
// A chunk may hold zero, one, or many frames, and the two-byte delimiter
// may itself be split across chunks; the trailing partial frame is buffered
// and prepended to the next chunk. The zero value is ready to use.
type Decoder struct {
	buf []byte
}

// Feed absorbs one chunk and returns every complete frame it closes off.
// Empty frames (back-to-back delimiters) are skipped. Returned slices are
// only valid until the next Feed call.
func (d *Decoder) Feed(chunk []byte) [][]byte {
	d.buf = append(d.buf, chunk...)

	var frames [][]byte
	for {
		i := bytes.Index(d.buf, delimiter)
		if i < 0 {
			break
		}
		if i > 0 {
			frames = append(frames, d.buf[:i])
		}
		d.buf = d.buf[i+len(delimiter):]
	}
	return frames
}

// Finish closes the stream. If a partial frame was still buffered it is
// discarded and an ErrTruncated error describes it.
func (d *Decoder) Finish() error {
	if len(d.buf) == 0 {
		return nil
	}
	n := len(d.buf)
	d.buf = nil
	return ErrTruncated.New("discarding %d buffered bytes", n)
}

// Pending returns how many bytes of an incomplete frame are buffered.
func (d *Decoder) Pending() int {
	return len(d.buf)
}
