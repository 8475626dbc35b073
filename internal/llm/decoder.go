package llm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
)

// readChunkSize is the read buffer used when draining a response body.
const readChunkSize = 4 << 10

// Decoder turns arbitrarily split chunks of a streaming body into text
// deltas. It buffers the incomplete trailing fragment of each chunk and
// only decodes whole lines. A Decoder is single-use.
type Decoder struct {
	framing Framing
	buf     []byte
	done    bool
	skipped int
	used    bool
}

// NewDecoder returns a decoder for the given framing.
func NewDecoder(f Framing) *Decoder {
	return &Decoder{framing: f}
}

// Feed consumes a chunk and returns the non-empty deltas of every line
// it completes. Input after the end-of-stream marker is ignored.
func (d *Decoder) Feed(chunk []byte) []string {
	if d.done {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var out []string
	start := 0
	for !d.done {
		idx := bytes.IndexByte(d.buf[start:], '\n')
		if idx < 0 {
			break
		}
		line := d.buf[start : start+idx]
		start += idx + 1
		if delta, ok := d.decode(line); ok {
			out = append(out, delta)
		}
	}

	if d.done {
		d.buf = nil
	} else if start > 0 {
		d.buf = append(d.buf[:0], d.buf[start:]...)
	}
	return out
}

// Finish decodes a final line left unterminated when the body ended.
// A truncated fragment fails to parse and is skipped like any other
// malformed line.
func (d *Decoder) Finish() []string {
	if d.done || len(d.buf) == 0 {
		return nil
	}
	line := d.buf
	d.buf = nil
	if delta, ok := d.decode(line); ok {
		return []string{delta}
	}
	return nil
}

// Done reports whether the end-of-stream marker was seen.
func (d *Decoder) Done() bool { return d.done }

// Skipped returns the number of non-blank lines that carried no payload.
func (d *Decoder) Skipped() int { return d.skipped }

func (d *Decoder) decode(line []byte) (string, bool) {
	delta, done, ok := d.framing.DecodeLine(line)
	if done {
		d.done = true
	}
	if !ok {
		if len(bytes.TrimSpace(line)) > 0 {
			d.skipped++
		}
		return "", false
	}
	return delta, delta != ""
}

// Stream lazily decodes r. The returned sequence is forward-only and can
// be ranged over once; later ranges yield nothing. Decoding stops at the
// end-of-stream marker, at EOF, or when ctx is cancelled. Cancellation
// is not reported as an error. A read failure is yielded once as the
// final element.
func (d *Decoder) Stream(ctx context.Context, r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if d.used {
			return
		}
		d.used = true

		buf := make([]byte, readChunkSize)
		emit := func(deltas []string) bool {
			for _, delta := range deltas {
				if ctx.Err() != nil {
					return false
				}
				if !yield(delta, nil) {
					return false
				}
			}
			return true
		}

		for !d.done {
			if ctx.Err() != nil {
				return
			}
			n, err := r.Read(buf)
			if n > 0 && !emit(d.Feed(buf[:n])) {
				return
			}
			if err == nil {
				continue
			}
			if errors.Is(err, io.EOF) {
				emit(d.Finish())
				return
			}
			if ctx.Err() == nil {
				yield("", err)
			}
			return
		}
	}
}
