// Package stream turns the assistant's chunked HTTP response body into
// typed events and folds them into the session view a caller observes.
package stream

import (
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/finlexvn/ragchat/pkg/rag"
)

// dataPrefix is the wire framing marker. Only lines carrying it are
// events; blank keep-alive lines and comments are skipped.
const dataPrefix = "data: "

// Decoder incrementally parses "data: <json>" lines from a byte stream.
// Chunks may arrive split at arbitrary boundaries, including inside a
// multi-byte UTF-8 sequence or mid-line; incomplete trailing input is
// held back until more bytes arrive or the stream ends. The residual
// buffer is processed one final time at end-of-stream so a terminal
// event without a trailing newline is not lost.
type Decoder struct {
	r      io.Reader
	logger *zap.Logger

	buf     string      // decoded text not yet split into complete lines
	pending []byte      // bytes held back because they end mid UTF-8 sequence
	events  []rag.Event // parsed but not yet returned
	readBuf []byte
	err     error // sticky; returned once queued events are drained
}

// NewDecoder creates a decoder over the raw response body. A nil logger
// is replaced with a no-op one.
func NewDecoder(r io.Reader, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{
		r:       r,
		logger:  logger,
		readBuf: make([]byte, 4096),
	}
}

// Next returns the next event in arrival order. It blocks on the
// underlying read when no complete event is buffered. Once the stream
// is exhausted (including the flushed residual buffer) it returns
// io.EOF.
func (d *Decoder) Next() (rag.Event, error) {
	for {
		if len(d.events) > 0 {
			ev := d.events[0]
			d.events = d.events[1:]
			return ev, nil
		}
		if d.err != nil {
			return rag.Event{}, d.err
		}

		n, err := d.r.Read(d.readBuf)
		if n > 0 {
			d.feed(d.readBuf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.flushResidual()
				d.err = io.EOF
			} else {
				d.err = err
			}
		}
	}
}

// feed appends a chunk of raw bytes, holding back a trailing partial
// UTF-8 sequence so a rune split across chunks is not mangled, then
// consumes every complete line.
func (d *Decoder) feed(p []byte) {
	b := p
	if len(d.pending) > 0 {
		b = append(d.pending, p...)
		d.pending = nil
	}

	cut := len(b)
	for i := len(b) - 1; i >= 0 && i > len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				cut = i
			}
			break
		}
	}
	if cut < len(b) {
		d.pending = append([]byte(nil), b[cut:]...)
	}

	d.buf += string(b[:cut])
	d.consumeLines()
}

// consumeLines splits the buffer on newlines. The final fragment (which
// may still be incomplete) stays in the buffer.
func (d *Decoder) consumeLines() {
	for {
		idx := strings.IndexByte(d.buf, '\n')
		if idx < 0 {
			return
		}
		line := d.buf[:idx]
		d.buf = d.buf[idx+1:]
		d.parseLine(line)
	}
}

// flushResidual runs the held-back fragment through the same line logic
// when the byte source signals end-of-stream. A terminal event can
// legitimately arrive in the last chunk with no trailing newline.
func (d *Decoder) flushResidual() {
	if len(d.pending) > 0 {
		d.buf += string(d.pending)
		d.pending = nil
	}
	d.consumeLines()
	if d.buf != "" {
		d.parseLine(d.buf)
		d.buf = ""
	}
}

// parseLine filters for the wire prefix and decodes one event. A line
// that fails to parse is logged and dropped; it never aborts the stream.
func (d *Decoder) parseLine(line string) {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return
	}
	payload := line[len(dataPrefix):]

	ev, err := rag.DecodeEvent([]byte(payload))
	if err != nil {
		d.logger.Warn("skipping malformed event line",
			zap.Error(err),
			zap.String("line", truncate(payload, 200)),
		)
		return
	}
	d.events = append(d.events, ev)
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
