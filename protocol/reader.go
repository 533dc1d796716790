package protocol

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// maxLineSize bounds a single NDJSON line. Tool results can carry whole
// files, so this is generous.
const maxLineSize = 10 * 1024 * 1024

// Reader yields RawEvents from an NDJSON stream. Blank lines are skipped and
// lines that are not JSON objects are logged and skipped, matching how the
// bridge reader tolerates stray stdout noise.
type Reader struct {
	scanner *bufio.Scanner
	logger  *slog.Logger
	line    int
	skipped int
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithReaderLogger sets the logger used for skipped lines.
func WithReaderLogger(l *slog.Logger) ReaderOption {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReader wraps r.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	rd := &Reader{
		scanner: scanner,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(rd)
	}
	return rd
}

// Next returns the next event. It returns io.EOF when the stream is
// exhausted.
func (r *Reader) Next() (RawEvent, error) {
	for r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		ev, err := ParseRawEvent(line)
		if err != nil {
			r.skipped++
			r.logger.Warn("skipping malformed event line",
				"line", r.line, "error", err, "preview", preview(line, 100))
			continue
		}
		return ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event stream at line %d: %w", r.line+1, err)
	}
	return nil, io.EOF
}

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int { return r.line }

// Skipped returns how many non-blank lines failed to decode.
func (r *Reader) Skipped() int { return r.skipped }

// Stream reads events from r and sends them on out until EOF, a read error,
// or ctx cancellation. It does not close out.
func Stream(ctx context.Context, r io.Reader, out chan<- RawEvent, opts ...ReaderOption) error {
	rd := NewReader(r, opts...)
	for {
		ev, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func preview(b []byte, n int) string {
	runes := []rune(string(b))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n])
}
