// Package replay reduces recorded bridge event logs (NDJSON, one raw event
// per line) into conversation state.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/bazelment/convstate/model"
	"github.com/bazelment/convstate/protocol"
	"github.com/bazelment/convstate/session"
)

// Result holds the outcome of replaying a log.
type Result struct {
	State   *model.State
	Lines   int
	Skipped int
}

// Load feeds every event in the log at path through a fresh session built
// from opts and returns the final state. With a fixed clock and a sequential
// id generator the result is deterministic for a given log.
func Load(ctx context.Context, path string, opts ...session.Option) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	sess := session.New(opts...)
	return LoadReader(ctx, f, sess, slog.Default())
}

// LoadReader feeds r into sess until EOF.
func LoadReader(ctx context.Context, r io.Reader, sess *session.Session, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rd := protocol.NewReader(r, protocol.WithReaderLogger(logger))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := dispatch(ctx, sess, raw, logger); err != nil {
			return nil, fmt.Errorf("line %d: %w", rd.Line(), err)
		}
	}
	return &Result{
		State:   sess.Snapshot(),
		Lines:   rd.Line(),
		Skipped: rd.Skipped(),
	}, nil
}

// Follow dispatches the events already in the log at path and then tails the
// file, dispatching each line as it is completed, until ctx is done. A line
// written in several chunks is held back until its newline arrives.
func Follow(ctx context.Context, path string, sess *session.Session, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	t := &tailer{r: bufio.NewReader(f), sess: sess, logger: logger}
	if err := t.drain(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) {
				if err := t.drain(ctx); err != nil {
					return err
				}
			} else if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				logger.Warn("event log went away, stopping follow", "path", path, "op", ev.Op.String())
				return nil
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "path", path, "error", err)
		}
	}
}

type tailer struct {
	r       *bufio.Reader
	sess    *session.Session
	logger  *slog.Logger
	partial []byte
	line    int
}

// drain dispatches every complete line currently readable.
func (t *tailer) drain(ctx context.Context) error {
	for {
		chunk, err := t.r.ReadBytes('\n')
		if len(chunk) > 0 {
			t.partial = append(t.partial, chunk...)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read event log: %w", err)
		}

		line := bytes.TrimSpace(t.partial)
		t.partial = t.partial[:0]
		t.line++
		if len(line) == 0 {
			continue
		}
		raw, perr := protocol.ParseRawEvent(line)
		if perr != nil {
			t.logger.Warn("skipping malformed event line", "line", t.line, "error", perr)
			continue
		}
		if err := dispatch(ctx, t.sess, raw, t.logger); err != nil {
			return fmt.Errorf("line %d: %w", t.line, err)
		}
	}
}

func dispatch(ctx context.Context, sess *session.Session, raw protocol.RawEvent, logger *slog.Logger) error {
	err := sess.DispatchRaw(ctx, raw)
	var effErr *session.EffectError
	if errors.As(err, &effErr) {
		logger.Warn("failed to deliver effect", "error", err)
		return nil
	}
	return err
}
