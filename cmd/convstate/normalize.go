package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bazelment/convstate/event"
	"github.com/bazelment/convstate/protocol"
)

// normalized is one output line of the normalize command.
type normalized struct {
	Event event.Event `json:"event"`
	Kind  event.Kind  `json:"kind"`
}

func newNormalizeCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <log>",
		Short: "Print every event of a log in normalized form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.settings()
			if err != nil {
				return err
			}
			logger := root.newLogger(cfg, cmd.ErrOrStderr())

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open event log: %w", err)
			}
			defer f.Close()
			return normalizeLog(f, cmd.OutOrStdout(), protocol.WithReaderLogger(logger))
		},
	}
}

func normalizeLog(r io.Reader, w io.Writer, opts ...protocol.ReaderOption) error {
	rd := protocol.NewReader(r, opts...)
	for {
		raw, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		ev := event.Normalize(raw)
		if err := writeJSON(w, normalized{Kind: ev.Kind(), Event: ev}); err != nil {
			return err
		}
	}
}
