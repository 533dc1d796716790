package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bazelment/convstate/replay"
	"github.com/bazelment/convstate/session"
)

type replayFlags struct {
	follow bool
}

func newReplayCmd(root *rootFlags) *cobra.Command {
	flags := &replayFlags{}

	cmd := &cobra.Command{
		Use:   "replay [flags] <log>",
		Short: "Reduce an event log and print the final state",
		Example: `  convstate replay session.jsonl
  convstate replay --follow --mode auto session.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, args[0], root, flags)
		},
	}
	cmd.Flags().BoolVarP(&flags.follow, "follow", "f", false, "Keep reading as the log grows; print the state on interrupt")
	return cmd
}

func runReplay(cmd *cobra.Command, path string, root *rootFlags, flags *replayFlags) error {
	cfg, err := root.settings()
	if err != nil {
		return err
	}
	logger := root.newLogger(cfg, cmd.ErrOrStderr())
	opts, err := sessionOptions(cfg, logger)
	if err != nil {
		return err
	}

	if !flags.follow {
		res, err := replay.Load(cmd.Context(), path, opts...)
		if err != nil {
			return err
		}
		logger.Debug("replayed event log", "path", path, "lines", res.Lines, "skipped", res.Skipped)
		return writeJSON(cmd.OutOrStdout(), res.State)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(opts...)
	if err := replay.Follow(ctx, path, sess, logger); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), sess.Snapshot())
}
