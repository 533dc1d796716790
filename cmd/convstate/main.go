// Command convstate reduces recorded agent bridge event logs into
// conversation state.
//
// Commands:
//   - replay: Reduce an NDJSON event log (optionally following it) and print the state
//   - normalize: Print the normalized form of every event in a log
//   - schema: Print the JSON Schema of the conversation state
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bazelment/convstate/config"
	"github.com/bazelment/convstate/model"
	"github.com/bazelment/convstate/reducer"
	"github.com/bazelment/convstate/session"
)

// Root flags shared by every subcommand.
type rootFlags struct {
	configPath string
	mode       string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "convstate",
		Short: "Reduce agent bridge event logs into conversation state",
		Long: `convstate feeds the NDJSON event stream written by an agent CLI bridge
through the same reducer an interactive client uses, and prints the
resulting conversation state.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", config.DefaultFile, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&flags.mode, "mode", "", "Permission mode override: auto or request")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newReplayCmd(flags))
	rootCmd.AddCommand(newNormalizeCmd(flags))
	rootCmd.AddCommand(newSchemaCmd())
	return rootCmd
}

// settings loads the config file and applies flag overrides.
func (f *rootFlags) settings() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.mode != "" {
		cfg.PermissionMode = model.PermissionMode(f.mode)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("--mode: %w", err)
		}
	}
	return cfg, nil
}

// newLogger creates a structured logger that writes to stderr. --verbose
// wins over the configured level.
func (f *rootFlags) newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, err := cfg.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	if f.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// sessionOptions builds the session configuration described by cfg.
func sessionOptions(cfg *config.Config, logger *slog.Logger) ([]session.Option, error) {
	ropts, err := cfg.ReducerOptions(logger)
	if err != nil {
		return nil, err
	}
	return []session.Option{
		session.WithLogger(logger),
		session.WithReducer(reducer.New(ropts...)),
		session.WithPermissionMode(cfg.PermissionMode),
	}, nil
}

// writeJSON encodes v, indented when w is a terminal.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	if isTerminal(w) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
