package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/openspawn/openspawn-sub002/internal/logging"
)

type rootOptions struct {
	LogLevel string
	LogJSON  bool

	env    envConfig
	envErr error
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	if o.LogJSON {
		return logging.NewJSONLogger(o.LogLevel, w)
	}
	return logging.NewLogger(o.LogLevel, w)
}

var validLevels = []string{"debug", "info", "warn", "error"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	opts.env, opts.envErr = loadEnv()

	cmd := &cobra.Command{
		Use:           "orgsim",
		Short:         "Tick-driven simulation of an agent organization",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envErr != nil {
				return &exitError{code: exitUsage, err: opts.envErr}
			}
			for _, l := range validLevels {
				if l == opts.LogLevel {
					return nil
				}
			}
			return &exitError{code: exitUsage, err: fmt.Errorf("invalid --log-level %q: must be one of %v", opts.LogLevel, validLevels)}
		},
	}
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", opts.env.LogLevel, "log level (debug|info|warn|error) [$ORGSIM_LOG_LEVEL]")
	cmd.PersistentFlags().BoolVar(&opts.LogJSON, "log-json", opts.env.LogJSON, "emit JSON log lines [$ORGSIM_LOG_JSON]")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newReplayCommand(opts))
	cmd.AddCommand(newInspectCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newScenariosCommand())
	return cmd
}
