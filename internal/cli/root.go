// Package cli implements the holodeck command line: a local driver for
// validating and running scenario files against the simulation engine.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/holodeck-sim/holodeck/internal/config"
)

// RootOptions holds global flags shared by all commands, plus the
// environment config loaded before any command runs.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the holodeck CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "holodeck",
		Short: "Holodeck - discrete-event environment simulator",
		Long:  "Drive multi-channel simulated environments from declarative scenario files.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.Verbose {
				cfg.LogLevel = "debug"
			}
			slog.SetDefault(cfg.Logger(cmd.ErrOrStderr()))
			opts.Config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
