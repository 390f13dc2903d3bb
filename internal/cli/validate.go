package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/holodeck-sim/holodeck/internal/scenario"
)

// ValidationResult reports the outcome per scenario file.
type ValidationResult struct {
	File  string `json:"file"`
	Name  string `json:"name,omitempty"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml>...",
		Short: "Validate scenario files",
		Long: `Validate scenario files against the schema without running them.

Exit codes:
  0 - All files valid
  1 - One or more files invalid
  2 - Command error (file not found)

Examples:
  holodeck validate scenario.yaml
  holodeck validate scenarios/*.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	results := make([]ValidationResult, 0, len(paths))
	invalid := 0
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("scenario file not found: %s", path))
		}
		res := ValidationResult{File: path, Valid: true}
		sc, err := scenario.Load(path)
		if err != nil {
			res.Valid = false
			res.Error = err.Error()
			invalid++
		} else {
			res.Name = sc.Name
		}
		results = append(results, res)
		out.VerboseLog("validated %s: valid=%t", path, res.Valid)
	}

	if opts.Format == "json" {
		if err := out.Success(results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			if res.Valid {
				fmt.Fprintf(out.Writer, "OK    %s (%s)\n", res.File, res.Name)
			} else {
				fmt.Fprintf(out.Writer, "FAIL  %s: %s\n", res.File, res.Error)
			}
		}
	}

	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d file(s) invalid", invalid, len(results)))
	}
	return nil
}
