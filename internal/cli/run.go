package cli

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/holodeck-sim/holodeck/internal/scenario"
	"github.com/holodeck-sim/holodeck/internal/sim"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and print its trace",
		Long: `Validate a scenario file, execute it against a fresh engine, and
print the step-by-step trace with the final environment summary.

Exit codes:
  0 - Scenario ran and all assertions passed
  1 - Scenario ran but assertions failed
  2 - Command error (file not found, malformed scenario, broken script)

Examples:
  holodeck run scenario.yaml
  holodeck run scenario.yaml --format json
  holodeck run scenario.yaml -v`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runScenario(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(path); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenario file not found: %s", path))
	}

	sc, err := scenario.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid scenario", err)
	}
	out.VerboseLog("loaded scenario %s (%d events, %d steps)", sc.Name, len(sc.Events), len(sc.Script))
	out.VerboseLog("engine tick=%s time_scale=%g", opts.Config.TickInterval, opts.Config.TimeScale)

	result, err := scenario.RunWith(sc,
		sim.WithTickInterval(opts.Config.TickInterval),
		sim.WithTimeScale(opts.Config.TimeScale),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario run failed", err)
	}

	if opts.Format == "json" {
		if err := out.Success(result); err != nil {
			return err
		}
	} else {
		printTextTrace(out, sc, result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(result.Errors)))
	}
	return nil
}

func printTextTrace(out *OutputFormatter, sc *scenario.Scenario, result *scenario.Result) {
	fmt.Fprintf(out.Writer, "Scenario: %s\n", sc.Name)
	for i, step := range result.Steps {
		fmt.Fprintf(out.Writer, "  [%d] %-12s @ %s", i+1, step.Op, step.Time.UTC().Format(time.RFC3339))
		switch step.Op {
		case "undo", "redo":
			fmt.Fprintf(out.Writer, "  %s\n", step.Message)
			for _, label := range step.Labels {
				fmt.Fprintf(out.Writer, "        - %s\n", label)
			}
		default:
			fmt.Fprintf(out.Writer, "  executed=%d failed=%d skipped=%d\n",
				step.Executed, step.Failed, step.Skipped)
			if out.Verbose {
				for _, ev := range step.Events {
					fmt.Fprintf(out.Writer, "        - %s %s %s", ev.ID, ev.Channel, ev.Status)
					if ev.Error != "" {
						fmt.Fprintf(out.Writer, " (%s)", ev.Error)
					}
					fmt.Fprintln(out.Writer)
				}
			}
		}
	}

	channels := make([]string, 0, len(result.EntryCounts))
	for name := range result.EntryCounts {
		channels = append(channels, name)
	}
	sort.Strings(channels)
	fmt.Fprintf(out.Writer, "Final: time=%s undo_depth=%d redo_depth=%d\n",
		result.FinalTime.UTC().Format(time.RFC3339), result.UndoDepth, result.RedoDepth)
	for _, name := range channels {
		fmt.Fprintf(out.Writer, "  %s: %d entries\n", name, result.EntryCounts[name])
	}

	if result.Pass {
		fmt.Fprintln(out.Writer, "PASS")
	} else {
		for _, e := range result.Errors {
			fmt.Fprintf(out.Writer, "FAIL  %s\n", e)
		}
	}
}
