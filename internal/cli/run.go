package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/reborrow/internal/harness"
	"github.com/roach88/reborrow/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a borrow scenario",
		Long: `Run a borrow scenario against a fresh cell.

Every step executes for real; the command reports each step's outcome and
whether the scenario's expectations and assertions held. With --db, the run
and its trace are recorded for later replay.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed (outcome or assertion mismatch)
  2 - Command error (scenario not loadable, database error, etc.)

Examples:
  reborrow run scenario.yaml
  reborrow run scenario.yaml --db trace.db
  reborrow run scenario.yaml --format json --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite trace store")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := setupLogging(opts.Verbose)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	logger.Debug("scenario loaded", "name", scenario.Name, "steps", len(scenario.Steps))
	result, err := harness.RunWithLogger(scenario, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	if opts.Database != "" {
		if err := recordRun(cmd.Context(), opts.Database, scenario, result); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		logger.Info("run recorded", "db", opts.Database, "run_token", result.RunToken)
	}

	if opts.Format == "json" {
		return outputRunJSON(cmd, scenario, result)
	}
	return outputRunText(cmd, scenario, result, opts.Verbose)
}

// recordRun stores the run header and trace.
func recordRun(ctx context.Context, dbPath string, scenario *harness.Scenario, result *harness.Result) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	run := store.Run{
		Token:        result.RunToken,
		ScenarioName: scenario.Name,
		Initial:      scenario.Initial,
		Foreign:      scenario.Foreign,
		Pass:         result.Pass,
	}
	return st.WriteResult(ctx, run, result.Trace)
}

// outputRunJSON outputs the run result as JSON.
func outputRunJSON(cmd *cobra.Command, scenario *harness.Scenario, result *harness.Result) error {
	response := CLIResponse{
		Status:   "ok",
		Run:      result,
		RunToken: result.RunToken,
	}
	if !result.Pass {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeScenario,
			Message: fmt.Sprintf("scenario %s failed", scenario.Name),
			Details: result.Errors,
		}
	}

	if err := emitJSON(cmd.OutOrStdout(), response); err != nil {
		return err
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// outputRunText outputs the run result as text.
func outputRunText(cmd *cobra.Command, scenario *harness.Scenario, result *harness.Result, verbose bool) error {
	w := cmd.OutOrStdout()

	status := "✓"
	if !result.Pass {
		status = "✗"
	}
	fmt.Fprintf(w, "%s Scenario: %s (%d steps, run %s)\n", status, scenario.Name, len(result.Trace), result.RunToken)

	if verbose {
		for _, ev := range result.Trace {
			name := ev.Guard
			if name == "" {
				name = ev.As
			}
			if ev.Value != nil {
				fmt.Fprintf(w, "  [%d] %s %s -> %s (value %d)\n", ev.Seq, ev.Op, name, ev.Outcome, *ev.Value)
			} else {
				fmt.Fprintf(w, "  [%d] %s %s -> %s\n", ev.Seq, ev.Op, name, ev.Outcome)
			}
		}
	}

	if !result.Pass {
		fmt.Fprintln(w)
		for _, msg := range result.Errors {
			fmt.Fprintf(w, "  %s\n", msg)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}
