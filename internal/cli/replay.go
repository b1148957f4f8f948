package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/reborrow/internal/harness"
	"github.com/roach88/reborrow/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunToken string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunToken      string `json:"run_token"`
	ScenarioName  string `json:"scenario_name"`
	Events        int    `json:"events"`
	Deterministic bool   `json:"deterministic"`
	Divergence    string `json:"divergence,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded traces and verify determinism",
		Long: `Replay recorded borrow traces against fresh cells.

Each stored run is re-executed step by step from its recorded trace. Because
borrow outcomes depend only on the step sequence, a replay must reproduce
every seq, outcome and observed value exactly; any divergence means the
recording was tampered with or the trace is incomplete.

Exit codes:
  0 - All runs replayed deterministically
  1 - Replay diverged from a recorded trace
  2 - Command error (database not found, unknown run token, etc.)

Examples:
  reborrow replay --db trace.db
  reborrow replay --db trace.db --run 01890a5d-ac96-774b-bcce-b302099a8057
  reborrow replay --db trace.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite trace store (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "replay a specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := setupLogging(opts.Verbose)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace store", err)
	}
	defer st.Close()

	var runs []store.Run
	if opts.RunToken != "" {
		run, err := st.ReadRun(ctx, opts.RunToken)
		if err != nil {
			if errors.Is(err, store.ErrRunNotFound) {
				return WrapExitError(ExitCommandError, "run not found", err)
			}
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = []store.Run{*run}
	} else {
		runs, err = st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
	}

	if len(runs) == 0 {
		if opts.Format == "json" {
			result := ReplayResult{
				Runs:             []ReplayRunResult{},
				TotalRuns:        0,
				AllDeterministic: true,
			}
			return outputReplayJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No runs found in trace store.")
		return nil
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}

	for _, run := range runs {
		trace, err := st.ReadTrace(ctx, run.Token)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read trace for run %s", run.Token), err)
		}

		runResult := ReplayRunResult{
			RunToken:      run.Token,
			ScenarioName:  run.ScenarioName,
			Events:        len(trace),
			Deterministic: true,
		}
		if err := harness.Replay(run.Initial, run.Foreign, trace, logger); err != nil {
			runResult.Deterministic = false
			runResult.Divergence = err.Error()
			result.AllDeterministic = false
		}
		result.Runs = append(result.Runs, runResult)
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Replay: &result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeReplay,
			Message: "replay diverged from recorded trace",
		}
	}

	if err := emitJSON(cmd.OutOrStdout(), response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay diverged from recorded trace")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		status := "✓"
		if !run.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Run: %s\n", status, run.RunToken)

		if verbose {
			fmt.Fprintf(w, "  Scenario: %s\n", run.ScenarioName)
			fmt.Fprintf(w, "  Events: %d\n", run.Events)
		}

		if !run.Deterministic {
			fmt.Fprintf(w, "  Divergence: %s\n", run.Divergence)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All runs replayed deterministically")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay diverged from recorded trace")
	return NewExitError(ExitFailure, "replay diverged from recorded trace")
}
