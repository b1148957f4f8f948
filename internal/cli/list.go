package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/reborrow/internal/store"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Database string
}

// ListedRun is one run header in list output.
type ListedRun struct {
	RunToken     string `json:"run_token"`
	ScenarioName string `json:"scenario_name"`
	Initial      int64  `json:"initial"`
	Foreign      *int64 `json:"foreign,omitempty"`
	Pass         bool   `json:"pass"`
}

// ListResult holds the list command output.
type ListResult struct {
	Runs  []ListedRun `json:"runs"`
	Total int         `json:"total"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Long: `List all runs recorded in a trace store.

Run tokens are UUIDv7, so the listing is chronological.

Examples:
  reborrow list --db trace.db
  reborrow list --db trace.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite trace store (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace store", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	result := ListResult{Runs: make([]ListedRun, 0, len(runs)), Total: len(runs)}
	for _, run := range runs {
		result.Runs = append(result.Runs, ListedRun{
			RunToken:     run.Token,
			ScenarioName: run.ScenarioName,
			Initial:      run.Initial,
			Foreign:      run.Foreign,
			Pass:         run.Pass,
		})
	}

	if opts.Format == "json" {
		return emitJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", List: &result})
	}

	w := cmd.OutOrStdout()
	if result.Total == 0 {
		fmt.Fprintln(w, "No runs found in trace store.")
		return nil
	}

	fmt.Fprintf(w, "%d run(s)\n", result.Total)
	for _, run := range result.Runs {
		status := "✓"
		if !run.Pass {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s  %s (initial %d)\n", status, run.RunToken, run.ScenarioName, run.Initial)
	}
	return nil
}
