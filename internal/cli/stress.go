package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/reborrow/binding"
)

// StressOptions holds flags for the stress command.
type StressOptions struct {
	*RootOptions
	Goroutines int
	Iterations int
}

// StressResult holds the stress command output.
type StressResult struct {
	Goroutines int           `json:"goroutines"`
	Iterations int           `json:"iterations"`
	Expected   int64         `json:"expected"`
	Final      int64         `json:"final"`
	Poisoned   bool          `json:"poisoned"`
	Reads      int64         `json:"reads"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Pass       bool          `json:"pass"`
}

// NewStressCommand creates the stress command.
func NewStressCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StressOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Hammer a shared instance with concurrent reentrant calls",
		Long: `Hammer one shared instance with concurrent reentrant calls.

Every writer goroutine repeatedly takes an exclusive borrow, adds 3, then
reenters through a parked borrow to subtract 1. An equal number of reader
goroutines take shared borrows throughout. The run passes when the final
value equals goroutines * iterations * 2 and the cell never poisoned.

Exit codes:
  0 - Final value matched and the cell stayed healthy
  1 - Value mismatch or the cell poisoned
  2 - Command error

Examples:
  reborrow stress
  reborrow stress --goroutines 16 --iterations 1000
  reborrow stress --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Goroutines, "goroutines", 8, "number of writer goroutines (matched by readers)")
	cmd.Flags().IntVar(&opts.Iterations, "iterations", 500, "reentrant calls per writer")

	return cmd
}

func runStress(opts *StressOptions, cmd *cobra.Command) error {
	if opts.Goroutines < 1 || opts.Iterations < 1 {
		return NewExitError(ExitCommandError, "goroutines and iterations must be positive")
	}
	logger := setupLogging(opts.Verbose)

	registry := binding.NewRegistry[int64](binding.WithRegistryLogger[int64](logger))
	storage := registry.Register(0)
	id := storage.ID()

	var (
		readCount int64
		readMu    sync.Mutex
		firstErr  error
		errOnce   sync.Once
	)
	recordErr := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}

	start := time.Now()
	var wg sync.WaitGroup

	for i := 0; i < opts.Goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < opts.Iterations; j++ {
				err := registry.CallMut(id, func(s *binding.Storage[int64], v *int64) error {
					*v += 3
					return s.Reenter(v, func(inner *int64) error {
						*inner--
						return nil
					})
				})
				if err != nil {
					recordErr(err)
					return
				}
			}
		}()
	}

	for i := 0; i < opts.Goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < opts.Iterations; j++ {
				err := registry.CallShared(id, func(v *int64) error {
					if *v < 0 {
						return fmt.Errorf("observed negative value %d", *v)
					}
					readMu.Lock()
					readCount++
					readMu.Unlock()
					return nil
				})
				if err != nil {
					recordErr(err)
					return
				}
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	if firstErr != nil {
		return WrapExitError(ExitFailure, "stress run hit a borrow error", firstErr)
	}

	var final int64
	if err := registry.CallShared(id, func(v *int64) error {
		final = *v
		return nil
	}); err != nil {
		return WrapExitError(ExitFailure, "failed to read final value", err)
	}

	result := StressResult{
		Goroutines: opts.Goroutines,
		Iterations: opts.Iterations,
		Expected:   int64(opts.Goroutines) * int64(opts.Iterations) * 2,
		Final:      final,
		Poisoned:   storage.IsPoisoned(),
		Reads:      readCount,
		Elapsed:    elapsed,
	}
	result.Pass = result.Final == result.Expected && !result.Poisoned

	logger.Debug("stress run finished",
		"final", result.Final, "expected", result.Expected, "elapsed", elapsed)

	if opts.Format == "json" {
		return outputStressJSON(cmd, result)
	}
	return outputStressText(cmd, result)
}

// outputStressJSON outputs the stress result as JSON.
func outputStressJSON(cmd *cobra.Command, result StressResult) error {
	response := CLIResponse{
		Status: "ok",
		Stress: &result,
	}
	if !result.Pass {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeScenario,
			Message: fmt.Sprintf("expected %d, got %d (poisoned=%v)", result.Expected, result.Final, result.Poisoned),
		}
	}

	if err := emitJSON(cmd.OutOrStdout(), response); err != nil {
		return err
	}

	if !result.Pass {
		return NewExitError(ExitFailure, "stress run failed")
	}
	return nil
}

// outputStressText outputs the stress result as text.
func outputStressText(cmd *cobra.Command, result StressResult) error {
	w := cmd.OutOrStdout()

	status := "✓"
	if !result.Pass {
		status = "✗"
	}
	fmt.Fprintf(w, "%s Stress: %d goroutines x %d iterations in %s\n",
		status, result.Goroutines, result.Iterations, result.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  Final value: %d (expected %d)\n", result.Final, result.Expected)
	fmt.Fprintf(w, "  Shared reads: %d\n", result.Reads)

	if result.Poisoned {
		fmt.Fprintln(w, "  Cell poisoned!")
	}
	if !result.Pass {
		return NewExitError(ExitFailure, "stress run failed")
	}
	return nil
}
