package cli

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/spf13/cobra"

	"github.com/roach88/reborrow/internal/harness"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError is one problem found in a scenario file.
type ValidationError struct {
	File    string `json:"file"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml>...",
		Short: "Validate scenario files without running them",
		Long: `Validate borrow scenario files without executing them.

Each file is checked twice: against the CUE scenario schema, which catches
structural mistakes with positions, and by the harness loader, which
enforces the per-operation field rules.

Exit codes:
  0 - All scenarios valid
  1 - Validation failed
  2 - Command error (file not found, etc.)`,
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
	cuectx := cuecontext.New()
	schema := cuectx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to compile scenario schema", err)
	}
	scenarioSchema := schema.LookupPath(cue.ParsePath("#Scenario"))
	if err := scenarioSchema.Err(); err != nil {
		return WrapExitError(ExitCommandError, "scenario schema has no #Scenario definition", err)
	}

	var allErrors []ValidationError
	for _, path := range paths {
		// Verbose logs go to stderr to avoid corrupting JSON on stdout.
		verboseLogf(cmd.ErrOrStderr(), opts.Verbose, "Validating %s", path)
		allErrors = append(allErrors, validateScenarioFile(cuectx, scenarioSchema, path)...)
	}

	if len(allErrors) > 0 {
		return outputValidationErrors(opts.Format, cmd.OutOrStdout(), len(paths), allErrors)
	}
	return outputValidateSuccess(opts.Format, cmd.OutOrStdout(), len(paths))
}

// validateScenarioFile checks one scenario file against the CUE schema and
// the harness loader.
func validateScenarioFile(cuectx *cue.Context, scenarioSchema cue.Value, path string) []ValidationError {
	data, err := os.ReadFile(path)
	if err != nil {
		return []ValidationError{{File: path, Message: err.Error()}}
	}

	var errs []ValidationError

	file, err := cueyaml.Extract(path, data)
	if err != nil {
		errs = append(errs, cueValidationErrors(path, err)...)
	} else {
		value := cuectx.BuildFile(file)
		if verr := value.Err(); verr != nil {
			errs = append(errs, cueValidationErrors(path, verr)...)
		} else {
			unified := scenarioSchema.Unify(value)
			if verr := unified.Validate(cue.Concrete(true)); verr != nil {
				errs = append(errs, cueValidationErrors(path, verr)...)
			}
		}
	}

	// The loader enforces per-op field rules the schema cannot express,
	// such as "write requires add" and "target foreign requires a foreign
	// value".
	if _, err := harness.LoadScenario(path); err != nil {
		errs = append(errs, ValidationError{File: path, Message: err.Error()})
	}

	return errs
}

// cueValidationErrors flattens a CUE error into per-position entries.
func cueValidationErrors(path string, err error) []ValidationError {
	var errs []ValidationError
	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{File: path, Message: e.Error()}
		if pos := e.Position(); pos.IsValid() {
			ve.Line = pos.Line()
		}
		errs = append(errs, ve)
	}
	if len(errs) == 0 {
		errs = append(errs, ValidationError{File: path, Message: err.Error()})
	}
	return errs
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(format string, w io.Writer, files int) error {
	if format == "json" {
		return emitJSON(w, CLIResponse{
			Status:     "ok",
			Validation: &ValidationResult{Valid: true, Files: files},
		})
	}

	fmt.Fprintf(w, "✓ %d scenario(s) valid\n", files)
	return nil
}

// outputValidationErrors outputs validation failures and returns the
// failure exit code.
func outputValidationErrors(format string, w io.Writer, files int, errs []ValidationError) error {
	if format == "json" {
		response := CLIResponse{
			Status:     "error",
			Validation: &ValidationResult{Valid: false, Files: files, Errors: errs},
			Error: &CLIError{
				Code:    ErrCodeScenario,
				Message: errs[0].Message,
			},
		}
		if err := emitJSON(w, response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(w, "%s:%d\n", err.File, err.Line)
		} else {
			fmt.Fprintln(w, err.File)
		}
		fmt.Fprintf(w, "  %s\n\n", err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
