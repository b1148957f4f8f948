package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/reborrow/internal/harness"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenario failure, replay divergence, stress failure
	ExitCommandError = 2 // Command error (invalid paths, database not found, etc.)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope every command emits with --format json.
// Exactly one payload field is set, matching the command that produced it;
// the others stay nil and are omitted from the output.
type CLIResponse struct {
	Status     string            `json:"status"`              // "ok" or "error"
	RunToken   string            `json:"run_token,omitempty"` // run correlation (run command)
	Run        *harness.Result   `json:"run,omitempty"`
	Validation *ValidationResult `json:"validation,omitempty"`
	Replay     *ReplayResult     `json:"replay,omitempty"`
	List       *ListResult       `json:"list,omitempty"`
	Stress     *StressResult     `json:"stress,omitempty"`
	Error      *CLIError         `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string   `json:"code"`              // "E_SCENARIO", "E_REPLAY", etc.
	Message string   `json:"message"`           // human-readable message
	Details []string `json:"details,omitempty"` // per-step failure messages
}

// Error codes used across commands.
const (
	ErrCodeScenario = "E_SCENARIO" // scenario failed to load or validate
	ErrCodeDatabase = "E_DATABASE" // trace store could not be opened or read
	ErrCodeReplay   = "E_REPLAY"   // replay diverged from the recorded trace
)

// emitJSON writes resp to w as indented JSON.
func emitJSON(w io.Writer, resp CLIResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// verboseLogf writes a diagnostic line to w when verbose is on. Callers pass
// stderr so diagnostics never corrupt JSON on stdout.
func verboseLogf(w io.Writer, verbose bool, format string, args ...interface{}) {
	if !verbose {
		return
	}
	fmt.Fprintf(w, format+"\n", args...)
}
