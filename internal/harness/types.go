package harness

// Outcome classifies what happened when a step executed.
const (
	OutcomeOK             = "ok"
	OutcomeContention     = "contention"
	OutcomeWrongReference = "wrong_reference"
	OutcomePoisoned       = "poisoned"
	OutcomeLogic          = "logic"
	OutcomeNotReleased    = "not_released"
	OutcomeFatal          = "fatal"
)

// TraceEvent records one executed step: what was attempted, against which
// guard, and how it went. A trace carries everything needed to re-execute
// the run, which is what replay does.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Op      string `json:"op"`
	Guard   string `json:"guard,omitempty"`
	As      string `json:"as,omitempty"`
	Target  string `json:"target,omitempty"`
	Add     *int64 `json:"add,omitempty"`
	Outcome string `json:"outcome"`
	Value   *int64 `json:"value,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step's outcome matched its expectation and all
	// assertions held.
	Pass bool `json:"pass"`

	// RunToken identifies this run; fixed tokens make traces reproducible.
	RunToken string `json:"run_token"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures. Empty if Pass.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(runToken string) *Result {
	return &Result{
		Pass:     true,
		RunToken: runToken,
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
