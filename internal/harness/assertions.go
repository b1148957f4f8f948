package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		name := event.Guard
		if name == "" {
			name = event.As
		}
		fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", event.Seq, event.Op, name, event.Outcome)
	}

	return buf.String()
}

// EvaluateAssertions checks all assertions against the result's trace and
// the harness's final cell state. Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion, h *Harness) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertFinalValue:
			err = assertFinalValue(h, result.Trace, a)
		case AssertBound:
			err = assertBound(h, result.Trace, a)
		case AssertPoisoned:
			err = assertPoisoned(h, result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertFinalValue reads the cell's value through one more shared borrow and
// compares it. Fails if the cell cannot be borrowed, which usually means the
// scenario left guards unreleased or poisoned the cell.
func assertFinalValue(h *Harness, trace []TraceEvent, a Assertion) error {
	r, err := h.cell.Borrow()
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("cell borrowable with value %d", a.Value),
			Actual:   fmt.Sprintf("borrow failed: %v", err),
			Trace:    trace,
		}
	}
	got := *r.Value()
	if rerr := r.Release(); rerr != nil {
		return fmt.Errorf("final_value: releasing probe borrow: %w", rerr)
	}

	if got != a.Value {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("value %d", a.Value),
			Actual:   fmt.Sprintf("value %d", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertBound compares the cell's bound state.
func assertBound(h *Harness, trace []TraceEvent, a Assertion) error {
	got := h.cell.IsCurrentlyBound()
	if got != a.Want {
		return &AssertionError{
			Type:     AssertBound,
			Expected: fmt.Sprintf("bound=%t", a.Want),
			Actual:   fmt.Sprintf("bound=%t", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertPoisoned compares the cell's poisoned state.
func assertPoisoned(h *Harness, trace []TraceEvent, a Assertion) error {
	got := h.cell.IsPoisoned()
	if got != a.Want {
		return &AssertionError{
			Type:     AssertPoisoned,
			Expected: fmt.Sprintf("poisoned=%t", a.Want),
			Actual:   fmt.Sprintf("poisoned=%t", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceCount checks how many trace events match the assertion's op
// and outcome filters. An empty filter matches every event.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if a.Op != "" && event.Op != a.Op {
			continue
		}
		if a.Outcome != "" && event.Outcome != a.Outcome {
			continue
		}
		count++
	}

	if count != a.Count {
		filter := a.Op
		if a.Outcome != "" {
			if filter != "" {
				filter += "/"
			}
			filter += a.Outcome
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d events matching %s", a.Count, filter),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    trace,
		}
	}
	return nil
}
