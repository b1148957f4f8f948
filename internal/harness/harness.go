package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/reborrow/cell"
	"github.com/roach88/reborrow/internal/testutil"
)

// Harness executes one scenario against a real cell.
//
// It holds the named guards the steps create and release. Each scenario
// runs on a fresh harness, so scenarios are fully isolated.
type Harness struct {
	cell    *cell.Cell[int64]
	foreign *int64
	clock   *testutil.DeterministicClock
	logger  *slog.Logger

	refs  map[string]*cell.Ref[int64]
	muts  map[string]*cell.Mut[int64]
	parks map[string]*cell.Parked[int64]
}

// newHarness creates a harness around a fresh cell holding initial.
func newHarness(initial int64, foreign *int64, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	}
	return &Harness{
		cell:    cell.New(initial),
		foreign: foreign,
		clock:   testutil.NewDeterministicClock(),
		logger:  logger,
		refs:    make(map[string]*cell.Ref[int64]),
		muts:    make(map[string]*cell.Mut[int64]),
		parks:   make(map[string]*cell.Parked[int64]),
	}
}

// Run executes a scenario and returns the result.
//
// Every step executes for real: outcomes come from the cell, not from the
// scenario's expectations. A step whose outcome differs from its expectation
// marks the result as failed but execution continues, so the trace always
// covers the whole scenario.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, nil)
}

// RunWithLogger is Run with a caller-provided logger for step-level events.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	var tokenGen testutil.RunTokenGenerator = testutil.UUIDv7Generator{}
	if scenario.RunToken != "" {
		tokenGen = testutil.NewFixedTokenGenerator(scenario.RunToken)
	}
	result := NewResult(tokenGen.Generate())

	h := newHarness(scenario.Initial, scenario.Foreign, logger)

	for i, step := range scenario.Steps {
		ev := h.executeStep(step)
		result.Trace = append(result.Trace, ev)

		expected := step.Expect
		if expected == "" {
			expected = OutcomeOK
		}
		if ev.Outcome != expected {
			result.AddError(fmt.Sprintf(
				"steps[%d]: %s expected outcome %s, got %s", i, step.Op, expected, ev.Outcome))
		}
		if step.ExpectValue != nil {
			if ev.Value == nil {
				result.AddError(fmt.Sprintf(
					"steps[%d]: %s expected value %d, observed none", i, step.Op, *step.ExpectValue))
			} else if *ev.Value != *step.ExpectValue {
				result.AddError(fmt.Sprintf(
					"steps[%d]: %s expected value %d, got %d", i, step.Op, *step.ExpectValue, *ev.Value))
			}
		}

		h.logger.Info("step executed",
			"step", i,
			"op", step.Op,
			"guard", step.Guard,
			"as", step.As,
			"outcome", ev.Outcome,
		)
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, h) {
		result.AddError(errMsg)
	}
	return result, nil
}

// executeStep runs one step and records it as a trace event.
//
// Guard access can be fatal: reading through a non-current exclusive guard
// panics. The harness converts such panics into the fatal outcome so
// scenarios can assert on them.
func (h *Harness) executeStep(step Step) (ev TraceEvent) {
	ev = TraceEvent{
		Seq:    h.clock.Next(),
		Op:     step.Op,
		Guard:  step.Guard,
		As:     step.As,
		Target: step.Target,
		Add:    step.Add,
	}

	defer func() {
		if r := recover(); r != nil {
			ev.Outcome = OutcomeFatal
			ev.Value = nil
			h.logger.Error("step panicked", "op", step.Op, "guard", step.Guard, "panic", fmt.Sprint(r))
		}
	}()

	switch step.Op {
	case OpBorrow:
		if !h.nameFree(step.As) {
			ev.Outcome = OutcomeLogic
			return ev
		}
		g, err := h.cell.Borrow()
		ev.Outcome = classify(err)
		if err == nil {
			h.refs[step.As] = g
		}

	case OpBorrowMut:
		if !h.nameFree(step.As) {
			ev.Outcome = OutcomeLogic
			return ev
		}
		g, err := h.cell.BorrowMut()
		ev.Outcome = classify(err)
		if err == nil {
			h.muts[step.As] = g
		}

	case OpPark:
		m, ok := h.muts[step.Guard]
		if !ok || !h.nameFree(step.As) {
			ev.Outcome = OutcomeLogic
			return ev
		}
		ptr := h.foreign
		if step.Target != TargetForeign {
			ptr = m.Value()
		}
		g, err := h.cell.Park(ptr)
		ev.Outcome = classify(err)
		if err == nil {
			h.parks[step.As] = g
		}

	case OpRelease:
		ev.Outcome = classify(h.release(step.Guard))

	case OpTryRelease:
		p, ok := h.parks[step.Guard]
		if !ok {
			ev.Outcome = OutcomeLogic
			return ev
		}
		if p.TryRelease() {
			ev.Outcome = OutcomeOK
		} else {
			ev.Outcome = OutcomeNotReleased
		}

	case OpRead:
		ptr, err := h.guardPtr(step.Guard)
		if err != nil {
			ev.Outcome = OutcomeLogic
			return ev
		}
		v := *ptr
		ev.Value = &v
		ev.Outcome = OutcomeOK

	case OpWrite:
		m, ok := h.muts[step.Guard]
		if !ok {
			ev.Outcome = OutcomeLogic
			return ev
		}
		ptr := m.Value()
		*ptr += *step.Add
		v := *ptr
		ev.Value = &v
		ev.Outcome = OutcomeOK

	default:
		// Unreachable for validated scenarios.
		ev.Outcome = OutcomeLogic
	}
	return ev
}

// release releases the named guard of whichever kind it is.
func (h *Harness) release(name string) error {
	if g, ok := h.refs[name]; ok {
		return g.Release()
	}
	if g, ok := h.muts[name]; ok {
		return g.Release()
	}
	if g, ok := h.parks[name]; ok {
		return g.Release()
	}
	return fmt.Errorf("unknown guard %q", name)
}

// guardPtr returns the value pointer of a named shared or exclusive guard.
func (h *Harness) guardPtr(name string) (*int64, error) {
	if g, ok := h.refs[name]; ok {
		return g.Value(), nil
	}
	if g, ok := h.muts[name]; ok {
		return g.Value(), nil
	}
	return nil, fmt.Errorf("unknown guard %q", name)
}

// nameFree reports whether no guard of any kind uses name yet. Guard names
// stay taken after release so that traces stay unambiguous.
func (h *Harness) nameFree(name string) bool {
	if _, ok := h.refs[name]; ok {
		return false
	}
	if _, ok := h.muts[name]; ok {
		return false
	}
	_, ok := h.parks[name]
	return !ok
}

// classify maps a cell error to a trace outcome.
func classify(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case cell.IsContention(err):
		return OutcomeContention
	case cell.IsWrongReference(err):
		return OutcomeWrongReference
	case cell.IsPoisoned(err):
		return OutcomePoisoned
	default:
		return OutcomeLogic
	}
}
