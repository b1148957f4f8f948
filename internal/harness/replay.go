package harness

import (
	"fmt"
	"log/slog"
)

// Replay re-executes a recorded trace against a fresh cell and verifies
// that every step produces the outcome and value recorded the first time.
//
// A clean replay demonstrates that the trace is a faithful, deterministic
// record of the cell's behavior. A divergence means either the trace was
// tampered with or the cell's semantics changed since it was recorded.
func Replay(initial int64, foreign *int64, trace []TraceEvent, logger *slog.Logger) error {
	h := newHarness(initial, foreign, logger)

	for i, recorded := range trace {
		if recorded.Target == TargetForeign && foreign == nil {
			return fmt.Errorf("trace[%d]: trace uses a foreign pointer but no foreign value was provided", i)
		}

		actual := h.executeStep(Step{
			Op:     recorded.Op,
			Guard:  recorded.Guard,
			As:     recorded.As,
			Target: recorded.Target,
			Add:    recorded.Add,
		})

		if actual.Seq != recorded.Seq {
			return fmt.Errorf("trace[%d]: seq diverged: recorded %d, replayed %d",
				i, recorded.Seq, actual.Seq)
		}
		if actual.Outcome != recorded.Outcome {
			return fmt.Errorf("trace[%d]: %s outcome diverged: recorded %s, replayed %s",
				i, recorded.Op, recorded.Outcome, actual.Outcome)
		}
		if !valuesEqual(recorded.Value, actual.Value) {
			return fmt.Errorf("trace[%d]: %s value diverged: recorded %s, replayed %s",
				i, recorded.Op, formatValue(recorded.Value), formatValue(actual.Value))
		}
	}
	return nil
}

func valuesEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func formatValue(v *int64) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *v)
}
