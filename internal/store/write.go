package store

import (
	"context"
	"fmt"

	"github.com/roach88/reborrow/internal/harness"
)

// Run is the stored header of one recorded scenario execution. It carries
// everything replay needs besides the trace itself.
type Run struct {
	Token        string
	ScenarioName string
	Initial      int64
	Foreign      *int64
	Pass         bool
}

// WriteRun inserts a run header.
// Uses ON CONFLICT(run_token) DO NOTHING for idempotency - recording the
// same run twice is silently ignored.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_token, scenario_name, initial, foreign_value, pass)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_token) DO NOTHING
	`,
		run.Token,
		run.ScenarioName,
		run.Initial,
		run.Foreign,
		run.Pass,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteTraceEvent inserts one trace event for a run.
// Uses ON CONFLICT DO NOTHING for idempotency - duplicate (run, seq) pairs
// are silently ignored.
//
// Note: The run referenced by runToken must exist (foreign key constraint).
func (s *Store) WriteTraceEvent(ctx context.Context, runToken string, ev harness.TraceEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trace_events
		(run_token, seq, op, guard, as_name, target, add_value, outcome, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runToken,
		ev.Seq,
		ev.Op,
		ev.Guard,
		ev.As,
		ev.Target,
		ev.Add,
		ev.Outcome,
		ev.Value,
	)
	if err != nil {
		return fmt.Errorf("write trace event: %w", err)
	}
	return nil
}

// WriteResult records a whole scenario execution in one transaction: the run
// header plus every trace event. Either everything is stored or nothing is.
func (s *Store) WriteResult(ctx context.Context, run Run, trace []harness.TraceEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_token, scenario_name, initial, foreign_value, pass)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_token) DO NOTHING
	`, run.Token, run.ScenarioName, run.Initial, run.Foreign, run.Pass); err != nil {
		return fmt.Errorf("write result: run: %w", err)
	}

	for _, ev := range trace {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO trace_events
			(run_token, seq, op, guard, as_name, target, add_value, outcome, value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, run.Token, ev.Seq, ev.Op, ev.Guard, ev.As, ev.Target, ev.Add, ev.Outcome, ev.Value); err != nil {
			return fmt.Errorf("write result: trace event %d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write result: commit: %w", err)
	}
	return nil
}
