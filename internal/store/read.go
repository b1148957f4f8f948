package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/reborrow/internal/harness"
)

// ErrRunNotFound is returned when a run token is not in the store.
var ErrRunNotFound = errors.New("run not found")

// ReadRun returns the run header stored under token.
func (s *Store) ReadRun(ctx context.Context, token string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_token, scenario_name, initial, foreign_value, pass
		FROM runs
		WHERE run_token = ?
	`, token)

	var run Run
	var foreign sql.NullInt64
	if err := row.Scan(&run.Token, &run.ScenarioName, &run.Initial, &foreign, &run.Pass); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", token, ErrRunNotFound)
		}
		return nil, fmt.Errorf("read run: %w", err)
	}
	if foreign.Valid {
		v := foreign.Int64
		run.Foreign = &v
	}
	return &run, nil
}

// ReadTrace returns all trace events for a run token, ordered by the
// logical seq so the trace replays in recording order.
//
// Returns an empty slice (not nil) if no events exist for the run token.
func (s *Store) ReadTrace(ctx context.Context, token string) ([]harness.TraceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, op, guard, as_name, target, add_value, outcome, value
		FROM trace_events
		WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query trace events: %w", err)
	}
	defer rows.Close()

	trace := []harness.TraceEvent{}
	for rows.Next() {
		var ev harness.TraceEvent
		var add, value sql.NullInt64
		if err := rows.Scan(&ev.Seq, &ev.Op, &ev.Guard, &ev.As, &ev.Target, &add, &ev.Outcome, &value); err != nil {
			return nil, fmt.Errorf("scan trace event: %w", err)
		}
		if add.Valid {
			v := add.Int64
			ev.Add = &v
		}
		if value.Valid {
			v := value.Int64
			ev.Value = &v
		}
		trace = append(trace, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace events: %w", err)
	}
	return trace, nil
}

// ListRuns returns all stored run headers. UUIDv7 run tokens sort by
// creation time, so ordering by token lists runs chronologically.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_token, scenario_name, initial, foreign_value, pass
		FROM runs
		ORDER BY run_token ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		var foreign sql.NullInt64
		if err := rows.Scan(&run.Token, &run.ScenarioName, &run.Initial, &foreign, &run.Pass); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if foreign.Valid {
			v := foreign.Int64
			run.Foreign = &v
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
