// Package store provides SQLite-backed durable storage for recorded borrow
// traces.
//
// The store holds two tables:
//   - runs: one header per scenario execution (token, scenario, initial
//     value, pass/fail)
//   - trace_events: the ordered operations of each run
//
// All ordering uses the logical seq column, never timestamps, so a stored
// trace replays identically regardless of wall time. Run tokens are UUIDv7,
// which sort by creation time, so listings come out chronological without a
// timestamp column.
//
// Writes are idempotent: recording the same run or event twice is silently
// ignored via ON CONFLICT DO NOTHING.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
