// Package harness provides scenario testing for the borrow cell.
//
// The harness loads borrow scenarios from YAML, executes them against a real
// cell, records every operation's outcome in a trace, and validates
// assertions against the trace and the cell's final state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	initial: 23456
//	run_token: "run-00000000-0000-0000-0000-000000000001"
//	steps:
//	  - op: borrow_mut
//	    as: outer
//	  - op: write
//	    guard: outer
//	    add: 50
//	  - op: park
//	    guard: outer
//	    as: p1
//	  - op: borrow_mut
//	    as: inner
//	  - op: release
//	    guard: inner
//	  - op: release
//	    guard: p1
//	  - op: release
//	    guard: outer
//	assertions:
//	  - type: final_value
//	    value: 23506
//	  - type: bound
//	    want: false
//
// # Operations
//
// Steps support the following ops:
//
//   - borrow: take a shared borrow, named by "as"
//   - borrow_mut: take an exclusive borrow, named by "as"
//   - park: park the exclusive guard named by "guard"; the park guard is
//     named by "as". With target: foreign, a pointer outside the cell is
//     passed instead, which must fail with wrong_reference.
//   - release: release the named guard of any kind
//   - try_release: non-poisoning release of a park guard
//   - read: record the value seen through the named guard
//   - write: add "add" to the value through the named exclusive guard
//
// Each step may declare the outcome it expects (ok, contention,
// wrong_reference, poisoned, logic, not_released, fatal); omitted means ok.
// Read steps may additionally declare expect_value.
//
// # Assertion Types
//
//   - final_value: borrows the cell once more and verifies the value
//   - bound: verifies IsCurrentlyBound
//   - poisoned: verifies IsPoisoned
//   - trace_count: verifies how many trace events match an op and outcome
//
// # Deterministic Testing
//
// All scenarios execute with a deterministic logical clock and a fixed run
// token, so the same scenario always produces a byte-identical trace. Golden
// trace snapshots build on this; see RunWithGolden.
package harness
