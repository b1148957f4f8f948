// Package cell provides a reentrant borrow cell: a container that hands out
// shared (read-only) and exclusive (read-write) access to a single value,
// and that can hand out a *new* exclusive access even while one already
// exists, as long as the existing one has been parked first.
//
// The problem this solves is re-entrant dispatch. An external engine calls
// into an object while the object's owner already holds an exclusive
// reference to it (for example, a method emits a signal and the engine calls
// back into the same object before the method returns). An ordinary
// single-writer cell must fail or deadlock on the second exclusive request.
// A Cell instead lets the holder park its exclusive access, which freezes
// the held reference and frees the value up to be borrowed again. The new
// borrow is derived from the parked reference, so at any instant there is at
// most one *live* exclusive view of the value.
//
// Access is mediated entirely by guards:
//
//   - Ref:    a shared borrow; many may coexist.
//   - Mut:    an exclusive borrow; at most one is live at a time.
//   - Parked: a frozen exclusive borrow awaiting unparking.
//
// Releasing a guard is the only way the cell's borrow accounting is wound
// back, and park guards must be released in last-in-first-out order. An
// out-of-order release poisons the cell: every subsequent operation fails
// with the recorded reason, because no outstanding pointer can be trusted
// once the nesting discipline is broken.
//
// Cell does not block; every operation either succeeds or fails immediately.
// BlockingCell wraps a Cell for cross-goroutine use and waits instead of
// failing when a conflicting borrow exists.
//
// CALLER OBLIGATIONS (not enforced structurally):
//   - While a Mut is parked, the caller must not use the pointer it obtained
//     from that guard until the corresponding Parked guard is released.
//   - A goroutine must not block-borrow from a BlockingCell while it already
//     holds that cell's exclusive guard; it must park first and reborrow
//     through the park guard.
package cell
