package cell

import "sync"

// Cell hands out shared and exclusive borrows of a single value, and can
// hand out a new exclusive borrow even when one already exists, as long as
// the existing one has been parked first and no shared borrows exist.
//
// The value's storage is a field of the Cell and is never relocated: a Cell
// must be heap-allocated via New and never copied, because outstanding
// guards point into it directly.
//
// The borrow metadata (BorrowState plus the pointer stack) is protected by
// a mutex and is safe for cross-goroutine use. The *value* is not: using a
// Cell from multiple goroutines requires T to be safe to hand between them,
// and concurrent callers should prefer BlockingCell.
//
// No operation blocks; each either succeeds or fails immediately.
type Cell[T any] struct {
	mu    sync.Mutex
	state BorrowState

	// The payload. Guards reach it through the pointer stack, never through
	// this field directly.
	value T

	// Pointer stack. ptrs[0] is always &value; Park pushes the parked
	// reference so that new borrows derive from the most recent exclusive
	// reference, and releasing the park guard pops it. The stack makes the
	// required last-in-first-out release order explicit and checkable.
	ptrs []*T
}

// New creates a cell storing value.
func New[T any](value T) *Cell[T] {
	c := &Cell[T]{value: value}
	c.ptrs = []*T{&c.value}
	return c
}

// Borrow returns a new shared borrow of the cell's value.
//
// Fails with a contention error if any exclusive borrow exists, parked or
// live, or with a poisoned error if the cell is poisoned.
func (c *Cell[T]) Borrow() (*Ref[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.state.IncrementShared(); err != nil {
		return nil, err
	}
	return &Ref[T]{cell: c, ptr: c.currentPtr()}, nil
}

// BorrowMut returns a new exclusive borrow of the cell's value.
//
// Fails with a contention error if a shared borrow exists or if an
// accessible (unparked) exclusive borrow exists. Succeeds while a *parked*
// exclusive borrow exists; the returned guard's pointer is derived from the
// parked reference.
func (c *Cell[T]) BorrowMut() (*Mut[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	gen, err := c.state.IncrementMut()
	if err != nil {
		return nil, err
	}
	return &Mut[T]{cell: c, gen: gen, ptr: c.currentPtr()}, nil
}

// Park freezes the current exclusive borrow, freeing the value up to be
// borrowed again. ref must be the pointer obtained from the currently
// accessible Mut guard; passing any other pointer fails with a
// wrong-reference error and leaves the cell unchanged.
//
// Until the returned Parked guard is released, the caller must not use ref.
// Park guards must be released in last-in-first-out order; releasing them
// out of order poisons the cell.
func (c *Cell[T]) Park(ref *T) (*Parked[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ref != c.currentPtr() {
		return nil, wrongReferenceErr("parked reference is not the cell's current reference")
	}
	if _, err := c.state.SetInaccessible(); err != nil {
		return nil, err
	}

	c.ptrs = append(c.ptrs, ref)
	return &Parked[T]{cell: c, depth: c.depth()}, nil
}

// IsCurrentlyBound returns true if any shared or exclusive borrow exists,
// regardless of whether exclusive borrows are parked.
//
// When this returns false it is safe to discard the cell: no guard can be
// holding a pointer into it. Keep in mind that in multi-goroutine code a
// new borrow may be handed out right after this returns false; the owner
// must ensure that cannot happen concurrently with destruction.
func (c *Cell[T]) IsCurrentlyBound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.SharedCount() > 0 || c.state.MutDepth() > 0
}

// IsPoisoned returns true once the cell has detected an invariant violation
// such as an out-of-order park release.
func (c *Cell[T]) IsPoisoned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.IsPoisoned()
}

// currentPtr returns the pointer the next borrow should be derived from.
// Callers must hold c.mu.
func (c *Cell[T]) currentPtr() *T {
	return c.ptrs[len(c.ptrs)-1]
}

// depth returns how many references have been parked. Callers must hold c.mu.
func (c *Cell[T]) depth() int {
	return len(c.ptrs) - 1
}

// IsCurrentlyMutablyBound is like IsCurrentlyBound but only counts exclusive
// borrows, parked or live.
func (c *Cell[T]) IsCurrentlyMutablyBound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.MutDepth() > 0
}

// mutWouldBlock reports whether a top-level BlockingCell.BorrowMut must
// wait. Any tracked borrow, shared or exclusive, parked or live, keeps a new
// exclusive session out; reentrant borrows go through a Parked guard and
// never consult this.
func (c *Cell[T]) mutWouldBlock() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.IsPoisoned() {
		return false // fail fast instead of waiting forever
	}
	return c.state.SharedCount() > 0 || c.state.MutDepth() > 0
}

// sharedWouldBlock reports whether Borrow would currently fail with
// contention. Used by BlockingCell to decide when to wait.
func (c *Cell[T]) sharedWouldBlock() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.IsPoisoned() {
		return false
	}
	return c.state.MutDepth() > 0
}
