package cell

import "sync"

// BlockingCell is a Cell variant for multi-goroutine use: where Cell fails
// with a contention error, BlockingCell waits until the conflicting borrows
// have been released.
//
//   - Borrow waits while any exclusive borrow is tracked, parked or live.
//   - BorrowMut waits while the cell is bound at all, by shared borrows or
//     by any exclusive borrow, parked or live. It always starts a fresh
//     exclusive session, and the whole session belongs to its holder from
//     first borrow to last release.
//   - Park never waits. The returned guard carries the right to take the
//     nested exclusive borrow it made legal (BlockingParked.BorrowMut).
//     Other goroutines keep waiting until the session fully unwinds, so
//     park stacks never interleave across goroutines.
//
// The self-deadlock hazard remains a caller obligation: a goroutine that
// already holds this cell's accessible exclusive guard must park it and
// reborrow through the park guard; calling BorrowMut again waits on itself.
// BlockingCell has no notion of goroutine identity and cannot detect this.
//
// Poisoned cells do not block; every operation fails immediately with the
// poisoning reason.
type BlockingCell[T any] struct {
	inner *Cell[T]

	// mu serializes the wait-then-borrow sequences; cond is signalled after
	// every release, the only transition that can unblock a waiter.
	mu   sync.Mutex
	cond *sync.Cond
}

// NewBlocking creates a blocking cell storing value.
func NewBlocking[T any](value T) *BlockingCell[T] {
	b := &BlockingCell[T]{inner: New(value)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Borrow returns a new shared borrow of the cell's value, waiting until no
// exclusive borrow is tracked.
//
// Fails only if the cell is poisoned.
func (b *BlockingCell[T]) Borrow() (*BlockingRef[T], error) {
	b.mu.Lock()
	for b.inner.sharedWouldBlock() {
		b.cond.Wait()
	}
	g, err := b.inner.Borrow()
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &BlockingRef[T]{inner: g, owner: b}, nil
}

// BorrowMut returns a new exclusive borrow of the cell's value, waiting
// until no other borrow of any kind is tracked. A parked exclusive borrow
// still counts: its session owns the cell until it fully unwinds, and only
// the holder of the park guard may take the nested borrow.
//
// Fails only if the cell is poisoned.
func (b *BlockingCell[T]) BorrowMut() (*BlockingMut[T], error) {
	b.mu.Lock()
	for b.inner.mutWouldBlock() {
		b.cond.Wait()
	}
	g, err := b.inner.BorrowMut()
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &BlockingMut[T]{inner: g, owner: b}, nil
}

// Park freezes the current exclusive borrow so the value can be borrowed
// again. Semantics are identical to Cell.Park; parking never waits.
//
// The nested exclusive borrow parking makes legal is reserved for the
// returned guard's BorrowMut; parking wakes no waiters.
func (b *BlockingCell[T]) Park(ref *T) (*BlockingParked[T], error) {
	b.mu.Lock()
	g, err := b.inner.Park(ref)
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &BlockingParked[T]{inner: g, owner: b}, nil
}

// IsCurrentlyBound returns true if any shared or exclusive borrow exists,
// regardless of whether exclusive borrows are parked. See
// Cell.IsCurrentlyBound for the destruction-safety caveats.
func (b *BlockingCell[T]) IsCurrentlyBound() bool {
	return b.inner.IsCurrentlyBound()
}

// IsPoisoned returns true once the cell has detected an invariant violation.
func (b *BlockingCell[T]) IsPoisoned() bool {
	return b.inner.IsPoisoned()
}

// wake signals all blocked borrowers that the borrow state changed.
func (b *BlockingCell[T]) wake() {
	b.mu.Lock()
	b.cond.Broadcast()
	b.mu.Unlock()
}
