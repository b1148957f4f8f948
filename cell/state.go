package cell

// BorrowState tracks the borrows handed out by a Cell.
//
// The state upholds these invariants:
//   - Shared borrows may only be taken when no exclusive borrow is tracked,
//     parked or not.
//   - An exclusive borrow may only be taken when there are no shared borrows
//     and no accessible (unparked) exclusive borrow.
//   - The current exclusive borrow may only be parked while it is accessible.
//   - A parked borrow may only be unparked when there is no accessible
//     exclusive borrow and no shared borrows.
//
// If a catastrophic error occurs the state is poisoned. A poisoned state is
// almost certainly an implementation or release-ordering bug; every
// operation on it fails with the recorded reason.
//
// BorrowState is a pure state machine: it holds no pointers and performs no
// synchronization. Cell serializes access to it under its mutex.
type BorrowState struct {
	// Number of live shared borrows.
	sharedCount int
	// Number of nested exclusive sessions: park levels plus the active one.
	mutDepth int
	// Number of exclusive sessions that are currently parked.
	parkedDepth int
	// Set once an invariant violation is detected; sticky.
	poisoned     bool
	poisonReason string
}

// NewBorrowState returns a state tracking no borrows.
// The zero value is also valid and identical.
func NewBorrowState() *BorrowState {
	return &BorrowState{}
}

// SharedCount returns the number of live shared borrows.
func (s *BorrowState) SharedCount() int {
	return s.sharedCount
}

// MutDepth returns the number of tracked exclusive sessions, parked or not.
func (s *BorrowState) MutDepth() int {
	return s.mutDepth
}

// HasAccessible returns true if an accessible (unparked) exclusive borrow
// exists. There is never more than one.
func (s *BorrowState) HasAccessible() bool {
	return s.mutDepth-s.parkedDepth == 1
}

// IsPoisoned returns true once the state has reached an unreliable state.
func (s *BorrowState) IsPoisoned() bool {
	return s.poisoned
}

// PoisonReason returns the recorded reason, or "" if not poisoned.
func (s *BorrowState) PoisonReason() string {
	return s.poisonReason
}

// Poison marks the state as unreliable and records why.
// Always returns a poisoned error carrying the reason.
func (s *BorrowState) Poison(reason string) error {
	s.poisoned = true
	s.poisonReason = reason
	return poisonedErr(reason)
}

func (s *BorrowState) ensureNotPoisoned() error {
	if s.poisoned {
		return poisonedErr(s.poisonReason)
	}
	return nil
}

// IncrementShared tracks a new shared borrow and returns the new total.
//
// Fails while any exclusive borrow is tracked, parked or live: a parked
// exclusive still owns the value's mutation history, so shared readers must
// wait for the whole exclusive stack to unwind.
func (s *BorrowState) IncrementShared() (int, error) {
	if err := s.ensureNotPoisoned(); err != nil {
		return 0, err
	}
	if s.mutDepth > 0 {
		return 0, contentionErr("cannot borrow while an exclusive borrow exists")
	}
	s.sharedCount++
	return s.sharedCount, nil
}

// DecrementShared untracks a shared borrow and returns the new total.
//
// Fails if no shared borrow is tracked.
func (s *BorrowState) DecrementShared() (int, error) {
	if err := s.ensureNotPoisoned(); err != nil {
		return 0, err
	}
	if s.sharedCount == 0 {
		return 0, logicErr("cannot decrement shared count when no shared borrow exists")
	}
	if s.HasAccessible() {
		// Unreachable if IncrementShared/IncrementMut did their jobs.
		return 0, s.Poison("shared borrow tracked while an accessible exclusive borrow exists")
	}
	s.sharedCount--
	return s.sharedCount, nil
}

// IncrementMut tracks a new exclusive borrow and returns the new depth,
// which serves as the borrow's generation.
//
// Fails while a shared borrow exists, or while an accessible exclusive
// borrow exists. A *parked* exclusive borrow does not block this: that is
// the reentrancy escape hatch.
func (s *BorrowState) IncrementMut() (int, error) {
	if err := s.ensureNotPoisoned(); err != nil {
		return 0, err
	}
	if s.sharedCount > 0 {
		return 0, contentionErr("cannot borrow exclusively while a shared borrow exists")
	}
	if s.HasAccessible() {
		return 0, contentionErr("cannot borrow exclusively while an accessible exclusive borrow exists")
	}
	s.mutDepth++
	return s.mutDepth, nil
}

// DecrementMut untracks the current exclusive borrow and returns the new
// depth.
//
// Fails if no exclusive borrow is tracked, or if the current one is parked
// (it must be unparked before it can be released).
func (s *BorrowState) DecrementMut() (int, error) {
	if err := s.ensureNotPoisoned(); err != nil {
		return 0, err
	}
	if s.mutDepth == 0 {
		return 0, logicErr("cannot decrement exclusive depth when no exclusive borrow exists")
	}
	if s.mutDepth == s.parkedDepth {
		return 0, logicErr("cannot release the current exclusive borrow while it is parked")
	}
	if s.mutDepth-1 != s.parkedDepth {
		return 0, s.Poison("parked depth does not fit its invariant")
	}
	s.mutDepth--
	return s.mutDepth, nil
}

// SetInaccessible parks the current exclusive borrow and returns the new
// parked depth.
//
// Fails unless an accessible exclusive borrow exists.
func (s *BorrowState) SetInaccessible() (int, error) {
	if err := s.ensureNotPoisoned(); err != nil {
		return 0, err
	}
	if !s.HasAccessible() {
		return 0, contentionErr("cannot park when no accessible exclusive borrow exists")
	}
	s.parkedDepth++
	return s.parkedDepth, nil
}

// UnsetInaccessible unparks the most recently parked exclusive borrow and
// returns the new parked depth.
//
// Fails if an accessible exclusive borrow still exists, if shared borrows
// exist, or if nothing is parked.
func (s *BorrowState) UnsetInaccessible() (int, error) {
	if err := s.ensureNotPoisoned(); err != nil {
		return 0, err
	}
	if s.HasAccessible() {
		return 0, contentionErr("cannot unpark while an accessible exclusive borrow exists")
	}
	if s.sharedCount > 0 {
		return 0, contentionErr("cannot unpark while a shared borrow exists")
	}
	if s.parkedDepth == 0 {
		return 0, logicErr("cannot unpark when nothing is parked")
	}
	s.parkedDepth--
	return s.parkedDepth, nil
}

// MayUnsetInaccessible reports whether UnsetInaccessible would currently
// succeed. Used by non-poisoning, best-effort release in concurrent
// contexts.
func (s *BorrowState) MayUnsetInaccessible() bool {
	return !s.poisoned && !s.HasAccessible() && s.sharedCount == 0 && s.parkedDepth > 0
}
