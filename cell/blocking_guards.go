package cell

// BlockingRef is a shared borrow handed out by a BlockingCell.
// Releasing it wakes goroutines blocked on BorrowMut.
type BlockingRef[T any] struct {
	inner *Ref[T]
	owner *BlockingCell[T]
}

// Value returns the borrowed value. The caller must not mutate through the
// returned pointer. Panics if the guard has been released.
func (g *BlockingRef[T]) Value() *T {
	return g.inner.Value()
}

// Release returns the borrow to the cell and wakes blocked borrowers.
func (g *BlockingRef[T]) Release() error {
	err := g.inner.Release()
	g.owner.wake()
	return err
}

// BlockingMut is an exclusive borrow handed out by a BlockingCell.
// Releasing it wakes goroutines blocked on Borrow or BorrowMut.
type BlockingMut[T any] struct {
	inner *Mut[T]
	owner *BlockingCell[T]
}

// Value returns the borrowed value for reading and writing. The generation
// check from Mut.Value applies: accessing a non-current exclusive borrow is
// fatal.
func (g *BlockingMut[T]) Value() *T {
	return g.inner.Value()
}

// Release returns the borrow to the cell and wakes blocked borrowers.
// Fails if the guard is currently parked.
func (g *BlockingMut[T]) Release() error {
	err := g.inner.Release()
	g.owner.wake()
	return err
}

// BlockingParked is a frozen exclusive borrow handed out by
// BlockingCell.Park. It carries the right to take the nested exclusive
// borrow parking made legal; handing the guard to another goroutine hands
// that right along with it.
type BlockingParked[T any] struct {
	inner *Parked[T]
	owner *BlockingCell[T]
}

// BorrowMut takes the nested exclusive borrow this park guard made legal.
//
// It never waits: while the session is parked every other goroutine's
// BorrowMut is held off, so the nested slot cannot be contended. Fails if
// the cell is poisoned or the nested borrow was already taken.
func (g *BlockingParked[T]) BorrowMut() (*BlockingMut[T], error) {
	b := g.owner
	b.mu.Lock()
	m, err := b.inner.BorrowMut()
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &BlockingMut[T]{inner: m, owner: b}, nil
}

// Release unparks the borrow this guard froze, with the same ordering rules
// as Parked.Release, and wakes blocked borrowers.
func (g *BlockingParked[T]) Release() error {
	err := g.inner.Release()
	g.owner.wake()
	return err
}

// TryRelease releases the guard only if doing so is currently legal and
// reports whether it did. Never poisons the cell. Wakes blocked borrowers
// on success.
func (g *BlockingParked[T]) TryRelease() bool {
	ok := g.inner.TryRelease()
	if ok {
		g.owner.wake()
	}
	return ok
}
