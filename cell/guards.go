package cell

import "fmt"

// Ref is a shared borrow of a cell's value.
//
// No exclusive borrow can be created while any Ref exists. The pointer
// returned by Value is read-only by contract; mutating through it while
// other Refs exist is a data race the cell cannot detect.
type Ref[T any] struct {
	cell     *Cell[T]
	ptr      *T
	released bool
}

// Value returns the borrowed value. The caller must not mutate through the
// returned pointer.
//
// Panics if the guard has been released.
func (g *Ref[T]) Value() *T {
	if g.released {
		panic("cell: use of shared guard after release")
	}
	return g.ptr
}

// Release returns the borrow to the cell. Each guard must be released
// exactly once; a second release is a logic error.
func (g *Ref[T]) Release() error {
	g.cell.mu.Lock()
	defer g.cell.mu.Unlock()

	if g.released {
		return logicErr("shared guard released twice")
	}
	if _, err := g.cell.state.DecrementShared(); err != nil {
		return err
	}
	g.released = true
	g.ptr = nil
	return nil
}

// Mut is an exclusive borrow of a cell's value.
//
// It prevents all other borrows of the value unless it is parked via
// Cell.Park, in which case one new exclusive borrow may be issued on top
// of it.
type Mut[T any] struct {
	cell *Cell[T]

	// The exclusive depth observed when this guard was created. Every access
	// re-validates it against the live depth as a best-effort corruption
	// detector; a mismatch means guards were used out of nesting order.
	gen int

	ptr      *T
	released bool
}

// Value returns the borrowed value for reading and writing.
//
// The live exclusive depth is compared against the depth captured at guard
// creation. A mismatch means this guard is not the current exclusive borrow
// and its pointer cannot be trusted, so Value panics rather than return it.
// This should be unreachable when callers honor the parking discipline.
//
// Panics if the guard has been released.
func (g *Mut[T]) Value() *T {
	if g.released {
		panic("cell: use of exclusive guard after release")
	}

	g.cell.mu.Lock()
	live := g.cell.state.MutDepth()
	g.cell.mu.Unlock()

	if live != g.gen {
		panic(fmt.Sprintf(
			"cell: exclusive guard generation %d does not match live depth %d; a non-current exclusive borrow was accessed",
			g.gen, live,
		))
	}
	return g.ptr
}

// Release returns the borrow to the cell. Fails if the guard is currently
// parked; the corresponding Parked guard must be released first.
func (g *Mut[T]) Release() error {
	g.cell.mu.Lock()
	defer g.cell.mu.Unlock()

	if g.released {
		return logicErr("exclusive guard released twice")
	}
	if _, err := g.cell.state.DecrementMut(); err != nil {
		return err
	}
	g.released = true
	g.ptr = nil
	return nil
}

// Parked is a frozen exclusive borrow.
//
// It is created by Cell.Park from a live exclusive reference. While it
// exists, the reference it was created from must not be used, and the cell
// may issue one new exclusive borrow derived from it. Releasing the guard
// unparks the original borrow and restores the cell's previous pointer.
type Parked[T any] struct {
	cell *Cell[T]

	// The cell's stack depth right after parking. Release requires the
	// cell's live depth to still equal this, which is exactly the
	// last-in-first-out condition.
	depth int

	released bool
}

// Release unparks the borrow this guard froze.
//
// If park guards are released out of nesting order (the cell's depth no
// longer matches this guard's), the cell is poisoned and the poisoning
// error is returned: the pointer stack can no longer be trusted.
//
// If the nested exclusive borrow issued after parking is still live, the
// release fails with a contention error and the guard remains usable; the
// caller must release the nested guard first.
func (g *Parked[T]) Release() error {
	c := g.cell
	c.mu.Lock()
	defer c.mu.Unlock()

	if g.released {
		return logicErr("park guard released twice")
	}
	if c.depth() != g.depth {
		g.released = true
		return c.state.Poison("park guards released out of order")
	}
	if _, err := c.state.UnsetInaccessible(); err != nil {
		return err
	}

	c.ptrs = c.ptrs[:len(c.ptrs)-1]
	g.released = true
	return nil
}

// TryRelease releases the guard only if doing so is currently legal, and
// reports whether it did. Unlike Release it never poisons the cell: a depth
// mismatch or a still-live nested borrow simply returns false, leaving the
// guard with the caller.
//
// Intended for cooperative multi-goroutine release protocols where another
// goroutine may not have unwound its guards yet. Returns false forever if
// the cell is poisoned.
func (g *Parked[T]) TryRelease() bool {
	c := g.cell
	c.mu.Lock()
	defer c.mu.Unlock()

	if g.released {
		return true
	}
	if c.depth() != g.depth || !c.state.MayUnsetInaccessible() {
		return false
	}
	if _, err := c.state.UnsetInaccessible(); err != nil {
		return false
	}

	c.ptrs = c.ptrs[:len(c.ptrs)-1]
	g.released = true
	return true
}
