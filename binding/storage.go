package binding

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/reborrow/cell"
)

// Lifecycle is the coarse state of an instance's storage.
type Lifecycle int32

const (
	// Alive storage hands out borrows.
	Alive Lifecycle = iota
	// Destroyed storage refuses every borrow.
	Destroyed
)

// String returns the lifecycle name.
func (l Lifecycle) String() string {
	switch l {
	case Alive:
		return "alive"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("lifecycle(%d)", int32(l))
	}
}

// ErrDestroyed is returned when borrowing from destroyed storage.
var ErrDestroyed = errors.New("instance storage is destroyed")

// ErrStillBound is returned by Destroy while borrows are outstanding.
var ErrStillBound = errors.New("instance storage is still bound")

// Storage is the borrow-tracked backing store of one instance.
//
// The lifecycle is tracked separately from the borrow state so that a
// destroyed instance fails borrows with a clear error rather than blocking
// or handing out pointers into freed storage.
type Storage[T any] struct {
	id        string
	cell      *cell.BlockingCell[T]
	lifecycle atomic.Int32
	log       *slog.Logger
}

// StorageOption configures a Storage.
type StorageOption[T any] func(*Storage[T])

// WithLogger sets the logger used for lifecycle events.
func WithLogger[T any](log *slog.Logger) StorageOption[T] {
	return func(s *Storage[T]) {
		s.log = log
	}
}

// NewStorage creates live storage holding value, identified by a fresh
// UUIDv7 so instance IDs sort by creation time.
func NewStorage[T any](value T, opts ...StorageOption[T]) *Storage[T] {
	s := &Storage[T]{
		id:   uuid.Must(uuid.NewV7()).String(),
		cell: cell.NewBlocking(value),
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log.Debug("instance storage created", "instance", s.id)
	return s
}

// ID returns the instance's identifier.
func (s *Storage[T]) ID() string {
	return s.id
}

// Lifecycle returns the current lifecycle state.
func (s *Storage[T]) Lifecycle() Lifecycle {
	return Lifecycle(s.lifecycle.Load())
}

// Get returns a shared borrow of the instance's value, waiting out any
// exclusive borrow. Fails if the storage is destroyed or poisoned.
func (s *Storage[T]) Get() (*cell.BlockingRef[T], error) {
	if s.Lifecycle() != Alive {
		return nil, fmt.Errorf("instance %s: %w", s.id, ErrDestroyed)
	}
	g, err := s.cell.Borrow()
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", s.id, err)
	}
	return g, nil
}

// GetMut returns an exclusive borrow of the instance's value, waiting until
// no other borrow of any kind is outstanding. Reentrant borrows must go
// through Reenter, which borrows through its park guard instead of starting
// a new session. Fails if the storage is destroyed or poisoned.
func (s *Storage[T]) GetMut() (*cell.BlockingMut[T], error) {
	if s.Lifecycle() != Alive {
		return nil, fmt.Errorf("instance %s: %w", s.id, ErrDestroyed)
	}
	g, err := s.cell.BorrowMut()
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", s.id, err)
	}
	return g, nil
}

// Park freezes the current exclusive borrow so a reentrant call can borrow
// the value again, through the returned guard's BorrowMut. ref must be the
// pointer from the currently accessible exclusive guard.
func (s *Storage[T]) Park(ref *T) (*cell.BlockingParked[T], error) {
	g, err := s.cell.Park(ref)
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", s.id, err)
	}
	return g, nil
}

// Reenter runs fn against a nested exclusive borrow while the caller's
// current exclusive borrow, identified by ref, is parked. The nested borrow
// is taken through the park guard, so the parked window can never be claimed
// by another goroutine's exclusive borrow. The caller must not use ref until
// Reenter returns.
//
// The nested guard and the park guard are always unwound before returning;
// fn's error is returned after a clean unwind, and unwind errors take
// precedence since they indicate a corrupted borrow stack.
func (s *Storage[T]) Reenter(ref *T, fn func(*T) error) error {
	parked, err := s.Park(ref)
	if err != nil {
		return err
	}
	m, err := parked.BorrowMut()
	if err != nil {
		if rerr := parked.Release(); rerr != nil {
			return fmt.Errorf("instance %s: unparking after failed reentrant borrow: %w", s.id, rerr)
		}
		return fmt.Errorf("instance %s: %w", s.id, err)
	}

	fnErr := fn(m.Value())

	if err := m.Release(); err != nil {
		return fmt.Errorf("instance %s: releasing reentrant borrow: %w", s.id, err)
	}
	if err := parked.Release(); err != nil {
		return fmt.Errorf("instance %s: unparking: %w", s.id, err)
	}
	return fnErr
}

// IsBound returns true if any borrow of the instance's value exists.
func (s *Storage[T]) IsBound() bool {
	return s.cell.IsCurrentlyBound()
}

// IsPoisoned returns true once the underlying cell has detected an
// invariant violation.
func (s *Storage[T]) IsPoisoned() bool {
	return s.cell.IsPoisoned()
}

// Destroy transitions the storage to Destroyed, after which every borrow
// fails. Fails with ErrStillBound while any borrow is outstanding; a guard
// pointing into destroyed storage would be a use-after-free in disguise.
func (s *Storage[T]) Destroy() error {
	if s.IsBound() {
		return fmt.Errorf("instance %s: %w", s.id, ErrStillBound)
	}
	if s.lifecycle.CompareAndSwap(int32(Alive), int32(Destroyed)) {
		s.log.Debug("instance storage destroyed", "instance", s.id)
	}
	return nil
}

// MarkDestroyed forces the storage to Destroyed regardless of outstanding
// borrows. Existing guards keep their pointers; only new borrows are cut
// off. Intended for teardown paths where the owner knows better.
func (s *Storage[T]) MarkDestroyed() {
	if s.lifecycle.Swap(int32(Destroyed)) != int32(Destroyed) {
		s.log.Warn("instance storage force-destroyed",
			"instance", s.id, "bound", s.IsBound())
	}
}
