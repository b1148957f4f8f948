package cell

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBorrowState_ZeroValue tests that a fresh state tracks nothing.
func TestBorrowState_ZeroValue(t *testing.T) {
	s := NewBorrowState()

	assert.Equal(t, 0, s.SharedCount())
	assert.Equal(t, 0, s.MutDepth())
	assert.False(t, s.HasAccessible())
	assert.False(t, s.IsPoisoned())
}

// TestBorrowState_SharedCounting tests shared increments and decrements.
func TestBorrowState_SharedCounting(t *testing.T) {
	s := NewBorrowState()

	n, err := s.IncrementShared()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.IncrementShared()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DecrementShared()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.DecrementShared()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = s.DecrementShared()
	require.Error(t, err)
	assert.True(t, IsLogic(err))
}

// TestBorrowState_SharedBlocksMut tests that any shared borrow rejects an
// exclusive borrow.
func TestBorrowState_SharedBlocksMut(t *testing.T) {
	s := NewBorrowState()

	_, err := s.IncrementShared()
	require.NoError(t, err)

	_, err = s.IncrementMut()
	require.Error(t, err)
	assert.True(t, IsContention(err))
	assert.Equal(t, 0, s.MutDepth())
}

// TestBorrowState_MutBlocksShared tests that any exclusive borrow, parked
// or live, rejects a shared borrow.
func TestBorrowState_MutBlocksShared(t *testing.T) {
	s := NewBorrowState()

	_, err := s.IncrementMut()
	require.NoError(t, err)

	_, err = s.IncrementShared()
	require.Error(t, err)
	assert.True(t, IsContention(err))

	// Parking does not make shared borrows legal either.
	_, err = s.SetInaccessible()
	require.NoError(t, err)

	_, err = s.IncrementShared()
	require.Error(t, err)
	assert.True(t, IsContention(err))
}

// TestBorrowState_MutGenerations tests that IncrementMut returns the depth
// as the new borrow's generation.
func TestBorrowState_MutGenerations(t *testing.T) {
	s := NewBorrowState()

	gen, err := s.IncrementMut()
	require.NoError(t, err)
	assert.Equal(t, 1, gen)

	// A second accessible exclusive borrow is rejected.
	_, err = s.IncrementMut()
	require.Error(t, err)
	assert.True(t, IsContention(err))

	// After parking, a nested exclusive borrow is legal.
	_, err = s.SetInaccessible()
	require.NoError(t, err)

	gen, err = s.IncrementMut()
	require.NoError(t, err)
	assert.Equal(t, 2, gen)
}

// TestBorrowState_DecrementMutWhileParked tests that a parked exclusive
// borrow cannot be released before unparking.
func TestBorrowState_DecrementMutWhileParked(t *testing.T) {
	s := NewBorrowState()

	_, err := s.IncrementMut()
	require.NoError(t, err)
	_, err = s.SetInaccessible()
	require.NoError(t, err)

	_, err = s.DecrementMut()
	require.Error(t, err)
	assert.True(t, IsLogic(err))

	_, err = s.UnsetInaccessible()
	require.NoError(t, err)

	n, err := s.DecrementMut()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// TestBorrowState_ParkRequiresAccessible tests SetInaccessible preconditions.
func TestBorrowState_ParkRequiresAccessible(t *testing.T) {
	s := NewBorrowState()

	// Nothing borrowed.
	_, err := s.SetInaccessible()
	require.Error(t, err)

	// Already parked.
	_, err = s.IncrementMut()
	require.NoError(t, err)
	_, err = s.SetInaccessible()
	require.NoError(t, err)
	_, err = s.SetInaccessible()
	require.Error(t, err)
	assert.True(t, IsContention(err))
}

// TestBorrowState_UnparkPreconditions tests UnsetInaccessible preconditions.
func TestBorrowState_UnparkPreconditions(t *testing.T) {
	s := NewBorrowState()

	// Nothing parked.
	_, err := s.UnsetInaccessible()
	require.Error(t, err)
	assert.True(t, IsLogic(err))

	// Accessible nested borrow still live.
	_, err = s.IncrementMut()
	require.NoError(t, err)
	_, err = s.SetInaccessible()
	require.NoError(t, err)
	_, err = s.IncrementMut()
	require.NoError(t, err)

	assert.False(t, s.MayUnsetInaccessible())
	_, err = s.UnsetInaccessible()
	require.Error(t, err)
	assert.True(t, IsContention(err))

	// After releasing the nested borrow, unparking is legal.
	_, err = s.DecrementMut()
	require.NoError(t, err)
	assert.True(t, s.MayUnsetInaccessible())
	_, err = s.UnsetInaccessible()
	require.NoError(t, err)
}

// TestBorrowState_PoisonIsSticky tests that a poisoned state rejects every
// operation with the recorded reason.
func TestBorrowState_PoisonIsSticky(t *testing.T) {
	s := NewBorrowState()

	err := s.Poison("released out of order")
	require.Error(t, err)
	assert.True(t, IsPoisoned(err))
	assert.True(t, s.IsPoisoned())
	assert.Equal(t, "released out of order", s.PoisonReason())

	_, err = s.IncrementShared()
	assert.True(t, IsPoisoned(err))
	assert.Contains(t, err.Error(), "released out of order")

	_, err = s.IncrementMut()
	assert.True(t, IsPoisoned(err))

	_, err = s.SetInaccessible()
	assert.True(t, IsPoisoned(err))

	assert.False(t, s.MayUnsetInaccessible())
}

// stateOp is a randomly applicable transition, used by the randomized
// sequence tests below.
type stateOp int

const (
	opIncShared stateOp = iota
	opDecShared
	opIncMut
	opDecMut
	opSetInaccessible
	opUnsetInaccessible
	numStateOps
)

func (op stateOp) apply(s *BorrowState) error {
	var err error
	switch op {
	case opIncShared:
		_, err = s.IncrementShared()
	case opDecShared:
		_, err = s.DecrementShared()
	case opIncMut:
		_, err = s.IncrementMut()
	case opDecMut:
		_, err = s.DecrementMut()
	case opSetInaccessible:
		_, err = s.SetInaccessible()
	case opUnsetInaccessible:
		_, err = s.UnsetInaccessible()
	}
	return err
}

// TestBorrowState_RandomOps_FailureIsNoop tests that a failed transition
// leaves the state exactly as it was.
func TestBorrowState_RandomOps_FailureIsNoop(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for run := 0; run < 200; run++ {
		s := NewBorrowState()
		for i := 0; i < 50; i++ {
			op := stateOp(rng.Intn(int(numStateOps)))
			before := *s
			if err := op.apply(s); err != nil {
				assert.Equal(t, before, *s, "failed op %d must not change state", op)
			}
		}
	}
}

// TestBorrowState_RandomOps_NeverSharedAndAccessible tests the core mutual
// exclusion invariant over random operation sequences.
func TestBorrowState_RandomOps_NeverSharedAndAccessible(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for run := 0; run < 200; run++ {
		s := NewBorrowState()
		for i := 0; i < 50; i++ {
			op := stateOp(rng.Intn(int(numStateOps)))
			_ = op.apply(s)

			if s.SharedCount() > 0 {
				require.Equal(t, 0, s.MutDepth(),
					"shared and exclusive access tracked simultaneously")
			}
			if s.MutDepth() > 0 {
				require.Equal(t, 0, s.SharedCount())
			}
		}
	}
}

// TestBorrowState_RandomOps_NeverPoisons tests that no sequence of public
// transitions can poison the state; poisoning is reserved for release-order
// violations detected by the cell.
func TestBorrowState_RandomOps_NeverPoisons(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for run := 0; run < 200; run++ {
		s := NewBorrowState()
		for i := 0; i < 50; i++ {
			op := stateOp(rng.Intn(int(numStateOps)))
			if err := op.apply(s); err != nil {
				assert.False(t, IsPoisoned(err))
			}
			require.False(t, s.IsPoisoned())
		}
	}
}

// TestBorrowState_RandomOps_BorrowableWhenIdle tests that whenever no
// exclusive borrow is tracked, a shared borrow succeeds, and vice versa.
func TestBorrowState_RandomOps_BorrowableWhenIdle(t *testing.T) {
	rng := rand.New(rand.NewSource(4))

	for run := 0; run < 200; run++ {
		s := NewBorrowState()
		for i := 0; i < 50; i++ {
			op := stateOp(rng.Intn(int(numStateOps)))
			_ = op.apply(s)

			if s.MutDepth() == 0 {
				_, err := s.IncrementShared()
				require.NoError(t, err)
				_, err = s.DecrementShared()
				require.NoError(t, err)
			}
			if s.SharedCount() == 0 && !s.HasAccessible() {
				_, err := s.IncrementMut()
				require.NoError(t, err)
				_, err = s.DecrementMut()
				require.NoError(t, err)
			}
		}
	}
}
