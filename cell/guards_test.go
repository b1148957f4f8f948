package cell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRef_DoubleRelease tests that releasing a shared guard twice is a logic
// error and does not corrupt the count.
func TestRef_DoubleRelease(t *testing.T) {
	c := New(int64(1))

	r1, err := c.Borrow()
	require.NoError(t, err)
	r2, err := c.Borrow()
	require.NoError(t, err)

	require.NoError(t, r1.Release())
	err = r1.Release()
	require.Error(t, err)
	assert.True(t, IsLogic(err))

	// r2's borrow is untouched by the failed double release.
	assert.True(t, c.IsCurrentlyBound())
	require.NoError(t, r2.Release())
	assert.False(t, c.IsCurrentlyBound())
}

// TestRef_UseAfterReleasePanics tests that a released shared guard refuses
// to hand out its pointer.
func TestRef_UseAfterReleasePanics(t *testing.T) {
	c := New(int64(1))

	r, err := c.Borrow()
	require.NoError(t, err)
	require.NoError(t, r.Release())

	assert.Panics(t, func() { _ = r.Value() })
}

// TestMut_DoubleRelease tests that releasing an exclusive guard twice is a
// logic error.
func TestMut_DoubleRelease(t *testing.T) {
	c := New(int64(1))

	m, err := c.BorrowMut()
	require.NoError(t, err)
	require.NoError(t, m.Release())

	err = m.Release()
	require.Error(t, err)
	assert.True(t, IsLogic(err))
	assert.False(t, c.IsCurrentlyBound())
}

// TestMut_UseAfterReleasePanics tests that a released exclusive guard
// refuses to hand out its pointer.
func TestMut_UseAfterReleasePanics(t *testing.T) {
	c := New(int64(1))

	m, err := c.BorrowMut()
	require.NoError(t, err)
	require.NoError(t, m.Release())

	assert.Panics(t, func() { _ = m.Value() })
}

// TestMut_GenerationMismatchPanics tests that accessing a parked exclusive
// guard while a nested one is live panics instead of returning a pointer
// that aliases the nested borrow.
func TestMut_GenerationMismatchPanics(t *testing.T) {
	c := New(int64(1))

	outer, err := c.BorrowMut()
	require.NoError(t, err)
	p, err := c.Park(outer.Value())
	require.NoError(t, err)

	inner, err := c.BorrowMut()
	require.NoError(t, err)

	// outer was created at depth 1, the live depth is now 2.
	assert.Panics(t, func() { _ = outer.Value() })

	// The nested guard itself is fine.
	assert.Equal(t, int64(1), *inner.Value())

	require.NoError(t, inner.Release())
	require.NoError(t, p.Release())
	require.NoError(t, outer.Release())
}

// TestParked_ReleaseWhileNestedLive tests that unparking fails while the
// nested exclusive borrow is live, without poisoning, and succeeds after.
func TestParked_ReleaseWhileNestedLive(t *testing.T) {
	c := New(int64(1))

	m, err := c.BorrowMut()
	require.NoError(t, err)
	p, err := c.Park(m.Value())
	require.NoError(t, err)

	inner, err := c.BorrowMut()
	require.NoError(t, err)

	err = p.Release()
	require.Error(t, err)
	assert.True(t, IsContention(err))
	assert.False(t, c.IsPoisoned())

	// The guard stays usable after the failed release.
	require.NoError(t, inner.Release())
	require.NoError(t, p.Release())
	require.NoError(t, m.Release())
}

// TestParked_DoubleRelease tests that releasing a park guard twice is a
// logic error.
func TestParked_DoubleRelease(t *testing.T) {
	c := New(int64(1))

	m, err := c.BorrowMut()
	require.NoError(t, err)
	p, err := c.Park(m.Value())
	require.NoError(t, err)

	require.NoError(t, p.Release())
	err = p.Release()
	require.Error(t, err)
	assert.True(t, IsLogic(err))
	assert.False(t, c.IsPoisoned())

	require.NoError(t, m.Release())
}

// TestParked_TryRelease tests the non-poisoning release path.
func TestParked_TryRelease(t *testing.T) {
	c := New(int64(1))

	m, err := c.BorrowMut()
	require.NoError(t, err)
	p, err := c.Park(m.Value())
	require.NoError(t, err)

	inner, err := c.BorrowMut()
	require.NoError(t, err)

	// Nested borrow live: not releasable, no poison.
	assert.False(t, p.TryRelease())
	assert.False(t, c.IsPoisoned())

	require.NoError(t, inner.Release())

	assert.True(t, p.TryRelease())
	// Already released: reports success without touching the cell.
	assert.True(t, p.TryRelease())

	require.NoError(t, m.Release())
	assert.False(t, c.IsCurrentlyBound())
}

// TestParked_TryReleaseOutOfOrder tests that TryRelease on a buried park
// guard declines instead of poisoning.
func TestParked_TryReleaseOutOfOrder(t *testing.T) {
	c := New(int64(1))

	m1, err := c.BorrowMut()
	require.NoError(t, err)
	p1, err := c.Park(m1.Value())
	require.NoError(t, err)

	m2, err := c.BorrowMut()
	require.NoError(t, err)
	p2, err := c.Park(m2.Value())
	require.NoError(t, err)

	assert.False(t, p1.TryRelease())
	assert.False(t, c.IsPoisoned())

	// Unwind in order.
	assert.True(t, p2.TryRelease())
	require.NoError(t, m2.Release())
	assert.True(t, p1.TryRelease())
	require.NoError(t, m1.Release())
}
