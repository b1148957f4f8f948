package binding

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegistry_RegisterResolveFree tests the instance table round trip.
func TestRegistry_RegisterResolveFree(t *testing.T) {
	r := NewRegistry(WithRegistryLogger[int64](discardLogger()))

	s := r.Register(int64(5))
	assert.Equal(t, 1, r.Len())

	got, err := r.Resolve(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, r.Free(s.ID()))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, Destroyed, s.Lifecycle())

	_, err = r.Resolve(s.ID())
	assert.ErrorIs(t, err, ErrUnknownInstance)
	err = r.Free(s.ID())
	assert.ErrorIs(t, err, ErrUnknownInstance)
}

// TestRegistry_FreeRefusesWhileBound tests that freeing a bound instance
// fails and keeps it registered.
func TestRegistry_FreeRefusesWhileBound(t *testing.T) {
	r := NewRegistry(WithRegistryLogger[int64](discardLogger()))
	s := r.Register(int64(0))

	g, err := s.Get()
	require.NoError(t, err)

	err = r.Free(s.ID())
	assert.ErrorIs(t, err, ErrStillBound)
	assert.Equal(t, 1, r.Len())

	require.NoError(t, g.Release())
	require.NoError(t, r.Free(s.ID()))
}

// TestRegistry_Calls tests the shared and exclusive call helpers.
func TestRegistry_Calls(t *testing.T) {
	r := NewRegistry(WithRegistryLogger[int64](discardLogger()))
	s := r.Register(int64(100))

	err := r.CallMut(s.ID(), func(_ *Storage[int64], v *int64) error {
		*v += 11
		return nil
	})
	require.NoError(t, err)

	var seen int64
	err = r.CallShared(s.ID(), func(v *int64) error {
		seen = *v
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(111), seen)

	// The borrow is released even when fn fails.
	err = r.CallMut(s.ID(), func(_ *Storage[int64], v *int64) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, s.IsBound())
}

// TestRegistry_ReentrantDispatch tests a call that calls back into its own
// instance, the pattern the park protocol exists for.
func TestRegistry_ReentrantDispatch(t *testing.T) {
	r := NewRegistry(WithRegistryLogger[int64](discardLogger()))
	s := r.Register(int64(23456))

	err := r.CallMut(s.ID(), func(self *Storage[int64], v *int64) error {
		*v += 50
		if err := self.Reenter(v, func(nested *int64) error {
			*nested -= 30
			return nil
		}); err != nil {
			return err
		}
		*v -= 5
		return nil
	})
	require.NoError(t, err)

	var final int64
	require.NoError(t, r.CallShared(s.ID(), func(v *int64) error {
		final = *v
		return nil
	}))
	assert.Equal(t, int64(23471), final)
	assert.False(t, s.IsPoisoned())
}

// TestRegistry_ParallelCalls tests mixed shared, exclusive, and reentrant
// calls from many goroutines against one instance.
func TestRegistry_ParallelCalls(t *testing.T) {
	const writers = 4
	const readers = 4
	const iterations = 50

	r := NewRegistry(WithRegistryLogger[int64](discardLogger()))
	s := r.Register(int64(0))
	id := s.ID()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				err := r.CallMut(id, func(self *Storage[int64], v *int64) error {
					*v += 3
					// Every write also exercises the reentrant path.
					return self.Reenter(v, func(nested *int64) error {
						*nested -= 1
						return nil
					})
				})
				if !assert.NoError(t, err) {
					return
				}
			}
		}()
	}
	for rd := 0; rd < readers; rd++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				err := r.CallShared(id, func(v *int64) error {
					// Writers only ever add net +2 per call, so no shared
					// read may observe a negative value.
					assert.GreaterOrEqual(t, *v, int64(0))
					return nil
				})
				if !assert.NoError(t, err) {
					return
				}
			}
		}()
	}
	wg.Wait()

	var final int64
	require.NoError(t, r.CallShared(id, func(v *int64) error {
		final = *v
		return nil
	}))
	assert.Equal(t, int64(writers*iterations*2), final)
	assert.False(t, s.IsPoisoned())
}

// TestRegistry_ManyInstances tests that instances contend independently.
func TestRegistry_ManyInstances(t *testing.T) {
	r := NewRegistry(WithRegistryLogger[int64](discardLogger()))

	ids := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		ids = append(ids, r.Register(int64(i)).ID())
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				err := r.CallMut(id, func(_ *Storage[int64], v *int64) error {
					*v++
					return nil
				})
				if !assert.NoError(t, err) {
					return
				}
			}
		}()
	}
	wg.Wait()

	for i, id := range ids {
		var got int64
		require.NoError(t, r.CallShared(id, func(v *int64) error {
			got = *v
			return nil
		}))
		assert.Equal(t, int64(i+20), got)
	}
}
