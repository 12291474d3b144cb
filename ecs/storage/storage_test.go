package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fields struct {
	X, Y int
}

func newStores(t *testing.T) map[Strategy]Store[fields] {
	t.Helper()
	return map[Strategy]Store[fields]{
		Sparse:  NewSparse[fields](16),
		Packed:  NewPacked[fields](Config{Capacity: 2, MaxEntities: 16, Elastic: true}),
		Compact: NewCompact[fields](Config{Capacity: 2, MaxEntities: 16, Elastic: true}),
	}
}

func TestStore_AcquireReleaseRoundTrip(t *testing.T) {
	for strategy, store := range newStores(t) {
		t.Run(strategy.String(), func(t *testing.T) {
			slot, err := store.Acquire(5)
			require.NoError(t, err)
			rec := store.At(slot)
			rec.X, rec.Y = 1, 2

			got, ok := store.Slot(5)
			require.True(t, ok)
			assert.Equal(t, slot, got)
			assert.Equal(t, fields{1, 2}, *store.At(got))

			store.Release(5)
			_, ok = store.Slot(5)
			assert.False(t, ok)
		})
	}
}

func TestStore_GeometricGrowthPastInitialCapacity(t *testing.T) {
	for strategy, store := range newStores(t) {
		if strategy == Sparse {
			continue // sparse is fixed-width by construction, not elastic
		}
		t.Run(strategy.String(), func(t *testing.T) {
			for i := EntityID(0); i < 10; i++ {
				_, err := store.Acquire(i)
				require.NoError(t, err, "elastic store should grow past its initial capacity of 2")
			}
		})
	}
}

func TestStore_FixedCapacityExhausted(t *testing.T) {
	packed := NewPacked[fields](Config{Capacity: 2, MaxEntities: 2, Elastic: false})
	_, err := packed.Acquire(0)
	require.NoError(t, err)
	_, err = packed.Acquire(1)
	require.NoError(t, err)
	_, err = packed.Acquire(2)
	assert.ErrorIs(t, err, ErrCapacityExhausted)

	sparse := NewSparse[fields](2)
	_, err = sparse.Acquire(0)
	require.NoError(t, err)
	_, err = sparse.Acquire(5)
	assert.ErrorIs(t, err, ErrCapacityExhausted)
}

func TestPackedStore_ReleasedSlotIsReused(t *testing.T) {
	p := NewPacked[fields](Config{Capacity: 4, MaxEntities: 4})
	slotA, err := p.Acquire(1)
	require.NoError(t, err)
	p.Release(1)

	slotB, err := p.Acquire(2)
	require.NoError(t, err)
	assert.Equal(t, slotA, slotB, "a released slot should be reused by the next acquire")
}

func TestCompactStore_ScansForFirstEmptySlot(t *testing.T) {
	c := NewCompact[fields](Config{Capacity: 4, MaxEntities: 4})
	_, err := c.Acquire(1)
	require.NoError(t, err)
	slot2, err := c.Acquire(2)
	require.NoError(t, err)
	c.Release(1)

	slot3, err := c.Acquire(3)
	require.NoError(t, err)
	assert.Less(t, slot3, slot2, "released earlier slot should be reclaimed before growing")
}
