package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sparseHas(membership map[uint32]bool) HasFunc {
	return func(id uint32, componentID int) bool {
		if componentID != 1 {
			return false
		}
		return membership[id]
	}
}

func TestQuery_RefreshComputesDisjointAddedCurrentRemoved(t *testing.T) {
	q := NewQuery(NewBuilder().With(1))

	q.Refresh([]uint32{1, 2}, sparseHas(map[uint32]bool{1: true, 2: true}))
	assert.ElementsMatch(t, []uint32{1, 2}, q.Added())
	assert.Empty(t, q.Removed())
	assert.ElementsMatch(t, []uint32{1, 2}, q.Current())

	// Entity 2 drops the component, entity 3 gains it.
	q.Refresh([]uint32{1, 2, 3}, sparseHas(map[uint32]bool{1: true, 3: true}))
	assert.ElementsMatch(t, []uint32{3}, q.Added())
	assert.ElementsMatch(t, []uint32{2}, q.Removed())
	assert.ElementsMatch(t, []uint32{1, 3}, q.Current())

	// A refresh with no membership change reports no transitions.
	q.Refresh([]uint32{1, 3}, sparseHas(map[uint32]bool{1: true, 3: true}))
	assert.Empty(t, q.Added())
	assert.Empty(t, q.Removed())
	assert.ElementsMatch(t, []uint32{1, 3}, q.Current())
}

func TestQuery_WithoutExcludesMatches(t *testing.T) {
	q := NewQuery(NewBuilder().With(1).Without(2))
	has := func(id uint32, componentID int) bool {
		if id == 1 {
			return componentID == 1
		}
		// id 2 carries both component 1 and 2, so Without(2) excludes it.
		return componentID == 1 || componentID == 2
	}
	q.Refresh([]uint32{1, 2}, has)
	assert.ElementsMatch(t, []uint32{1}, q.Current())
}

func TestQuery_StopSuppressesEventsButStillTracksMembership(t *testing.T) {
	q := NewQuery(NewBuilder().With(1))
	q.Refresh([]uint32{1}, sparseHas(map[uint32]bool{1: true}))
	assert.ElementsMatch(t, []uint32{1}, q.Current())

	q.Stop()
	q.Refresh([]uint32{1, 2}, sparseHas(map[uint32]bool{1: true, 2: true}))
	assert.Empty(t, q.Added(), "a stopped query must not accumulate added events")
	assert.Empty(t, q.Removed(), "a stopped query must not accumulate removed events")
	assert.ElementsMatch(t, []uint32{1, 2}, q.Current(), "membership must still track reality while stopped")
}

func TestQuery_RestartDoesNotBackfillMissedEvents(t *testing.T) {
	q := NewQuery(NewBuilder().With(1))
	q.Refresh([]uint32{1}, sparseHas(map[uint32]bool{1: true}))

	q.Stop()
	// Entity 2 gains the component and entity 1 loses it while stopped.
	q.Refresh([]uint32{1, 2}, sparseHas(map[uint32]bool{2: true}))
	assert.Empty(t, q.Added())
	assert.Empty(t, q.Removed())

	q.Restart()
	assert.Empty(t, q.Added(), "restart itself must not synthesize events for missed transitions")
	assert.Empty(t, q.Removed())

	// Only transitions observed after the restart should show up.
	q.Refresh([]uint32{1, 2, 3}, sparseHas(map[uint32]bool{2: true, 3: true}))
	assert.ElementsMatch(t, []uint32{3}, q.Added(), "only post-restart transitions should be reported")
	assert.Empty(t, q.Removed(), "entity 1's loss while stopped must not surface as a removal after restart")
}

func TestBuilder_DeclaresEntitlementsAndSubsets(t *testing.T) {
	b := NewBuilder().With(1, 2).Without(3).Read(1).Write(2).Added().Removed()
	assert.ElementsMatch(t, []int{1, 2}, b.WithIDs())
	assert.ElementsMatch(t, []int{3}, b.WithoutIDs())
	assert.ElementsMatch(t, []int{1}, b.ReadIDs())
	assert.ElementsMatch(t, []int{2}, b.WriteIDs())
	assert.True(t, b.WantsCurrent(), "current stays requested when added/removed are also requested")
	assert.True(t, b.WantsAdded())
	assert.True(t, b.WantsRemoved())
	assert.False(t, b.RecentlyDeleted())
}
