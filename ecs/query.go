package ecs

import "github.com/solace-games/ecsframe/ecs/query"

// QueryBuilder is the ecs-package façade over query.Builder: it speaks
// in componentType values instead of bare ints, and Build both
// constructs the reactive Query and (via the declared Read/Write
// calls) feeds the system's entitlements to the scheduler.
type QueryBuilder struct {
	inner *query.Builder
}

// NewQueryBuilder starts a fresh query declaration.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{inner: query.NewBuilder()}
}

func idsOf(cts []componentType) []int {
	ids := make([]int, len(cts))
	for i, c := range cts {
		ids[i] = int(c.componentID())
	}
	return ids
}

// With requires every listed component type to be present.
func (qb *QueryBuilder) With(cts ...componentType) *QueryBuilder {
	qb.inner.With(idsOf(cts)...)
	return qb
}

// Without requires every listed component type to be absent.
func (qb *QueryBuilder) Without(cts ...componentType) *QueryBuilder {
	qb.inner.Without(idsOf(cts)...)
	return qb
}

// Read declares a read entitlement, which may exceed the shape predicate.
func (qb *QueryBuilder) Read(cts ...componentType) *QueryBuilder {
	qb.inner.Read(idsOf(cts)...)
	return qb
}

// Write declares a write entitlement.
func (qb *QueryBuilder) Write(cts ...componentType) *QueryBuilder {
	qb.inner.Write(idsOf(cts)...)
	return qb
}

// Current selects the current-membership subset explicitly.
func (qb *QueryBuilder) Current() *QueryBuilder { qb.inner.Current(); return qb }

// Added selects the added-this-frame subset.
func (qb *QueryBuilder) Added() *QueryBuilder { qb.inner.Added(); return qb }

// Removed selects the removed-this-frame subset.
func (qb *QueryBuilder) Removed() *QueryBuilder { qb.inner.Removed(); return qb }

// AccessRecentlyDeletedData permits reads of components whose removal
// has not yet finalized in the current frame.
func (qb *QueryBuilder) AccessRecentlyDeletedData() *QueryBuilder {
	qb.inner.AccessRecentlyDeletedData()
	return qb
}

// Query is a live, per-system reactive view built from a QueryBuilder.
type Query struct {
	inner *query.Query
	world *World
}

// Build finalizes the declaration into a live Query registered against w.
func (qb *QueryBuilder) Build(w *World) *Query {
	q := &Query{inner: query.NewQuery(qb.inner), world: w}
	w.queries = append(w.queries, q)
	return q
}

// Current returns the entities presently matching the query.
func (q *Query) Current() []Entity { return q.world.entitiesOf(q.inner.Current()) }

// Added returns entities that started matching since the query last refreshed.
func (q *Query) Added() []Entity { return q.world.entitiesOf(q.inner.Added()) }

// Removed returns entities that stopped matching since the query last refreshed.
func (q *Query) Removed() []Entity { return q.world.entitiesOf(q.inner.Removed()) }

func (w *World) entitiesOf(ids []uint32) []Entity {
	out := make([]Entity, len(ids))
	for i, id := range ids {
		eid := EntityId(id)
		out[i] = Entity{id: eid, generation: w.generations[eid], world: w}
	}
	return out
}

// hasComponent adapts World's shape storage to query.HasFunc.
func (w *World) hasComponent(id uint32, componentID int) bool {
	return w.shapes[id].Has(componentID)
}

// liveEntityIDs returns every currently allocated, non-deleted entity id.
func (w *World) liveEntityIDs() []uint32 {
	out := make([]uint32, 0, len(w.generations))
	held := make(map[EntityId]bool, len(w.freeIDs))
	for _, id := range w.freeIDs {
		held[id] = true
	}
	for id := EntityId(1); int(id) < len(w.generations); id++ {
		if held[id] {
			continue
		}
		out = append(out, uint32(id))
	}
	return out
}

// refreshQueries recomputes every registered query's current/added/
// removed sets; called at the end of Initialize and at the end of each
// Execute frame, so systems observe a stable membership snapshot for
// their next run.
func (w *World) refreshQueries() {
	live := w.liveEntityIDs()
	for _, q := range w.queries {
		q.inner.Refresh(live, w.hasComponent)
	}
}
