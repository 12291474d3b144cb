package query

// HasFunc reports whether entity id carries component componentID.
type HasFunc func(id uint32, componentID int) bool

// Query is the live, refreshable result of a Builder: the set of
// entities currently matching its shape predicate, plus the added and
// removed deltas observed since the last Refresh. The invariant
// "added ∪ current ∪ removed is the disjoint set of transitions
// witnessed since the system last ran" is maintained by computing
// added/removed as a diff against the previous Refresh's membership.
type Query struct {
	b       *Builder
	current map[uint32]bool
	added   []uint32
	removed []uint32
	stopped bool
}

// NewQuery constructs a Query bound to builder b.
func NewQuery(b *Builder) *Query {
	return &Query{b: b, current: make(map[uint32]bool)}
}

// Builder returns the underlying builder, for entitlement inspection.
func (q *Query) Builder() *Builder { return q.b }

// Stop marks the query as not accumulating further added/removed
// events for later backfill, matching a system placed under `control`.
func (q *Query) Stop() { q.stopped = true }

// Restart resumes event accumulation without backfilling what was
// missed while stopped.
func (q *Query) Restart() {
	q.stopped = false
	q.added = nil
	q.removed = nil
}

func (q *Query) matches(id uint32, has HasFunc) bool {
	for _, c := range q.b.withIDs {
		if !has(id, c) {
			return false
		}
	}
	for _, c := range q.b.withoutIDs {
		if has(id, c) {
			return false
		}
	}
	return true
}

// Refresh recomputes membership against the supplied live id set,
// updating Added/Removed to the transitions since the previous call.
func (q *Query) Refresh(liveIDs []uint32, has HasFunc) {
	newCurrent := make(map[uint32]bool, len(liveIDs))
	var added, removed []uint32

	for _, id := range liveIDs {
		if q.matches(id, has) {
			newCurrent[id] = true
			if !q.current[id] {
				added = append(added, id)
			}
		}
	}
	for id := range q.current {
		if !newCurrent[id] {
			removed = append(removed, id)
		}
	}

	q.current = newCurrent
	if q.stopped {
		q.added = nil
		q.removed = nil
		return
	}
	q.added = added
	q.removed = removed
}

// Current returns the entities presently matching the query.
func (q *Query) Current() []uint32 {
	out := make([]uint32, 0, len(q.current))
	for id := range q.current {
		out = append(out, id)
	}
	return out
}

// Added returns the entities that started matching since the last Refresh.
func (q *Query) Added() []uint32 { return q.added }

// Removed returns the entities that stopped matching since the last Refresh.
func (q *Query) Removed() []uint32 { return q.removed }
