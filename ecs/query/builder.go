// Package query implements the reactive current/added/removed query
// builder described for the engine core. It imports no other package,
// so it can be imported from the root ecs package without a cycle; the
// ecs package wraps Builder and Query with ComponentId-typed
// convenience methods.
package query

// Builder accumulates a shape predicate (with/without), entitlement
// declarations (read/write), membership subsets (current/added/
// removed), and the recently-deleted opt-in for one system query.
// Component types are referenced by their dense int id.
type Builder struct {
	withIDs    []int
	withoutIDs []int
	readIDs    []int
	writeIDs   []int

	wantCurrent bool
	wantAdded   bool
	wantRemoved bool
	recentlyDel bool
}

// NewBuilder returns an empty builder with the current subset
// requested, matching the "default: current only" rule. Requesting
// Added or Removed adds those subsets; Current stays requested.
func NewBuilder() *Builder {
	return &Builder{wantCurrent: true}
}

// With requires every listed component id to be present.
func (b *Builder) With(ids ...int) *Builder {
	b.withIDs = append(b.withIDs, ids...)
	return b
}

// Without requires every listed component id to be absent.
func (b *Builder) Without(ids ...int) *Builder {
	b.withoutIDs = append(b.withoutIDs, ids...)
	return b
}

// Read declares a read entitlement over the listed component ids. This
// may exceed the With/Without shape predicate.
func (b *Builder) Read(ids ...int) *Builder {
	b.readIDs = append(b.readIDs, ids...)
	return b
}

// Write declares a write entitlement over the listed component ids.
func (b *Builder) Write(ids ...int) *Builder {
	b.writeIDs = append(b.writeIDs, ids...)
	return b
}

// Current selects the current-membership subset explicitly.
func (b *Builder) Current() *Builder { b.wantCurrent = true; return b }

// Added selects the added-this-frame subset.
func (b *Builder) Added() *Builder { b.wantAdded = true; return b }

// Removed selects the removed-this-frame subset.
func (b *Builder) Removed() *Builder { b.wantRemoved = true; return b }

// AccessRecentlyDeletedData permits reading components whose removal
// has not yet finalized in the current frame.
func (b *Builder) AccessRecentlyDeletedData() *Builder {
	b.recentlyDel = true
	return b
}

// WithIDs returns the with-predicate component ids.
func (b *Builder) WithIDs() []int { return b.withIDs }

// WithoutIDs returns the without-predicate component ids.
func (b *Builder) WithoutIDs() []int { return b.withoutIDs }

// ReadIDs returns the declared read-entitlement component ids.
func (b *Builder) ReadIDs() []int { return b.readIDs }

// WriteIDs returns the declared write-entitlement component ids.
func (b *Builder) WriteIDs() []int { return b.writeIDs }

// WantsCurrent reports whether the current subset was requested.
func (b *Builder) WantsCurrent() bool { return b.wantCurrent }

// WantsAdded reports whether the added subset was requested.
func (b *Builder) WantsAdded() bool { return b.wantAdded }

// WantsRemoved reports whether the removed subset was requested.
func (b *Builder) WantsRemoved() bool { return b.wantRemoved }

// RecentlyDeleted reports whether accessRecentlyDeletedData was called.
func (b *Builder) RecentlyDeleted() bool { return b.recentlyDel }
