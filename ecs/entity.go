package ecs

import (
	"fmt"

	"github.com/solace-games/ecsframe/ecs/ecserror"
)

// Entity is a handle to a logical entity inside a World. It carries no
// data of its own; its state lives in the world's shape bitmask and
// component storage, keyed by id. A handle whose captured generation
// no longer matches the world's current generation for that id is
// stale and every method on it fails.
type Entity struct {
	id         EntityId
	generation uint32
	world      *World
}

// ID returns the entity's dense identifier.
func (e Entity) ID() EntityId { return e.id }

// IsValid reports whether e's generation still matches the world's
// live generation for its id — false for a deleted-and-recycled
// handle.
func (e Entity) IsValid() bool {
	return e.world != nil && int(e.id) < len(e.world.generations) && e.world.generations[e.id] == e.generation
}

func (e Entity) checkValid() error {
	if !e.IsValid() {
		return ecserror.Check(ecserror.CodeInvalidEntity, "entity handle is stale or unknown").WithEntity(uint32(e.id))
	}
	return nil
}

// Has reports whether e currently carries a component of type ct.
func (e Entity) Has(ct componentType) bool {
	if !e.IsValid() {
		return false
	}
	return e.world.shapes[e.id].Has(int(ct.componentID()))
}

// HasAllOf reports whether e carries every listed component type.
func (e Entity) HasAllOf(cts ...componentType) bool {
	for _, ct := range cts {
		if !e.Has(ct) {
			return false
		}
	}
	return true
}

// HasAnyOf reports whether e carries at least one listed component type.
func (e Entity) HasAnyOf(cts ...componentType) bool {
	for _, ct := range cts {
		if e.Has(ct) {
			return true
		}
	}
	return false
}

// HasAnyOtherThan reports whether e carries a component outside cts.
func (e Entity) HasAnyOtherThan(cts ...componentType) bool {
	if !e.IsValid() {
		return false
	}
	excluded := make(map[ComponentId]bool, len(cts))
	for _, ct := range cts {
		excluded[ct.componentID()] = true
	}
	shape := e.world.shapes[e.id]
	for _, c := range e.world.components {
		if shape.Has(int(c.componentID())) && !excluded[c.componentID()] {
			return true
		}
	}
	return false
}

// CountHas returns how many of cts are present on e.
func (e Entity) CountHas(cts ...componentType) int {
	n := 0
	for _, ct := range cts {
		if e.Has(ct) {
			n++
		}
	}
	return n
}

// Hold pins e so the world will not recycle its id to a different
// entity until Release is called on the returned Holder, even if e is
// deleted in the meantime.
func (e Entity) Hold() (Holder, error) {
	if err := e.checkValid(); err != nil {
		return Holder{}, err
	}
	e.world.heldCount[e.id]++
	return Holder{entity: e}, nil
}

// Holder is a pinned reference obtained from Entity.Hold.
type Holder struct {
	entity   Entity
	released bool
}

// Entity returns the held entity handle.
func (h Holder) Entity() Entity { return h.entity }

// Release unpins the entity, allowing its id to be recycled once it
// has also been deleted.
func (h *Holder) Release() {
	if h.released {
		return
	}
	h.released = true
	w := h.entity.world
	id := h.entity.id
	if w.heldCount[id] > 0 {
		w.heldCount[id]--
	}
	if w.heldCount[id] == 0 && !w.generationsMatch(id, h.entity.generation) {
		// The entity was deleted while held; now eligible for recycling.
		w.freeIDs = append(w.freeIDs, id)
	}
}

func (w *World) generationsMatch(id EntityId, gen uint32) bool {
	return w.generations[id] == gen
}

// Delete marks e for destruction at the next flush. Its slot, shape
// bits, and ref edges persist until that flush runs; e becomes
// unreferenceable (Has/Read/Write all fail) only after the flush has
// fully processed the deletion.
func (e Entity) Delete() error {
	if err := e.checkValid(); err != nil {
		return err
	}
	e.world.pendingDeletes = append(e.world.pendingDeletes, pendingDelete{entity: e.id})
	return nil
}

// writeEntitled reports whether the currently executing system has
// declared write entitlement for ct, or whether access control is not
// in effect (setup time, or no system currently executing).
func (w *World) writeEntitled(ct componentType) bool {
	if w.inValidator {
		return false
	}
	if w.currentSystem == nil {
		return true
	}
	return w.currentSystem.writes[ct.componentID()]
}

func (w *World) readEntitled(ct componentType) bool {
	if w.inValidator {
		return false
	}
	if w.currentSystem == nil {
		return true
	}
	return w.currentSystem.reads[ct.componentID()] || w.currentSystem.writes[ct.componentID()]
}

// Add attaches a component instance of type T to e, returning
// AlreadyPresent if e already carries one. values may supply a partial
// override of the schema defaults; an unrecognized key fails with
// UnknownField. If the component type declares a validator, it runs
// against the post-change shape before Add returns; a validator error
// unwinds the attachment and e is left exactly as it was.
func Add[T any](e Entity, ct *ComponentType[T], values map[string]any) error {
	if err := e.checkValid(); err != nil {
		return err
	}
	w := e.world
	if !w.writeEntitled(ct) {
		return ecserror.Check(ecserror.CodeNotEntitled, fmt.Sprintf("no write entitlement for component %q", ct.Name())).WithEntity(uint32(e.id)).WithComponent(ct.Name())
	}
	if e.Has(ct) {
		return ecserror.Check(ecserror.CodeAlreadyPresent, fmt.Sprintf("entity already has component %q", ct.Name())).WithEntity(uint32(e.id)).WithComponent(ct.Name())
	}

	resurrected := w.unscheduleRelease(ct, e.id)
	var err error
	if resurrected && ct.hasSlot(e.id) {
		err = ct.reinit(e.id, values)
	} else {
		err = ct.acquire(e.id, values)
	}
	if err != nil {
		return err
	}

	shape := w.shapes[e.id]
	shape.Set(int(ct.componentID()))
	w.shapes[e.id] = shape

	if ct.hasValidator() {
		if verr := w.runValidator(ct, e); verr != nil {
			shape.Clear(int(ct.componentID()))
			w.shapes[e.id] = shape
			ct.release(e.id)
			return verr
		}
	}
	return nil
}

// Remove detaches e's instance of component type ct, returning
// NotPresent if it has none. Ref fields on the removed instance are
// cleared from the world's reverse index immediately; the storage slot
// itself is released at the next end-of-frame sweep so that
// accessRecentlyDeletedData() reads and a same-frame resurrecting Add
// both still see the slot.
func (e Entity) Remove(ct componentType) error {
	if err := e.checkValid(); err != nil {
		return err
	}
	w := e.world
	if !w.writeEntitled(ct) {
		return ecserror.Check(ecserror.CodeNotEntitled, fmt.Sprintf("no write entitlement for component %q", ct.componentName())).WithEntity(uint32(e.id)).WithComponent(ct.componentName())
	}
	if !e.Has(ct) {
		return ecserror.Check(ecserror.CodeNotPresent, fmt.Sprintf("entity has no component %q", ct.componentName())).WithEntity(uint32(e.id)).WithComponent(ct.componentName())
	}

	shape := w.shapes[e.id]
	shape.Clear(int(ct.componentID()))
	w.shapes[e.id] = shape
	ct.clearRefs(e.id)
	w.scheduleRelease(ct, e.id)

	if ct.hasValidator() {
		if verr := w.runValidator(ct, e); verr != nil {
			shape.Set(int(ct.componentID()))
			w.shapes[e.id] = shape
			ct.reapplyRefs(e.id)
			w.unscheduleRelease(ct, e.id)
			return verr
		}
	}
	return nil
}

func (w *World) runValidator(ct componentType, e Entity) (err error) {
	prev := w.inValidator
	w.inValidator = true
	defer func() {
		w.inValidator = prev
		if r := recover(); r != nil {
			err = ecserror.Check(ecserror.CodeInvariantBroken, fmt.Sprintf("validator panicked: %v", r)).WithEntity(uint32(e.id)).WithComponent(ct.componentName())
		}
	}()
	return ct.runValidator(e)
}

// Read binds a read view of e's instance of component type T, failing
// with NotEntitled if the currently executing system (or validator)
// has not declared read access, or NotPresent if e lacks the
// component.
func Read[T any](e Entity, ct *ComponentType[T]) (*T, error) {
	if err := e.checkValid(); err != nil {
		return nil, err
	}
	if !e.world.readEntitled(ct) {
		return nil, ecserror.Check(ecserror.CodeNotEntitled, fmt.Sprintf("no read entitlement for component %q", ct.Name())).WithEntity(uint32(e.id)).WithComponent(ct.Name())
	}
	if !e.Has(ct) {
		return nil, ecserror.Check(ecserror.CodeNotPresent, fmt.Sprintf("entity has no component %q", ct.Name())).WithEntity(uint32(e.id)).WithComponent(ct.Name())
	}
	v, _ := ct.viewAt(e.id)
	return v, nil
}

// Write binds a write view of e's instance of component type T, with
// the same entitlement and presence checks as Read.
func Write[T any](e Entity, ct *ComponentType[T]) (*T, error) {
	if err := e.checkValid(); err != nil {
		return nil, err
	}
	if !e.world.writeEntitled(ct) {
		return nil, ecserror.Check(ecserror.CodeNotEntitled, fmt.Sprintf("no write entitlement for component %q", ct.Name())).WithEntity(uint32(e.id)).WithComponent(ct.Name())
	}
	if !e.Has(ct) {
		return nil, ecserror.Check(ecserror.CodeNotPresent, fmt.Sprintf("entity has no component %q", ct.Name())).WithEntity(uint32(e.id)).WithComponent(ct.Name())
	}
	v, _ := ct.viewAt(e.id)
	return v, nil
}

// ReadRecentlyDeleted reads e's instance of component type T even
// though its shape bit has already been cleared by Remove, provided
// the currently executing system declared
// accessRecentlyDeletedData() and the slot has not yet been swept.
func ReadRecentlyDeleted[T any](e Entity, ct *ComponentType[T]) (*T, error) {
	if err := e.checkValid(); err != nil {
		return nil, err
	}
	w := e.world
	if w.currentSystem == nil || !w.currentSystem.allowsRecentlyDeleted {
		return nil, ecserror.Check(ecserror.CodeNotEntitled, "system did not declare accessRecentlyDeletedData").WithEntity(uint32(e.id)).WithComponent(ct.Name())
	}
	if e.Has(ct) {
		v, _ := ct.viewAt(e.id)
		return v, nil
	}
	if !w.isPendingRelease(ct.ID(), e.id) {
		return nil, ecserror.Check(ecserror.CodeNotPresent, "component was removed and its slot has already been swept").WithEntity(uint32(e.id)).WithComponent(ct.Name())
	}
	v, ok := ct.viewAt(e.id)
	if !ok {
		return nil, ecserror.Check(ecserror.CodeNotPresent, "component slot no longer present").WithEntity(uint32(e.id)).WithComponent(ct.Name())
	}
	return v, nil
}
