package ecs

import (
	"fmt"
	"reflect"

	"github.com/solace-games/ecsframe/ecs/ecserror"
	"github.com/solace-games/ecsframe/ecs/storage"
)

// refFieldTag marks a struct field of type EntityId as a reference the
// engine should track for reverse-edge clearance. Partial-init
// overrides name fields by their Go field name, looked up in a
// name-to-field-index map built once at registration.
const refFieldTag = "ref"

// componentType is the type-erased surface World uses to orchestrate
// heterogeneous ComponentType[T] instances without reflection at the
// call site for anything beyond registration-time field discovery.
type componentType interface {
	componentID() ComponentId
	componentName() string
	isTagComponent() bool
	hasValidator() bool
	runValidator(e Entity) error
	acquire(entityID EntityId, values map[string]any) error
	release(entityID EntityId)
	clearRefFieldOn(holderID EntityId, fieldIndex int)
	clearRefs(entityID EntityId)
	reapplyRefs(entityID EntityId)
	hasSlot(entityID EntityId) bool
	reinit(entityID EntityId, values map[string]any) error
}

// ComponentOptions configures a component type at registration.
type ComponentOptions[T any] struct {
	Name     string
	Storage  storage.Strategy
	Capacity int  // initial/fixed capacity; 0 uses 64
	Elastic  bool // allow geometric growth up to MaxEntities
	Default  T
	Validate func(Entity) error
}

// ComponentType is the handle returned by RegisterComponent. Field
// identity for T is derived once via reflection at registration time;
// afterwards all access goes through typed pointers into the backing
// store, never through reflection.
type ComponentType[T any] struct {
	id        ComponentId
	name      string
	world     *World
	store     storage.Store[T]
	fieldName map[string]int // exported Go field name -> struct field index
	refFields []int          // struct field indices of type EntityId
	validate  func(Entity) error
	isTag     bool
}

// ID returns the dense id assigned to this component type.
func (c *ComponentType[T]) ID() ComponentId { return c.id }

// Name returns the registration name.
func (c *ComponentType[T]) Name() string { return c.name }

// SetValidator (re)binds the component's validator after registration,
// for the common case where the validator closure itself needs to
// close over the ComponentType handle that RegisterComponent has not
// returned yet (e.g. a scripting-backed validator built from the
// handle it validates). It has no effect on entities already holding
// the component; the new validator applies to subsequent Add/Remove
// calls only.
func (c *ComponentType[T]) SetValidator(fn func(Entity) error) {
	c.validate = fn
}

// RegisterComponent registers a new component type on w. It must be
// called during StateSetup.
func RegisterComponent[T any](w *World, opts ComponentOptions[T]) (*ComponentType[T], error) {
	if w.state != StateSetup {
		return nil, ecserror.Check(ecserror.CodeWrongState, "components may only be registered during setup").WithDetails(w.state.String())
	}

	var zero T
	rt := reflect.TypeOf(zero)
	isTag := rt == nil || rt.Kind() != reflect.Struct || rt.NumField() == 0

	fieldName := make(map[string]int)
	var refFields []int
	if rt != nil && rt.Kind() == reflect.Struct {
		if rt.NumField() > MaxNumFields {
			return nil, ecserror.Check(ecserror.CodeTooManyFields, fmt.Sprintf("component %q declares %d fields, max is %d", opts.Name, rt.NumField(), MaxNumFields))
		}
		entityIDType := reflect.TypeOf(EntityId(0))
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			fieldName[f.Name] = i
			if f.Type == entityIDType && f.Tag.Get("ecs") == refFieldTag {
				refFields = append(refFields, i)
			}
		}
	}

	strategy := opts.Storage
	if isTag {
		strategy = storage.Sparse
	} else if strategy == 0 && opts.Storage == storage.Sparse && opts.Capacity == 0 && !opts.Elastic {
		strategy = w.config.DefaultComponentStorage
	}

	var store storage.Store[T]
	switch strategy {
	case storage.Packed:
		store = storage.NewPacked[T](storage.Config{Capacity: capacityOrDefault(opts.Capacity), MaxEntities: w.config.MaxEntities, Elastic: opts.Elastic})
	case storage.Compact:
		store = storage.NewCompact[T](storage.Config{Capacity: capacityOrDefault(opts.Capacity), MaxEntities: w.config.MaxEntities, Elastic: opts.Elastic})
	default:
		store = storage.NewSparse[T](w.config.MaxEntities)
	}

	ct := &ComponentType[T]{
		id:        ComponentId(len(w.components)),
		name:      opts.Name,
		world:     w,
		store:     store,
		fieldName: fieldName,
		refFields: refFields,
		validate:  opts.Validate,
		isTag:     isTag,
	}
	w.components = append(w.components, ct)
	w.defaults = append(w.defaults, opts.Default)
	w.componentsByName[opts.Name] = ct.id
	w.growShapeWords()
	return ct, nil
}

func capacityOrDefault(c int) int {
	if c <= 0 {
		return 64
	}
	return c
}

// --- componentType: the type-erased surface World needs to
// orchestrate storage across heterogeneous ComponentType[T] instances.

func (c *ComponentType[T]) isTagComponent() bool { return c.isTag }

func (c *ComponentType[T]) componentName() string { return c.name }

func (c *ComponentType[T]) componentID() ComponentId { return c.id }

func (c *ComponentType[T]) hasValidator() bool { return c.validate != nil }

func (c *ComponentType[T]) runValidator(e Entity) error {
	if c.validate == nil {
		return nil
	}
	return c.validate(e)
}

// acquire allocates storage for entityID and applies defaults plus any
// partial override values, failing with UnknownField for unrecognized
// keys.
func (c *ComponentType[T]) acquire(entityID EntityId, values map[string]any) error {
	if c.isTag {
		return nil
	}
	slot, err := c.store.Acquire(storage.EntityID(entityID))
	if err != nil {
		return ecserror.Check(ecserror.CodeCapacityExhausted, fmt.Sprintf("component %q: %v", c.name, err)).WithEntity(uint32(entityID)).WithComponent(c.name)
	}
	rec := c.store.At(slot)
	*rec = c.world.componentDefault(c).(T)

	if err := c.applyValues(rec, values); err != nil {
		c.store.Release(storage.EntityID(entityID))
		return ecserror.Check(ecserror.CodeUnknownField, err.Error()).WithEntity(uint32(entityID)).WithComponent(c.name)
	}
	c.registerRefs(entityID, rec)
	return nil
}

// hasSlot reports whether entityID already has an allocated slot
// (including one still pending release from a deferred remove).
func (c *ComponentType[T]) hasSlot(entityID EntityId) bool {
	if c.isTag {
		return false
	}
	_, ok := c.store.Slot(storage.EntityID(entityID))
	return ok
}

// reinit reapplies values onto an already-allocated slot, used when a
// same-frame Add resurrects a slot a preceding Remove had scheduled
// for release. Field values not named in values are left as they were
// (the resurrection window preserving prior data), rather than reset
// to schema defaults.
func (c *ComponentType[T]) reinit(entityID EntityId, values map[string]any) error {
	if c.isTag {
		return nil
	}
	slot, ok := c.store.Slot(storage.EntityID(entityID))
	if !ok {
		return c.acquire(entityID, values)
	}
	rec := c.store.At(slot)
	if err := c.applyValues(rec, values); err != nil {
		return ecserror.Check(ecserror.CodeUnknownField, err.Error()).WithEntity(uint32(entityID)).WithComponent(c.name)
	}
	c.registerRefs(entityID, rec)
	return nil
}

func (c *ComponentType[T]) applyValues(rec *T, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	rv := reflect.ValueOf(rec).Elem()
	for key, val := range values {
		idx, ok := c.fieldName[key]
		if !ok {
			return fmt.Errorf("component %q has no field %q", c.name, key)
		}
		field := rv.Field(idx)
		fv := reflect.ValueOf(val)
		if !fv.Type().AssignableTo(field.Type()) {
			if fv.Type().ConvertibleTo(field.Type()) {
				fv = fv.Convert(field.Type())
			} else {
				return fmt.Errorf("component %q field %q: value of type %s is not assignable to %s", c.name, key, fv.Type(), field.Type())
			}
		}
		field.Set(fv)
	}
	return nil
}

func (c *ComponentType[T]) registerRefs(entityID EntityId, rec *T) {
	if len(c.refFields) == 0 {
		return
	}
	rv := reflect.ValueOf(rec).Elem()
	for _, idx := range c.refFields {
		target := EntityId(rv.Field(idx).Uint())
		if target != InvalidEntityId {
			c.world.addRefEdge(target, c, entityID, idx)
		}
	}
}

// clearRefs removes this entity's ref edges from the world's reverse
// index without releasing the underlying storage slot.
func (c *ComponentType[T]) clearRefs(entityID EntityId) {
	if c.isTag || len(c.refFields) == 0 {
		return
	}
	slot, ok := c.store.Slot(storage.EntityID(entityID))
	if !ok {
		return
	}
	rec := c.store.At(slot)
	rv := reflect.ValueOf(rec).Elem()
	for _, idx := range c.refFields {
		target := EntityId(rv.Field(idx).Uint())
		if target != InvalidEntityId {
			c.world.removeRefEdge(target, c, entityID, idx)
		}
	}
}

// reapplyRefs re-adds ref edges for entityID's current slot values;
// used to undo clearRefs when a remove() is rolled back after a
// validator rejects it.
func (c *ComponentType[T]) reapplyRefs(entityID EntityId) {
	slot, ok := c.store.Slot(storage.EntityID(entityID))
	if !ok {
		return
	}
	c.registerRefs(entityID, c.store.At(slot))
}

func (c *ComponentType[T]) release(entityID EntityId) {
	if c.isTag {
		return
	}
	c.clearRefs(entityID)
	c.store.Release(storage.EntityID(entityID))
}

// clearRefFieldOn nulls fieldIndex on holderID's instance of this
// component type, used when the field's target entity is deleted.
func (c *ComponentType[T]) clearRefFieldOn(holderID EntityId, fieldIndex int) {
	slot, ok := c.store.Slot(storage.EntityID(holderID))
	if !ok {
		return
	}
	rec := c.store.At(slot)
	reflect.ValueOf(rec).Elem().Field(fieldIndex).SetUint(0)
}

func (c *ComponentType[T]) viewAt(entityID EntityId) (*T, bool) {
	slot, ok := c.store.Slot(storage.EntityID(entityID))
	if !ok {
		return nil, false
	}
	return c.store.At(slot), true
}
