package ecs

import (
	"fmt"

	"github.com/solace-games/ecsframe/ecs/bitset"
	"github.com/solace-games/ecsframe/ecs/ecserror"
	"github.com/solace-games/ecsframe/ecs/ecslog"
	"github.com/solace-games/ecsframe/ecs/storage"
)

type refEdge struct {
	component   componentType
	holder      EntityId
	fieldIndex  int
}

type pendingRelease struct {
	component componentType
	entity    EntityId
}

type pendingDelete struct {
	entity EntityId
}

// World is the unit of isolation for every entity, component, and
// system in this package; there is no cross-world sharing of
// component types or scheduling state.
type World struct {
	config WorldConfig
	state  State

	components       []componentType
	defaults         []any
	componentsByName map[string]ComponentId
	shapeWords       int

	shapes      []bitset.Set
	generations []uint32
	heldCount   []uint32
	freeIDs     []EntityId
	nextID      EntityId

	refEdges map[EntityId][]refEdge

	pendingReleases []pendingRelease
	releaseIndex    map[[2]uint32]int // (componentID, entityID) -> index into pendingReleases, for dedupe/unschedule
	pendingDeletes  []pendingDelete

	systems []*registeredSystem
	plan    []int
	queries []*Query

	currentSystem       *registeredSystem
	inValidator          bool
	currentRecentlyDeleted bool

	buildDepth     int
	buildCreated   []EntityId
	buildRolledBack bool

	time Time
	log  *ecslog.Logger

	coroutines *coroutineScheduler
}

// NewWorld constructs a world in StateSetup. Components and systems
// are registered against it before the first call to Initialize.
func NewWorld(cfg WorldConfig) *World {
	if cfg.MaxEntities <= 0 {
		cfg = DefaultWorldConfig()
	}
	w := &World{
		config:           cfg,
		state:            StateSetup,
		componentsByName: make(map[string]ComponentId),
		generations:      make([]uint32, 1, cfg.MaxEntities+1),
		heldCount:        make([]uint32, 1, cfg.MaxEntities+1),
		refEdges:         make(map[EntityId][]refEdge),
		releaseIndex:     make(map[[2]uint32]int),
		nextID:           1,
	}
	w.shapeWords = bitset.WordsFor(0)
	w.shapes = make([]bitset.Set, 1, cfg.MaxEntities+1)
	w.log = ecslog.New("ecsframe", cfg.Debug)
	w.coroutines = newCoroutineScheduler(w)
	return w
}

func (w *World) growShapeWords() {
	w.shapeWords = bitset.WordsFor(len(w.components))
}

func (w *World) componentDefault(c componentType) any {
	return w.defaults[c.componentID()]
}

// systemByType looks up the registeredSystem owning t, or nil for the
// zero SystemType a coroutine launched outside any system carries.
func (w *World) systemByType(t SystemType) *registeredSystem {
	for _, rs := range w.systems {
		if rs.typ == t {
			return rs
		}
	}
	return nil
}

// State returns the world's current life-cycle state.
func (w *World) State() State { return w.state }

func (w *World) requireState(allowed ...State) error {
	for _, s := range allowed {
		if w.state == s {
			return nil
		}
	}
	return ecserror.Check(ecserror.CodeWrongState, fmt.Sprintf("operation not allowed in state %q", w.state)).WithDetails(w.state.String())
}

// CreateEntity allocates a fresh EntityId/generation pair and returns a
// handle to it with no components attached.
func (w *World) CreateEntity() (Entity, error) {
	if err := w.requireState(StateSetup, StateRunning); err != nil {
		return Entity{}, err
	}
	id := w.allocateID()
	if w.buildDepth > 0 {
		w.buildCreated = append(w.buildCreated, id)
	}
	return Entity{id: id, generation: w.generations[id], world: w}, nil
}

func (w *World) allocateID() EntityId {
	if n := len(w.freeIDs); n > 0 {
		id := w.freeIDs[n-1]
		w.freeIDs = w.freeIDs[:n-1]
		return id
	}
	id := w.nextID
	w.nextID++
	w.generations = append(w.generations, 0)
	w.heldCount = append(w.heldCount, 0)
	w.shapes = append(w.shapes, bitset.New(w.shapeWordsAtLeast()))
	return id
}

func (w *World) shapeWordsAtLeast() int {
	if w.shapeWords == 0 {
		return 1
	}
	return w.shapeWords * 64
}

// Build runs fn inside an all-or-nothing construction block: if fn
// returns an error (including a validator error surfaced from an add
// call inside fn), every entity created during the block is rolled
// back — its shape cleared and its storage released — before Build
// returns the error.
func (w *World) Build(fn func(*World) error) error {
	w.buildDepth++
	startLen := len(w.buildCreated)
	err := fn(w)
	created := w.buildCreated[startLen:]
	w.buildCreated = w.buildCreated[:startLen]
	w.buildDepth--

	if err != nil {
		for i := len(created) - 1; i >= 0; i-- {
			w.destroyImmediately(created[i])
		}
		return err
	}
	return nil
}

func (w *World) destroyImmediately(id EntityId) {
	shape := w.shapes[id]
	for _, c := range w.components {
		if shape.Has(int(c.componentID())) {
			c.release(id)
		}
	}
	w.shapes[id] = bitset.New(w.shapeWordsAtLeast())
	w.generations[id]++
	if w.heldCount[id] == 0 {
		w.freeIDs = append(w.freeIDs, id)
	}
	delete(w.refEdges, id)
}

func (w *World) addRefEdge(target EntityId, c componentType, holder EntityId, fieldIndex int) {
	w.refEdges[target] = append(w.refEdges[target], refEdge{component: c, holder: holder, fieldIndex: fieldIndex})
}

func (w *World) removeRefEdge(target EntityId, c componentType, holder EntityId, fieldIndex int) {
	edges := w.refEdges[target]
	for i, e := range edges {
		if e.component.componentID() == c.componentID() && e.holder == holder && e.fieldIndex == fieldIndex {
			edges = append(edges[:i], edges[i+1:]...)
			break
		}
	}
	if len(edges) == 0 {
		delete(w.refEdges, target)
	} else {
		w.refEdges[target] = edges
	}
}

// clearRefsTo nulls every reverse edge pointing at target, run as part
// of the deletion sweep.
func (w *World) clearRefsTo(target EntityId) {
	edges := w.refEdges[target]
	delete(w.refEdges, target)
	for _, e := range edges {
		e.component.clearRefFieldOn(e.holder, e.fieldIndex)
	}
}

func (w *World) scheduleRelease(c componentType, entityID EntityId) {
	key := [2]uint32{uint32(c.componentID()), uint32(entityID)}
	if _, ok := w.releaseIndex[key]; ok {
		return
	}
	w.releaseIndex[key] = len(w.pendingReleases)
	w.pendingReleases = append(w.pendingReleases, pendingRelease{component: c, entity: entityID})
}

func (w *World) unscheduleRelease(c componentType, entityID EntityId) bool {
	key := [2]uint32{uint32(c.componentID()), uint32(entityID)}
	idx, ok := w.releaseIndex[key]
	if !ok {
		return false
	}
	delete(w.releaseIndex, key)
	w.pendingReleases[idx].component = nil
	return true
}

func (w *World) isPendingRelease(componentID ComponentId, entityID EntityId) bool {
	_, ok := w.releaseIndex[[2]uint32{uint32(componentID), uint32(entityID)}]
	return ok
}

// sweepReleases physically frees storage slots scheduled by remove()
// calls that were not re-claimed by a same-frame resurrection. This is
// the point at which accessRecentlyDeletedData() reads stop working
// for that (entity, component) pair, resolving the interaction between
// recently-deleted reads and slot recycling: the slot is not eligible
// for reuse by a different entity until this sweep has run.
func (w *World) sweepReleases() {
	if len(w.pendingReleases) == 0 {
		return
	}
	for _, pr := range w.pendingReleases {
		if pr.component == nil {
			continue // unscheduled by a resurrection
		}
		pr.component.release(pr.entity)
	}
	w.pendingReleases = w.pendingReleases[:0]
	w.releaseIndex = make(map[[2]uint32]int)
}

// flush applies the entity deletions accumulated during the preceding
// system step: for each deleted entity it nulls the ref fields pointing
// at it, releases its components' storage, clears its shape, and bumps
// its generation. It runs no validators; validators run only inside
// Add and Remove.
func (w *World) flush() error {
	for _, pd := range w.pendingDeletes {
		w.clearRefsTo(pd.entity)
		shape := w.shapes[pd.entity]
		for _, c := range w.components {
			if shape.Has(int(c.componentID())) {
				w.removeComponentInternal(pd.entity, c)
			}
		}
		w.shapes[pd.entity] = bitset.New(w.shapeWordsAtLeast())
		w.generations[pd.entity]++
		if w.heldCount[pd.entity] == 0 {
			w.freeIDs = append(w.freeIDs, pd.entity)
		}
	}
	w.pendingDeletes = w.pendingDeletes[:0]
	return nil
}

func (w *World) removeComponentInternal(entityID EntityId, c componentType) {
	shape := w.shapes[entityID]
	shape.Clear(int(c.componentID()))
	w.shapes[entityID] = shape
	w.unscheduleRelease(c, entityID)
	c.release(entityID)
}

// The blank reference below keeps the storage import in use; nothing
// else in this file refers to the storage package.
var _ = storage.Sparse
