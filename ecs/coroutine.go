package ecs

import (
	"fmt"
	"reflect"

	"github.com/solace-games/ecsframe/ecs/ecserror"
)

// CoroutineFunc is a cooperative task body. ctx.Yield suspends the
// coroutine and reports what condition must hold before it resumes.
type CoroutineFunc func(ctx *CoroutineContext) (any, error)

type yieldKind int

const (
	yieldFrame yieldKind = iota
	yieldFrames
	yieldSeconds
	yieldUntil
	yieldChild
)

// Yield is the closed sum type a coroutine returns from ctx.Yield to
// direct when the engine resumes it: next frame, after n frames, after
// a wall-clock delay, the first frame a predicate holds, or when a
// nested coroutine handle resolves.
type Yield struct {
	kind    yieldKind
	frames  int
	seconds float64
	until   func() bool
	child   *CoroutineHandle
}

// Frame resumes the coroutine on the next frame.
func Frame() Yield { return Yield{kind: yieldFrame} }

// Frames resumes the coroutine after n frame advances.
func Frames(n int) Yield { return Yield{kind: yieldFrames, frames: n} }

// Seconds resumes the coroutine once at least s wall-clock seconds
// have elapsed since the yield.
func Seconds(s float64) Yield { return Yield{kind: yieldSeconds, seconds: s} }

// Until resumes the coroutine on the first frame fn returns true.
func Until(fn func() bool) Yield { return Yield{kind: yieldUntil, until: fn} }

// Child resumes the coroutine when the referenced handle completes or
// is cancelled, delivering its return value or error.
func Child(h *CoroutineHandle) Yield { return Yield{kind: yieldChild, child: h} }

// CoroutineContext is the handle a running coroutine body uses to
// yield control back to the engine.
type CoroutineContext struct {
	handle *CoroutineHandle
}

// Yield suspends the coroutine until the condition in y is satisfied,
// returning the resume value (a child coroutine's result, for a Child
// yield) or a CanceledError if the coroutine was cancelled while
// suspended.
func (ctx *CoroutineContext) Yield(y Yield) (any, error) {
	h := ctx.handle
	h.pendingYield = y
	h.doneCh <- struct{}{}
	<-h.resumeCh
	if h.cancelRequested {
		return nil, ecserror.Canceled(fmt.Sprintf("coroutine in system %q cancelled", h.system))
	}
	return h.resumeValue, h.resumeErr
}

// CoroutineHandle is a reference to one launched coroutine, usable to
// cancel it, scope it to an entity, or await it as a child yield.
type CoroutineHandle struct {
	id      uint64
	system  SystemType
	fn      CoroutineFunc
	scope   *Entity
	started bool
	finished bool
	canceled bool

	pendingYield Yield
	waitUntilFrame uint64
	waitUntilTime  float64

	cancelRequested bool
	cancelIf        func() bool
	cancelIfMissing componentType
	cancelIfStartedFn uintptr
	cancelIfStartedAny bool
	// startSeq is the global start-order sequence number assigned when
	// this coroutine actually began running (its first resume).
	// lastSeenSeq is the sequence value as of this coroutine's last
	// cancelIfCoroutineStarted check; a sibling whose startSeq is
	// greater started since that check.
	startSeq    uint64
	lastSeenSeq uint64

	resumeValue any
	resumeErr   error
	result      any
	resultErr   error

	resumeCh chan struct{}
	doneCh   chan struct{}

	parent *CoroutineHandle
}

// Cancel aborts the coroutine at its next yield point. If it is
// waiting on a nested child (a Child yield), that child is cancelled
// too, down to the deepest nested child.
func (h *CoroutineHandle) Cancel() {
	h.cancelRequested = true
	if child := h.pendingYield.child; h.pendingYield.kind == yieldChild && child != nil && !child.Done() {
		child.Cancel()
	}
}

// CancelIf registers a predicate evaluated at each yield point; when
// it returns true the coroutine is cancelled.
func (h *CoroutineHandle) CancelIf(predicate func() bool) *CoroutineHandle {
	h.cancelIf = predicate
	return h
}

// Scope implicitly cancels the coroutine when entity e is deleted.
func (h *CoroutineHandle) Scope(e Entity) *CoroutineHandle {
	h.scope = &e
	return h
}

// CancelIfComponentMissing cancels the coroutine once its scope entity
// no longer carries ct. Scope must already be set.
func (h *CoroutineHandle) CancelIfComponentMissing(ct componentType) *CoroutineHandle {
	h.cancelIfMissing = ct
	return h
}

// CancelIfCoroutineStarted cancels the coroutine if another coroutine
// has started in the same system (optionally matching fn's identity)
// with the same scope since this one's last check. A coroutine never
// self-cancels through this rule.
func (h *CoroutineHandle) CancelIfCoroutineStarted(fn CoroutineFunc) *CoroutineHandle {
	if fn != nil {
		h.cancelIfStartedFn = reflect.ValueOf(fn).Pointer()
	} else {
		h.cancelIfStartedAny = true
	}
	return h
}

// Done reports whether the coroutine has finished or been cancelled.
func (h *CoroutineHandle) Done() bool { return h.finished || h.canceled }

// Result returns the coroutine's return value, if it finished normally.
func (h *CoroutineHandle) Result() (any, bool) {
	return h.result, h.finished && !h.canceled && h.resultErr == nil
}

// Err returns the coroutine's terminal error, if any.
func (h *CoroutineHandle) Err() error { return h.resultErr }

// coroutineScheduler advances every system's active coroutines after
// that system's Execute returns, in the order they were started, per
// the execution-timing rule in the coroutine model.
type coroutineScheduler struct {
	world    *World
	nextID   uint64
	nextSeq  uint64
	bySystem map[SystemType][]*CoroutineHandle
}

func newCoroutineScheduler(w *World) *coroutineScheduler {
	return &coroutineScheduler{world: w, bySystem: make(map[SystemType][]*CoroutineHandle)}
}

// Launch starts a new coroutine owned by the currently executing
// system. It must be called from within a system's Initialize or
// Execute, or from within the body of a coroutine already running for
// that system (the only way to create a nested child coroutine, since
// there is no separate ctx.Launch).
func (w *World) Launch(fn CoroutineFunc) *CoroutineHandle {
	cs := w.coroutines
	var sys SystemType
	if w.currentSystem != nil {
		sys = w.currentSystem.typ
	}
	cs.nextID++
	h := &CoroutineHandle{
		id:          cs.nextID,
		system:      sys,
		fn:          fn,
		resumeCh:    make(chan struct{}),
		doneCh:      make(chan struct{}),
		lastSeenSeq: cs.nextSeq,
	}
	cs.bySystem[sys] = append(cs.bySystem[sys], h)

	go func() {
		<-h.resumeCh
		ctx := &CoroutineContext{handle: h}
		result, err := fn(ctx)
		h.result, h.resultErr = result, err
		h.finished = true
		h.doneCh <- struct{}{}
	}()
	return h
}

// advance steps every active coroutine registered for sys once,
// in start order, removing finished/cancelled handles afterward.
func (cs *coroutineScheduler) advance(sys SystemType) {
	handles := cs.bySystem[sys]
	if len(handles) == 0 {
		return
	}
	snapshot := make([]*CoroutineHandle, len(handles))
	copy(snapshot, handles)

	for _, h := range snapshot {
		cs.step(h)
	}

	// Re-read: stepping a coroutine may have run its body as far as its
	// next yield, and that body may have called Launch, appending to
	// this same slice. Compacting the pre-loop slice would silently
	// drop anything launched during this pass.
	current := cs.bySystem[sys]
	live := current[:0]
	for _, h := range current {
		if !h.Done() {
			live = append(live, h)
		}
	}
	cs.bySystem[sys] = live
}

func (cs *coroutineScheduler) step(h *CoroutineHandle) {
	if h.Done() {
		return
	}
	if cs.shouldCancel(h) {
		h.Cancel()
	}
	h.lastSeenSeq = cs.nextSeq

	if !h.started {
		h.started = true
		cs.nextSeq++
		h.startSeq = cs.nextSeq
		cs.resume(h, func() {
			h.resumeCh <- struct{}{}
			<-h.doneCh
		})
		cs.settle(h)
		return
	}

	ready, value, err := cs.ready(h)
	if !ready {
		return
	}
	h.resumeValue, h.resumeErr = value, err
	cs.resume(h, func() {
		h.resumeCh <- struct{}{}
		<-h.doneCh
	})
	cs.settle(h)
}

// resume runs the channel handshake that actually executes h's body up
// to its next yield with w.currentSystem set to the registered system
// that owns h. The handshake is the only place a coroutine body runs,
// so without this, Read/Write/Add/Remove calls and nested Launch calls
// made from inside a coroutine body would see no current system at
// all instead of the one whose entitlements and coroutine group they
// belong to.
func (cs *coroutineScheduler) resume(h *CoroutineHandle, handshake func()) {
	prev := cs.world.currentSystem
	cs.world.currentSystem = cs.world.systemByType(h.system)
	handshake()
	cs.world.currentSystem = prev
}

func (cs *coroutineScheduler) settle(h *CoroutineHandle) {
	if h.finished {
		if h.cancelRequested && ecserror.IsCanceled(h.resultErr) {
			h.canceled = true
		}
		return
	}
	switch h.pendingYield.kind {
	case yieldFrames:
		h.waitUntilFrame = cs.world.time.Frame + uint64(h.pendingYield.frames)
	case yieldSeconds:
		h.waitUntilTime = cs.world.time.Total + h.pendingYield.seconds
	}
}

func (cs *coroutineScheduler) ready(h *CoroutineHandle) (bool, any, error) {
	if h.cancelRequested {
		return true, nil, nil
	}
	switch h.pendingYield.kind {
	case yieldFrame:
		return true, nil, nil
	case yieldFrames:
		return cs.world.time.Frame >= h.waitUntilFrame, nil, nil
	case yieldSeconds:
		return cs.world.time.Total >= h.waitUntilTime, nil, nil
	case yieldUntil:
		if h.pendingYield.until != nil && h.pendingYield.until() {
			return true, nil, nil
		}
		return false, nil, nil
	case yieldChild:
		child := h.pendingYield.child
		if child == nil || !child.Done() {
			return false, nil, nil
		}
		return true, child.result, child.resultErr
	default:
		return true, nil, nil
	}
}

func (cs *coroutineScheduler) shouldCancel(h *CoroutineHandle) bool {
	if h.cancelIf != nil && h.cancelIf() {
		return true
	}
	if h.scope != nil && !h.scope.IsValid() {
		return true
	}
	if h.scope != nil && h.cancelIfMissing != nil && !h.scope.Has(h.cancelIfMissing) {
		return true
	}
	if h.cancelIfStartedFn != 0 || h.cancelIfStartedAny {
		for _, other := range cs.bySystem[h.system] {
			if other == h || !other.started || other.startSeq <= h.lastSeenSeq {
				continue
			}
			if h.cancelIfStartedAny || reflect.ValueOf(other.fn).Pointer() == h.cancelIfStartedFn {
				if scopeEqual(h.scope, other.scope) {
					return true
				}
			}
		}
	}
	return false
}

func scopeEqual(a, b *Entity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.id == b.id && a.generation == b.generation
}
