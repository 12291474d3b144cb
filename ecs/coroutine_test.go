package ecs

import (
	"testing"

	"github.com/solace-games/ecsframe/ecs/ecserror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// asSystem registers (once) and activates a minimal registeredSystem
// for typ, the same way the lifecycle phases do around a registered
// system's Initialize/Execute, so a test can launch coroutines without
// going through a full System. Registering typ in w.systems (rather
// than only setting w.currentSystem for the duration of fn) matters
// once fn launches a coroutine: coroutineScheduler.resume looks typ up
// again via systemByType on every later resume, including resumes
// that happen deep inside a nested coroutine body, so the same
// *registeredSystem instance — with its entitlement maps — must still
// be reachable then.
func asSystem(w *World, typ SystemType, fn func()) *registeredSystem {
	rs := w.systemByType(typ)
	if rs == nil {
		rs = &registeredSystem{
			typ:     typ,
			reads:   make(map[ComponentId]bool),
			writes:  make(map[ComponentId]bool),
			metrics: &SystemMetrics{},
			enabled: true,
		}
		w.systems = append(w.systems, rs)
	}
	prev := w.currentSystem
	w.currentSystem = rs
	fn()
	w.currentSystem = prev
	return rs
}

func TestCoroutine_FramesYieldResumesAfterNFrames(t *testing.T) {
	w := NewWorld(DefaultWorldConfig())
	var resumedAtFrame uint64
	var h *CoroutineHandle
	asSystem(w, "sys", func() {
		h = w.Launch(func(ctx *CoroutineContext) (any, error) {
			if _, err := ctx.Yield(Frames(3)); err != nil {
				return nil, err
			}
			resumedAtFrame = w.time.Frame
			return nil, nil
		})
	})

	for frame := uint64(1); frame <= 5 && !h.Done(); frame++ {
		w.time.Frame = frame
		w.coroutines.advance("sys")
	}

	require.True(t, h.Done())
	assert.GreaterOrEqual(t, resumedAtFrame, uint64(3))
}

func TestCoroutine_NestedChildPropagatesResultAndError(t *testing.T) {
	w := NewWorld(DefaultWorldConfig())

	t.Run("result flows from child to parent", func(t *testing.T) {
		var parent *CoroutineHandle
		asSystem(w, "nest-ok", func() {
			parent = w.Launch(func(ctx *CoroutineContext) (any, error) {
				// A nested Launch call made from inside a running
				// coroutine's body must see w.currentSystem already set
				// to the parent's own system (by coroutineScheduler.resume),
				// with no need to fake it again here.
				child := w.Launch(func(cctx *CoroutineContext) (any, error) {
					if _, err := cctx.Yield(Frame()); err != nil {
						return nil, err
					}
					return 42, nil
				})
				v, err := ctx.Yield(Child(child))
				if err != nil {
					return nil, err
				}
				return v, nil
			})
		})

		for i := 0; i < 10 && !parent.Done(); i++ {
			w.coroutines.advance("nest-ok")
		}
		require.True(t, parent.Done())
		result, ok := parent.Result()
		require.True(t, ok)
		assert.Equal(t, 42, result)
	})

	t.Run("child error propagates to parent as its own error", func(t *testing.T) {
		var parent *CoroutineHandle
		asSystem(w, "nest-err", func() {
			parent = w.Launch(func(ctx *CoroutineContext) (any, error) {
				child := w.Launch(func(cctx *CoroutineContext) (any, error) {
					return nil, assertErr
				})
				_, err := ctx.Yield(Child(child))
				return nil, err
			})
		})

		for i := 0; i < 10 && !parent.Done(); i++ {
			w.coroutines.advance("nest-err")
		}
		require.True(t, parent.Done())
		_, ok := parent.Result()
		assert.False(t, ok)
		assert.ErrorIs(t, parent.Err(), assertErr)
	})
}

var assertErr = assertError("boom")

type assertError string

func (e assertError) Error() string { return string(e) }

func TestCoroutine_ScopeCancelsWhenEntityDeleted(t *testing.T) {
	w := NewWorld(DefaultWorldConfig())
	e, err := w.CreateEntity()
	require.NoError(t, err)

	var h *CoroutineHandle
	asSystem(w, "scoped", func() {
		h = w.Launch(func(ctx *CoroutineContext) (any, error) {
			for {
				if _, err := ctx.Yield(Frame()); err != nil {
					return nil, err
				}
			}
		}).Scope(e)
	})

	w.coroutines.advance("scoped")
	assert.False(t, h.Done())

	require.NoError(t, e.Delete())
	require.NoError(t, w.flush())

	w.coroutines.advance("scoped")
	assert.True(t, h.Done())
	assert.True(t, h.canceled)
}

func TestCoroutine_CancelIfComponentMissing(t *testing.T) {
	w := NewWorld(DefaultWorldConfig())
	type Flag struct{ On bool }
	flag, err := RegisterComponent(w, ComponentOptions[Flag]{Name: "flag"})
	require.NoError(t, err)

	e, err := w.CreateEntity()
	require.NoError(t, err)
	require.NoError(t, Add(e, flag, nil))

	var h *CoroutineHandle
	asSystem(w, "watch-flag", func() {
		h = w.Launch(func(ctx *CoroutineContext) (any, error) {
			for {
				if _, err := ctx.Yield(Frame()); err != nil {
					return nil, err
				}
			}
		}).Scope(e).CancelIfComponentMissing(flag)
	})

	w.coroutines.advance("watch-flag")
	assert.False(t, h.Done())

	require.NoError(t, e.Remove(flag))
	w.coroutines.advance("watch-flag")
	assert.True(t, h.Done())
}

func TestCoroutine_EntitlementEnforcedInsideBody(t *testing.T) {
	w := NewWorld(DefaultWorldConfig())
	type counter struct{ N int }
	cnt, err := RegisterComponent(w, ComponentOptions[counter]{Name: "counter"})
	require.NoError(t, err)

	e, err := w.CreateEntity()
	require.NoError(t, err)
	require.NoError(t, Add(e, cnt, nil))

	var writeErr error
	var readErr error
	reader := asSystem(w, "reader", func() {})
	reader.reads[cnt.componentID()] = true

	w.currentSystem = reader
	h := w.Launch(func(ctx *CoroutineContext) (any, error) {
		if _, err := ctx.Yield(Frame()); err != nil {
			return nil, err
		}
		_, readErr = Read(e, cnt)
		_, writeErr = Write(e, cnt)
		return nil, nil
	})
	w.currentSystem = nil

	w.coroutines.advance("reader")
	assert.False(t, h.Done())
	w.coroutines.advance("reader")
	require.True(t, h.Done())

	assert.NoError(t, readErr, "a read entitled system must still read from inside a coroutine body")
	require.Error(t, writeErr, "a read-only system must not gain write entitlement from inside a coroutine body")
	assert.True(t, ecserror.IsCheck(writeErr))
}

func loopingBody(ctx *CoroutineContext) (any, error) {
	for {
		if _, err := ctx.Yield(Frame()); err != nil {
			return nil, err
		}
	}
}

func TestCoroutine_CancelIfCoroutineStarted_OnlySinceLastCheck(t *testing.T) {
	w := NewWorld(DefaultWorldConfig())

	var oldSibling *CoroutineHandle
	asSystem(w, "watcher", func() {
		oldSibling = w.Launch(loopingBody)
	})
	w.coroutines.advance("watcher") // oldSibling starts and runs for a while.
	w.coroutines.advance("watcher")
	w.coroutines.advance("watcher")

	// watcher is launched only after oldSibling has long since started;
	// its lastSeenSeq baseline is captured at this point.
	var watcher *CoroutineHandle
	asSystem(w, "watcher", func() {
		watcher = w.Launch(loopingBody).CancelIfCoroutineStarted(nil)
	})

	w.coroutines.advance("watcher") // watcher's first check: oldSibling is alive but started before the baseline.
	assert.False(t, watcher.Done(), "a sibling that started before the last check must not trigger cancellation, even though it is still alive")

	// A sibling launched only after watcher has already been checked
	// once must cancel it, but not before it has actually started.
	var newSibling *CoroutineHandle
	asSystem(w, "watcher", func() {
		newSibling = w.Launch(loopingBody)
	})

	w.coroutines.advance("watcher") // newSibling starts this round, after watcher's check in the same pass.
	assert.False(t, watcher.Done(), "a sibling must not cancel a check that ran before it actually started")

	w.coroutines.advance("watcher") // watcher's next check now sees newSibling as started since the prior check.
	assert.True(t, watcher.Done(), "a sibling started since the last check must cancel the watcher")
	assert.True(t, watcher.canceled)
	assert.False(t, newSibling.Done())
}
