package ecs

import (
	"time"

	"github.com/solace-games/ecsframe/ecs/ecserror"
)

// Initialize resolves the scheduler plan exactly once and then runs
// every registered system's Initialize call in plan order, flushing
// deferred deletions and validator rechecks to a fixed point and
// advancing any coroutines launched during that pass before moving to
// the next system. On success the world transitions to StateRunning.
func (w *World) Initialize() error {
	if err := w.requireState(StateSetup); err != nil {
		return err
	}
	if err := w.resolvePlan(); err != nil {
		return err
	}
	w.state = StateInitializing

	for _, idx := range w.plan {
		rs := w.systems[idx]
		if !rs.enabled {
			continue
		}
		if err := w.runPhase(rs, func() error { return rs.sys.Initialize(w) }); err != nil {
			w.state = StateSetup
			return err
		}
	}

	w.refreshQueries()
	w.state = StateRunning
	return nil
}

// Execute advances one frame: every enabled system runs in plan order,
// each followed by a flush to a fixed point and an advance of its
// active coroutines, the execution-timing rule in the coroutine
// model. Queries refresh and swept releases settle once at the end of
// the frame, after every system has run.
func (w *World) Execute(t Time) error {
	if err := w.requireState(StateRunning, StateQuiescent); err != nil {
		return err
	}
	w.time = t

	for _, idx := range w.plan {
		rs := w.systems[idx]
		if !rs.enabled {
			continue
		}
		if err := w.runPhase(rs, func() error { return rs.sys.Execute(w, t) }); err != nil {
			return err
		}
	}

	w.refreshQueries()
	w.sweepReleases()
	return nil
}

// runPhase runs fn with w.currentSystem set to rs, records its
// timing/error into rs.metrics, flushes deferred work to a fixed
// point, and advances rs's coroutines in start order.
func (w *World) runPhase(rs *registeredSystem, fn func() error) error {
	w.currentSystem = rs
	start := time.Now()
	err := fn()
	rs.metrics.record(time.Since(start), err)
	w.currentSystem = nil
	if err != nil {
		return err
	}
	if err := w.settleFlush(); err != nil {
		return err
	}
	w.coroutines.advance(rs.typ)
	return nil
}

// settleFlush applies flush() repeatedly until a pass leaves no
// deferred deletions behind, bounded by WorldConfig.FlushBudget.
// Deletions still pending after the last pass are reported as an
// engine-invariant violation, not an authoring mistake.
func (w *World) settleFlush() error {
	budget := w.config.FlushBudget
	if budget <= 0 {
		budget = 1
	}
	for i := 0; i < budget; i++ {
		pending := len(w.pendingDeletes)
		if pending == 0 {
			return nil
		}
		if err := w.flush(); err != nil {
			return err
		}
	}
	if len(w.pendingDeletes) > 0 {
		return ecserror.Internal(ecserror.CodeFlushDidNotSettle, "flush did not reach a fixed point within FlushBudget passes")
	}
	return nil
}

// Finalize runs every registered system's Finalize call in reverse
// plan order (unwinding dependents before their dependencies) and
// transitions the world to StateDone. It may be called from
// StateRunning or StateQuiescent.
func (w *World) Finalize() error {
	if err := w.requireState(StateRunning, StateQuiescent); err != nil {
		return err
	}
	w.state = StateFinalizing

	for i := len(w.plan) - 1; i >= 0; i-- {
		rs := w.systems[w.plan[i]]
		if !rs.enabled {
			continue
		}
		w.currentSystem = rs
		err := rs.sys.Finalize(w)
		w.currentSystem = nil
		if err != nil {
			return err
		}
	}

	w.state = StateDone
	return nil
}

// Terminate shuts the world down from any non-done state, exactly
// once: from StateRunning or StateQuiescent it routes through Finalize
// so every registered system still gets its Finalize call in reverse
// plan order; from an earlier state (setup/initializing, where no
// system has a completed Initialize to unwind) it transitions directly
// to StateDone.
func (w *World) Terminate() error {
	switch w.state {
	case StateDone:
		return ecserror.Check(ecserror.CodeWrongState, "terminate already called").WithDetails(w.state.String())
	case StateRunning, StateQuiescent:
		return w.Finalize()
	default:
		w.state = StateDone
		return nil
	}
}

// Quiesce moves the world from StateRunning to StateQuiescent. It does
// not stop frame advancement: Execute, Finalize and Terminate accept
// StateQuiescent just as they accept StateRunning.
func (w *World) Quiesce() error {
	if err := w.requireState(StateRunning); err != nil {
		return err
	}
	w.state = StateQuiescent
	return nil
}

// Resume returns a quiesced world to StateRunning.
func (w *World) Resume() error {
	if err := w.requireState(StateQuiescent); err != nil {
		return err
	}
	w.state = StateRunning
	return nil
}
