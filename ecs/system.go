package ecs

import "time"

// System is a user-defined unit of logic with declared queries,
// entitlements, and scheduling constraints. Build runs once, before
// the scheduler resolves an execution plan, and returns every query
// the system will read its membership from; the Read/Write calls made
// on those queries' builders are also how the system declares its
// entitlements to the scheduler.
type System interface {
	Type() SystemType
	Build(w *World) []*Query
	Initialize(w *World) error
	Execute(w *World, t Time) error
	Finalize(w *World) error
}

// SystemMetrics is the read-only diagnostic surface exposed per
// scheduled system: execution counters and timing, with no
// thread-safety bookkeeping since the scheduler runs every system on
// a single goroutine by design.
type SystemMetrics struct {
	ExecutionCount int64
	TotalNanos     int64
	AverageNanos   int64
	MaxNanos       int64
	MinNanos       int64
	ErrorCount     int64
	LastExecution  time.Time
}

func (m *SystemMetrics) record(d time.Duration, err error) {
	elapsed := d.Nanoseconds()
	m.ExecutionCount++
	m.TotalNanos += elapsed
	m.LastExecution = time.Now()
	if m.ExecutionCount > 0 {
		m.AverageNanos = m.TotalNanos / m.ExecutionCount
	}
	if elapsed > m.MaxNanos {
		m.MaxNanos = elapsed
	}
	if m.MinNanos == 0 || elapsed < m.MinNanos {
		m.MinNanos = elapsed
	}
	if err != nil {
		m.ErrorCount++
	}
}

// BaseSystem is an embeddable convenience implementing the no-op
// portions of System (Initialize/Finalize) so a concrete system only
// has to implement Build and Execute. It carries the system's
// SystemType for Type() and nothing else — no mutex, since the
// scheduling model is strictly single-threaded and cooperative.
type BaseSystem struct {
	SystemName SystemType
}

// Type returns the configured system type.
func (b BaseSystem) Type() SystemType { return b.SystemName }

// Initialize is a no-op by default.
func (b BaseSystem) Initialize(w *World) error { return nil }

// Finalize is a no-op by default.
func (b BaseSystem) Finalize(w *World) error { return nil }

// registeredSystem is the scheduler's bookkeeping record for one
// registered System: its declared entitlements (derived from the
// queries returned by Build), explicit ordering constraints, and
// per-system metrics.
type registeredSystem struct {
	sys                   System
	typ                   SystemType
	queries               []*Query
	reads                 map[ComponentId]bool
	writes                map[ComponentId]bool
	allowsRecentlyDeleted bool
	before                []SystemType
	after                 []SystemType
	metrics               *SystemMetrics
	enabled               bool
}

// SystemOption configures a registeredSystem at RegisterSystem time.
type SystemOption func(*registeredSystem)

// Before declares that the system being registered must run before
// every named sibling system.
func Before(types ...SystemType) SystemOption {
	return func(rs *registeredSystem) { rs.before = append(rs.before, types...) }
}

// After declares that the system being registered must run after
// every named sibling system.
func After(types ...SystemType) SystemOption {
	return func(rs *registeredSystem) { rs.after = append(rs.after, types...) }
}

// RegisterSystem adds s to the world's schedule. It must be called
// during StateSetup; Build runs immediately to collect the system's
// queries and entitlements, but the topological plan itself is
// resolved once, at the first Initialize call.
func (w *World) RegisterSystem(s System, opts ...SystemOption) error {
	if err := w.requireState(StateSetup); err != nil {
		return err
	}
	rs := &registeredSystem{
		sys:     s,
		typ:     s.Type(),
		reads:   make(map[ComponentId]bool),
		writes:  make(map[ComponentId]bool),
		metrics: &SystemMetrics{},
		enabled: true,
	}
	for _, o := range opts {
		o(rs)
	}

	queries := s.Build(w)
	rs.queries = queries
	for _, q := range queries {
		b := q.inner.Builder()
		for _, id := range b.ReadIDs() {
			rs.reads[ComponentId(id)] = true
		}
		for _, id := range b.WriteIDs() {
			rs.writes[ComponentId(id)] = true
		}
		if b.RecentlyDeleted() {
			rs.allowsRecentlyDeleted = true
		}
	}

	w.systems = append(w.systems, rs)
	return nil
}

// Metrics returns a copy of sys's execution metrics, or nil if the
// system type is not registered.
func (w *World) Metrics(sys SystemType) *SystemMetrics {
	for _, rs := range w.systems {
		if rs.typ == sys {
			m := *rs.metrics
			return &m
		}
	}
	return nil
}

// Control stops and restarts systems between frames, as declared by
// the stop/restart lists. A restarted system's queries do not
// backfill the events they missed while stopped.
func (w *World) Control(stop, restart []SystemType) {
	stopSet := make(map[SystemType]bool, len(stop))
	for _, t := range stop {
		stopSet[t] = true
	}
	restartSet := make(map[SystemType]bool, len(restart))
	for _, t := range restart {
		restartSet[t] = true
	}
	for _, rs := range w.systems {
		if stopSet[rs.typ] {
			rs.enabled = false
			for _, q := range rs.queries {
				q.inner.Stop()
			}
		}
		if restartSet[rs.typ] {
			rs.enabled = true
			for _, q := range rs.queries {
				q.inner.Restart()
			}
		}
	}
}
