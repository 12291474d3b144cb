package ecs

import "github.com/solace-games/ecsframe/ecs/storage"

// EntityId is the dense 32-bit entity identifier described by the
// data model: an index into every per-entity array the world keeps
// (shape words, generations, held-count). It carries no state of its
// own; Entity is the handle callers actually hold.
type EntityId uint32

// InvalidEntityId is never assigned to a live entity.
const InvalidEntityId EntityId = 0

// ComponentId is a dense, sequential id assigned at registration time.
type ComponentId int

// InvalidComponentId marks an unregistered component.
const InvalidComponentId ComponentId = -1

// SystemType names a system for scheduling constraints and logging.
type SystemType string

// State is the world's life-cycle state machine.
type State int

const (
	StateSetup State = iota
	StateInitializing
	StateRunning
	StateQuiescent
	StateFinalizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateQuiescent:
		return "quiescent"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// DefaultStorage names the storage strategy a component uses when it
// does not request one explicitly.
const DefaultStorage = storage.Sparse

// MaxNumFields is the ceiling on schema fields per component type.
const MaxNumFields = 64

// WorldConfig configures a World at creation time, mirroring the
// config-struct-with-defaults convention used throughout this
// codebase for every tunable subsystem.
type WorldConfig struct {
	// MaxEntities bounds elastic growth and sizes fixed sparse
	// storage. Default 10_000, matching the public contract.
	MaxEntities int
	// DefaultComponentStorage is the strategy used by components that
	// do not specify one.
	DefaultComponentStorage storage.Strategy
	// Debug enables development-mode logging, including the
	// once-per-plan scheduler order dump.
	Debug bool
	// FlushBudget bounds how many flush passes settleFlush runs after a
	// system step before giving up with an InternalError while deferred
	// deletions are still pending.
	FlushBudget int
}

// DefaultWorldConfig returns the configuration used when callers don't
// override a field.
func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		MaxEntities:             10_000,
		DefaultComponentStorage: storage.Sparse,
		Debug:                   false,
		FlushBudget:             8,
	}
}

// Time is handed to System.Execute once per frame.
type Time struct {
	// Total is wall-clock seconds since the world started running.
	Total float64
	// Delta is the seconds elapsed since the previous Execute call.
	Delta float64
	// Frame is a monotonically increasing frame counter starting at 1.
	Frame uint64
}
