package main

import (
	"math/rand"

	"github.com/solace-games/ecsframe/ecs"
)

const (
	screenWidth  = 1280
	screenHeight = 720
)

// movementSystem integrates velocity into position and bounces
// entities off the screen edges, grounded on the lineage's
// MovementSystem minus its parent-relative transform math (this demo
// has no scene graph).
type movementSystem struct {
	ecs.BaseSystem
	transform *ecs.ComponentType[Transform]
	query     *ecs.Query
}

func newMovementSystem(transform *ecs.ComponentType[Transform]) *movementSystem {
	return &movementSystem{BaseSystem: ecs.BaseSystem{SystemName: "movement"}, transform: transform}
}

func (s *movementSystem) Build(w *ecs.World) []*ecs.Query {
	s.query = ecs.NewQueryBuilder().With(s.transform).Write(s.transform).Build(w)
	return []*ecs.Query{s.query}
}

func (s *movementSystem) Execute(w *ecs.World, t ecs.Time) error {
	for _, e := range s.query.Current() {
		tr, err := ecs.Write(e, s.transform)
		if err != nil {
			continue
		}
		tr.X += tr.VX * t.Delta
		tr.Y += tr.VY * t.Delta
		if tr.X < 0 {
			tr.X, tr.VX = 0, -tr.VX
		} else if tr.X > screenWidth {
			tr.X, tr.VX = screenWidth, -tr.VX
		}
		if tr.Y < 0 {
			tr.Y, tr.VY = 0, -tr.VY
		} else if tr.Y > screenHeight {
			tr.Y, tr.VY = screenHeight, -tr.VY
		}
	}
	return nil
}

// healthSystem drains Health.Current over time and deletes any entity
// whose health has been exhausted, exercising the deferred-deletion /
// ref-clearance path every frame rather than only in tests.
type healthSystem struct {
	ecs.BaseSystem
	health *ecs.ComponentType[Health]
	query  *ecs.Query
	drain  float64
}

func newHealthSystem(health *ecs.ComponentType[Health], drainPerSecond float64) *healthSystem {
	return &healthSystem{BaseSystem: ecs.BaseSystem{SystemName: "health"}, health: health, drain: drainPerSecond}
}

func (s *healthSystem) Build(w *ecs.World) []*ecs.Query {
	s.query = ecs.NewQueryBuilder().With(s.health).Write(s.health).Build(w)
	return []*ecs.Query{s.query}
}

func (s *healthSystem) Execute(w *ecs.World, t ecs.Time) error {
	for _, e := range s.query.Current() {
		h, err := ecs.Write(e, s.health)
		if err != nil {
			continue
		}
		h.Current -= s.drain * t.Delta
		if h.Current <= 0 {
			if err := e.Delete(); err != nil {
				return err
			}
		}
	}
	return nil
}

// spawnerSystem launches one coroutine at Initialize time that drips
// new entities into the world at a fixed wall-clock cadence and then
// finishes, the demo's vehicle for exercising Seconds yields and the
// Initialize-pass coroutine advancement rule end to end rather than
// only in a unit test.
type spawnerSystem struct {
	ecs.BaseSystem
	transform  *ecs.ComponentType[Transform]
	sprite     *ecs.ComponentType[Sprite]
	health     *ecs.ComponentType[Health]
	maxSpawns  int
	interval   float64
}

func newSpawnerSystem(transform *ecs.ComponentType[Transform], sprite *ecs.ComponentType[Sprite], health *ecs.ComponentType[Health]) *spawnerSystem {
	return &spawnerSystem{
		BaseSystem: ecs.BaseSystem{SystemName: "spawner"},
		transform:  transform,
		sprite:     sprite,
		health:     health,
		maxSpawns:  24,
		interval:   0.4,
	}
}

func (s *spawnerSystem) Build(w *ecs.World) []*ecs.Query {
	return []*ecs.Query{ecs.NewQueryBuilder().Write(s.transform, s.sprite, s.health).Build(w)}
}

func (s *spawnerSystem) Initialize(w *ecs.World) error {
	w.Launch(func(ctx *ecs.CoroutineContext) (any, error) {
		for i := 0; i < s.maxSpawns; i++ {
			if _, err := ctx.Yield(ecs.Seconds(s.interval)); err != nil {
				return nil, err
			}
			if err := s.spawnOne(w); err != nil {
				return nil, err
			}
		}
		return s.maxSpawns, nil
	})
	return nil
}

func (s *spawnerSystem) spawnOne(w *ecs.World) error {
	return w.Build(func(w *ecs.World) error {
		e, err := w.CreateEntity()
		if err != nil {
			return err
		}
		if err := ecs.Add(e, s.transform, map[string]any{
			"X": rand.Float64() * screenWidth, //nolint:gosec
			"Y": rand.Float64() * screenHeight,
			"VX": rand.Float64()*200 - 100,
			"VY": rand.Float64()*200 - 100,
		}); err != nil {
			return err
		}
		if err := ecs.Add(e, s.sprite, map[string]any{
			"R": uint8(rand.Intn(256)), "G": uint8(rand.Intn(256)), "B": uint8(rand.Intn(256)), "A": uint8(255),
			"Size":   6 + rand.Float64()*10,
			"ZOrder": rand.Intn(8),
		}); err != nil {
			return err
		}
		return ecs.Add(e, s.health, map[string]any{"Current": 8.0, "Max": 8.0})
	})
}
