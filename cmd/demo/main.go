// Command demo is a small ebiten-driven host that owns a *ecs.World,
// calling World.Execute once per Update and drawing every entity
// carrying a Transform and a Sprite — the frame-driven harness the
// coroutine engine's Seconds/Frames waits and the scheduler's
// execute-phase model were built to run inside.
package main

import (
	"image/color"
	"log"
	"sort"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/solace-games/ecsframe/ecs"
	"github.com/solace-games/ecsframe/scripting"
)

type game struct {
	world     *ecs.World
	transform *ecs.ComponentType[Transform]
	sprite    *ecs.ComponentType[Sprite]
	renderQ   *ecs.Query
	lua       *scripting.Engine
	lastTick  time.Time
	frame     uint64
	total     float64
}

func newGame() (*game, error) {
	w := ecs.NewWorld(ecs.WorldConfig{MaxEntities: 4096, DefaultComponentStorage: ecs.DefaultStorage, FlushBudget: 8})

	transform, err := ecs.RegisterComponent(w, ecs.ComponentOptions[Transform]{Name: "transform"})
	if err != nil {
		return nil, err
	}
	sprite, err := ecs.RegisterComponent(w, ecs.ComponentOptions[Sprite]{Name: "sprite"})
	if err != nil {
		return nil, err
	}

	luaEngine := scripting.NewEngine()
	healthValidator, err := luaEngine.LoadValidator("validate", `
function validate(fields)
  if fields.Max <= 0 then
    return "health.Max must be positive"
  end
  return true
end
`)
	if err != nil {
		return nil, err
	}
	health, err := ecs.RegisterComponent(w, ecs.ComponentOptions[Health]{
		Name:    "health",
		Default: Health{Current: 8, Max: 8},
	})
	if err != nil {
		return nil, err
	}
	health.SetValidator(scripting.ValidatorFunc(healthValidator, health))

	if err := w.RegisterSystem(newSpawnerSystem(transform, sprite, health)); err != nil {
		return nil, err
	}
	if err := w.RegisterSystem(newMovementSystem(transform), ecs.After("spawner")); err != nil {
		return nil, err
	}
	if err := w.RegisterSystem(newHealthSystem(health, 1.0), ecs.After("spawner")); err != nil {
		return nil, err
	}

	if err := w.Initialize(); err != nil {
		return nil, err
	}

	g := &game{
		world:     w,
		transform: transform,
		sprite:    sprite,
		lua:       luaEngine,
		lastTick:  time.Now(),
	}
	g.renderQ = ecs.NewQueryBuilder().With(transform, sprite).Read(transform).Read(sprite).Build(w)
	return g, nil
}

func (g *game) Update() error {
	now := time.Now()
	delta := now.Sub(g.lastTick).Seconds()
	g.lastTick = now
	g.frame++
	g.total += delta
	return g.world.Execute(ecs.Time{Total: g.total, Delta: delta, Frame: g.frame})
}

type renderable struct {
	tr *Transform
	sp *Sprite
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{20, 20, 30, 255})

	entities := g.renderQ.Current()
	items := make([]renderable, 0, len(entities))
	for _, e := range entities {
		tr, err := ecs.Read(e, g.transform)
		if err != nil {
			continue
		}
		sp, err := ecs.Read(e, g.sprite)
		if err != nil {
			continue
		}
		items = append(items, renderable{tr: tr, sp: sp})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].sp.ZOrder < items[j].sp.ZOrder })

	for _, it := range items {
		c := color.RGBA{it.sp.R, it.sp.G, it.sp.B, it.sp.A}
		vector.DrawFilledCircle(screen, float32(it.tr.X), float32(it.tr.Y), float32(it.sp.Size), c, true)
	}

	ebitenutil.DebugPrintAt(screen, "ecsframe demo", 8, 8)
}

func (g *game) Layout(_, _ int) (int, int) { return screenWidth, screenHeight }

func main() {
	g, err := newGame()
	if err != nil {
		log.Fatal(err)
	}
	defer g.lua.Close()

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("ecsframe demo")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
