package ecs

import (
	"testing"

	"github.com/solace-games/ecsframe/ecs/ecserror"
	"github.com/solace-games/ecsframe/ecs/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct {
	X, Y float64
}

type owner struct {
	Target EntityId `ecs:"ref"`
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	return NewWorld(DefaultWorldConfig())
}

func TestAddHasRemove_RoundTrip(t *testing.T) {
	for _, strategy := range []string{"sparse", "packed", "compact"} {
		t.Run(strategy, func(t *testing.T) {
			w := newTestWorld(t)
			var opts ComponentOptions[position]
			opts.Name = "position"
			switch strategy {
			case "packed":
				opts.Storage = storage.Packed
				opts.Capacity = 4
			case "compact":
				opts.Storage = storage.Compact
				opts.Capacity = 4
			}
			pos, err := RegisterComponent(w, opts)
			require.NoError(t, err)

			e, err := w.CreateEntity()
			require.NoError(t, err)
			assert.False(t, e.Has(pos))

			require.NoError(t, Add(e, pos, map[string]any{"X": 3.0, "Y": 4.0}))
			assert.True(t, e.Has(pos))

			v, err := Read(e, pos)
			require.NoError(t, err)
			assert.Equal(t, position{3, 4}, *v)

			require.NoError(t, e.Remove(pos))
			assert.False(t, e.Has(pos))
		})
	}
}

func TestAdd_RejectsUnknownField(t *testing.T) {
	w := newTestWorld(t)
	pos, err := RegisterComponent(w, ComponentOptions[position]{Name: "position"})
	require.NoError(t, err)
	e, err := w.CreateEntity()
	require.NoError(t, err)

	err = Add(e, pos, map[string]any{"Z": 1})
	require.Error(t, err)
	assert.True(t, ecserror.IsCheck(err))
	assert.False(t, e.Has(pos), "a rejected add must not attach the component")
}

func TestAdd_AlreadyPresent(t *testing.T) {
	w := newTestWorld(t)
	pos, err := RegisterComponent(w, ComponentOptions[position]{Name: "position"})
	require.NoError(t, err)
	e, err := w.CreateEntity()
	require.NoError(t, err)
	require.NoError(t, Add(e, pos, nil))

	err = Add(e, pos, nil)
	require.Error(t, err)
	var ecsErr *ecserror.Error
	require.ErrorAs(t, err, &ecsErr)
	assert.Equal(t, ecserror.CodeAlreadyPresent, ecsErr.Code)
}

func TestValidator_RejectsAddAndLeavesEntityUnchanged(t *testing.T) {
	w := newTestWorld(t)
	var pos *ComponentType[position]
	pos, err := RegisterComponent(w, ComponentOptions[position]{
		Name: "position",
		Validate: func(e Entity) error {
			v, err := Read(e, pos)
			if err != nil {
				return err
			}
			if v.X < 0 {
				return ecserror.Check(ecserror.CodeConflictingProps, "x must be non-negative")
			}
			return nil
		},
	})
	require.NoError(t, err)

	e, err := w.CreateEntity()
	require.NoError(t, err)

	err = Add(e, pos, map[string]any{"X": -1.0})
	require.Error(t, err)
	assert.False(t, e.Has(pos), "validator rejection must roll back the attach")
}

func TestValidator_DeniesNestedAccess(t *testing.T) {
	w := newTestWorld(t)
	var pos *ComponentType[position]
	var nestedErr error
	pos, err := RegisterComponent(w, ComponentOptions[position]{
		Name: "position",
		Validate: func(e Entity) error {
			_, nestedErr = Write(e, pos)
			return nil
		},
	})
	require.NoError(t, err)

	e, err := w.CreateEntity()
	require.NoError(t, err)
	require.NoError(t, Add(e, pos, nil))

	require.Error(t, nestedErr, "a validator must not get write entitlement while running")
	assert.True(t, ecserror.IsCheck(nestedErr))
}

func TestResurrectionWindow_PreservesDataBeforeSweep(t *testing.T) {
	w := newTestWorld(t)
	pos, err := RegisterComponent(w, ComponentOptions[position]{Name: "position"})
	require.NoError(t, err)

	e, err := w.CreateEntity()
	require.NoError(t, err)
	require.NoError(t, Add(e, pos, map[string]any{"X": 9.0, "Y": 9.0}))
	require.NoError(t, e.Remove(pos))

	// Re-add within the same sweep window, overriding only Y.
	require.NoError(t, Add(e, pos, map[string]any{"Y": 1.0}))
	v, err := Read(e, pos)
	require.NoError(t, err)
	assert.Equal(t, 9.0, v.X, "resurrection before sweep should preserve the prior field value")
	assert.Equal(t, 1.0, v.Y)
}

func TestResurrectionWindow_SweptSlotStartsFresh(t *testing.T) {
	w := newTestWorld(t)
	pos, err := RegisterComponent(w, ComponentOptions[position]{Name: "position", Default: position{X: -1, Y: -1}})
	require.NoError(t, err)

	e, err := w.CreateEntity()
	require.NoError(t, err)
	require.NoError(t, Add(e, pos, map[string]any{"X": 9.0, "Y": 9.0}))
	require.NoError(t, e.Remove(pos))

	w.sweepReleases()

	require.NoError(t, Add(e, pos, map[string]any{"Y": 1.0}))
	v, err := Read(e, pos)
	require.NoError(t, err)
	assert.Equal(t, -1.0, v.X, "after a sweep the slot must re-acquire from defaults, not stale data")
	assert.Equal(t, 1.0, v.Y)
}

func TestRefIntegrity_ClearedOnTargetDelete(t *testing.T) {
	w := newTestWorld(t)
	own, err := RegisterComponent(w, ComponentOptions[owner]{Name: "owner"})
	require.NoError(t, err)

	target, err := w.CreateEntity()
	require.NoError(t, err)
	holder, err := w.CreateEntity()
	require.NoError(t, err)
	require.NoError(t, Add(holder, own, map[string]any{"Target": target.ID()}))

	require.NoError(t, target.Delete())
	require.NoError(t, w.flush())

	v, err := Read(holder, own)
	require.NoError(t, err)
	assert.Equal(t, InvalidEntityId, v.Target, "deleting the referenced entity must null the ref field")
}

func TestHoldRelease_PinsIDAcrossDelete(t *testing.T) {
	w := newTestWorld(t)
	e, err := w.CreateEntity()
	require.NoError(t, err)
	id := e.ID()

	holder, err := e.Hold()
	require.NoError(t, err)

	require.NoError(t, e.Delete())
	require.NoError(t, w.flush())

	assert.Equal(t, uint32(1), w.heldCount[id], "the held id must not be recycled while pinned")

	holder.Release()
	assert.Equal(t, uint32(0), w.heldCount[id])
}

func TestBuild_RollsBackOnError(t *testing.T) {
	w := newTestWorld(t)
	pos, err := RegisterComponent(w, ComponentOptions[position]{Name: "position"})
	require.NoError(t, err)

	var created Entity
	err = w.Build(func(w *World) error {
		e, err := w.CreateEntity()
		if err != nil {
			return err
		}
		created = e
		if err := Add(e, pos, nil); err != nil {
			return err
		}
		return ecserror.Check(ecserror.CodeConflictingProps, "force rollback")
	})

	require.Error(t, err)
	assert.False(t, created.IsValid(), "every entity created during a failed Build must be rolled back")
}

func TestBuild_CommitsOnSuccess(t *testing.T) {
	w := newTestWorld(t)
	pos, err := RegisterComponent(w, ComponentOptions[position]{Name: "position"})
	require.NoError(t, err)

	var created Entity
	err = w.Build(func(w *World) error {
		e, err := w.CreateEntity()
		if err != nil {
			return err
		}
		created = e
		return Add(e, pos, map[string]any{"X": 1.0})
	})

	require.NoError(t, err)
	assert.True(t, created.IsValid())
	assert.True(t, created.Has(pos))
}
