package storage

// emptySlot marks an unused row in a CompactStore's id table.
const emptySlot = ^EntityID(0)

// CompactStore implements the "compact" strategy: a linear-scan table
// sized to capacity, intended for singleton or rare component types
// where a full sparse/packed index would be wasted space.
type CompactStore[T any] struct {
	table       []T
	ids         []EntityID
	firstEmpty  int
	maxEntities int
	elastic     bool
	gen         uint64
}

// NewCompact creates a compact store of the given capacity.
func NewCompact[T any](cfg Config) *CompactStore[T] {
	cap := cfg.Capacity
	if cap <= 0 {
		cap = 1
	}
	ids := make([]EntityID, cap)
	for i := range ids {
		ids[i] = emptySlot
	}
	return &CompactStore[T]{
		table:       make([]T, cap),
		ids:         ids,
		firstEmpty:  0,
		maxEntities: cfg.MaxEntities,
		elastic:     cfg.Elastic,
	}
}

func (c *CompactStore[T]) Acquire(entityID EntityID) (int32, error) {
	slot := -1
	for i := c.firstEmpty; i < len(c.ids); i++ {
		if c.ids[i] == emptySlot {
			slot = i
			break
		}
	}
	if slot == -1 {
		if !c.elastic {
			return 0, ErrCapacityExhausted
		}
		oldLen := len(c.ids)
		if err := c.grow(); err != nil {
			return 0, err
		}
		slot = oldLen
	}

	var zero T
	c.table[slot] = zero
	c.ids[slot] = entityID
	c.firstEmpty = slot + 1
	return int32(slot), nil
}

func (c *CompactStore[T]) grow() error {
	newCap := len(c.ids) * 2
	if newCap == 0 {
		newCap = 1
	}
	if c.maxEntities > 0 && newCap > c.maxEntities {
		newCap = c.maxEntities
	}
	if newCap <= len(c.ids) {
		return ErrCapacityExhausted
	}
	grownTable := make([]T, newCap)
	copy(grownTable, c.table)
	grownIDs := make([]EntityID, newCap)
	copy(grownIDs, c.ids)
	for i := len(c.ids); i < newCap; i++ {
		grownIDs[i] = emptySlot
	}
	c.table = grownTable
	c.ids = grownIDs
	c.gen++
	return nil
}

func (c *CompactStore[T]) Release(entityID EntityID) {
	slot, ok := c.Slot(entityID)
	if !ok {
		return
	}
	c.ids[slot] = emptySlot
	if int(slot) < c.firstEmpty {
		c.firstEmpty = int(slot)
	}
}

func (c *CompactStore[T]) Slot(entityID EntityID) (int32, bool) {
	for i, id := range c.ids {
		if id == entityID {
			return int32(i), true
		}
	}
	return 0, false
}

func (c *CompactStore[T]) At(slot int32) *T { return &c.table[slot] }

func (c *CompactStore[T]) Generation() uint64 { return c.gen }

func (c *CompactStore[T]) Strategy() Strategy { return Compact }
