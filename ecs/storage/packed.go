package storage

// PackedStore implements the "packed" strategy: a dense field array
// with a LIFO free list of released slots, growing geometrically up
// to maxEntities when elastic. index[entityID] holds slot+1 (0 means
// unallocated) so the narrow-width IndexArray never needs a signed
// "no value" sentinel.
type PackedStore[T any] struct {
	fields      []T
	freeList    *IndexArray
	index       *IndexArray // entityID -> slot+1
	capacity    int
	maxEntities int
	elastic     bool
	gen         uint64
}

// NewPacked creates a packed store. If cfg.Elastic is false, capacity
// never grows past cfg.Capacity.
func NewPacked[T any](cfg Config) *PackedStore[T] {
	cap := cfg.Capacity
	if cap <= 0 {
		cap = 1
	}
	return &PackedStore[T]{
		fields:      make([]T, 0, cap),
		freeList:    NewIndexArray(),
		index:       NewIndexArray(),
		capacity:    cap,
		maxEntities: cfg.MaxEntities,
		elastic:     cfg.Elastic,
	}
}

func (p *PackedStore[T]) indexAt(entityID EntityID) int32 {
	if int(entityID) >= p.index.Len() {
		return 0
	}
	return p.index.Get(int(entityID))
}

func (p *PackedStore[T]) Acquire(entityID EntityID) (int32, error) {
	for p.index.Len() <= int(entityID) {
		p.index.Append(0)
	}

	var slot int32
	if p.freeList.Len() > 0 {
		slot = p.freeList.Pop()
	} else {
		if len(p.fields) >= p.capacity {
			if !p.elastic {
				return 0, ErrCapacityExhausted
			}
			if err := p.grow(); err != nil {
				return 0, err
			}
		}
		slot = int32(len(p.fields))
		var zero T
		p.fields = append(p.fields, zero)
	}

	var zero T
	p.fields[slot] = zero
	p.index.Set(int(entityID), slot+1)
	return slot, nil
}

func (p *PackedStore[T]) grow() error {
	newCap := p.capacity * 2
	if newCap == 0 {
		newCap = 1
	}
	if p.maxEntities > 0 && newCap > p.maxEntities {
		newCap = p.maxEntities
	}
	if newCap <= p.capacity {
		return ErrCapacityExhausted
	}
	grown := make([]T, len(p.fields), newCap)
	copy(grown, p.fields)
	p.fields = grown
	p.capacity = newCap
	p.gen++
	return nil
}

func (p *PackedStore[T]) Release(entityID EntityID) {
	slot := p.indexAt(entityID)
	if slot == 0 {
		return
	}
	p.index.Set(int(entityID), 0)
	p.freeList.Append(slot - 1)
}

func (p *PackedStore[T]) Slot(entityID EntityID) (int32, bool) {
	slot := p.indexAt(entityID)
	if slot == 0 {
		return 0, false
	}
	return slot - 1, true
}

func (p *PackedStore[T]) At(slot int32) *T { return &p.fields[slot] }

func (p *PackedStore[T]) Generation() uint64 { return p.gen }

func (p *PackedStore[T]) Strategy() Strategy { return Packed }
