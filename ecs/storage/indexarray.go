package storage

// IndexArray is a growable array of small non-negative integers (slot
// indices or free-list entries) that automatically widens its backing
// store from int8 to int16 to int32 as the values it must hold grow,
// instead of committing to a 4-byte element up front. This mirrors the
// footprint-minimizing index arrays behind packed component storage:
// most worlds never exceed a few hundred live entities of any one
// component type, so the common case stays at one or two bytes per
// slot (one byte holds values up to 127, two bytes up to 32767).
type IndexArray struct {
	i8  []int8
	i16 []int16
	i32 []int32
	width int // 1, 2, or 4
}

const (
	maxInt8  = 1<<7 - 1
	maxInt16 = 1<<15 - 1
)

// NewIndexArray returns an empty index array.
func NewIndexArray() *IndexArray {
	return &IndexArray{width: 1}
}

// Len returns the number of stored elements.
func (a *IndexArray) Len() int {
	switch a.width {
	case 1:
		return len(a.i8)
	case 2:
		return len(a.i16)
	default:
		return len(a.i32)
	}
}

// Get returns the value at position i.
func (a *IndexArray) Get(i int) int32 {
	switch a.width {
	case 1:
		return int32(a.i8[i])
	case 2:
		return int32(a.i16[i])
	default:
		return a.i32[i]
	}
}

// Set overwrites the value at position i, widening the backing store
// first if v no longer fits the current width.
func (a *IndexArray) Set(i int, v int32) {
	a.ensureWidth(v)
	switch a.width {
	case 1:
		a.i8[i] = int8(v)
	case 2:
		a.i16[i] = int16(v)
	default:
		a.i32[i] = v
	}
}

// Append adds v to the end of the array, widening if necessary.
func (a *IndexArray) Append(v int32) {
	a.ensureWidth(v)
	switch a.width {
	case 1:
		a.i8 = append(a.i8, int8(v))
	case 2:
		a.i16 = append(a.i16, int16(v))
	default:
		a.i32 = append(a.i32, v)
	}
}

// Pop removes and returns the last element. The caller must ensure the
// array is non-empty.
func (a *IndexArray) Pop() int32 {
	n := a.Len() - 1
	v := a.Get(n)
	switch a.width {
	case 1:
		a.i8 = a.i8[:n]
	case 2:
		a.i16 = a.i16[:n]
	default:
		a.i32 = a.i32[:n]
	}
	return v
}

// Width reports the current element width in bytes (1, 2, or 4).
func (a *IndexArray) Width() int { return a.width }

func (a *IndexArray) ensureWidth(v int32) {
	needed := 1
	if v > maxInt16 || v < -maxInt16-1 {
		needed = 4
	} else if v > maxInt8 || v < -maxInt8-1 {
		needed = 2
	}
	if needed <= a.width {
		return
	}
	a.widenTo(needed)
}

func (a *IndexArray) widenTo(width int) {
	switch {
	case a.width == 1 && width >= 2:
		i16 := make([]int16, len(a.i8))
		for i, v := range a.i8 {
			i16[i] = int16(v)
		}
		a.i16 = i16
		a.i8 = nil
		a.width = 2
		if width == 4 {
			a.widenTo(4)
		}
	case a.width == 2 && width == 4:
		i32 := make([]int32, len(a.i16))
		for i, v := range a.i16 {
			i32[i] = int32(v)
		}
		a.i32 = i32
		a.i16 = nil
		a.width = 4
	}
}
