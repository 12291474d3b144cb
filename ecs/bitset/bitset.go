// Package bitset implements the multi-word shape bitmask used to test
// entity composition in O(1). It has no dependency on the ecs package
// so it can be imported freely from storage, query, and the scheduler
// without import cycles.
package bitset

import "math/bits"

const wordBits = 64

// Set is a growable bitmask stored as a slice of 64-bit words. Unlike a
// single fixed-width integer, a Set has no hard limit on the number of
// bits it can represent; callers size it to componentCount/64 rounded
// up (the "shapeWordsPerEntity" quantity) once at world creation.
type Set struct {
	words []uint64
}

// New returns a Set with enough words to hold at least numBits bits.
func New(numBits int) Set {
	return Set{words: make([]uint64, WordsFor(numBits))}
}

// WordsFor returns the number of 64-bit words needed to hold numBits.
func WordsFor(numBits int) int {
	if numBits <= 0 {
		return 1
	}
	return (numBits + wordBits - 1) / wordBits
}

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	words := make([]uint64, len(s.words))
	copy(words, s.words)
	return Set{words: words}
}

// CopyFrom overwrites the receiver's bits with src's, growing if needed.
func (s *Set) CopyFrom(src Set) {
	if cap(s.words) < len(src.words) {
		s.words = make([]uint64, len(src.words))
	} else {
		s.words = s.words[:len(src.words)]
	}
	copy(s.words, src.words)
}

// Set marks bit i as present.
func (s *Set) Set(i int) {
	s.grow(i)
	s.words[i/wordBits] |= 1 << uint(i%wordBits)
}

// Clear marks bit i as absent.
func (s *Set) Clear(i int) {
	if i/wordBits >= len(s.words) {
		return
	}
	s.words[i/wordBits] &^= 1 << uint(i%wordBits)
}

// Has reports whether bit i is present.
func (s Set) Has(i int) bool {
	w := i / wordBits
	if w >= len(s.words) {
		return false
	}
	return s.words[w]&(1<<uint(i%wordBits)) != 0
}

func (s *Set) grow(i int) {
	need := i/wordBits + 1
	if need <= len(s.words) {
		return
	}
	grown := make([]uint64, need)
	copy(grown, s.words)
	s.words = grown
}

// HasAll reports whether every bit set in mask is also set in s.
func (s Set) HasAll(mask Set) bool {
	for w, m := range mask.words {
		if w >= len(s.words) {
			if m != 0 {
				return false
			}
			continue
		}
		if s.words[w]&m != m {
			return false
		}
	}
	return true
}

// HasAny reports whether s shares at least one bit with mask.
func (s Set) HasAny(mask Set) bool {
	for w, m := range mask.words {
		if w >= len(s.words) {
			continue
		}
		if s.words[w]&m != 0 {
			return true
		}
	}
	return false
}

// HasNone reports whether s shares no bits with mask.
func (s Set) HasNone(mask Set) bool { return !s.HasAny(mask) }

// Count returns the number of set bits.
func (s Set) Count() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// IsEmpty reports whether no bits are set.
func (s Set) IsEmpty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether s and other have the same bits set.
func (s Set) Equal(other Set) bool {
	n := len(s.words)
	if len(other.words) > n {
		n = len(other.words)
	}
	for i := 0; i < n; i++ {
		var a, b uint64
		if i < len(s.words) {
			a = s.words[i]
		}
		if i < len(other.words) {
			b = other.words[i]
		}
		if a != b {
			return false
		}
	}
	return true
}
