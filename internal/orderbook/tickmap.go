package orderbook

import (
	"math/big"
	"slices"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/tickmath"
)

type entry struct {
	tick  tickmath.Tick
	value *big.Int
}

// TickMap is an ordered tick -> amount mapping kept as a sorted slice.
// Lookups are binary searches; inserts shift the tail.
type TickMap struct {
	entries []entry
}

func NewTickMap() *TickMap {
	return &TickMap{}
}

func (m *TickMap) search(t tickmath.Tick) (int, bool) {
	return slices.BinarySearchFunc(m.entries, t, func(e entry, t tickmath.Tick) int {
		switch {
		case e.tick < t:
			return -1
		case e.tick > t:
			return 1
		}
		return 0
	})
}

func (m *TickMap) Len() int {
	return len(m.entries)
}

// Get returns the value stored at exactly t.
func (m *TickMap) Get(t tickmath.Tick) (*big.Int, bool) {
	i, ok := m.search(t)
	if !ok {
		return nil, false
	}
	return m.entries[i].value, true
}

func (m *TickMap) Has(t tickmath.Tick) bool {
	_, ok := m.search(t)
	return ok
}

// Set stores v at t, replacing any previous value. The map keeps v; callers
// must not mutate it afterwards.
func (m *TickMap) Set(t tickmath.Tick, v *big.Int) {
	i, ok := m.search(t)
	if ok {
		m.entries[i].value = v
		return
	}
	m.entries = slices.Insert(m.entries, i, entry{tick: t, value: v})
}

// Floor returns the greatest key <= t.
func (m *TickMap) Floor(t tickmath.Tick) (tickmath.Tick, *big.Int, bool) {
	i, ok := m.search(t)
	if ok {
		return m.entries[i].tick, m.entries[i].value, true
	}
	if i == 0 {
		return 0, nil, false
	}
	e := m.entries[i-1]
	return e.tick, e.value, true
}

// Ceiling returns the smallest key >= t.
func (m *TickMap) Ceiling(t tickmath.Tick) (tickmath.Tick, *big.Int, bool) {
	i, _ := m.search(t)
	if i == len(m.entries) {
		return 0, nil, false
	}
	e := m.entries[i]
	return e.tick, e.value, true
}

func (m *TickMap) Min() (tickmath.Tick, bool) {
	if len(m.entries) == 0 {
		return 0, false
	}
	return m.entries[0].tick, true
}

func (m *TickMap) Max() (tickmath.Tick, bool) {
	if len(m.entries) == 0 {
		return 0, false
	}
	return m.entries[len(m.entries)-1].tick, true
}

// ValueAt is the step function value at t: the value of the greatest key <= t,
// or zero below the first key.
func (m *TickMap) ValueAt(t tickmath.Tick) *big.Int {
	_, v, ok := m.Floor(t)
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// Ascend calls fn for every entry in increasing tick order until fn returns false.
func (m *TickMap) Ascend(fn func(t tickmath.Tick, v *big.Int) bool) {
	for _, e := range m.entries {
		if !fn(e.tick, e.value) {
			return
		}
	}
}

// Descend calls fn for every entry in decreasing tick order until fn returns false.
func (m *TickMap) Descend(fn func(t tickmath.Tick, v *big.Int) bool) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if !fn(m.entries[i].tick, m.entries[i].value) {
			return
		}
	}
}

// span returns the indexes [from, to) of the keys inside [low, high).
func (m *TickMap) span(low, high tickmath.Tick) (int, int) {
	from, _ := m.search(low)
	to, _ := m.search(high)
	return from, to
}

// Clone returns a deep copy.
func (m *TickMap) Clone() *TickMap {
	c := &TickMap{entries: make([]entry, len(m.entries))}
	for i, e := range m.entries {
		c.entries[i] = entry{tick: e.tick, value: new(big.Int).Set(e.value)}
	}
	return c
}

// Equal reports whether both maps hold the same keys with equal values.
func (m *TickMap) Equal(o *TickMap) bool {
	if m.Len() != o.Len() {
		return false
	}
	for i, e := range m.entries {
		if e.tick != o.entries[i].tick || e.value.Cmp(o.entries[i].value) != 0 {
			return false
		}
	}
	return true
}

// Ticks returns the keys in increasing order.
func (m *TickMap) Ticks() []tickmath.Tick {
	out := make([]tickmath.Tick, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.tick
	}
	return out
}
