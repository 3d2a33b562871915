package orderbook

import (
	"math/big"
	"testing"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/tickmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTickMap(values map[tickmath.Tick]int64) *TickMap {
	m := NewTickMap()
	for t, v := range values {
		m.Set(t, big.NewInt(v))
	}
	return m
}

func TestTickMapKeepsOrder(t *testing.T) {
	m := buildTickMap(map[tickmath.Tick]int64{30: 3, -10: 1, 10: 2, 887272: 0, -887272: 9})
	assert.Equal(t, []tickmath.Tick{-887272, -10, 10, 30, 887272}, m.Ticks())

	m.Set(10, big.NewInt(7))
	v, ok := m.Get(10)
	require.True(t, ok)
	assert.Equal(t, int64(7), v.Int64())
	assert.Equal(t, 5, m.Len())

	lo, ok := m.Min()
	require.True(t, ok)
	assert.Equal(t, tickmath.Tick(-887272), lo)
	hi, ok := m.Max()
	require.True(t, ok)
	assert.Equal(t, tickmath.Tick(887272), hi)
}

func TestTickMapFloorCeiling(t *testing.T) {
	m := buildTickMap(map[tickmath.Tick]int64{-10: 1, 10: 2, 30: 3})

	tests := []struct {
		name    string
		tick    tickmath.Tick
		floor   tickmath.Tick
		floorOK bool
		ceil    tickmath.Tick
		ceilOK  bool
	}{
		{name: "Below all", tick: -20, floorOK: false, ceil: -10, ceilOK: true},
		{name: "On key", tick: 10, floor: 10, floorOK: true, ceil: 10, ceilOK: true},
		{name: "Between keys", tick: 11, floor: 10, floorOK: true, ceil: 30, ceilOK: true},
		{name: "Above all", tick: 31, floor: 30, floorOK: true, ceilOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _, ok := m.Floor(tt.tick)
			assert.Equal(t, tt.floorOK, ok)
			if ok {
				assert.Equal(t, tt.floor, f)
			}
			c, _, ok := m.Ceiling(tt.tick)
			assert.Equal(t, tt.ceilOK, ok)
			if ok {
				assert.Equal(t, tt.ceil, c)
			}
		})
	}
}

func TestTickMapValueAt(t *testing.T) {
	m := buildTickMap(map[tickmath.Tick]int64{-10: 1, 10: 2})

	assert.Equal(t, int64(0), m.ValueAt(-11).Int64())
	assert.Equal(t, int64(1), m.ValueAt(-10).Int64())
	assert.Equal(t, int64(1), m.ValueAt(9).Int64())
	assert.Equal(t, int64(2), m.ValueAt(10).Int64())
	assert.Equal(t, int64(2), m.ValueAt(887272).Int64())

	// returned values are copies
	m.ValueAt(10).SetInt64(99)
	v, _ := m.Get(10)
	assert.Equal(t, int64(2), v.Int64())
}

func TestTickMapCloneIsDeep(t *testing.T) {
	m := buildTickMap(map[tickmath.Tick]int64{1: 1, 2: 2})
	c := m.Clone()
	require.True(t, m.Equal(c))

	v, _ := c.Get(1)
	v.SetInt64(42)
	c.Set(3, big.NewInt(3))

	orig, _ := m.Get(1)
	assert.Equal(t, int64(1), orig.Int64())
	assert.Equal(t, 2, m.Len())
	assert.False(t, m.Equal(c))
}

func TestTickMapIteration(t *testing.T) {
	m := buildTickMap(map[tickmath.Tick]int64{1: 1, 2: 2, 3: 3})

	var up, down []tickmath.Tick
	m.Ascend(func(t tickmath.Tick, _ *big.Int) bool {
		up = append(up, t)
		return true
	})
	m.Descend(func(t tickmath.Tick, _ *big.Int) bool {
		down = append(down, t)
		return t != 2
	})

	assert.Equal(t, []tickmath.Tick{1, 2, 3}, up)
	assert.Equal(t, []tickmath.Tick{3, 2}, down)
}
