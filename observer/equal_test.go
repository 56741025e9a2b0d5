package observer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasChanged(t *testing.T) {
	obj := NewObject()
	negZero := math.Copysign(0, -1)
	slice := []int{1, 2}

	cases := []struct {
		name    string
		x, y    any
		changed bool
	}{
		{"same int", 1, 1, false},
		{"different int", 1, 2, true},
		{"same string", "a", "a", false},
		{"NaN is unchanged", math.NaN(), math.NaN(), false},
		{"NaN to number", math.NaN(), 1.0, true},
		{"signed zeros are the same", 0.0, negZero, false},
		{"same object", obj, obj, false},
		{"different object", obj, NewObject(), true},
		{"nil to nil", nil, nil, false},
		{"nil to typed nil", nil, (*Object)(nil), false},
		{"int vs int64", 1, int64(1), true},
		{"same slice", slice, slice, false},
		{"copied slice", slice, append([]int(nil), slice...), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.changed, hasChanged(tc.x, tc.y))
		})
	}
}

func TestIsObject(t *testing.T) {
	assert.True(t, isObject(NewObject()))
	assert.True(t, isObject(NewArray()))
	assert.True(t, isObject(map[string]any{}))
	assert.False(t, isObject(1))
	assert.False(t, isObject("x"))
	assert.False(t, isObject(nil))
}
