package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToUint16(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want uint16
	}{
		{"nil", nil, 0},
		{"float", float64(5), 5},
		{"negative clamps", float64(-3), 0},
		{"overflow clamps", float64(70000), 0xFFFF},
		{"string", " 12 ", 12},
		{"bad string", "x7", 0},
		{"bool", true, 1},
		{"int", 42, 42},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ToUint16(c.in))
		})
	}
}

func TestToBool(t *testing.T) {
	assert.True(t, ToBool(true))
	assert.True(t, ToBool("on"))
	assert.True(t, ToBool("1"))
	assert.True(t, ToBool(float64(2)))
	assert.False(t, ToBool("off"))
	assert.False(t, ToBool(nil))
	assert.False(t, ToBool(float64(0)))
}

func TestBitString(t *testing.T) {
	assert.Equal(t, "1000_0101", BitString(0x85, 8))
	assert.Equal(t, "0000_0000_0000_0101", BitString(5, 16))
	assert.Equal(t, "1111_1111_1111_1111_1111_1111_1111_1111", BitString(0xFFFFFFFF, 32))
}
