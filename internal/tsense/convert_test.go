package tsense

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeOffset(t *testing.T) {
	cases := []struct {
		raw  uint8
		want int8
	}{
		{0b1000_0101, 5},
		{0b0111_1111, -1},
		{0b1000_0000, 0},
		{0x00, -128},
		{0xFF, 127},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DecodeOffset(c.raw), "raw 0x%02x", c.raw)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for i := 0; i < 256; i++ {
		raw := uint8(i)
		assert.Equal(t, raw, EncodeOffset(DecodeOffset(raw)))
	}
}

func TestSignExtend(t *testing.T) {
	assert.Equal(t, uint32(0x00000005), SignExtend(5))
	assert.Equal(t, uint32(0xFFFFFFFF), SignExtend(-1))
	assert.Equal(t, uint32(0xFFFFFF80), SignExtend(-128))
	assert.Equal(t, uint32(0x0000007F), SignExtend(127))
	assert.Zero(t, SignExtend(0))
}
