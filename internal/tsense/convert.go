package tsense

// The conversion unit reports temperature with the sign bit inverted:
// flipping the raw MSB and keeping the low seven bits recovers the
// ordinary signed byte. 0b1000_0101 decodes to +5, 0b0111_1111 to -1.

const signBit = 0x80

// DecodeOffset converts a raw conversion-unit byte to a signed reading.
func DecodeOffset(raw uint8) int8 {
	return int8(raw ^ signBit)
}

// EncodeOffset is the inverse of DecodeOffset; the simulated unit and
// the fleet simulator use it to produce raw bytes.
func EncodeOffset(t int8) uint8 {
	return uint8(t) ^ signBit
}

// SignExtend widens a reading into the 32-bit response word, so hosts
// reading the word as a signed integer of any width get the value.
func SignExtend(t int8) uint32 {
	return uint32(int32(t))
}
