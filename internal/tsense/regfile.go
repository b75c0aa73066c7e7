package tsense

// EnableBit is the only writable bit in the control word.
const EnableBit = 0x1

// regFile is the host-facing side of the core: one readable address
// returning the latest reading, one writable address controlling
// sampling. Wait stays asserted on every tick except the one that
// services a request.
type regFile struct {
	enable bool
}

func (r *regFile) reset() {
	r.enable = true // sampling runs by default
}

// service handles at most one request per tick. Reads win over
// writes; a write pending on a read tick is simply not processed and
// the host is expected to hold the line until a read-free tick.
func (r *regFile) service(read, write bool, writeData uint32, reading int8) (readData uint32, wait bool) {
	switch {
	case read:
		return SignExtend(reading), false
	case write:
		r.enable = writeData&EnableBit != 0
		return 0, false
	default:
		return 0, true
	}
}
