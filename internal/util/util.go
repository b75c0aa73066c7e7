package util

import (
	"strconv"
	"strings"
)

// Coercion helpers for loose JSON payloads where a field may arrive as a
// number, a string or a bool depending on the publisher.

func ToUint16(v any) uint16 {
	n := ToInt(v)
	if n < 0 {
		return 0
	}
	if n > 0xFFFF {
		return 0xFFFF
	}
	return uint16(n)
}

func ToInt(v any) int {
	switch x := v.(type) {
	case nil:
		return 0
	case bool:
		if x {
			return 1
		}
		return 0
	case int:
		return x
	case float64:
		return int(x)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func ToBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "on", "true", "yes":
			return true
		}
		return false
	}
	return ToInt(v) != 0
}

// BitString renders the low count bits of w MSB first, in nibble groups,
// e.g. BitString(0x85, 8) -> "1000_0101".
func BitString(w uint32, count int) string {
	if count <= 0 || count > 32 {
		count = 32
	}
	var s strings.Builder
	for i := count - 1; i >= 0; i-- {
		if w&(1<<uint(i)) != 0 {
			s.WriteString("1")
		} else {
			s.WriteString("0")
		}
		if i > 0 && i%4 == 0 {
			s.WriteString("_")
		}
	}
	return s.String()
}
