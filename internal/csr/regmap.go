package csr

// Register map exposed to hosts. The response word spans two input
// registers in big-endian register order; the control word is
// reachable both as holding register 0 and as coil 0.
const (
	RegTemperature      = 0 // first input register of the response word
	RegTemperatureWords = 2 // input registers 0..1
	RegControl          = 0 // holding register 0 / coil 0, bit 0 = sampling enable
)

type RegisterInfo struct {
	Name    string `json:"name"`
	Address uint16 `json:"address"`
	Table   string `json:"table"` // "input", "holding", "coil"
	Words   uint16 `json:"words"`
	Access  string `json:"access"` // "r", "rw"
}

// Registers describes the map, in the form published in the node catalog.
func Registers() []RegisterInfo {
	return []RegisterInfo{
		{Name: "temperature", Address: RegTemperature, Table: "input", Words: RegTemperatureWords, Access: "r"},
		{Name: "control", Address: RegControl, Table: "holding", Words: 1, Access: "rw"},
		{Name: "sampling", Address: RegControl, Table: "coil", Words: 1, Access: "rw"},
	}
}
