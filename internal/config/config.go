// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/logging"
)

/* =========================
   Types
   ========================= */

type NodeConfig struct {
	Node              string       `json:"node"`
	TickHz            int          `json:"tickHz"`
	IntervalTicks     uint32       `json:"intervalTicks"` // waiting ticks between conversions
	ClearTicks        uint32       `json:"clearTicks"`    // clear pulse width in ticks
	ReportTicks       uint32       `json:"reportTicks"`   // state report cadence in ticks
	HeartbeatInterval int          `json:"heartbeatInterval"`
	Debug             bool         `json:"debug"`
	CSR               CSRConfig    `json:"csr"`
	Sensor            SensorConfig `json:"sensor"`
}

type CSRConfig struct {
	Type      string `json:"type"` // "rtu" | "tcp"
	TCPAddr   string `json:"tcpAddr"`
	Port      string `json:"port"`
	Baud      int    `json:"baud"`
	DataBits  int    `json:"dataBits"`
	StopBits  int    `json:"stopBits"`
	Parity    string `json:"parity"`
	TimeoutMs int    `json:"timeoutMs"`
	Debug     bool   `json:"debug"`
}

type SensorConfig struct {
	ConversionTicks uint32  `json:"conversionTicks"`
	Ambient         float32 `json:"ambient"` // degrees C
	Swing           float32 `json:"swing"`
	Noise           float32 `json:"noise"`
	Period          uint32  `json:"period"` // swing period in samples
}

/* =========================
   Helpers
   ========================= */

func (c CSRConfig) Timeout() time.Duration { return time.Duration(c.TimeoutMs) * time.Millisecond }

func (c NodeConfig) TickPeriod() time.Duration {
	return time.Duration(int64(time.Second) / int64(c.TickHz))
}

func (c NodeConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatInterval) * time.Second
}

/* =========================
   Strict load + validate
   ========================= */

func LoadNodeConfig(path string) (*NodeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseNodeConfig(raw)
}

func LoadNodeConfigFromReader(r io.Reader) (*NodeConfig, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parseNodeConfig(raw)
}

func parseNodeConfig(raw []byte) (*NodeConfig, error) {
	clean := stripJSONComments(raw)

	dec := json.NewDecoder(strings.NewReader(string(clean)))
	dec.DisallowUnknownFields()

	var cfg NodeConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *NodeConfig) Validate() error {
	var errs multiErr

	/* Node */
	if strings.TrimSpace(c.Node) == "" {
		errs.add("node is required")
	}

	/* Tick source */
	if c.TickHz == 0 {
		c.TickHz = 1000
	}
	if c.TickHz < 1 || c.TickHz > 100000 {
		errs.add("tickHz must be 1..100000")
	}

	/* Sampling cadence */
	if c.IntervalTicks == 0 && c.TickHz > 0 {
		c.IntervalTicks = uint32(c.TickHz) // one conversion window per second
	}
	if c.ClearTicks == 0 {
		c.ClearTicks = 2
	}
	if c.ReportTicks == 0 && c.TickHz > 0 {
		c.ReportTicks = uint32(max(1, c.TickHz/4))
	}

	/* Heartbeat */
	if c.HeartbeatInterval < 0 {
		c.HeartbeatInterval = 60
	}
	if c.HeartbeatInterval == 0 {
		logging.Warn("heartbeatInterval=0 configured, heartbeats disabled")
	}

	/* CSR front end */
	switch strings.ToLower(c.CSR.Type) {
	case "tcp":
		if strings.TrimSpace(c.CSR.TCPAddr) == "" {
			errs.add("csr: tcpAddr is required for type=tcp")
		}
	case "rtu":
		if strings.TrimSpace(c.CSR.Port) == "" {
			errs.add("csr: port is required for type=rtu")
		}
		if c.CSR.Baud <= 0 {
			errs.add("csr: baud must be > 0 for type=rtu")
		}
		if c.CSR.DataBits == 0 {
			c.CSR.DataBits = 8
		}
		if c.CSR.StopBits == 0 {
			c.CSR.StopBits = 1
		}
		if c.CSR.Parity == "" {
			c.CSR.Parity = "N"
		}
		if !slices.Contains([]string{"N", "E", "O"}, strings.ToUpper(c.CSR.Parity)) {
			errs.add("csr: parity must be one of N,E,O")
		}
	default:
		errs.add("csr: type must be 'rtu' or 'tcp'")
	}
	if c.CSR.TimeoutMs <= 0 {
		c.CSR.TimeoutMs = 150
	}

	/* Sensor model */
	if c.Sensor.ConversionTicks == 0 {
		c.Sensor.ConversionTicks = 4
	}
	if c.Sensor.ConversionTicks >= c.IntervalTicks {
		errs.add("sensor.conversionTicks must be < intervalTicks, the conversion can never finish otherwise")
	}
	if c.Sensor.Swing < 0 || c.Sensor.Noise < 0 {
		errs.add("sensor: swing and noise cannot be negative")
	}
	if c.Sensor.Period == 0 {
		c.Sensor.Period = 3600
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

/* =========================
   Comment stripping + utils
   ========================= */

var (
	lineComments  = regexp.MustCompile(`(?m)//[^\n\r]*`)
	blockComments = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

func stripJSONComments(in []byte) []byte {
	text := string(in)
	text = blockComments.ReplaceAllString(text, "")
	text = lineComments.ReplaceAllString(text, "")
	return []byte(text)
}

// small multi-error
type multiErr []string

func (m *multiErr) add(s string)            { *m = append(*m, s) }
func (m *multiErr) addf(f string, a ...any) { *m = append(*m, fmt.Sprintf(f, a...)) }
func (m multiErr) Error() string            { return "validation errors: " + strings.Join(m, "; ") }
