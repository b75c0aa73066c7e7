// Package modbus holds the host-side Modbus master used by the CLI
// tools to talk to a controller's register interface.
package modbus

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/goburrow/modbus"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/config"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/csr"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/logging"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsense"
)

// NodeClient is a Modbus master for one controller endpoint. The
// connection is set up lazily; transient transport errors trigger one
// reconnect and retry, with exponential backoff between connection
// attempts.
type NodeClient struct {
	cfg  config.CSRConfig
	node string
	unit byte

	client     modbus.Client
	rtuHandler *modbus.RTUClientHandler
	tcpHandler *modbus.TCPClientHandler

	connOK      bool
	backoff     time.Duration
	backoffMin  time.Duration
	backoffMax  time.Duration
	lastConnErr error
}

func NewNodeClient(node string, cfg config.CSRConfig) *NodeClient {
	return &NodeClient{
		cfg:        cfg,
		node:       node,
		unit:       1,
		backoff:    0, // means "ready to try now"
		backoffMin: 200 * time.Millisecond,
		backoffMax: 5 * time.Second,
	}
}

// SetUnit selects the slave id used for subsequent requests.
func (c *NodeClient) SetUnit(id byte) {
	c.unit = id
	c.setSlave(id)
}

func (c *NodeClient) ensureConnected(ctx context.Context) error {
	if c.connOK {
		return nil
	}
	if c.backoff > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff):
		}
	}

	c.Close() // cleanup any stale

	switch strings.ToLower(c.cfg.Type) {
	case "rtu":
		h := modbus.NewRTUClientHandler(c.cfg.Port)
		h.BaudRate = c.cfg.Baud
		h.DataBits = c.cfg.DataBits
		h.Parity = c.cfg.Parity
		h.StopBits = c.cfg.StopBits
		h.SlaveId = c.unit
		h.Timeout = c.cfg.Timeout()
		if c.cfg.Debug {
			h.Logger = logging.WrapSlog("node", c.node)
		}
		if err := h.Connect(); err != nil {
			c.bumpBackoff(err)
			return err
		}
		c.rtuHandler = h
		c.client = modbus.NewClient(h)

	case "tcp":
		h := modbus.NewTCPClientHandler(c.cfg.TCPAddr)
		h.SlaveId = c.unit
		h.Timeout = c.cfg.Timeout()
		if c.cfg.Debug {
			h.Logger = logging.WrapSlog("node", c.node)
		}
		if err := h.Connect(); err != nil {
			c.bumpBackoff(err)
			return err
		}
		c.tcpHandler = h
		c.client = modbus.NewClient(h)

	default:
		return fmt.Errorf("unknown csr type %q", c.cfg.Type)
	}

	c.connOK = true
	c.backoff = 0
	c.lastConnErr = nil
	return nil
}

func (c *NodeClient) bumpBackoff(err error) {
	c.connOK = false
	c.lastConnErr = err
	if c.backoff == 0 {
		c.backoff = c.backoffMin
	} else {
		c.backoff *= 2
		if c.backoff > c.backoffMax {
			c.backoff = c.backoffMax
		}
	}
}

func (c *NodeClient) setSlave(id byte) {
	if c.rtuHandler != nil {
		c.rtuHandler.SlaveId = id
	}
	if c.tcpHandler != nil {
		c.tcpHandler.SlaveId = id
	}
}

func (c *NodeClient) Close() {
	if c.rtuHandler != nil {
		_ = c.rtuHandler.Close()
		c.rtuHandler = nil
	}
	if c.tcpHandler != nil {
		_ = c.tcpHandler.Close()
		c.tcpHandler = nil
	}
	c.connOK = false
}

func (c *NodeClient) withClient(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	v, err := fn()
	if err == nil {
		return v, nil
	}
	logging.Warn("withClient error, retrying", "node", c.node, "error", err)
	if isTransient(err) {
		c.bumpBackoff(err)
		if err2 := c.ensureConnected(ctx); err2 == nil {
			return fn()
		}
	}
	return nil, err
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "connection") ||
		strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "reset") ||
		strings.Contains(s, "closed") ||
		strings.Contains(s, "i/o") ||
		strings.Contains(s, "timeout") {
		return true
	}
	return false
}

// ReadTemperature reads the temperature word (FC4, both registers) and
// returns the decoded Celsius value alongside the raw word.
func (c *NodeClient) ReadTemperature(ctx context.Context) (int8, uint32, error) {
	data, err := c.withClient(ctx, func() ([]byte, error) {
		return c.client.ReadInputRegisters(csr.RegTemperature, csr.RegTemperatureWords)
	})
	if err != nil {
		return 0, 0, err
	}
	if len(data) < 2*csr.RegTemperatureWords {
		return 0, 0, fmt.Errorf("short temperature response: %d bytes", len(data))
	}
	word := binary.BigEndian.Uint32(data)
	return int8(word), word, nil
}

// ReadControl reads the control register (FC3) and reports whether the
// enable bit is set.
func (c *NodeClient) ReadControl(ctx context.Context) (bool, error) {
	data, err := c.withClient(ctx, func() ([]byte, error) {
		return c.client.ReadHoldingRegisters(csr.RegControl, 1)
	})
	if err != nil {
		return false, err
	}
	if len(data) < 2 {
		return false, fmt.Errorf("short control response: %d bytes", len(data))
	}
	return binary.BigEndian.Uint16(data)&tsense.EnableBit != 0, nil
}

// ReadSampling reads the sampling enable coil (FC1).
func (c *NodeClient) ReadSampling(ctx context.Context) (bool, error) {
	data, err := c.withClient(ctx, func() ([]byte, error) {
		// FC1, qty=1 returns 1 byte; bit0 is the coil
		return c.client.ReadCoils(csr.RegControl, 1)
	})
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, fmt.Errorf("empty coil response")
	}
	return (data[0] & 0x01) != 0, nil
}

// SetSampling drives the sampling enable coil (FC5).
func (c *NodeClient) SetSampling(ctx context.Context, on bool) error {
	_, err := c.withClient(ctx, func() ([]byte, error) {
		val := uint16(0)
		if on {
			val = 0xFF00
		}
		return c.client.WriteSingleCoil(csr.RegControl, val)
	})
	return err
}

// WriteControl writes a raw control word (FC6). The node only honors
// the enable bit, other bits are ignored.
func (c *NodeClient) WriteControl(ctx context.Context, value uint16) error {
	_, err := c.withClient(ctx, func() ([]byte, error) {
		return c.client.WriteSingleRegister(csr.RegControl, value)
	})
	return err
}
