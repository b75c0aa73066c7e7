package main

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"github.com/womat/mbserver"
	"gopkg.in/yaml.v3"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/adc"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsense"
)

// SimConfig describes one serial line with a fleet of simulated
// temperature nodes hanging off it.
type SimConfig struct {
	Port     string          `yaml:"port"`
	Baud     int             `yaml:"baud"`
	DataBits int             `yaml:"dataBits"`
	StopBits int             `yaml:"stopBits"`
	Parity   string          `yaml:"parity"`
	REST     string          `yaml:"rest"`
	TickMs   int             `yaml:"tickMs"`
	Nodes    []SimNodeConfig `yaml:"nodes"`
}

type SimNodeConfig struct {
	Name    string  `yaml:"name"`
	Unit    uint8   `yaml:"unit"`
	Ambient float32 `yaml:"ambient"`
	Swing   float32 `yaml:"swing"`
	Noise   float32 `yaml:"noise"`
	Period  uint32  `yaml:"period"`
}

// SimNode is the runtime state behind one Modbus unit: a thermal model
// plus an optional pinned temperature set over the REST API.
type SimNode struct {
	Name string
	Unit uint8

	mu       sync.Mutex
	model    *adc.ThermalModel
	override *int8
}

func (n *SimNode) Sample() int8 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.override != nil {
		return *n.override
	}
	// clamp and quantize the model output like the conversion unit does
	return tsense.DecodeOffset(adc.Encode(n.model.Next()))
}

func (n *SimNode) SetOverride(t int8) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.override = &t
}

func (n *SimNode) ClearOverride() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.override = nil
}

func (n *SimNode) Overridden() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.override != nil
}

var (
	simulator  *mbserver.Server
	simNodes   = make(map[string]*SimNode) // node name => runtime state
	simNodesMu sync.RWMutex
)

func LoadSimConfig(path string) (*SimConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseSimConfig(raw)
}

func parseSimConfig(raw []byte) (*SimConfig, error) {
	var cfg SimConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if cfg.Port == "" {
		return nil, fmt.Errorf("port is required")
	}
	if len(cfg.Nodes) == 0 {
		return nil, fmt.Errorf("at least one node is required")
	}
	if cfg.Baud == 0 {
		cfg.Baud = 19200
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = 1
	}
	if cfg.Parity == "" {
		cfg.Parity = "N"
	}
	if cfg.REST == "" {
		cfg.REST = ":8080"
	}
	if cfg.TickMs == 0 {
		cfg.TickMs = 250
	}

	seenUnits := map[uint8]string{}
	seenNames := map[string]bool{}
	for _, node := range cfg.Nodes {
		if node.Name == "" {
			return nil, fmt.Errorf("node name is required")
		}
		if node.Unit == 0 {
			return nil, fmt.Errorf("node %s: unit must be 1..255", node.Name)
		}
		if other, dup := seenUnits[node.Unit]; dup {
			return nil, fmt.Errorf("node %s: unit %d already used by %s", node.Name, node.Unit, other)
		}
		if seenNames[node.Name] {
			return nil, fmt.Errorf("duplicate node name %s", node.Name)
		}
		seenUnits[node.Unit] = node.Name
		seenNames[node.Name] = true
	}
	return &cfg, nil
}

// StartRTUSim brings up the Modbus slave for every configured node and
// starts the model ticker. It does not block.
func StartRTUSim(cfg *SimConfig) error {
	s := mbserver.NewServer()
	simulator = s

	simNodesMu.Lock()
	for _, nodeCfg := range cfg.Nodes {
		id := nodeCfg.Unit
		if id != 1 {
			if err := s.NewDevice(id); err != nil {
				simNodesMu.Unlock()
				return fmt.Errorf("NewDevice(%d): %w", id, err)
			}
		}
		// sampling enabled out of reset
		s.Devices[id].Coils[0] = 1
		s.Devices[id].HoldingRegisters[0] = 1

		simNodes[nodeCfg.Name] = &SimNode{
			Name:  nodeCfg.Name,
			Unit:  id,
			model: adc.NewThermalModel(nodeCfg.Ambient, nodeCfg.Swing, nodeCfg.Noise, nodeCfg.Period),
		}
	}
	simNodesMu.Unlock()

	port, err := serial.Open(&serial.Config{
		Address:  cfg.Port,
		BaudRate: cfg.Baud,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  2 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("serial open %s: %w", cfg.Port, err)
	}

	if err := s.ListenRTU(port); err != nil {
		return fmt.Errorf("listenRTU: %w", err)
	}
	log.Printf("RTU simulator ready on %s (nodes: %d)", cfg.Port, len(cfg.Nodes))
	for _, nodeCfg := range cfg.Nodes {
		log.Printf("  - %s (unit %d, ambient %.1f C)", nodeCfg.Name, nodeCfg.Unit, nodeCfg.Ambient)
	}

	go runModelTicker(time.Duration(cfg.TickMs) * time.Millisecond)
	return nil
}

func runModelTicker(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		simNodesMu.RLock()
		for _, node := range simNodes {
			updateNode(node)
		}
		simNodesMu.RUnlock()
	}
}

// updateNode refreshes one unit's registers from its model. A disabled
// node keeps its last conversion, same as the real controller.
func updateNode(node *SimNode) {
	dev, ok := simulator.Devices[node.Unit]
	if !ok {
		return
	}

	// keep the holding-register view of the control word in step with the coil
	dev.HoldingRegisters[0] = uint16(dev.Coils[0] & 0x01)
	if dev.Coils[0]&0x01 == 0 {
		return
	}

	word := tsense.SignExtend(node.Sample())
	dev.InputRegisters[0] = uint16(word >> 16)
	dev.InputRegisters[1] = uint16(word)
}
