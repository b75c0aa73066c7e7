package catalog

import (
	"strings"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/config"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/csr"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/messaging"
)

// NodeCatalogMessage is published retained on <prefix>/<node>/catalog so
// consumers can discover the register map and sampling setup without
// out-of-band docs.
type NodeCatalogMessage struct {
	Node      string             `json:"node"`
	Interface InterfaceSummary   `json:"interface"`
	Sampling  SamplingSummary    `json:"sampling"`
	Registers []csr.RegisterInfo `json:"registers"`
}

type InterfaceSummary struct {
	Type    string `json:"type"`
	TCPAddr string `json:"tcpAddr,omitempty"`
	Port    string `json:"port,omitempty"`
	Baud    int    `json:"baud,omitempty"`
}

type SamplingSummary struct {
	TickHz        int    `json:"tickHz"`
	IntervalTicks uint32 `json:"intervalTicks"`
	ClearTicks    uint32 `json:"clearTicks"`
}

type Catalog struct {
	cfg   *config.NodeConfig
	topic string
}

func NewNodeCatalog(cfg *config.NodeConfig, topicPrefix string) *Catalog {
	cat := Catalog{
		cfg:   cfg,
		topic: strings.Join([]string{topicPrefix, cfg.Node, "catalog"}, "/"),
	}
	return &cat
}

func (catalog *Catalog) buildNodeCatalog() (*NodeCatalogMessage, error) {
	cfg := catalog.cfg

	iface := InterfaceSummary{Type: cfg.CSR.Type}
	switch cfg.CSR.Type {
	case "tcp":
		iface.TCPAddr = cfg.CSR.TCPAddr
	case "rtu":
		iface.Port = cfg.CSR.Port
		iface.Baud = cfg.CSR.Baud
	}

	return &NodeCatalogMessage{
		Node:      cfg.Node,
		Interface: iface,
		Sampling: SamplingSummary{
			TickHz:        cfg.TickHz,
			IntervalTicks: cfg.IntervalTicks,
			ClearTicks:    cfg.ClearTicks,
		},
		Registers: csr.Registers(),
	}, nil
}

// OnConnectPublish satisfies messaging.OnConnectPublisher so the catalog is
// (re)published retained every time the broker connection comes up.
func (catalog *Catalog) OnConnectPublish() (messaging.PublishRequest, error) {
	msg, err := catalog.buildNodeCatalog()
	if err != nil {
		return messaging.PublishRequest{}, err
	}
	return messaging.PublishRequest{
		Topic:   catalog.topic,
		Qos:     messaging.AtLeastOnce,
		Retain:  true,
		Payload: msg,
	}, nil
}
