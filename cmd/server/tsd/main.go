package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/adc"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/catalog"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/config"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/csr"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/engine"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/logging"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/messaging"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsense"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {

	mqttURL := getenv("MQTT_URL", "tcp://localhost:1883")
	path := getenv("TSD_CONFIG_PATH", "/etc/tsd/tsd-config.json")
	topicPrefix := getenv("TSD_TOPIC_PREFIX", "tsd")

	cfg, err := config.LoadNodeConfig(path)
	if err != nil {
		logging.Fatal("Node config error", "error", err)
	}
	logging.Init(cfg.Debug)

	logging.Info("Loaded config",
		"node", cfg.Node,
		"tickHz", cfg.TickHz,
		"intervalTicks", cfg.IntervalTicks,
		"csr", cfg.CSR.Type,
	)

	// Graceful shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Simulated conversion unit fed by the thermal model
	model := adc.NewThermalModel(cfg.Sensor.Ambient, cfg.Sensor.Swing, cfg.Sensor.Noise, cfg.Sensor.Period)
	unit := adc.NewSimUnit(model, cfg.Sensor.ConversionTicks)

	cat := catalog.NewNodeCatalog(cfg, topicPrefix)
	nodeBroker := messaging.NewNodeBroker(messaging.BrokerConfig{
		BrokerURL:        mqttURL,
		ClientName:       cfg.Node,
		TopicPrefix:      topicPrefix,
		ConnectTimeout:   10 * time.Second,
		PublishTimeout:   5 * time.Second,
		SubscribeTimeout: 5 * time.Second,
	}, cat.OnConnectPublish, cfg.Heartbeat())

	if err := nodeBroker.Connect(ctx); err != nil {
		logging.Warn("MQTT connect failed, continuing", "error", err)
	}
	defer nodeBroker.Close(ctx)

	eng := engine.New(engine.Config{
		Node:        cfg.Node,
		TickPeriod:  cfg.TickPeriod(),
		ReportTicks: cfg.ReportTicks,
		Params: tsense.Params{
			IntervalTicks: cfg.IntervalTicks,
			ClearTicks:    cfg.ClearTicks,
			Debug:         cfg.Debug,
		},
	}, unit, nodeBroker)
	go eng.Run(ctx)

	if err := nodeBroker.StartNodeSubscriber(ctx, cfg.Node, eng); err != nil {
		logging.Warn("command subscribe failed", "error", err)
	}

	front := csr.NewServer(cfg.CSR, eng)
	if err := front.Start(); err != nil {
		logging.Fatal("csr front end", "error", err)
	}
	defer front.Close()

	// Wait for SIGINT/SIGTERM; SIGHUP pulses the core reset line
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for s := range sigCh {
		if s == syscall.SIGHUP {
			logging.Info("SIGHUP received, pulsing reset")
			rctx, rcancel := context.WithTimeout(ctx, 2*time.Second)
			if err := eng.Reset(rctx); err != nil {
				logging.Error("reset failed", "error", err)
			}
			rcancel()
			continue
		}
		logging.Info("Shutting down", "signal", s)
		break
	}

	// Give the engine a moment to exit cleanly (it honors ctx)
	cancel()
	time.Sleep(200 * time.Millisecond)
	logging.Info("bye")
}
