package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/catalog"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsd"
)

type NodeInfo struct {
	TickHz        int
	IntervalTicks uint32
}

var nodeMap = map[string]NodeInfo{}

func readCatalogMessage(payload []byte) (string, error) {
	var catalogMsg catalog.NodeCatalogMessage

	// remember the tick rate so state lines can show wall-clock uptime
	if err := json.Unmarshal(payload, &catalogMsg); err == nil {
		nodeMap[catalogMsg.Node] = NodeInfo{
			TickHz:        catalogMsg.Sampling.TickHz,
			IntervalTicks: catalogMsg.Sampling.IntervalTicks,
		}
	}
	out, err := json.Marshal(catalogMsg)
	return string(out), err
}

func formatStateMessage(payload []byte) (string, error) {
	var st tsd.NodeState
	if err := json.Unmarshal(payload, &st); err != nil {
		// Not a state object; print as is
		return string(payload), nil
	}

	line := fmt.Sprintf("%s %4d C word=0x%08X sampling=%v status=%s tick=%d",
		st.Timestamp.Format(time.RFC3339), st.Temperature, st.Word, st.Enabled, st.Status, st.Ticks)

	if info, ok := nodeMap[st.Node]; ok && info.TickHz > 0 {
		uptime := time.Duration(st.Ticks/uint64(info.TickHz)) * time.Second
		line += fmt.Sprintf(" uptime=%s", uptime)
	}
	return line, nil
}

func main() {
	var broker, topic string
	flag.StringVar(&broker, "broker", "tcp://localhost:1883", "MQTT broker address")
	flag.StringVar(&topic, "topic", "tsd/#", "MQTT topic filter")
	flag.Parse()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(fmt.Sprintf("tsd-monitor-%d", time.Now().UnixNano()))
	opts.SetDefaultPublishHandler(func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		topic := msg.Topic()
		switch {
		case strings.HasSuffix(topic, "catalog"):
			line, err := readCatalogMessage(payload)
			if err != nil {
				fmt.Printf("%s %s (error: %v)\n", topic, string(payload), err)
				return
			}
			fmt.Printf("%s %s\n", topic, line)

		case strings.HasSuffix(topic, "state"):
			line, err := formatStateMessage(payload)
			if err != nil {
				fmt.Printf("%s %s (error: %v)\n", topic, string(payload), err)
				return
			}
			fmt.Printf("%s %s\n", topic, line)

		default:
			fmt.Printf("%s %s\n", topic, string(payload))
		}
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal(token.Error())
	}
	fmt.Printf("Connected to MQTT broker %s, subscribing to %s...\n", broker, topic)

	if token := client.Subscribe(topic, 0, nil); token.Wait() && token.Error() != nil {
		log.Fatal(token.Error())
	}

	// Wait for interrupt
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()
	<-ctx.Done()
	client.Disconnect(200)
}
