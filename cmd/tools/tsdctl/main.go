package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/config"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/modbus"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsd"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/util"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  tsdctl status|read|enable|disable|set|watch [flags]   talk Modbus to a node
  tsdctl cmd [flags]                                    publish a node command over MQTT

Endpoint flags (status/read/enable/disable/set/watch):
  --addr     (string)   TCP address of the node (default: localhost:1502)
  --port     (string)   serial port for RTU, e.g. /dev/ttyUSB0 (overrides --addr)
  --baud     (int)      RTU baud rate (default: 19200)
  --unit     (int)      Modbus unit id (default: 1)
  --timeout  (int)      request timeout in milliseconds (default: 500)

Flags for 'set':
  --value    (int)      raw control word to write (bit 0 is sampling enable)

Flags for 'watch':
  --every    (duration) poll interval (default: 1s)

Flags for 'cmd':
  --broker   (string)   MQTT broker address (default: tcp://localhost:1883)
  --prefix   (string)   topic prefix (default: tsd)
  --node     (string)   node name (required)
  --action   (string)   enable|disable|set|reset (required)
  --value    (int)      value for action=set

`)
	flag.PrintDefaults()
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Missing command (e.g. status)\n")
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "status":
		err = runStatus(args)
	case "read":
		err = runRead(args)
	case "enable":
		err = runSetSampling(args, true)
	case "disable":
		err = runSetSampling(args, false)
	case "set":
		err = runSet(args)
	case "watch":
		err = runWatch(args)
	case "cmd":
		err = runCmd(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

type endpointFlags struct {
	addr    *string
	port    *string
	baud    *int
	unit    *int
	timeout *int
}

func addEndpointFlags(fs *flag.FlagSet) *endpointFlags {
	return &endpointFlags{
		addr:    fs.String("addr", "localhost:1502", "TCP address of the node"),
		port:    fs.String("port", "", "serial port for RTU (overrides --addr)"),
		baud:    fs.Int("baud", 19200, "RTU baud rate"),
		unit:    fs.Int("unit", 1, "Modbus unit id"),
		timeout: fs.Int("timeout", 500, "request timeout in milliseconds"),
	}
}

func (f *endpointFlags) client() *modbus.NodeClient {
	cfg := config.CSRConfig{Type: "tcp", TCPAddr: *f.addr, TimeoutMs: *f.timeout}
	if *f.port != "" {
		cfg = config.CSRConfig{
			Type:      "rtu",
			Port:      *f.port,
			Baud:      *f.baud,
			DataBits:  8,
			StopBits:  1,
			Parity:    "N",
			TimeoutMs: *f.timeout,
		}
	}
	c := modbus.NewNodeClient("tsdctl", cfg)
	c.SetUnit(byte(*f.unit))
	return c
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	ep := addEndpointFlags(fs)
	fs.Usage = usage
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := ep.client()
	defer c.Close()
	ctx := context.Background()

	temp, word, err := c.ReadTemperature(ctx)
	if err != nil {
		return err
	}
	enabled, err := c.ReadControl(ctx)
	if err != nil {
		return err
	}
	coil, err := c.ReadSampling(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("temperature: %d C\n", temp)
	fmt.Printf("word:        0x%08X (%s)\n", word, util.BitString(word, 32))
	fmt.Printf("sampling:    %v (holding), %v (coil)\n", enabled, coil)
	return nil
}

func runRead(args []string) error {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	ep := addEndpointFlags(fs)
	fs.Usage = usage
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := ep.client()
	defer c.Close()

	temp, word, err := c.ReadTemperature(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%d C (0x%08X)\n", temp, word)
	return nil
}

func runSetSampling(args []string, on bool) error {
	fs := flag.NewFlagSet("sampling", flag.ExitOnError)
	ep := addEndpointFlags(fs)
	fs.Usage = usage
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := ep.client()
	defer c.Close()

	if err := c.SetSampling(context.Background(), on); err != nil {
		return err
	}
	fmt.Printf("sampling %v\n", on)
	return nil
}

func runSet(args []string) error {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	ep := addEndpointFlags(fs)
	value := fs.Int("value", -1, "raw control word to write (required)")
	fs.Usage = usage
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *value < 0 || *value > 0xFFFF {
		fmt.Fprintf(os.Stderr, "--value is required and must be 0..65535\n")
		usage()
		os.Exit(2)
	}

	c := ep.client()
	defer c.Close()

	if err := c.WriteControl(context.Background(), uint16(*value)); err != nil {
		return err
	}
	fmt.Printf("control word set to 0x%04X\n", *value)
	return nil
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	ep := addEndpointFlags(fs)
	every := fs.Duration("every", time.Second, "poll interval")
	fs.Usage = usage
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := ep.client()
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*every)
	defer ticker.Stop()

	for {
		temp, word, err := c.ReadTemperature(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read error: %v\n", err)
		} else {
			fmt.Printf("%s  %4d C  0x%08X\n", time.Now().Format(time.RFC3339), temp, word)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func runCmd(args []string) error {
	fs := flag.NewFlagSet("cmd", flag.ExitOnError)
	broker := fs.String("broker", "tcp://localhost:1883", "MQTT broker address")
	prefix := fs.String("prefix", "tsd", "topic prefix")
	node := fs.String("node", "", "node name (required)")
	action := fs.String("action", "", "enable|disable|set|reset (required)")
	value := fs.Int("value", 0, "value for action=set")
	fs.Usage = usage
	if err := fs.Parse(args); err != nil {
		return err
	}

	missing := false
	if *node == "" {
		fmt.Fprintf(os.Stderr, "--node is required\n")
		missing = true
	}
	switch *action {
	case "enable", "disable", "set", "reset":
	case "":
		fmt.Fprintf(os.Stderr, "--action is required\n")
		missing = true
	default:
		fmt.Fprintf(os.Stderr, "Unknown action: %s\n", *action)
		missing = true
	}
	if missing {
		usage()
		os.Exit(2)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(*broker)
	opts.SetClientID(fmt.Sprintf("tsdctl-%d", time.Now().UnixNano()))
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)

	payload := tsd.IncomingNodeCommand{
		ID:     fmt.Sprintf("ctl-%d", time.Now().UnixNano()),
		Node:   *node,
		Action: *action,
	}
	if *action == "set" {
		payload.Value = *value
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	topic := fmt.Sprintf("%s/%s/cmd", *prefix, *node)
	token := client.Publish(topic, 1, false, payloadBytes)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("MQTT publish: %w", token.Error())
	}

	fmt.Println("command published")
	return nil
}
