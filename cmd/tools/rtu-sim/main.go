package main

import (
	"flag"
	"log"
	"os"
)

func main() {
	configPath := flag.String("config", os.Getenv("SIM_CONFIG_PATH"), "path to simulator YAML config")
	flag.Parse()
	if *configPath == "" {
		log.Fatal("missing --config (or SIM_CONFIG_PATH)")
	}

	cfg, err := LoadSimConfig(*configPath)
	if err != nil {
		log.Fatalf("sim config: %v", err)
	}

	if err := StartRTUSim(cfg); err != nil {
		log.Fatalf("rtu sim: %v", err)
	}

	log.Fatal(StartRestAPI(cfg.REST))
}
