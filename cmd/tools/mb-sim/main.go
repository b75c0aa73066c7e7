package main

// Minimal standalone Modbus TCP node: serves the tsd register map with
// a fixed temperature, for quick client smoke tests without a daemon.

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/tbrandon/mbserver"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsense"
)

func main() {
	addr := os.Getenv("MB_LISTEN_ADDR")
	if addr == "" {
		addr = ":1502"
	}
	temp := int8(21)
	if v := os.Getenv("MB_TEMP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < -128 || n > 127 {
			log.Fatalf("MB_TEMP must be -128..127, got %q", v)
		}
		temp = int8(n)
	}

	srv := mbserver.NewServer()
	word := tsense.SignExtend(temp)
	srv.InputRegisters[0] = uint16(word >> 16)
	srv.InputRegisters[1] = uint16(word)
	srv.HoldingRegisters[0] = 1 // sampling enabled
	srv.Coils[0] = 1

	if err := srv.ListenTCP(addr); err != nil {
		log.Fatalf("ListenTCP: %v", err)
	}
	defer srv.Close()
	log.Printf("Modbus TCP node stub listening on %s (temperature %d C)", addr, temp)
	// Wait forever
	for {
		time.Sleep(1 * time.Second)
	}
}
