// Package csr exposes the controller's register file to hosts over
// Modbus. Each Modbus request maps onto one bus transaction against
// the tick engine, so the wait handshake is carried all the way out:
// the reply is only sent once a tick has acked the request.
package csr

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/goburrow/serial"
	"github.com/tbrandon/mbserver"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/config"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/logging"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsd"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsense"
)

// HostPort is the engine-side bus the front end drives.
type HostPort interface {
	ReadWord(ctx context.Context) (uint32, error)
	WriteWord(ctx context.Context, word uint32) error
	Snapshot() tsd.Snapshot
}

type Server struct {
	cfg     config.CSRConfig
	port    HostPort
	timeout time.Duration
	srv     *mbserver.Server
}

func NewServer(cfg config.CSRConfig, port HostPort) *Server {
	return &Server{
		cfg:     cfg,
		port:    port,
		timeout: cfg.Timeout(),
		srv:     mbserver.NewServer(),
	}
}

// Start registers the function handlers and begins listening; it does
// not block.
func (s *Server) Start() error {
	s.srv.RegisterFunctionHandler(1, s.frameHandler(s.readCoils))
	s.srv.RegisterFunctionHandler(3, s.frameHandler(s.readHoldingRegisters))
	s.srv.RegisterFunctionHandler(4, s.frameHandler(s.readInputRegisters))
	s.srv.RegisterFunctionHandler(5, s.frameHandler(s.writeSingleCoil))
	s.srv.RegisterFunctionHandler(6, s.frameHandler(s.writeSingleRegister))

	switch s.cfg.Type {
	case "tcp":
		logging.Info("csr front end listening", "type", "tcp", "addr", s.cfg.TCPAddr)
		return s.srv.ListenTCP(s.cfg.TCPAddr)
	case "rtu":
		logging.Info("csr front end listening", "type", "rtu", "port", s.cfg.Port, "baud", s.cfg.Baud)
		return s.srv.ListenRTU(&serial.Config{
			Address:  s.cfg.Port,
			BaudRate: s.cfg.Baud,
			DataBits: s.cfg.DataBits,
			StopBits: s.cfg.StopBits,
			Parity:   s.cfg.Parity,
			Timeout:  500 * time.Millisecond,
		})
	default:
		return fmt.Errorf("unknown csr type %q", s.cfg.Type)
	}
}

func (s *Server) Close() { s.srv.Close() }

func (s *Server) frameHandler(fn func(data []byte) ([]byte, *mbserver.Exception)) func(*mbserver.Server, mbserver.Framer) ([]byte, *mbserver.Exception) {
	return func(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		return fn(frame.GetData())
	}
}

/* ================
   Read functions
   ================ */

// readInputRegisters serves FC4: the temperature word, fetched with
// one read transaction.
func (s *Server) readInputRegisters(data []byte) ([]byte, *mbserver.Exception) {
	if len(data) < 4 {
		return nil, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	qty := binary.BigEndian.Uint16(data[2:4])
	if qty == 0 || uint32(addr)+uint32(qty) > RegTemperatureWords {
		return nil, &mbserver.IllegalDataAddress
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	word, err := s.port.ReadWord(ctx)
	if err != nil {
		logging.Warn("csr read failed", "error", err)
		return nil, &mbserver.SlaveDeviceFailure
	}

	regs := [RegTemperatureWords]uint16{uint16(word >> 16), uint16(word)}
	out := make([]byte, 1+2*qty)
	out[0] = byte(2 * qty)
	for i := uint16(0); i < qty; i++ {
		binary.BigEndian.PutUint16(out[1+2*i:], regs[addr+i])
	}
	return out, &mbserver.Success
}

// readHoldingRegisters serves FC3: control readback from the engine
// snapshot, no bus transaction.
func (s *Server) readHoldingRegisters(data []byte) ([]byte, *mbserver.Exception) {
	if len(data) < 4 {
		return nil, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	qty := binary.BigEndian.Uint16(data[2:4])
	if addr != RegControl || qty != 1 {
		return nil, &mbserver.IllegalDataAddress
	}

	var ctrl uint16
	if s.port.Snapshot().Enabled {
		ctrl = tsense.EnableBit
	}
	out := make([]byte, 3)
	out[0] = 2
	binary.BigEndian.PutUint16(out[1:], ctrl)
	return out, &mbserver.Success
}

// readCoils serves FC1: the sampling enable as a single coil.
func (s *Server) readCoils(data []byte) ([]byte, *mbserver.Exception) {
	if len(data) < 4 {
		return nil, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	qty := binary.BigEndian.Uint16(data[2:4])
	if addr != RegControl || qty != 1 {
		return nil, &mbserver.IllegalDataAddress
	}

	out := []byte{1, 0}
	if s.port.Snapshot().Enabled {
		out[1] = 1
	}
	return out, &mbserver.Success
}

/* ================
   Write functions
   ================ */

func (s *Server) writeSingleCoil(data []byte) ([]byte, *mbserver.Exception) {
	if len(data) < 4 {
		return nil, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])
	if addr != RegControl {
		return nil, &mbserver.IllegalDataAddress
	}

	var word uint32
	switch value {
	case 0xFF00:
		word = tsense.EnableBit
	case 0x0000:
		// leave word zero
	default:
		return nil, &mbserver.IllegalDataValue
	}
	if exc := s.write(word); exc != nil {
		return nil, exc
	}
	return data[0:4], &mbserver.Success
}

func (s *Server) writeSingleRegister(data []byte) ([]byte, *mbserver.Exception) {
	if len(data) < 4 {
		return nil, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])
	if addr != RegControl {
		return nil, &mbserver.IllegalDataAddress
	}

	if exc := s.write(uint32(value)); exc != nil {
		return nil, exc
	}
	return data[0:4], &mbserver.Success
}

func (s *Server) write(word uint32) *mbserver.Exception {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.port.WriteWord(ctx, word); err != nil {
		logging.Warn("csr write failed", "error", err)
		return &mbserver.SlaveDeviceFailure
	}
	return nil
}
