package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
{
	// controller identity
	"node": "tsd0",
	"csr": {
		"type": "tcp",
		"tcpAddr": ":1502"
	},
	/* sampling left at defaults: 1 kHz tick, one conversion per second */
	"sensor": {
		"ambient": 27.5,
		"swing": 3,
		"noise": 0.5
	}
}
`

func TestLoadNodeConfigDefaults(t *testing.T) {
	cfg, err := LoadNodeConfigFromReader(strings.NewReader(validConfig))
	require.NoError(t, err)

	assert.Equal(t, "tsd0", cfg.Node)
	assert.Equal(t, 1000, cfg.TickHz)
	assert.Equal(t, uint32(1000), cfg.IntervalTicks)
	assert.Equal(t, uint32(2), cfg.ClearTicks)
	assert.Equal(t, uint32(250), cfg.ReportTicks)
	assert.Equal(t, 0, cfg.HeartbeatInterval, "omitted heartbeat stays off")
	assert.Equal(t, 150, cfg.CSR.TimeoutMs)
	assert.Equal(t, uint32(4), cfg.Sensor.ConversionTicks)
	assert.Equal(t, uint32(3600), cfg.Sensor.Period)
}

func TestLoadNodeConfigStripsComments(t *testing.T) {
	in := `{
		"node": "n1", // trailing comment
		/* block
		   comment */
		"csr": { "type": "tcp", "tcpAddr": "127.0.0.1:1502" }
	}`
	cfg, err := LoadNodeConfigFromReader(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "n1", cfg.Node)
}

func TestLoadNodeConfigRejectsUnknownFields(t *testing.T) {
	in := `{"node": "n1", "csr": {"type": "tcp", "tcpAddr": ":1502"}, "pollIntervalMs": 100}`
	_, err := LoadNodeConfigFromReader(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"missing node",
			`{"csr": {"type": "tcp", "tcpAddr": ":1502"}}`,
			"node is required",
		},
		{
			"bad csr type",
			`{"node": "n", "csr": {"type": "serial"}}`,
			"type must be 'rtu' or 'tcp'",
		},
		{
			"rtu without port",
			`{"node": "n", "csr": {"type": "rtu", "baud": 19200}}`,
			"port is required",
		},
		{
			"rtu bad parity",
			`{"node": "n", "csr": {"type": "rtu", "port": "/dev/ttyUSB0", "baud": 19200, "parity": "X"}}`,
			"parity must be one of",
		},
		{
			"conversion slower than interval",
			`{"node": "n", "intervalTicks": 3, "csr": {"type": "tcp", "tcpAddr": ":1502"},
			  "sensor": {"conversionTicks": 3}}`,
			"conversionTicks must be <",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := LoadNodeConfigFromReader(strings.NewReader(c.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.want)
		})
	}
}

func TestRTUDefaults(t *testing.T) {
	in := `{"node": "n", "csr": {"type": "rtu", "port": "/dev/ttyUSB0", "baud": 19200}}`
	cfg, err := LoadNodeConfigFromReader(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.CSR.DataBits)
	assert.Equal(t, 1, cfg.CSR.StopBits)
	assert.Equal(t, "N", cfg.CSR.Parity)
}

func TestHeartbeatInterval(t *testing.T) {
	in := `{"node": "n", "heartbeatInterval": -1, "csr": {"type": "tcp", "tcpAddr": ":1502"}}`
	cfg, err := LoadNodeConfigFromReader(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.HeartbeatInterval, "negative selects the default")
}
