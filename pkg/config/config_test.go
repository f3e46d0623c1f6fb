package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "core.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `{
		"listen_addr": ":8090",
		"db_path": "/var/lib/flowwatch/downtime.db",
		"poll_interval": "30s",
		"freshness_window": "2m",
		"collectors": [
			{
				"name": "fc-a",
				"type": "ssh",
				"host": "10.0.0.10",
				"username": "monitor",
				"password": "secret"
			},
			{
				"name": "fc-b",
				"type": "snmp",
				"host": "10.0.0.11",
				"exporter": "10.1.0.1",
				"interfaces": {"1": "1.3.6.1.2.1.2.2.1.10.1"}
			}
		]
	}`)

	var cfg CoreConfig
	require.NoError(t, LoadAndValidate(path, &cfg))

	assert.Equal(t, ":8090", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.PollInterval))
	assert.Equal(t, 2*time.Minute, time.Duration(cfg.FreshnessWindow))

	// Defaults applied by validation.
	assert.Equal(t, 30*time.Second, time.Duration(cfg.PollTimeout))
	assert.Equal(t, 5*time.Minute, time.Duration(cfg.DegradedThreshold))

	require.Len(t, cfg.Collectors, 2)

	ssh := cfg.Collectors[0]
	assert.Equal(t, uint16(22), ssh.Port)
	assert.Equal(t, "/lancope/var/sw/today/data/exporter_device_stats.txt", ssh.StatsPath)

	snmp := cfg.Collectors[1]
	assert.Equal(t, uint16(161), snmp.Port)
	assert.Equal(t, "public", snmp.Community)
	assert.Equal(t, "10.1.0.1", snmp.Exporter)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	valid := func() CoreConfig {
		return CoreConfig{
			Collectors: []CollectorConfig{{
				Name: "fc-a",
				Type: SourceSSH,
				Host: "10.0.0.10",
			}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*CoreConfig)
		wantErr error
	}{
		{
			name:    "no collectors",
			mutate:  func(c *CoreConfig) { c.Collectors = nil },
			wantErr: errNoCollectors,
		},
		{
			name:    "missing name",
			mutate:  func(c *CoreConfig) { c.Collectors[0].Name = "" },
			wantErr: errCollectorName,
		},
		{
			name:    "missing host",
			mutate:  func(c *CoreConfig) { c.Collectors[0].Host = "" },
			wantErr: errCollectorHost,
		},
		{
			name:    "unknown type",
			mutate:  func(c *CoreConfig) { c.Collectors[0].Type = "carrier-pigeon" },
			wantErr: errUnknownSourceType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSNMPExporterDefaultsToHost(t *testing.T) {
	cfg := CoreConfig{
		Collectors: []CollectorConfig{{
			Name:       "fc-b",
			Type:       SourceSNMP,
			Host:       "10.0.0.11",
			Interfaces: map[string]string{"1": "1.3.6.1.2.1.2.2.1.10.1"},
		}},
	}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "10.0.0.11", cfg.Collectors[0].Exporter)
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "string duration", input: `"90s"`, want: 90 * time.Second},
		{name: "numeric nanoseconds", input: `60000000000`, want: time.Minute},
		{name: "bad string", input: `"forever"`, wantErr: true},
		{name: "bad type", input: `[1]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := d.UnmarshalJSON([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, time.Duration(d))
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	var cfg CoreConfig

	assert.Error(t, LoadFile("/nonexistent/core.json", &cfg))

	path := writeConfig(t, "{not json")
	assert.Error(t, LoadFile(path, &cfg))
}
