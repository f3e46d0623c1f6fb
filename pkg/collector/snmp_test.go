package collector

import (
	"context"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfreeman451/flowwatch/pkg/config"
)

type fakeSNMPClient struct {
	packets    []*gosnmp.SnmpPacket
	getErr     error
	connectErr error
	connects   int
	closed     bool
}

func (f *fakeSNMPClient) Connect() error {
	f.connects++
	return f.connectErr
}

func (f *fakeSNMPClient) Get([]string) (*gosnmp.SnmpPacket, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}

	packet := f.packets[0]
	if len(f.packets) > 1 {
		f.packets = f.packets[1:]
	}

	return packet, nil
}

func (f *fakeSNMPClient) Close() error {
	f.closed = true
	return nil
}

func counterPacket(oid string, value uint) *gosnmp.SnmpPacket {
	return &gosnmp.SnmpPacket{
		Variables: []gosnmp.SnmpPDU{{
			Name:  oid,
			Type:  gosnmp.Counter32,
			Value: value,
		}},
	}
}

func snmpTestConfig() config.CollectorConfig {
	return config.CollectorConfig{
		Name:     "fc-snmp",
		Type:     config.SourceSNMP,
		Host:     "10.0.0.5",
		Exporter: "10.0.0.5",
		Interfaces: map[string]string{
			"1": "1.3.6.1.2.1.2.2.1.10.1",
		},
	}
}

func TestSNMPSourceFirstPollHasNoSamples(t *testing.T) {
	client := &fakeSNMPClient{
		packets: []*gosnmp.SnmpPacket{counterPacket(".1.3.6.1.2.1.2.2.1.10.1", 1000)},
	}

	src := newSNMPSource(snmpTestConfig(), client)

	samples, err := src.Fetch(context.Background())

	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.Equal(t, 1, client.connects)
}

func TestSNMPSourceComputesRateFromDelta(t *testing.T) {
	client := &fakeSNMPClient{
		packets: []*gosnmp.SnmpPacket{
			counterPacket(".1.3.6.1.2.1.2.2.1.10.1", 1000),
			counterPacket(".1.3.6.1.2.1.2.2.1.10.1", 1000+7500),
		},
	}

	src := newSNMPSource(snmpTestConfig(), client)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	now := base
	src.nowFunc = func() time.Time { return now }

	_, err := src.Fetch(context.Background())
	require.NoError(t, err)

	now = base.Add(time.Minute)

	samples, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 1)

	// 7500 octets over 60s is 1000 bps.
	assert.InDelta(t, 1000.0, samples[0].Bps, 0.001)
	assert.Equal(t, "10.0.0.5", samples[0].Key.Exporter)
	assert.Equal(t, "1", samples[0].Key.Iface)
	assert.Equal(t, "fc-snmp", samples[0].Collector)
}

func TestSNMPSourceCounterResetRebaselines(t *testing.T) {
	client := &fakeSNMPClient{
		packets: []*gosnmp.SnmpPacket{
			counterPacket(".1.3.6.1.2.1.2.2.1.10.1", 9000),
			counterPacket(".1.3.6.1.2.1.2.2.1.10.1", 100),
		},
	}

	src := newSNMPSource(snmpTestConfig(), client)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	now := base
	src.nowFunc = func() time.Time { return now }

	_, err := src.Fetch(context.Background())
	require.NoError(t, err)

	now = base.Add(time.Minute)

	samples, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestSNMPSourceGetErrorForcesReconnect(t *testing.T) {
	client := &fakeSNMPClient{getErr: assert.AnError}

	src := newSNMPSource(snmpTestConfig(), client)

	_, err := src.Fetch(context.Background())
	require.Error(t, err)

	client.getErr = nil
	client.packets = []*gosnmp.SnmpPacket{counterPacket(".1.3.6.1.2.1.2.2.1.10.1", 1000)}

	_, err = src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, client.connects)
}

func TestSNMPSourceCanceledContext(t *testing.T) {
	src := newSNMPSource(snmpTestConfig(), &fakeSNMPClient{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Fetch(ctx)
	assert.Error(t, err)
}

func TestNewSNMPSourceRequiresInterfaces(t *testing.T) {
	cfg := snmpTestConfig()
	cfg.Interfaces = nil

	_, err := NewSNMPSource(cfg)
	assert.ErrorIs(t, err, errNoInterfacesConfigured)
}

func TestSNMPSourceClose(t *testing.T) {
	client := &fakeSNMPClient{
		packets: []*gosnmp.SnmpPacket{counterPacket(".1.3.6.1.2.1.2.2.1.10.1", 1)},
	}

	src := newSNMPSource(snmpTestConfig(), client)

	// Close before connect is a no-op.
	require.NoError(t, src.Close())
	assert.False(t, client.closed)

	_, err := src.Fetch(context.Background())
	require.NoError(t, err)

	require.NoError(t, src.Close())
	assert.True(t, client.closed)
}
