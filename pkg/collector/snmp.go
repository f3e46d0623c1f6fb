// Package collector pkg/collector/snmp.go
package collector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/mfreeman451/flowwatch/pkg/config"
	"github.com/mfreeman451/flowwatch/pkg/models"
)

const defaultSNMPTimeout = 5 * time.Second

var (
	errNoInterfacesConfigured = fmt.Errorf("no interfaces configured for snmp source")
	errUnsupportedSNMPType    = fmt.Errorf("unsupported SNMP type")
)

// snmpGetter is the slice of gosnmp the source needs; tests substitute
// a fake.
type snmpGetter interface {
	Connect() error
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	Close() error
}

type gosnmpClient struct {
	*gosnmp.GoSNMP
}

func (c *gosnmpClient) Close() error {
	if c.Conn == nil {
		return nil
	}

	return c.Conn.Close()
}

// counterReading is the previous octet counter for one interface, kept
// to derive bps from the delta between polls.
type counterReading struct {
	octets uint64
	at     time.Time
}

// SNMPSource derives per-interface bps from interface octet counters.
// The first poll for an interface produces no sample: a counter needs a
// baseline before a rate exists, and missing data must not read as
// zero.
type SNMPSource struct {
	cfg       config.CollectorConfig
	client    snmpGetter
	ifaceByID map[string]string // normalized OID -> iface id
	mu        sync.Mutex
	prev      map[string]counterReading
	connected bool
	nowFunc   func() time.Time
}

// NewSNMPSource creates an SNMP v2c sample source from collector config.
func NewSNMPSource(cfg config.CollectorConfig) (*SNMPSource, error) {
	if len(cfg.Interfaces) == 0 {
		return nil, errNoInterfacesConfigured
	}

	timeout := time.Duration(cfg.Timeout)
	if timeout == 0 {
		timeout = defaultSNMPTimeout
	}

	client := &gosnmpClient{
		GoSNMP: &gosnmp.GoSNMP{
			Target:             cfg.Host,
			Port:               cfg.Port,
			Community:          cfg.Community,
			Version:            gosnmp.Version2c,
			Timeout:            timeout,
			Retries:            3,
			ExponentialTimeout: true,
			MaxOids:            gosnmp.MaxOids,
		},
	}

	return newSNMPSource(cfg, client), nil
}

func newSNMPSource(cfg config.CollectorConfig, client snmpGetter) *SNMPSource {
	ifaceByID := make(map[string]string, len(cfg.Interfaces))
	for iface, oid := range cfg.Interfaces {
		ifaceByID[normalizeOID(oid)] = iface
	}

	return &SNMPSource{
		cfg:       cfg,
		client:    client,
		ifaceByID: ifaceByID,
		prev:      make(map[string]counterReading),
		nowFunc:   time.Now,
	}
}

func (s *SNMPSource) Name() string { return s.cfg.Name }

func (s *SNMPSource) Type() string { return string(config.SourceSNMP) }

func (s *SNMPSource) Host() string { return s.cfg.Host }

// Fetch polls the configured octet counters and converts deltas to bps.
func (s *SNMPSource) Fetch(ctx context.Context) ([]models.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !s.connected {
		if err := s.client.Connect(); err != nil {
			return nil, fmt.Errorf("snmp connect to %s failed: %w", s.cfg.Host, err)
		}

		s.connected = true
	}

	oids := make([]string, 0, len(s.ifaceByID))
	for oid := range s.ifaceByID {
		oids = append(oids, oid)
	}

	packet, err := s.client.Get(oids)
	if err != nil {
		s.connected = false
		return nil, fmt.Errorf("snmp get from %s failed: %w", s.cfg.Host, err)
	}

	now := s.nowFunc()

	var samples []models.Sample

	for _, variable := range packet.Variables {
		iface, ok := s.ifaceByID[normalizeOID(variable.Name)]
		if !ok {
			continue
		}

		octets, err := counterValue(variable)
		if err != nil {
			return nil, fmt.Errorf("snmp %s %s: %w", s.cfg.Host, variable.Name, err)
		}

		if sample, ok := s.rate(iface, octets, now); ok {
			samples = append(samples, sample)
		}
	}

	return samples, nil
}

// rate converts a counter reading to a bps sample against the previous
// reading. Counter resets (value going backwards) re-baseline instead
// of producing a bogus rate.
func (s *SNMPSource) rate(iface string, octets uint64, now time.Time) (models.Sample, bool) {
	prev, seen := s.prev[iface]
	s.prev[iface] = counterReading{octets: octets, at: now}

	if !seen || octets < prev.octets || !now.After(prev.at) {
		return models.Sample{}, false
	}

	seconds := now.Sub(prev.at).Seconds()
	bps := float64(octets-prev.octets) * 8 / seconds

	return models.Sample{
		Key:        models.InterfaceKey{Exporter: s.cfg.Exporter, Iface: iface},
		Collector:  s.cfg.Name,
		Bps:        bps,
		ObservedAt: now,
	}, true
}

// Close shuts the SNMP connection down.
func (s *SNMPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	s.connected = false

	return s.client.Close()
}

func counterValue(variable gosnmp.SnmpPDU) (uint64, error) {
	switch variable.Type {
	case gosnmp.Counter32, gosnmp.Gauge32:
		if v, ok := variable.Value.(uint); ok {
			return uint64(v), nil
		}
	case gosnmp.Counter64:
		if v, ok := variable.Value.(uint64); ok {
			return v, nil
		}
	default:
	}

	return 0, fmt.Errorf("%w: %v (%T)", errUnsupportedSNMPType, variable.Type, variable.Value)
}

func normalizeOID(oid string) string {
	return "." + strings.TrimPrefix(oid, ".")
}
