package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// SourceType selects how a collector's samples are retrieved.
type SourceType string

const (
	SourceSSH  SourceType = "ssh"
	SourceSNMP SourceType = "snmp"
)

// CollectorConfig describes one flow collector to poll. SSH sources
// read the exporter device stats file; SNMP sources derive bps from
// interface octet counters.
type CollectorConfig struct {
	Name    string     `json:"name"`
	Type    SourceType `json:"type"`
	Host    string     `json:"host"`
	Port    uint16     `json:"port,omitempty"`
	Timeout Duration   `json:"timeout,omitempty"`

	// SSH source settings.
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	StatsPath string `json:"stats_path,omitempty"`

	// SNMP source settings.
	Community  string            `json:"community,omitempty"`
	Exporter   string            `json:"exporter,omitempty"`
	Interfaces map[string]string `json:"interfaces,omitempty"` // iface id -> octets OID
}

// WebhookConfig represents a webhook notification configuration.
type WebhookConfig struct {
	Enabled  bool     `json:"enabled"`
	URL      string   `json:"url"`
	Cooldown Duration `json:"cooldown"`
	Template string   `json:"template"`
	Headers  []Header `json:"headers,omitempty"` // Optional custom headers
}

// Header represents a custom HTTP header.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CoreConfig is the configuration for the flowwatch service.
type CoreConfig struct {
	ListenAddr        string                 `json:"listen_addr"`
	GrpcAddr          string                 `json:"grpc_addr,omitempty"`
	DBPath            string                 `json:"db_path"`
	PollInterval      Duration               `json:"poll_interval"`
	PollTimeout       Duration               `json:"poll_timeout"`
	FreshnessWindow   Duration               `json:"freshness_window"`
	DegradedThreshold Duration               `json:"degraded_threshold"`
	Collectors        []CollectorConfig      `json:"collectors"`
	Webhooks          []WebhookConfig        `json:"webhooks,omitempty"`
	History           models.HistoryConfig   `json:"history"`
	Security          *models.SecurityConfig `json:"security,omitempty"`
}

const (
	defaultPollInterval      = 60 * time.Second
	defaultPollTimeout       = 30 * time.Second
	defaultFreshnessWindow   = 90 * time.Second
	defaultDegradedThreshold = 5 * time.Minute
)

var (
	errNoCollectors      = fmt.Errorf("at least one collector is required")
	errCollectorName     = fmt.Errorf("collector name is required")
	errCollectorHost     = fmt.Errorf("collector host is required")
	errUnknownSourceType = fmt.Errorf("unknown collector source type")
)

// Validate applies defaults and checks the configuration.
func (c *CoreConfig) Validate() error {
	if c.PollInterval == 0 {
		c.PollInterval = Duration(defaultPollInterval)
	}

	if c.PollTimeout == 0 {
		c.PollTimeout = Duration(defaultPollTimeout)
	}

	if c.FreshnessWindow == 0 {
		c.FreshnessWindow = Duration(defaultFreshnessWindow)
	}

	if c.DegradedThreshold == 0 {
		c.DegradedThreshold = Duration(defaultDegradedThreshold)
	}

	if len(c.Collectors) == 0 {
		return errNoCollectors
	}

	for i := range c.Collectors {
		if err := c.Collectors[i].validate(); err != nil {
			return fmt.Errorf("collector %d: %w", i, err)
		}
	}

	return nil
}

func (c *CollectorConfig) validate() error {
	if c.Name == "" {
		return errCollectorName
	}

	if c.Host == "" {
		return errCollectorHost
	}

	switch c.Type {
	case SourceSSH:
		if c.Port == 0 {
			c.Port = 22
		}

		if c.StatsPath == "" {
			c.StatsPath = "/lancope/var/sw/today/data/exporter_device_stats.txt"
		}
	case SourceSNMP:
		if c.Port == 0 {
			c.Port = 161
		}

		if c.Community == "" {
			c.Community = "public"
		}

		if c.Exporter == "" {
			c.Exporter = c.Host
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownSourceType, c.Type)
	}

	return nil
}
