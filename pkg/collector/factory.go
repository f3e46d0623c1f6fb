package collector

import (
	"fmt"

	"github.com/mfreeman451/flowwatch/pkg/config"
)

var errUnknownSourceType = fmt.Errorf("unknown collector source type")

// NewSource builds the sample source matching a collector's configured
// type.
func NewSource(cfg config.CollectorConfig) (SampleSource, error) {
	switch cfg.Type {
	case config.SourceSSH:
		return NewSSHSource(cfg), nil
	case config.SourceSNMP:
		return NewSNMPSource(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownSourceType, cfg.Type)
	}
}
