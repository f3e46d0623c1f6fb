package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfreeman451/flowwatch/pkg/config"
)

func TestNewSource(t *testing.T) {
	ssh, err := NewSource(config.CollectorConfig{
		Name: "fc-a",
		Type: config.SourceSSH,
		Host: "10.0.0.10",
	})
	require.NoError(t, err)
	assert.Equal(t, "ssh", ssh.Type())
	assert.Equal(t, "fc-a", ssh.Name())
	assert.Equal(t, "10.0.0.10", ssh.Host())

	snmp, err := NewSource(config.CollectorConfig{
		Name:       "fc-b",
		Type:       config.SourceSNMP,
		Host:       "10.0.0.11",
		Interfaces: map[string]string{"1": "1.3.6.1.2.1.2.2.1.10.1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "snmp", snmp.Type())

	_, err = NewSource(config.CollectorConfig{Name: "fc-c", Type: "bogus", Host: "h"})
	assert.ErrorIs(t, err, errUnknownSourceType)
}
