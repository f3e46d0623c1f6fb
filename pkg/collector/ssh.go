// Package collector pkg/collector/ssh.go
package collector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/mfreeman451/flowwatch/pkg/config"
	"github.com/mfreeman451/flowwatch/pkg/models"
)

const defaultDialTimeout = 10 * time.Second

// SSHSource retrieves the exporter device stats file from a flow
// collector over SSH. A fresh connection is made per cycle; a wedged
// collector then never holds state across cycles.
type SSHSource struct {
	cfg config.CollectorConfig
}

// NewSSHSource creates an SSH sample source from collector config.
func NewSSHSource(cfg config.CollectorConfig) *SSHSource {
	return &SSHSource{cfg: cfg}
}

func (s *SSHSource) Name() string { return s.cfg.Name }

func (s *SSHSource) Type() string { return string(config.SourceSSH) }

func (s *SSHSource) Host() string { return s.cfg.Host }

// Fetch connects, reads the stats file, and parses it into samples.
func (s *SSHSource) Fetch(ctx context.Context) ([]models.Sample, error) {
	data, err := s.readStatsFile(ctx)
	if err != nil {
		return nil, err
	}

	return ParseDeviceStats(data, s.cfg.Name, time.Now())
}

func (s *SSHSource) readStatsFile(ctx context.Context) (io.Reader, error) {
	dialTimeout := defaultDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < dialTimeout {
			dialTimeout = remaining
		}
	}

	clientConfig := &ssh.ClientConfig{
		User: s.cfg.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(s.cfg.Password),
		},
		// Flow collectors sit on a management network; host keys are
		// not pinned.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // see above
		Timeout:         dialTimeout,
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(int(s.cfg.Port)))

	client, err := ssh.Dial("tcp", addr, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s failed: %w", addr, err)
	}

	// Tear the connection down if the poll cycle is abandoned.
	watchdogDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if err := client.Close(); err != nil {
				log.Printf("Error closing ssh client for %s: %v", s.cfg.Name, err)
			}
		case <-watchdogDone:
		}
	}()

	defer func() {
		close(watchdogDone)

		if err := client.Close(); err != nil && ctx.Err() == nil {
			log.Printf("Error closing ssh client for %s: %v", s.cfg.Name, err)
		}
	}()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("ssh session for %s failed: %w", s.cfg.Name, err)
	}
	defer func() {
		_ = session.Close()
	}()

	out, err := session.Output(fmt.Sprintf("cat %q", s.cfg.StatsPath))
	if err != nil {
		return nil, fmt.Errorf("reading %s from %s failed: %w", s.cfg.StatsPath, s.cfg.Name, err)
	}

	return bytes.NewReader(out), nil
}

// Close implements SampleSource; SSH connections are per-cycle.
func (s *SSHSource) Close() error {
	return nil
}
