// Package probe pkg/probe/probe.go provides ICMP reachability checks
// used to tell a dead collector host apart from a transient fetch error.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/time/rate"
)

const (
	defaultCount   = 3
	defaultTimeout = 2 * time.Second
	maxPacketSize  = 1500
)

var (
	errInvalidHost = fmt.Errorf("invalid host address")
	errProbeClosed = fmt.Errorf("prober is closed")
)

// Result is the outcome of probing one host.
type Result struct {
	Host       string
	Available  bool
	RespTime   time.Duration
	PacketLoss float64
	LastSeen   time.Time
}

// Prober answers whether a host responds to ICMP echo.
type Prober interface {
	Ping(ctx context.Context, host string) (Result, error)
	Close() error
}

// ICMPProber sends echo requests over an unprivileged datagram ICMP
// socket and rate limits outgoing probes across all callers.
type ICMPProber struct {
	timeout time.Duration
	count   int
	limiter *rate.Limiter
	seq     uint16
	mu      sync.Mutex
	closed  bool
}

// NewICMPProber creates a prober. probesPerSecond bounds the aggregate
// outgoing echo rate.
func NewICMPProber(timeout time.Duration, count int, probesPerSecond float64) *ICMPProber {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if count <= 0 {
		count = defaultCount
	}

	if probesPerSecond <= 0 {
		probesPerSecond = 10
	}

	return &ICMPProber{
		timeout: timeout,
		count:   count,
		limiter: rate.NewLimiter(rate.Limit(probesPerSecond), count),
	}
}

// Ping sends echo requests to the host and reports availability. A
// host counts as available when at least one reply comes back.
func (p *ICMPProber) Ping(ctx context.Context, host string) (Result, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Result{Host: host}, errProbeClosed
	}

	p.seq++
	seq := p.seq
	p.mu.Unlock()

	ip, err := resolveIPv4(host)
	if err != nil {
		return Result{Host: host}, err
	}

	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		return Result{Host: host}, fmt.Errorf("failed to open ICMP socket: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("Error closing ICMP socket: %v", err)
		}
	}()

	id := os.Getpid() & 0xffff

	received, totalTime, err := p.exchange(ctx, conn, ip, id, int(seq))
	if err != nil {
		return Result{Host: host}, err
	}

	result := Result{
		Host:       host,
		Available:  received > 0,
		PacketLoss: float64(p.count-received) / float64(p.count) * 100,
	}

	if received > 0 {
		result.RespTime = totalTime / time.Duration(received)
		result.LastSeen = time.Now()
	}

	return result, nil
}

func (p *ICMPProber) exchange(ctx context.Context, conn *icmp.PacketConn, ip net.IP, id, seq int) (received int, totalTime time.Duration, err error) {
	dst := &net.UDPAddr{IP: ip}

	for i := 0; i < p.count; i++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return received, totalTime, fmt.Errorf("probe rate limiter: %w", err)
		}

		msg := icmp.Message{
			Type: ipv4.ICMPTypeEcho,
			Code: 0,
			Body: &icmp.Echo{
				ID:   id,
				Seq:  seq + i,
				Data: []byte("flowwatch-probe"),
			},
		}

		wire, err := msg.Marshal(nil)
		if err != nil {
			return received, totalTime, fmt.Errorf("failed to marshal echo request: %w", err)
		}

		sentAt := time.Now()

		if _, err := conn.WriteTo(wire, dst); err != nil {
			log.Printf("Error sending ping to %s: %v", ip, err)
			continue
		}

		if p.awaitReply(conn, id) {
			received++
			totalTime += time.Since(sentAt)
		}
	}

	return received, totalTime, nil
}

// awaitReply reads from the socket until an echo reply with our
// identifier arrives or the per-packet timeout expires.
func (p *ICMPProber) awaitReply(conn *icmp.PacketConn, id int) bool {
	deadline := time.Now().Add(p.timeout)
	packet := make([]byte, maxPacketSize)

	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return false
		}

		n, _, err := conn.ReadFrom(packet)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return false
			}

			log.Printf("Error reading ICMP packet: %v", err)

			return false
		}

		msg, err := icmp.ParseMessage(ipv4.ICMPTypeEchoReply.Protocol(), packet[:n])
		if err != nil {
			continue
		}

		if msg.Type != ipv4.ICMPTypeEchoReply {
			continue
		}

		if echo, ok := msg.Body.(*icmp.Echo); ok && echo.ID == id {
			return true
		}
	}
}

func (p *ICMPProber) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	return nil
}

func resolveIPv4(host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}

		return nil, fmt.Errorf("%w: %s is not IPv4", errInvalidHost, host)
	}

	addrs, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", host, err)
	}

	for _, addr := range addrs {
		if v4 := addr.To4(); v4 != nil {
			return v4, nil
		}
	}

	return nil, fmt.Errorf("%w: no IPv4 address for %s", errInvalidHost, host)
}
