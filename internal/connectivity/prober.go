package connectivity

import (
	"net"
	"strings"
	"time"
)

// Prober answers a single "is the network usable" question. The default
// implementation dials out; tests inject scripted probers.
type Prober interface {
	Probe(timeout time.Duration) (latency time.Duration, err error)
}

// DialProber probes by opening a TCP connection to a well-known
// endpoint, defaulting to a public DNS resolver on port 53.
type DialProber struct {
	Target string
}

// Probe dials the target and reports how long the handshake took.
func (p DialProber) Probe(timeout time.Duration) (time.Duration, error) {
	target := strings.TrimSpace(p.Target)
	if target == "" {
		target = "1.1.1.1"
	}
	address := target
	if !strings.Contains(address, ":") {
		address = net.JoinHostPort(address, "53")
	}

	started := time.Now()
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return 0, err
	}
	_ = conn.Close()
	return time.Since(started), nil
}
