// Package netlink is the network association boundary: it brings the
// wireless link up and returns the address the responder is reachable at.
package netlink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/itohio/gopanel/pkg/config"
)

// ErrNoAddress is returned when no usable address was found.
var ErrNoAddress = errors.New("no usable network address")

// Connector associates with a network and returns the local address.
type Connector interface {
	Connect(ctx context.Context, ssid, password string) (net.IP, error)
}

var _ Connector = (*Host)(nil)

// Host waits for the operating system to bring an interface up. On a host the
// association itself is managed by the OS, so the credentials only identify
// the network in logs.
type Host struct {
	attempts int
	delay    time.Duration
	lookup   func() (net.IP, error)
}

// NewHost creates a connector with the configured retry policy.
func NewHost(cfg config.NetworkConfig) *Host {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	return &Host{
		attempts: attempts,
		delay:    cfg.RetryDelay,
		lookup:   firstIPv4,
	}
}

// Connect polls for an address up to the configured number of attempts.
func (h *Host) Connect(ctx context.Context, ssid, _ string) (net.IP, error) {
	slog.Info("connecting to network", "ssid", ssid)

	var lastErr error
	for attempt := 1; attempt <= h.attempts; attempt++ {
		ip, err := h.lookup()
		if err == nil {
			slog.Info("connected to network", "ssid", ssid, "ip", ip.String(), "attempt", attempt)
			return ip, nil
		}
		lastErr = err

		if attempt == h.attempts {
			break
		}
		slog.Info("waiting for connection", "ssid", ssid, "remaining", h.attempts-attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(h.delay):
		}
	}

	return nil, fmt.Errorf("failed to connect to %q after %d attempts: %w", ssid, h.attempts, lastErr)
}

// firstIPv4 returns the first non-loopback IPv4 address of an up interface.
func firstIPv4() (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if ip := pickIPv4(addrs); ip != nil {
			return ip, nil
		}
	}

	return nil, ErrNoAddress
}

func pickIPv4(addrs []net.Addr) net.IP {
	for _, addr := range addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		}
		if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() {
			return ip4
		}
	}
	return nil
}
