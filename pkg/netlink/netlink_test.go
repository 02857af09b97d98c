package netlink

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gopanel/pkg/config"
)

func TestHost_ConnectAfterRetries(t *testing.T) {
	h := NewHost(config.NetworkConfig{Attempts: 5, RetryDelay: time.Millisecond})

	calls := 0
	h.lookup = func() (net.IP, error) {
		calls++
		if calls < 3 {
			return nil, ErrNoAddress
		}
		return net.IPv4(192, 168, 178, 42), nil
	}

	ip, err := h.Connect(context.Background(), "workshop", "secret")
	require.NoError(t, err)
	assert.Equal(t, "192.168.178.42", ip.String())
	assert.Equal(t, 3, calls)
}

func TestHost_ConnectExhausted(t *testing.T) {
	h := NewHost(config.NetworkConfig{Attempts: 3, RetryDelay: time.Millisecond})

	calls := 0
	h.lookup = func() (net.IP, error) {
		calls++
		return nil, ErrNoAddress
	}

	ip, err := h.Connect(context.Background(), "workshop", "secret")
	assert.Nil(t, ip)
	assert.ErrorIs(t, err, ErrNoAddress)
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Equal(t, 3, calls)
}

func TestHost_ConnectCancelled(t *testing.T) {
	h := NewHost(config.NetworkConfig{Attempts: 10, RetryDelay: time.Hour})
	h.lookup = func() (net.IP, error) { return nil, errors.New("link down") }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Connect(ctx, "workshop", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewHost_MinimumOneAttempt(t *testing.T) {
	h := NewHost(config.NetworkConfig{})
	assert.Equal(t, 1, h.attempts)
}

func TestPickIPv4(t *testing.T) {
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
		&net.IPAddr{IP: net.ParseIP("10.0.0.7")},
	}
	assert.Equal(t, "10.0.0.7", pickIPv4(addrs).String())
	assert.Nil(t, pickIPv4(addrs[:2]))
}
