package hal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_ConnectClose(t *testing.T) {
	dev := NewMock(0)
	assert.False(t, dev.IsConnected())

	require.NoError(t, dev.Connect())
	assert.True(t, dev.IsConnected())

	err := dev.Connect()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already connected")

	require.NoError(t, dev.Close())
	assert.False(t, dev.IsConnected())
	assert.NoError(t, dev.Close())
}

func TestMock_Read(t *testing.T) {
	dev := NewMock(0)

	_, err := dev.Read(0)
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, dev.Connect())
	defer dev.Close()

	_, err = dev.Read(0)
	assert.ErrorIs(t, err, ErrNoSample)

	dev.Set(0, 1)
	v, err := dev.Read(0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	dev.Fail(0, true)
	_, err = dev.Read(0)
	assert.Error(t, err)

	dev.Fail(0, false)
	v, err = dev.Read(0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestMock_Advance(t *testing.T) {
	dev := NewMock(0)
	dev.Set(0, 1)
	dev.AddAnalog(1, 100)

	dev.advance(1)
	assert.Equal(t, 1, dev.values[0], "switch must not flip before 20 ticks")
	assert.Equal(t, 2, dev.values[1])

	dev.advance(20)
	assert.Equal(t, 0, dev.values[0])

	// Sweep to the top and bounce.
	dev.Set(1, 99)
	dev.advance(21)
	assert.Equal(t, 100, dev.values[1])
	dev.advance(22)
	assert.Equal(t, 98, dev.values[1])
}

func TestMock_Simulate(t *testing.T) {
	dev := NewMock(5 * time.Millisecond)
	dev.AddAnalog(0, 4095)
	require.NoError(t, dev.Connect())
	defer dev.Close()

	assert.Eventually(t, func() bool {
		v, err := dev.Read(0)
		return err == nil && v > 0
	}, time.Second, 5*time.Millisecond)
}
