package hal

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Sample
		wantErr bool
	}{
		{
			name: "two switches",
			line: "1234567890123,1,0",
			want: Sample{
				Timestamp: time.Unix(0, 1234567890123*1000),
				Values:    []int{1, 0},
			},
		},
		{
			name: "switches and sliders",
			line: "1234567890123,0,1,2048,4095",
			want: Sample{
				Timestamp: time.Unix(0, 1234567890123*1000),
				Values:    []int{0, 1, 2048, 4095},
			},
		},
		{
			name: "16-bit reading",
			line: "1,65535",
			want: Sample{
				Timestamp: time.Unix(0, 1000),
				Values:    []int{65535},
			},
		},
		{
			name:    "timestamp only",
			line:    "1234567890123",
			wantErr: true,
		},
		{
			name:    "non-numeric timestamp",
			line:    "abc,1,0",
			wantErr: true,
		},
		{
			name:    "non-numeric value",
			line:    "1234567890123,1,x",
			wantErr: true,
		},
		{
			name:    "negative value",
			line:    "1234567890123,-1",
			wantErr: true,
		},
		{
			name:    "value out of range",
			line:    "1234567890123,70000",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Timestamp.UnixNano(), got.Timestamp.UnixNano())
			assert.Equal(t, tt.want.Values, got.Values)
		})
	}
}

func TestNewSerial(t *testing.T) {
	dev := NewSerial("/dev/ttyACM0", 57600)
	assert.Equal(t, "/dev/ttyACM0", dev.port)
	assert.Equal(t, 57600, dev.baudRate)
	assert.False(t, dev.IsConnected())
}

func TestNewSerial_Defaults(t *testing.T) {
	dev := NewSerial("COM3", 0)
	assert.Equal(t, DefaultBaudRate, dev.baudRate)
	assert.Equal(t, DefaultStaleAfter, dev.staleAfter)
}

func TestSerial_ReadNotConnected(t *testing.T) {
	dev := NewSerial("COM3", 0)
	_, err := dev.Read(0)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSerial_ReadSamples(t *testing.T) {
	dev := NewSerial("COM3", 0)
	dev.connected = true

	_, err := dev.Read(0)
	assert.ErrorIs(t, err, ErrNoSample)

	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		dev.readSamples(pr)
	}()

	_, err = io.WriteString(pw, strings.Join([]string{
		"1000,1,0,100",
		"",
		"garbage line",
		"2000,0,1,2048",
	}, "\n")+"\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, err := dev.Read(2)
		return err == nil && v == 2048
	}, time.Second, 5*time.Millisecond)

	v, err := dev.Read(0)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	_, err = dev.Read(3)
	assert.ErrorIs(t, err, ErrNoSample)

	assert.Equal(t, time.Unix(0, 2000*1000).UnixNano(), dev.LastSeen().UnixNano())

	// EOF stops the reader; the last values must not be served as live.
	require.NoError(t, pw.Close())
	<-done

	_, err = dev.Read(2)
	assert.ErrorIs(t, err, ErrStale)
	assert.True(t, dev.IsConnected())
}

func TestSerial_ReadStale(t *testing.T) {
	now := time.Unix(100, 0)
	dev := NewSerial("COM3", 0)
	dev.connected = true
	dev.now = func() time.Time { return now }
	dev.SetStaleAfter(2 * time.Second)

	dev.readSamples(strings.NewReader("1000,1,0\n"))
	dev.stopped = false // reader still running as far as Read is concerned

	tests := []struct {
		age     time.Duration
		wantErr error
	}{
		{0, nil},
		{2 * time.Second, nil},
		{2*time.Second + time.Millisecond, ErrStale},
	}
	for _, tt := range tests {
		now = time.Unix(100, 0).Add(tt.age)
		v, err := dev.Read(0)
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, "age=%s", tt.age)
			continue
		}
		require.NoError(t, err, "age=%s", tt.age)
		assert.Equal(t, 1, v)
	}

	dev.SetStaleAfter(0)
	now = time.Unix(1000, 0)
	_, err := dev.Read(0)
	assert.NoError(t, err)
}

func TestSerial_CloseNotConnected(t *testing.T) {
	dev := NewSerial("COM3", 0)
	assert.NoError(t, dev.Close())
}
