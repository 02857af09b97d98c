package hal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the firmware UART configuration.
	DefaultBaudRate = 115200
	// DefaultStaleAfter is how long the last sample stays valid without a new line.
	DefaultStaleAfter = 2 * time.Second
)

// Sample is one line streamed by the firmware.
type Sample struct {
	Timestamp time.Time
	Values    []int // Raw readings, indexed by input
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial reads channel values streamed by the board firmware over UART.
// Read returns the most recent value seen for an input and never blocks.
type Serial struct {
	port     string
	baudRate int

	conn      serial.Port
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	values     []int
	lastSeen   time.Time // Firmware timestamp of the last sample
	received   time.Time // Host time the last sample arrived
	stopped    bool      // Reader exited; values are no longer updated
	staleAfter time.Duration
	now        func() time.Time
}

// NewSerial creates a new Serial source for the given port and baud rate.
func NewSerial(port string, baudRate int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:       port,
		baudRate:   baudRate,
		ctx:        ctx,
		cancel:     cancel,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
}

// SetStaleAfter sets how long Read keeps returning a value without a new
// sample. Zero disables the check.
func (d *Serial) SetStaleAfter(after time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staleAfter = after
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}

	return result, nil
}

// Connect opens the serial port and starts reading samples.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	port, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true
	d.stopped = false
	d.values = nil

	go d.readSamples(port)

	return nil
}

// Close stops reading and closes the port.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			slog.Warn("error closing serial port", "port", d.port, "error", err)
		}
		d.conn = nil
	}

	d.connected = false

	return nil
}

// IsConnected returns whether the port is open.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// Read returns the latest raw value for input.
func (d *Serial) Read(input int) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return 0, ErrNotConnected
	}
	if d.stopped {
		return 0, fmt.Errorf("input %d: serial reader stopped: %w", input, ErrStale)
	}
	if input < 0 || input >= len(d.values) {
		return 0, fmt.Errorf("input %d: %w", input, ErrNoSample)
	}
	if age := d.now().Sub(d.received); d.staleAfter > 0 && age > d.staleAfter {
		return 0, fmt.Errorf("input %d: no sample for %s: %w", input, age.Round(time.Millisecond), ErrStale)
	}

	return d.values[input], nil
}

// LastSeen returns the timestamp of the last parsed sample.
func (d *Serial) LastSeen() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastSeen
}

// readSamples reads lines from r and stores the parsed values. When it
// returns, Read fails with ErrStale until the next Connect.
func (d *Serial) readSamples(r io.Reader) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in serial reader", "panic", rec)
		}
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
	}()

	scanner := bufio.NewScanner(r)
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					slog.Warn("error reading from serial port", "port", d.port, "error", err)
				} else {
					slog.Warn("serial stream ended", "port", d.port)
				}
				return
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			sample, err := parseLine(line)
			if err != nil {
				slog.Debug("failed to parse line", "line", line, "error", err)
				continue
			}

			d.mu.Lock()
			d.values = sample.Values
			d.lastSeen = sample.Timestamp
			d.received = d.now()
			d.mu.Unlock()
		}
	}
}

// parseLine parses a line from the firmware into a Sample.
// Format: unix_micros,v0,v1,...
// Example: 1234567890123,1,0,2048,4095
func parseLine(line string) (Sample, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return Sample{}, fmt.Errorf("invalid line format: expected timestamp and at least one value, got %d fields", len(parts))
	}

	timestampMicros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Sample{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	values := make([]int, len(parts)-1)
	for i, p := range parts[1:] {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 16)
		if err != nil {
			return Sample{}, fmt.Errorf("invalid value for input %d: %w", i, err)
		}
		values[i] = int(v)
	}

	return Sample{
		Timestamp: time.Unix(0, timestampMicros*1000),
		Values:    values,
	}, nil
}
