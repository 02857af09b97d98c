package hal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Mock simulates a board with switches and sliders for testing and development.
// Values can be set directly; with a non-zero rate the mock also moves them on
// its own: digital inputs toggle and analog inputs sweep up and down.
type Mock struct {
	rate time.Duration

	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	values map[int]int
	maxima map[int]int // Analog inputs and their raw maximum
	failed map[int]bool
	step   map[int]int
}

// NewMock creates a mock source. A zero rate keeps values static.
func NewMock(rate time.Duration) *Mock {
	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		rate:   rate,
		ctx:    ctx,
		cancel: cancel,
		values: make(map[int]int),
		maxima: make(map[int]int),
		failed: make(map[int]bool),
		step:   make(map[int]int),
	}
}

// AddAnalog declares input as analog with the given raw maximum.
func (m *Mock) AddAnalog(input, limit int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxima[input] = limit
	if _, ok := m.values[input]; !ok {
		m.values[input] = 0
	}
}

// Set stores a raw value for input.
func (m *Mock) Set(input, value int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[input] = value
}

// Fail makes reads of input return an error until cleared.
func (m *Mock) Fail(input int, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[input] = fail
}

// Connect starts the mock.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}
	m.connected = true

	if m.rate > 0 {
		go m.simulate()
	}

	return nil
}

// Close stops the mock.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.cancel()
	m.connected = false

	return nil
}

// IsConnected returns whether the mock is running.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Read returns the current raw value for input.
func (m *Mock) Read(input int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return 0, ErrNotConnected
	}
	if m.failed[input] {
		return 0, fmt.Errorf("input %d: simulated read failure", input)
	}

	v, ok := m.values[input]
	if !ok {
		return 0, fmt.Errorf("input %d: %w", input, ErrNoSample)
	}
	return v, nil
}

func (m *Mock) simulate() {
	ticker := time.NewTicker(m.rate)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			tick++
			m.advance(tick)
		}
	}
}

// advance moves every input one step. Switches flip every 20 ticks, sliders
// move by 1/50 of their range per tick and bounce at the ends.
func (m *Mock) advance(tick int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for input, v := range m.values {
		limit, analog := m.maxima[input]
		if !analog {
			if tick%20 == 0 {
				m.values[input] = 1 - v
			}
			continue
		}

		step := m.step[input]
		if step == 0 {
			step = limit / 50
			if step == 0 {
				step = 1
			}
		}
		next := v + step
		if next > limit {
			next, step = limit, -step
		} else if next < 0 {
			next, step = 0, -step
		}
		m.values[input] = next
		m.step[input] = step
	}
}
