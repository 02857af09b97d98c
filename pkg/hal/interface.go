package hal

import "errors"

var (
	// ErrNotConnected is returned by Read before Connect or after Close.
	ErrNotConnected = errors.New("not connected")
	// ErrNoSample is returned when no value has been seen for an input yet.
	ErrNoSample = errors.New("no sample for input")
	// ErrStale is returned when the sample stream stopped or went quiet.
	ErrStale = errors.New("stale sample")
)

// Source defines the sampling boundary for physical inputs (real or mocked).
type Source interface {
	Connect() error
	Close() error
	Read(input int) (int, error)
	IsConnected() bool
}

// Ensure Serial implements Source.
var _ Source = (*Serial)(nil)

// Ensure Mock implements Source.
var _ Source = (*Mock)(nil)
