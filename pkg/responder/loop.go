// Package responder runs the single control loop of the board: service one
// request, run change detection, sleep, repeat.
package responder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/itohio/gopanel/pkg/server"
	"github.com/itohio/gopanel/pkg/tracker"
)

// Servicer services at most one pending request per call.
type Servicer interface {
	ServiceOnce() error
}

// Detector runs one change detection cycle.
type Detector interface {
	DetectAndReport() []tracker.Transition
}

var (
	_ Servicer = (*server.Server)(nil)
	_ Detector = (*tracker.Tracker)(nil)
)

// Loop ties the polling server and the sensor tracker together.
type Loop struct {
	srv      Servicer
	det      Detector
	interval time.Duration
	after    []func()
}

// New creates a loop sleeping interval between iterations.
func New(srv Servicer, det Detector, interval time.Duration) *Loop {
	return &Loop{srv: srv, det: det, interval: interval}
}

// AfterStep registers fn to run at the end of every iteration.
func (l *Loop) AfterStep(fn func()) {
	l.after = append(l.after, fn)
}

// Run iterates until ctx is cancelled or the server is closed.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.Step(); err != nil {
			return err
		}
		if !l.sleep(ctx) {
			return ctx.Err()
		}
	}
}

// RunN executes n iterations unless ctx is cancelled first.
func (l *Loop) RunN(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.Step(); err != nil {
			return err
		}
		if i < n-1 && !l.sleep(ctx) {
			return ctx.Err()
		}
	}
	return nil
}

// Step runs exactly one iteration: one service attempt, then one detection
// cycle. Listener failures are logged; only a closed server ends the loop.
func (l *Loop) Step() error {
	if err := l.srv.ServiceOnce(); err != nil {
		if errors.Is(err, server.ErrServerClosed) {
			return err
		}
		slog.Error("serving request", "error", err)
	}
	l.det.DetectAndReport()
	for _, fn := range l.after {
		fn()
	}
	return nil
}

func (l *Loop) sleep(ctx context.Context) bool {
	if l.interval <= 0 {
		return true
	}
	t := time.NewTimer(l.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
