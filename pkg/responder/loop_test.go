package responder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gopanel/pkg/config"
	"github.com/itohio/gopanel/pkg/hal"
	"github.com/itohio/gopanel/pkg/server"
	"github.com/itohio/gopanel/pkg/tracker"
)

type journal struct {
	events []string
}

type fakeServicer struct {
	j   *journal
	err error
}

func (f *fakeServicer) ServiceOnce() error {
	f.j.events = append(f.j.events, "service")
	return f.err
}

type fakeDetector struct {
	j *journal
}

func (f *fakeDetector) DetectAndReport() []tracker.Transition {
	f.j.events = append(f.j.events, "detect")
	return nil
}

type countingDetector struct {
	det         Detector
	calls       int
	transitions []tracker.Transition
}

func (c *countingDetector) DetectAndReport() []tracker.Transition {
	c.calls++
	got := c.det.DetectAndReport()
	c.transitions = append(c.transitions, got...)
	return got
}

func TestRunN_Order(t *testing.T) {
	j := &journal{}
	l := New(&fakeServicer{j: j}, &fakeDetector{j: j}, 0)

	require.NoError(t, l.RunN(context.Background(), 3))
	assert.Equal(t, []string{"service", "detect", "service", "detect", "service", "detect"}, j.events)
}

func TestStep_AfterStep(t *testing.T) {
	j := &journal{}
	l := New(&fakeServicer{j: j}, &fakeDetector{j: j}, 0)
	l.AfterStep(func() { j.events = append(j.events, "after") })

	require.NoError(t, l.RunN(context.Background(), 2))
	assert.Equal(t, []string{"service", "detect", "after", "service", "detect", "after"}, j.events)
}

func TestStep_ListenerErrorDoesNotStop(t *testing.T) {
	j := &journal{}
	l := New(&fakeServicer{j: j, err: errors.New("accept: too many open files")}, &fakeDetector{j: j}, 0)

	require.NoError(t, l.RunN(context.Background(), 2))
	assert.Equal(t, []string{"service", "detect", "service", "detect"}, j.events)
}

func TestRun_StopsOnClosedServer(t *testing.T) {
	j := &journal{}
	l := New(&fakeServicer{j: j, err: server.ErrServerClosed}, &fakeDetector{j: j}, time.Millisecond)

	err := l.Run(context.Background())
	assert.ErrorIs(t, err, server.ErrServerClosed)
	assert.Equal(t, []string{"service"}, j.events)
}

func TestRun_Cancel(t *testing.T) {
	j := &journal{}
	l := New(&fakeServicer{j: j}, &fakeDetector{j: j}, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEmpty(t, j.events)
}

// No client connects for five iterations: nothing is served, nothing fails
// and change detection still runs every time.
func TestRunN_IdleIterations(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.AcceptTimeout = 10 * time.Millisecond
	cfg.Channels = []config.ChannelConfig{{Name: "switch1", Kind: config.KindDigital, Input: 0}}

	src := hal.NewMock(0)
	src.Set(0, 1)
	require.NoError(t, src.Connect())
	defer src.Close()

	tr := tracker.New(cfg.Channels, src, nil)
	srv, err := server.Listen(cfg, tr)
	require.NoError(t, err)
	defer srv.Close()

	det := &countingDetector{det: tr}
	l := New(srv, det, time.Millisecond)

	src.Set(0, 0)
	require.NoError(t, l.RunN(context.Background(), 5))

	assert.Equal(t, 5, det.calls)
	assert.Equal(t, server.Stats{}, srv.Stats())
	assert.Equal(t, []tracker.Transition{{Channel: "switch1", Old: 1, New: 0}}, det.transitions)
}
