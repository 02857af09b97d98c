package report

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gopanel/pkg/payload"
	"github.com/itohio/gopanel/pkg/tracker"
)

type doneToken struct {
	err  error
	done chan struct{}
}

func newDoneToken(err error) *doneToken {
	t := &doneToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                       { return true }
func (t *doneToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}            { return t.done }
func (t *doneToken) Error() error                     { return t.err }

type published struct {
	topic string
	body  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) Publish(topic string, _ byte, _ bool, body interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic: topic, body: body.([]byte)})
	return newDoneToken(nil)
}

func TestLog_Report(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	NewLog(logger).Report(tracker.Transition{Channel: "switch1", Old: 1, New: 0})

	out := buf.String()
	assert.Contains(t, out, "channel changed")
	assert.Contains(t, out, "channel=switch1")
	assert.Contains(t, out, "old=1")
	assert.Contains(t, out, "new=0")
}

func TestNewLog_NilLogger(t *testing.T) {
	assert.NotNil(t, NewLog(nil).logger)
}

type collect struct{ got []tracker.Transition }

func (c *collect) Report(t tracker.Transition) { c.got = append(c.got, t) }

func TestMulti_Report(t *testing.T) {
	a, b := &collect{}, &collect{}
	tr := tracker.Transition{Channel: "slider1/channel_a", Old: 48, New: 51}

	Multi{a, b}.Report(tr)

	assert.Equal(t, []tracker.Transition{tr}, a.got)
	assert.Equal(t, []tracker.Transition{tr}, b.got)
}

func TestMQTT_Topic(t *testing.T) {
	assert.Equal(t, "gopanel/switch1", newMQTT(nil, "gopanel").Topic("switch1"))
	assert.Equal(t, "gopanel/slider1/channel_a", newMQTT(nil, "gopanel/").Topic("slider1/channel_a"))
	assert.Equal(t, "switch1", newMQTT(nil, "").Topic("switch1"))
}

func TestMQTT_Report(t *testing.T) {
	pub := &fakePublisher{}
	m := newMQTT(pub, "gopanel")

	m.Report(tracker.Transition{Channel: "slider1/channel_a", Old: 48, New: 51})

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "gopanel/slider1/channel_a", pub.msgs[0].topic)
	assert.Equal(t, `{"channel":"slider1/channel_a","old":48,"new":51}`, string(pub.msgs[0].body))

	decoded, err := payload.Unmarshal(pub.msgs[0].body)
	require.NoError(t, err)
	assert.True(t, payload.Equal(Encode(tracker.Transition{Channel: "slider1/channel_a", Old: 48, New: 51}), decoded))
}
