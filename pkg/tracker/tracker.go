package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/itohio/gopanel/pkg/config"
	"github.com/itohio/gopanel/pkg/hal"
)

// Reading is one channel's value at snapshot time.
type Reading struct {
	Name  string
	Group string
	Kind  string
	Raw   int // Raw value within the channel domain
	Value int // Normalized value: 0/1 for digital, percentage for analog
}

// Key returns the channel identifier used in transitions.
func (r Reading) Key() string { return key(r.Group, r.Name) }

// Analog reports whether the reading comes from an analog channel.
func (r Reading) Analog() bool { return r.Kind == config.KindAnalog }

// Snapshot is the set of all channel readings taken at one instant, in
// configuration order.
type Snapshot []Reading

// Get returns the reading with the given key.
func (s Snapshot) Get(key string) (Reading, bool) {
	for _, r := range s {
		if r.Key() == key {
			return r, true
		}
	}
	return Reading{}, false
}

// Transition is a reported change of a channel's normalized value.
type Transition struct {
	Channel string
	Old     int
	New     int
}

func (t Transition) String() string {
	return fmt.Sprintf("%s: %d -> %d", t.Channel, t.Old, t.New)
}

// Reporter receives transitions emitted by DetectAndReport.
type Reporter interface {
	Report(Transition)
}

type channel struct {
	cfg config.ChannelConfig

	raw       int  // Last good raw value
	seen      bool // At least one good read
	failing   bool // Last read was invalid
	baselined bool // reported holds a real reading
	reported  int  // Last reported normalized value
}

// Tracker samples the configured channels and reports significant changes.
// It is owned by the serving loop and is not safe for concurrent use.
type Tracker struct {
	source   hal.Source
	reporter Reporter
	channels []*channel
}

// New creates a tracker and takes the initial baseline snapshot.
// reporter may be nil.
func New(channels []config.ChannelConfig, source hal.Source, reporter Reporter) *Tracker {
	t := &Tracker{
		source:   source,
		reporter: reporter,
		channels: make([]*channel, 0, len(channels)),
	}
	for _, cfg := range channels {
		t.channels = append(t.channels, &channel{cfg: cfg})
	}

	t.Baseline()

	return t
}

// Baseline reads all channels and makes the result the last reported values.
// A channel without a good read yet is baselined later by its first good
// read, which emits no transition.
func (t *Tracker) Baseline() Snapshot {
	snap := t.ReadAll()
	for i, r := range snap {
		ch := t.channels[i]
		ch.reported = r.Value
		ch.baselined = ch.seen
	}
	return snap
}

// Ready reports whether every channel has produced a good read.
func (t *Tracker) Ready() bool {
	for _, ch := range t.channels {
		if !ch.seen {
			return false
		}
	}
	return true
}

// WaitReady reads every channel each poll interval until all of them have a
// good read or ctx is done. It returns the last snapshot and whether the
// tracker became ready.
func (t *Tracker) WaitReady(ctx context.Context, poll time.Duration) (Snapshot, bool) {
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		snap := t.ReadAll()
		if t.Ready() {
			return snap, true
		}
		select {
		case <-ctx.Done():
			return snap, false
		case <-ticker.C:
		}
	}
}

// ReadAll reads every channel. It never fails: an invalid read keeps the last
// good raw value and logs a diagnostic.
func (t *Tracker) ReadAll() Snapshot {
	snap := make(Snapshot, len(t.channels))
	for i, ch := range t.channels {
		t.sample(ch)
		snap[i] = Reading{
			Name:  ch.cfg.Name,
			Group: ch.cfg.Group,
			Kind:  ch.cfg.Kind,
			Raw:   ch.raw,
			Value: normalize(ch.cfg, ch.raw),
		}
	}
	return snap
}

// Snapshot returns the current readings of all channels.
func (t *Tracker) Snapshot() Snapshot {
	return t.ReadAll()
}

// DetectAndReport compares a fresh snapshot with the last reported values.
// A channel whose normalized value moved by at least its threshold is reported
// and its baseline updated; other channels keep their baseline, so small steps
// never accumulate into a report.
func (t *Tracker) DetectAndReport() []Transition {
	var transitions []Transition

	for i, r := range t.ReadAll() {
		ch := t.channels[i]
		if !ch.baselined {
			if ch.seen {
				ch.reported = r.Value
				ch.baselined = true
			}
			continue
		}
		if !exceeds(r.Value, ch.reported, ch.cfg.Threshold) {
			continue
		}

		tr := Transition{Channel: r.Key(), Old: ch.reported, New: r.Value}
		ch.reported = r.Value
		transitions = append(transitions, tr)

		if t.reporter != nil {
			t.reporter.Report(tr)
		}
	}

	return transitions
}

func (t *Tracker) sample(ch *channel) {
	raw, err := t.source.Read(ch.cfg.Input)
	if err == nil && !inDomain(ch.cfg, raw) {
		err = fmt.Errorf("value %d outside domain", raw)
	}

	if err != nil {
		if !ch.failing {
			slog.Warn("invalid channel read, keeping last value",
				"channel", key(ch.cfg.Group, ch.cfg.Name), "last", ch.raw, "error", err)
		}
		ch.failing = true
		return
	}

	if ch.failing {
		slog.Info("channel read recovered", "channel", key(ch.cfg.Group, ch.cfg.Name), "raw", raw)
	}
	ch.failing = false
	ch.seen = true
	ch.raw = raw
}

// Percentage converts an analog raw value to percent of full scale, truncating.
func Percentage(raw, full int) int {
	if full <= 0 {
		return 0
	}
	return raw * 100 / full
}

func normalize(cfg config.ChannelConfig, raw int) int {
	if cfg.Kind == config.KindAnalog {
		return Percentage(raw, cfg.Max)
	}
	return raw
}

func inDomain(cfg config.ChannelConfig, raw int) bool {
	if cfg.Kind == config.KindAnalog {
		return raw >= 0 && raw <= cfg.Max
	}
	return raw == 0 || raw == 1
}

// exceeds reports whether the change from last to now meets threshold.
// A zero threshold reports any change.
func exceeds(now, last, threshold int) bool {
	diff := now - last
	if diff < 0 {
		diff = -diff
	}
	if threshold < 1 {
		threshold = 1
	}
	return diff >= threshold
}

func key(group, name string) string {
	if group == "" {
		return name
	}
	return group + "/" + name
}
