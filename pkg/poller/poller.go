// Package poller is the host-side client of the responder. It polls the data
// route, keeps a flat view of the channel values and estimates link quality.
package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/itohio/gopanel/pkg/payload"
)

const (
	DefaultInterval  = 150 * time.Millisecond
	DefaultThreshold = 2
	DefaultTimeout   = 3 * time.Second

	historySize  = 10
	slowResponse = 500 * time.Millisecond
	staleLink    = 5 * time.Second
	maxBodySize  = 64 << 10
)

// ErrStatus is returned when the responder answers with anything but 200.
var ErrStatus = errors.New("unexpected response status")

// ChangeFunc receives a channel key and its new value.
type ChangeFunc func(key string, value int)

type Option func(*Poller)

// WithInterval sets the base polling interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithThreshold sets the minimum change delivered to OnChange.
func WithThreshold(n int) Option {
	return func(p *Poller) { p.threshold = n }
}

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option {
	return func(p *Poller) { p.client = c }
}

// WithClock replaces the time source used for statistics.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// OnChange registers the change callback.
func OnChange(fn ChangeFunc) Option {
	return func(p *Poller) { p.onChange = fn }
}

type stats struct {
	success     int
	failure     int
	consecutive int
	lastSuccess time.Time
	history     []time.Duration
}

// Poller polls a responder's data route.
type Poller struct {
	url       string
	client    *http.Client
	interval  time.Duration
	threshold int
	onChange  ChangeFunc
	now       func() time.Time

	mu        sync.Mutex
	stats     stats
	values    map[string]int
	digital   map[string]bool
	delivered map[string]int
	lastErr   error
}

// New creates a poller for the responder at baseURL (e.g. http://10.0.0.7:8080).
func New(baseURL string, opts ...Option) *Poller {
	p := &Poller{
		url:       strings.TrimRight(baseURL, "/") + "/data",
		client:    &http.Client{Timeout: DefaultTimeout},
		interval:  DefaultInterval,
		threshold: DefaultThreshold,
		now:       time.Now,
		values:    make(map[string]int),
		digital:   make(map[string]bool),
		delivered: make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.stats.lastSuccess = p.now()
	return p
}

// Poll performs a single request and returns the flattened channel values.
// A request aborted through ctx does not count as a link failure.
func (p *Poller) Poll(ctx context.Context) (map[string]int, error) {
	start := p.now()
	values, digital, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		p.mu.Lock()
		p.stats.failure++
		p.stats.consecutive++
		p.lastErr = err
		p.mu.Unlock()
		return nil, err
	}

	p.mu.Lock()
	now := p.now()
	p.stats.success++
	p.stats.consecutive = 0
	p.stats.lastSuccess = now
	p.stats.history = append(p.stats.history, now.Sub(start))
	if len(p.stats.history) > historySize {
		p.stats.history = p.stats.history[1:]
	}
	p.lastErr = nil
	p.values = values
	p.digital = digital
	changed := p.changes(values)
	p.mu.Unlock()

	if p.onChange != nil {
		for _, key := range changed {
			p.onChange(key, values[key])
		}
	}

	return values, nil
}

func (p *Poller) fetch(ctx context.Context) (map[string]int, map[string]bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to poll %s: %w", p.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	doc, err := payload.Unmarshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode response: %w", err)
	}

	values := make(map[string]int)
	digital := make(map[string]bool)
	flatten("", doc, values, digital)
	return values, digital, nil
}

// changes returns the keys whose value moved at least threshold away from the
// last delivered value, in key order. Switches are delivered on every flip.
// Must be called with mu held.
func (p *Poller) changes(values map[string]int) []string {
	var keys []string
	for key, v := range values {
		last, seen := p.delivered[key]
		if !seen || abs(v-last) >= p.threshold || (p.digital[key] && v != last) {
			p.delivered[key] = v
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy of the latest polled values. Analog channels report
// their percentage and switches 0 or 1.
func (p *Poller) Values() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]int, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Connected reports whether the last poll succeeded.
func (p *Poller) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.success > 0 && p.stats.consecutive == 0
}

// Err returns the error of the last failed poll, or nil after a success.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Strength rates the link from 0 (dead) to 5 (excellent).
func (p *Poller) Strength() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats
	total := s.success + s.failure
	if total == 0 {
		return 0
	}

	strength := float64(s.success) / float64(total) * 5
	if s.consecutive > 0 {
		strength -= math.Min(float64(s.consecutive)*0.5, 2)
	}
	if averageOf(s.history) > slowResponse {
		strength -= 1
	}
	if p.now().Sub(s.lastSuccess) > staleLink {
		strength -= 2
	}

	return int(math.Max(0, math.Min(5, math.Round(strength))))
}

// Run polls until ctx is done. The wait between polls grows by half the base
// interval for each consecutive failure.
func (p *Poller) Run(ctx context.Context) error {
	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			slog.Debug("poll failed", "url", p.url, "error", err)
		}

		timer := time.NewTimer(p.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *Poller) nextDelay() time.Duration {
	p.mu.Lock()
	failures := p.stats.consecutive
	p.mu.Unlock()
	return time.Duration(float64(p.interval) * (1 + 0.5*float64(failures)))
}

// flatten walks the data document. A map carrying a "raw" field is a channel;
// any other map is a group whose members are keyed "group/name".
func flatten(prefix string, v payload.Value, out map[string]int, digital map[string]bool) {
	if v.Kind() != payload.MapKind {
		return
	}
	if _, ok := v.Get("raw"); ok {
		out[prefix] = channelValue(v)
		if _, ok := v.Get("state"); ok {
			digital[prefix] = true
		}
		return
	}
	for _, f := range v.Fields() {
		key := f.Key
		if prefix != "" {
			key = prefix + "/" + f.Key
		}
		flatten(key, f.Value, out, digital)
	}
}

func channelValue(v payload.Value) int {
	if pct, ok := v.Get("percentage"); ok {
		if n, ok := pct.Int(); ok {
			return int(n)
		}
	}
	if state, ok := v.Get("state"); ok {
		if b, ok := state.Bool(); ok && b {
			return 1
		}
		return 0
	}
	raw, _ := v.Get("raw")
	n, _ := raw.Int()
	return int(n)
}

func averageOf(history []time.Duration) time.Duration {
	if len(history) == 0 {
		return time.Second
	}
	var sum time.Duration
	for _, d := range history {
		sum += d
	}
	return sum / time.Duration(len(history))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
