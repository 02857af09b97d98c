package report

import (
	"log/slog"

	"github.com/itohio/gopanel/pkg/tracker"
)

// Log writes transitions as structured log records.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log reporter. A nil logger uses slog.Default.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Report(t tracker.Transition) {
	l.logger.Info("channel changed", "channel", t.Channel, "old", t.Old, "new", t.New)
}

// Multi fans a transition out to several reporters.
type Multi []tracker.Reporter

func (m Multi) Report(t tracker.Transition) {
	for _, r := range m {
		r.Report(t)
	}
}

var (
	_ tracker.Reporter = (*Log)(nil)
	_ tracker.Reporter = (*MQTT)(nil)
	_ tracker.Reporter = Multi(nil)
)
