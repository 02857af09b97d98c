package scope

import (
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

const maxDisplayPoints = 500

// palette cycles through trace colors by series index.
var palette = []color.Color{
	color.RGBA{R: 255, G: 165, B: 0, A: 255},
	color.RGBA{R: 100, G: 200, B: 255, A: 255},
	color.RGBA{R: 120, G: 220, B: 120, A: 255},
	color.RGBA{R: 230, G: 100, B: 180, A: 255},
	color.RGBA{R: 240, G: 230, B: 90, A: 255},
	color.RGBA{R: 170, G: 140, B: 255, A: 255},
}

// Widget plots the recent history of every channel on a fixed 0..100 scale.
type Widget struct {
	widget.BaseWidget

	history *History
	window  time.Duration

	series []Series
	now    time.Time
}

// New creates a trend widget drawing from history over the given time span.
func New(history *History, window time.Duration) *Widget {
	w := &Widget{
		history: history,
		window:  window,
		now:     time.Now(),
	}
	w.ExtendBaseWidget(w)
	return w
}

// Update takes a fresh snapshot of the history and redraws.
// Must be called on the Fyne main thread.
func (w *Widget) Update(now time.Time) {
	w.series = w.history.Snapshot(maxDisplayPoints)
	w.now = now
	w.Refresh()
}

// CreateRenderer creates the widget renderer.
func (w *Widget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &renderer{
		scope:   w,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
