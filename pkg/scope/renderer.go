package scope

import (
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

var (
	gridColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
)

type renderer struct {
	scope   *Widget
	bg      *canvas.Rectangle
	objects []fyne.CanvasObject
	size    fyne.Size
}

func (r *renderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 200)
}

func (r *renderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	if r.size != size {
		r.size = size
		r.draw(size)
	}
}

func (r *renderer) Refresh() {
	r.draw(r.scope.Size())
}

func (r *renderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *renderer) Destroy() {}

// plot is the drawable area inside the axis margins.
type plot struct {
	x, y, w, h float32
	start      time.Time
	span       time.Duration
}

func (p plot) pos(pt Point) fyne.Position {
	fx := float32(pt.Timestamp.Sub(p.start).Seconds() / p.span.Seconds())
	fy := float32(clamp(pt.Value, 0, 100) / 100)
	return fyne.NewPos(p.x+fx*p.w, p.y+p.h-fy*p.h)
}

func (r *renderer) draw(size fyne.Size) {
	r.objects = []fyne.CanvasObject{r.bg}
	if size.Width == 0 || size.Height == 0 {
		return
	}

	const marginLeft, marginRight, marginTop, marginBottom = 40, 110, 10, 25

	span := r.scope.window
	if span <= 0 {
		span = 30 * time.Second
	}
	p := plot{
		x:     marginLeft,
		y:     marginTop,
		w:     size.Width - marginLeft - marginRight,
		h:     size.Height - marginTop - marginBottom,
		start: r.scope.now.Add(-span),
		span:  span,
	}
	if p.w <= 0 || p.h <= 0 {
		return
	}

	r.drawGrid(p)
	for i, s := range r.scope.series {
		r.drawSeries(p, s, palette[i%len(palette)], i)
	}
}

func (r *renderer) drawGrid(p plot) {
	for i := range 5 {
		y := p.y + float32(i)*p.h/4
		r.line(fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.w, y), gridColor, 1)
		r.text(fmt.Sprintf("%d%%", 100-i*25), fyne.NewPos(p.x-5, y-6), fyne.TextAlignTrailing)
	}
	for i := range 7 {
		x := p.x + float32(i)*p.w/6
		r.line(fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.h), gridColor, 1)
		ago := p.span - time.Duration(i)*p.span/6
		r.text(fmt.Sprintf("-%ds", int(ago.Seconds())), fyne.NewPos(x, p.y+p.h+5), fyne.TextAlignCenter)
	}
}

func (r *renderer) drawSeries(p plot, s Series, c color.Color, index int) {
	var prev *fyne.Position
	for _, pt := range s.Points {
		if pt.Timestamp.Before(p.start) {
			continue
		}
		pos := p.pos(pt)
		if prev != nil {
			// Step plot: values hold until the next observation.
			r.line(*prev, fyne.NewPos(pos.X, prev.Y), c, 1.5)
			r.line(fyne.NewPos(pos.X, prev.Y), pos, c, 1.5)
		}
		prev = &pos
	}

	legend := canvas.NewText(s.Key, c)
	legend.TextSize = 11
	legend.Move(fyne.NewPos(p.x+p.w+10, p.y+float32(index)*16))
	r.objects = append(r.objects, legend)
}

func (r *renderer) line(a, b fyne.Position, c color.Color, width float32) {
	l := canvas.NewLine(c)
	l.Position1 = a
	l.Position2 = b
	l.StrokeWidth = width
	r.objects = append(r.objects, l)
}

func (r *renderer) text(s string, at fyne.Position, align fyne.TextAlign) {
	t := canvas.NewText(s, labelColor)
	t.TextSize = 10
	t.Alignment = align
	t.Move(at)
	r.objects = append(r.objects, t)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
