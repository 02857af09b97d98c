package main

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gopanel/pkg/config"
)

// channelRow displays one channel: a name, a gauge and the numeric value.
type channelRow struct {
	name  *widget.Label
	bar   *widget.ProgressBar
	value *widget.Label
}

// channelPanel lists channel rows in configuration order. Channels first seen
// in a poll but missing from the configuration get a row appended.
type channelPanel struct {
	box  *fyne.Container
	rows map[string]*channelRow
}

func newChannelPanel(channels []config.ChannelConfig) *channelPanel {
	p := &channelPanel{
		box:  container.NewVBox(),
		rows: make(map[string]*channelRow),
	}
	for _, ch := range channels {
		key := ch.Name
		if ch.Group != "" {
			key = ch.Group + "/" + ch.Name
		}
		p.add(key)
	}
	return p
}

func (p *channelPanel) Object() fyne.CanvasObject {
	return container.NewVScroll(p.box)
}

func (p *channelPanel) add(key string) *channelRow {
	row := &channelRow{
		name:  widget.NewLabel(key),
		bar:   widget.NewProgressBar(),
		value: widget.NewLabel("-"),
	}
	row.bar.Min, row.bar.Max = 0, 100
	row.bar.TextFormatter = func() string { return "" }

	p.rows[key] = row
	p.box.Add(container.NewBorder(nil, nil, row.name, row.value, row.bar))
	return row
}

// Set shows a polled value. Must be called on the Fyne main thread.
func (p *channelPanel) Set(key string, value int) {
	row, ok := p.rows[key]
	if !ok {
		row = p.add(key)
	}
	row.bar.SetValue(float64(value))
	row.value.SetText(fmt.Sprintf("%3d", value))
}

// Reset clears all displayed values.
func (p *channelPanel) Reset() {
	for _, row := range p.rows {
		row.bar.SetValue(0)
		row.value.SetText("-")
	}
}

// strengthText renders the link strength as five bars.
func strengthText(strength int, connected bool) string {
	if strength < 0 {
		strength = 0
	}
	if strength > 5 {
		strength = 5
	}
	status := "offline"
	if connected {
		status = "online"
	}
	return fmt.Sprintf("%s %s", strings.Repeat("▮", strength)+strings.Repeat("▯", 5-strength), status)
}
