package main

import (
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gopanel/pkg/config"
)

func TestChannelPanel_Set(t *testing.T) {
	test.NewTempApp(t)

	p := newChannelPanel([]config.ChannelConfig{
		{Name: "switch1", Kind: config.KindDigital},
		{Name: "channel_a", Group: "slider1", Kind: config.KindAnalog, Max: 4095},
	})
	require.Len(t, p.box.Objects, 2)

	p.Set("slider1/channel_a", 48)
	assert.Equal(t, 48.0, p.rows["slider1/channel_a"].bar.Value)
	assert.Equal(t, " 48", p.rows["slider1/channel_a"].value.Text)

	p.Set("slider2/channel_b", 7)
	assert.Len(t, p.box.Objects, 3)
	assert.Equal(t, 7.0, p.rows["slider2/channel_b"].bar.Value)

	p.Reset()
	assert.Equal(t, 0.0, p.rows["slider1/channel_a"].bar.Value)
	assert.Equal(t, "-", p.rows["switch1"].value.Text)
}

func TestStrengthText(t *testing.T) {
	tests := []struct {
		strength  int
		connected bool
		want      string
	}{
		{0, false, "▯▯▯▯▯ offline"},
		{3, true, "▮▮▮▯▯ online"},
		{5, true, "▮▮▮▮▮ online"},
		{9, true, "▮▮▮▮▮ online"},
		{-1, false, "▯▯▯▯▯ offline"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, strengthText(tt.strength, tt.connected))
	}
}
