package main

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// showSettingsDialog edits the monitor settings and saves them to the
// configuration file. A running poller is restarted with the new values.
func showSettingsDialog(state *appState) {
	addressEntry := widget.NewEntry()
	addressEntry.SetText(state.cfg.Monitor.Address)
	addressEntry.Validator = func(s string) error {
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return fmt.Errorf("expected a URL like http://192.168.4.1:8080")
		}
		return nil
	}

	intervalEntry := widget.NewEntry()
	intervalEntry.SetText(state.cfg.Monitor.Interval.String())
	intervalEntry.Validator = func(s string) error {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return fmt.Errorf("expected a positive duration like 150ms")
		}
		return nil
	}

	thresholdEntry := widget.NewEntry()
	thresholdEntry.SetText(strconv.Itoa(state.cfg.Monitor.Threshold))
	thresholdEntry.Validator = func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return fmt.Errorf("expected a non-negative integer")
		}
		return nil
	}

	items := []*widget.FormItem{
		{Text: "Responder", Widget: addressEntry, HintText: "Base URL of the responder"},
		{Text: "Poll Interval", Widget: intervalEntry},
		{Text: "Threshold (%)", Widget: thresholdEntry, HintText: "Minimum change shown"},
	}

	d := dialog.NewForm("Settings", "Save", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}

		interval, _ := time.ParseDuration(intervalEntry.Text)
		threshold, _ := strconv.Atoi(thresholdEntry.Text)

		state.cfg.Monitor.Address = addressEntry.Text
		state.cfg.Monitor.Interval = interval
		state.cfg.Monitor.Threshold = threshold
		state.save()

		if state.poller != nil {
			state.disconnect()
			state.connect()
		}
	}, state.window)
	d.Resize(fyne.NewSize(500, 250))
	d.Show()
}
