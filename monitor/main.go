package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/spf13/pflag"

	"github.com/itohio/gopanel/pkg/config"
	"github.com/itohio/gopanel/pkg/poller"
	"github.com/itohio/gopanel/pkg/scope"
)

const refreshInterval = 250 * time.Millisecond

func main() {
	var (
		configFlag  = pflag.StringP("config", "c", "config.yaml", "Configuration file path")
		addressFlag = pflag.StringP("address", "a", "", "Responder address override (e.g., http://192.168.4.1:8080)")
	)
	pflag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *addressFlag != "" {
		cfg.Monitor.Address = *addressFlag
	}

	application := app.NewWithID("com.itohio.gopanel")

	window := application.NewWindow("GoPanel Monitor")
	window.Resize(fyne.NewSize(900, 600))
	window.CenterOnScreen()

	history := scope.NewHistory(cfg.Monitor.Window)
	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		window:     window,
		panel:      newChannelPanel(cfg.Channels),
		history:    history,
		trend:      scope.New(history, cfg.Monitor.Window),
	}

	window.SetContent(container.NewBorder(
		createToolbar(state),
		nil,
		nil,
		nil,
		container.NewVSplit(state.panel.Object(), state.trend),
	))
	window.SetOnClosed(state.disconnect)
	window.ShowAndRun()
}

// appState holds the application state. Fields are touched only on the Fyne
// main thread; the poller goroutine reaches them through fyne.Do.
type appState struct {
	cfg        *config.Config
	configPath string
	window     fyne.Window
	connectBtn *widget.Button
	strength   *widget.Label
	panel      *channelPanel
	history    *scope.History
	trend      *scope.Widget

	poller *poller.Poller
	cancel context.CancelFunc
	done   chan struct{}
}

// createToolbar creates the toolbar with Connect and Settings buttons and the
// link strength indicator.
func createToolbar(state *appState) fyne.CanvasObject {
	state.connectBtn = widget.NewButtonWithIcon("Connect", theme.LoginIcon(), func() {
		handleConnect(state)
	})

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	state.strength = widget.NewLabel(strengthText(0, false))

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(state.connectBtn, settingsBtn),
		state.strength,
		nil,
	)
}

// handleConnect toggles polling of the configured responder.
func handleConnect(state *appState) {
	if state.poller != nil {
		state.disconnect()
		return
	}
	state.connect()
}

func (s *appState) connect() {
	s.history.Reset()
	s.panel.Reset()

	p := poller.New(s.cfg.Monitor.Address,
		poller.WithInterval(s.cfg.Monitor.Interval),
		poller.WithThreshold(s.cfg.Monitor.Threshold),
		poller.OnChange(func(key string, value int) {
			now := time.Now()
			s.history.Add(key, now, float64(value))
			fyne.Do(func() { s.panel.Set(key, value) })
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.poller = p
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		p.Run(ctx)
	}(s.done)
	go s.refresh(ctx, p)

	s.connectBtn.SetText("Disconnect")
	s.connectBtn.SetIcon(theme.LogoutIcon())
	slog.Info("polling responder", "address", s.cfg.Monitor.Address, "interval", s.cfg.Monitor.Interval)
}

func (s *appState) disconnect() {
	if s.poller == nil {
		return
	}
	s.cancel()
	<-s.done
	s.poller = nil

	s.connectBtn.SetText("Connect")
	s.connectBtn.SetIcon(theme.LoginIcon())
	s.strength.SetText(strengthText(0, false))
	slog.Info("stopped polling", "address", s.cfg.Monitor.Address)
}

// refresh periodically redraws the trend and the strength indicator.
func (s *appState) refresh(ctx context.Context, p *poller.Poller) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.history.Extend(now)
			strength, connected, err := p.Strength(), p.Connected(), p.Err()
			if err != nil && (lastErr == nil || err.Error() != lastErr.Error()) {
				slog.Warn("poll failed", "error", err)
			}
			lastErr = err

			fyne.Do(func() {
				if ctx.Err() != nil {
					return
				}
				s.strength.SetText(strengthText(strength, connected))
				s.trend.Update(now)
			})
		}
	}
}

func (s *appState) save() {
	if err := s.cfg.Save(s.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), s.window)
	}
}
