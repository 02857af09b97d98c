package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/itohio/gopanel/pkg/config"
	"github.com/itohio/gopanel/pkg/hal"
	"github.com/itohio/gopanel/pkg/metrics"
	"github.com/itohio/gopanel/pkg/netlink"
	"github.com/itohio/gopanel/pkg/report"
	"github.com/itohio/gopanel/pkg/responder"
	"github.com/itohio/gopanel/pkg/server"
	"github.com/itohio/gopanel/pkg/tracker"
)

func main() {
	var (
		configFlag  = pflag.StringP("config", "c", "config.yaml", "Configuration file path")
		portFlag    = pflag.IntP("port", "p", 0, "Server port override")
		serialFlag  = pflag.StringP("serial", "s", "", "Serial port override (e.g., /dev/ttyACM0)")
		mockFlag    = pflag.Bool("mock", false, "Use simulated inputs instead of the serial source")
		listFlag    = pflag.Bool("list-ports", false, "List serial ports and exit")
		metricsFlag = pflag.String("metrics", "", "Prometheus endpoint address override (e.g., :9100)")
		verboseFlag = pflag.BoolP("verbose", "v", false, "Log every request")
	)
	pflag.Parse()

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *listFlag {
		os.Exit(listPorts())
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if *portFlag != 0 {
		cfg.Server.Port = *portFlag
	}
	if *serialFlag != "" {
		cfg.Source.Port = *serialFlag
	}
	if *mockFlag {
		cfg.Source.Kind = config.SourceMock
	}
	if *metricsFlag != "" {
		cfg.Metrics.Address = *metricsFlag
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	os.Exit(run(cfg))
}

// run owns every resource of the responder; deferred releases run on every
// return path, including an interrupt.
func run(cfg *config.Config) int {
	clock := server.NewBootClock()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ip, err := netlink.NewHost(cfg.Network).Connect(ctx, cfg.Network.SSID, cfg.Network.Password)
	if err != nil {
		slog.Error("cannot continue without network connection", "error", err)
		return 1
	}

	source := newSource(cfg)
	if err := source.Connect(); err != nil {
		slog.Error("failed to connect input source", "kind", cfg.Source.Kind, "error", err)
		return 1
	}
	defer source.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Address != "" {
		m = metrics.New()
	}

	reporter, closeReporter := newReporter(cfg, m)
	defer closeReporter()

	tr := tracker.New(cfg.Channels, source, reporter)
	waitCtx, cancelWait := context.WithTimeout(ctx, cfg.Source.StaleAfter)
	snap, ready := tr.WaitReady(waitCtx, cfg.Server.LoopInterval)
	cancelWait()
	if ctx.Err() != nil {
		slog.Info("shutting down")
		return 0
	}
	if !ready {
		slog.Warn("no sample for some channels yet", "waited", cfg.Source.StaleAfter)
	}
	for _, r := range snap {
		slog.Info("initial channel state", "channel", r.Key(), "raw", r.Raw, "value", r.Value)
	}

	srv, err := server.Listen(cfg, tr, server.WithClock(clock))
	if err != nil {
		slog.Error("failed to start server", "error", err)
		return 1
	}
	defer func() {
		if err := srv.Close(); err != nil {
			slog.Warn("closing server", "error", err)
		}
		st := srv.Stats()
		slog.Info("server stopped", "served", st.Served, "dropped", st.Dropped, "faulted", st.Faulted)
	}()

	slog.Info("responder ready",
		"ip", ip.String(),
		"port", cfg.Server.Port,
		"channels", len(cfg.Channels),
		"test_url", fmt.Sprintf("http://%s:%d/switches", ip, cfg.Server.Port),
	)

	loop := responder.New(srv, tr, cfg.Server.LoopInterval)
	if m != nil {
		m.Seed(snap)
		loop.AfterStep(func() { m.Observe(srv.Stats()) })
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Address); err != nil {
				slog.Warn("metrics endpoint disabled", "error", err)
			}
		}()
	}

	err = loop.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		slog.Info("shutting down")
	case err != nil:
		slog.Error("error in main loop", "error", err)
		return 1
	}

	return 0
}

func newSource(cfg *config.Config) hal.Source {
	if cfg.Source.Kind == config.SourceMock {
		mock := hal.NewMock(cfg.Source.SampleRate)
		for _, ch := range cfg.Channels {
			if ch.Kind == config.KindAnalog {
				mock.AddAnalog(ch.Input, ch.Max)
			} else {
				mock.Set(ch.Input, 1) // pull-up: released switch reads high
			}
		}
		return mock
	}
	serial := hal.NewSerial(cfg.Source.Port, cfg.Source.BaudRate)
	serial.SetStaleAfter(cfg.Source.StaleAfter)
	return serial
}

func newReporter(cfg *config.Config, m *metrics.Metrics) (tracker.Reporter, func()) {
	reporters := report.Multi{report.NewLog(nil)}
	if m != nil {
		reporters = append(reporters, m)
	}
	if cfg.MQTT.Broker == "" {
		return reporters, func() {}
	}

	mqtt, err := report.NewMQTT(cfg.MQTT)
	if err != nil {
		slog.Warn("MQTT reporting disabled", "error", err)
		return reporters, func() {}
	}
	return append(reporters, mqtt), mqtt.Close
}

func listPorts() int {
	ports, err := hal.Ports()
	if err != nil {
		slog.Error("failed to list serial ports", "error", err)
		return 1
	}
	for _, p := range ports {
		fmt.Println(p.Name)
	}
	return 0
}
