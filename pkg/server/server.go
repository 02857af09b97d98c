// Package server implements the polling server: a non-blocking TCP listener
// that services at most one HTTP request per call and always answers 200 with
// a JSON body.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/itohio/gopanel/pkg/config"
	"github.com/itohio/gopanel/pkg/payload"
	"github.com/itohio/gopanel/pkg/tracker"
)

// ErrServerClosed is returned by ServiceOnce after Close.
var ErrServerClosed = errors.New("server closed")

// Snapshotter provides the current channel readings.
type Snapshotter interface {
	Snapshot() tracker.Snapshot
}

// Clock reports monotonic milliseconds since boot.
type Clock interface {
	UptimeMillis() int64
}

type bootClock struct {
	start time.Time
}

// NewBootClock returns a Clock that counts from now.
func NewBootClock() Clock {
	return bootClock{start: time.Now()}
}

func (c bootClock) UptimeMillis() int64 {
	return time.Since(c.start).Milliseconds()
}

// Stats counts request outcomes.
type Stats struct {
	Served  int // Responses written
	Dropped int // Empty, unreadable or undecodable requests
	Faulted int // Handler or serialization faults
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides the uptime clock.
func WithClock(c Clock) Option {
	return func(s *Server) { s.clock = c }
}

// Server owns the listening socket. It is driven by a single loop calling
// ServiceOnce and is not safe for concurrent use.
type Server struct {
	cfg      config.ServerConfig
	channels []config.ChannelConfig

	ln     *net.TCPListener
	snap   Snapshotter
	clock  Clock
	routes []Route
	closed bool
	stats  Stats
}

// Listen binds the polling server on all interfaces on the configured port.
// Go listeners enable SO_REUSEADDR on Unix, so a restarted responder can bind
// while old connections linger in TIME_WAIT.
func Listen(cfg *config.Config, snap Snapshotter, opts ...Option) (*Server, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind port %d: %w", cfg.Server.Port, err)
	}

	s := &Server{
		cfg:      cfg.Server,
		channels: cfg.Channels,
		ln:       ln.(*net.TCPListener),
		snap:     snap,
		clock:    NewBootClock(),
	}
	if s.cfg.BufferSize <= 0 {
		s.cfg.BufferSize = 1024
	}
	if s.cfg.AcceptTimeout <= 0 {
		s.cfg.AcceptTimeout = 50 * time.Millisecond
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes = s.defaultRoutes()

	slog.Info("HTTP server listening", "addr", s.ln.Addr().String())

	return s, nil
}

// Addr returns the listener address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Stats returns the request counters.
func (s *Server) Stats() Stats {
	return s.stats
}

// Close releases the listening socket. It is safe to call more than once.
func (s *Server) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.ln.Close()
}

// ServiceOnce waits up to the accept timeout for one client and services it.
// An idle timeout is not an error. Request faults are contained here and never
// returned; only listener failures are.
func (s *Server) ServiceOnce() error {
	if s.closed {
		return ErrServerClosed
	}

	if err := s.ln.SetDeadline(time.Now().Add(s.cfg.AcceptTimeout)); err != nil {
		return fmt.Errorf("setting accept deadline: %w", err)
	}

	conn, err := s.ln.Accept()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}
		if errors.Is(err, net.ErrClosed) {
			return ErrServerClosed
		}
		return fmt.Errorf("accepting connection: %w", err)
	}

	s.handle(conn)
	return nil
}

// handle services one connection and always closes it.
func (s *Server) handle(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			s.stats.Faulted++
			slog.Error("request handling error", "remote", remote, "panic", r)
		}
	}()

	if s.cfg.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			slog.Warn("setting read deadline", "remote", remote, "error", err)
		}
	}

	buf := make([]byte, s.cfg.BufferSize)
	n, err := conn.Read(buf)
	if n == 0 || !utf8.Valid(buf[:n]) {
		s.stats.Dropped++
		slog.Debug("dropping unreadable request", "remote", remote, "bytes", n, "error", err)
		return
	}

	line := requestLine(buf[:n])
	slog.Debug("request", "remote", remote, "line", line)

	route := s.match(requestTarget(line))
	body, err := payload.Marshal(route.Handler(s.snap.Snapshot()))
	if err != nil {
		s.stats.Faulted++
		slog.Error("serializing response", "remote", remote, "route", route.Fragment, "error", err)
		return
	}

	if err := writeJSON(conn, body); err != nil {
		slog.Warn("writing response", "remote", remote, "error", err)
		return
	}
	s.stats.Served++
}

// requestLine returns the first line of a request without line terminators.
func requestLine(req []byte) string {
	line, _, _ := strings.Cut(string(req), "\n")
	return strings.TrimSpace(line)
}

// requestTarget returns the request target of a request line, or the whole
// line when it has no target token.
func requestTarget(line string) string {
	fields := strings.Fields(line)
	if len(fields) >= 2 {
		return fields[1]
	}
	return line
}
