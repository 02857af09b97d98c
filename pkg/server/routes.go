package server

import (
	"strings"

	"github.com/itohio/gopanel/pkg/config"
	"github.com/itohio/gopanel/pkg/payload"
	"github.com/itohio/gopanel/pkg/tracker"
)

// Handler builds a response payload from the current snapshot.
type Handler func(snap tracker.Snapshot) payload.Value

// Route maps a request target fragment to a handler. A route matches when
// the target contains Fragment anywhere.
type Route struct {
	Fragment string
	Handler  Handler
}

const serverMessage = "gopanel switch server"

// defaultRoutes returns the routes in priority order. The last route has an
// empty fragment and is the fallback.
func (s *Server) defaultRoutes() []Route {
	return []Route{
		{Fragment: "/switches", Handler: Data},
		{Fragment: "/sliders", Handler: Data},
		{Fragment: "/data", Handler: Data},
		{Fragment: "/status", Handler: s.health},
		{Fragment: "", Handler: s.info},
	}
}

// match returns the first route whose fragment occurs in target.
func (s *Server) match(target string) Route {
	for _, r := range s.routes {
		if strings.Contains(target, r.Fragment) {
			return r
		}
	}
	return s.routes[len(s.routes)-1]
}

func (s *Server) health(tracker.Snapshot) payload.Value {
	return payload.Map(
		payload.F("status", payload.String("ok")),
		payload.F("uptime_ms", payload.Int(s.clock.UptimeMillis())),
	)
}

// info describes the available endpoints and the channel layout.
func (s *Server) info(tracker.Snapshot) payload.Value {
	var endpoints []payload.Value
	for _, r := range s.routes {
		if r.Fragment != "" {
			endpoints = append(endpoints, payload.String(r.Fragment))
		}
	}

	return payload.Map(
		payload.F("message", payload.String(serverMessage)),
		payload.F("endpoints", payload.List(endpoints...)),
		payload.F("board", payload.String(s.cfg.Board)),
		payload.F("channels", Layout(s.channels)),
	)
}

// Layout describes the configured channels.
func Layout(channels []config.ChannelConfig) payload.Value {
	items := make([]payload.Value, 0, len(channels))
	for _, ch := range channels {
		fields := []payload.Field{
			payload.F("name", payload.String(ch.Name)),
		}
		if ch.Group != "" {
			fields = append(fields, payload.F("group", payload.String(ch.Group)))
		}
		fields = append(fields,
			payload.F("kind", payload.String(ch.Kind)),
			payload.F("input", payload.Int(int64(ch.Input))),
		)
		if ch.Kind == config.KindAnalog {
			fields = append(fields, payload.F("max", payload.Int(int64(ch.Max))))
		}
		items = append(items, payload.Map(fields...))
	}
	return payload.List(items...)
}

// Data renders every reading of snap. Grouped channels are nested under their
// group, in order of first appearance.
func Data(snap tracker.Snapshot) payload.Value {
	type entry struct {
		key      string
		value    payload.Value
		children []payload.Field
		group    bool
	}

	var entries []*entry
	groups := make(map[string]*entry)

	for _, r := range snap {
		v := readingValue(r)
		if r.Group == "" {
			entries = append(entries, &entry{key: r.Name, value: v})
			continue
		}
		e, ok := groups[r.Group]
		if !ok {
			e = &entry{key: r.Group, group: true}
			groups[r.Group] = e
			entries = append(entries, e)
		}
		e.children = append(e.children, payload.F(r.Name, v))
	}

	fields := make([]payload.Field, 0, len(entries))
	for _, e := range entries {
		if e.group {
			fields = append(fields, payload.F(e.key, payload.Map(e.children...)))
		} else {
			fields = append(fields, payload.F(e.key, e.value))
		}
	}
	return payload.Map(fields...)
}

func readingValue(r tracker.Reading) payload.Value {
	if r.Analog() {
		return payload.Map(
			payload.F("raw", payload.Int(int64(r.Raw))),
			payload.F("percentage", payload.Int(int64(r.Value))),
		)
	}
	return payload.Map(
		payload.F("raw", payload.Int(int64(r.Raw))),
		payload.F("state", payload.Bool(r.Value != 0)),
	)
}
