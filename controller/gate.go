package controller

import (
	"log/slog"
	"sync"
	"time"

	"lautenbacher.net/intellitraffic/clock"
)

const DefaultDebounce = 300 * time.Millisecond

// Gate filters button bounce: an edge is accepted only if the previous
// accepted edge of the same button lies at least window in the past.
// The first edge of every button is always accepted.
type Gate struct {
	mu       sync.Mutex
	window   time.Duration
	accepted map[ButtonID]clock.Timestamp
}

func NewGate(window time.Duration) *Gate {
	return &Gate{
		window:   window,
		accepted: make(map[ButtonID]clock.Timestamp, len(Buttons)),
	}
}

// OnEdge returns the command bound to the button and true if the edge
// passes the gate.
func (s *Gate) OnEdge(ev ButtonEvent) (Command, bool) {
	var cmd Command
	switch ev.Button {
	case ButtonA:
		cmd = ToggleMode
	case ButtonB:
		cmd = ConfirmStartup
	default:
		slog.Warn("edge from unknown button ignored", "button", ev.Button)
		return cmd, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if last, seen := s.accepted[ev.Button]; seen && ev.ObservedAt.Sub(last) < s.window {
		slog.Debug("bounce filtered", "button", ev.Button, "since", ev.ObservedAt.Sub(last))
		return cmd, false
	}
	s.accepted[ev.Button] = ev.ObservedAt
	return cmd, true
}
