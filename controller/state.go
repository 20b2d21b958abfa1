package controller

import (
	"time"

	"lautenbacher.net/intellitraffic/clock"
)

// SignAnimation marks the window after entering green or red in which
// the display alternates the sign glyphs.
type SignAnimation struct {
	Active    bool
	StartedAt clock.Timestamp
}

// Running reports whether the animation is still inside its window at
// now. An animation that was never cleared still expires by time.
func (s SignAnimation) Running(now clock.Timestamp, window time.Duration) bool {
	return s.Active && now.Sub(s.StartedAt) < window
}

// State is the complete controller state. It is owned by a Machine,
// everybody else works on copies.
type State struct {
	Color     Color
	Mode      Mode
	EnteredAt clock.Timestamp

	BuzzerOn        bool
	BuzzerFreq      uint32
	BuzzerChangedAt clock.Timestamp

	BlinkOn     bool
	LastBlinkAt clock.Timestamp

	Sign SignAnimation
}

// Lamps derives the physical lamp state. In night mode only the
// yellow lamp is used and follows the blink flag.
func (s State) Lamps() Lamps {
	if s.Mode == Night {
		return Lamps{Yellow: s.BlinkOn}
	}
	switch s.Color {
	case Yellow:
		return Lamps{Yellow: true}
	case Red:
		return Lamps{Red: true}
	default:
		return Lamps{Green: true}
	}
}

// Label is the human readable name of the current signal, e.g.
// "normal/green" or "night".
func (s State) Label() string {
	if s.Mode == Night {
		return s.Mode.String()
	}
	return s.Mode.String() + "/" + s.Color.String()
}
