package producer

import (
	"time"

	"lautenbacher.net/intellitraffic/clock"
	c "lautenbacher.net/intellitraffic/controller"
	d "lautenbacher.net/intellitraffic/display"
)

// TextLine is a string drawn with its top left corner at X, Y.
type TextLine struct {
	Text string `json:"text"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// DisplayFrame is everything shown on the display for one tick: a full
// screen bitmap with text on top.
type DisplayFrame struct {
	Bitmap d.BitmapID
	Text   []TextLine
}

// DisplayTiming holds the animation intervals of the display.
type DisplayTiming struct {
	SignWindow     time.Duration
	SignAlternate  time.Duration
	NightAlternate time.Duration
	BlindCycle     time.Duration
}

func DefaultDisplayTiming() DisplayTiming {
	return DisplayTiming{
		SignWindow:     2 * time.Second,
		SignAlternate:  250 * time.Millisecond,
		NightAlternate: 500 * time.Millisecond,
		BlindCycle:     300 * time.Millisecond,
	}
}

var colorNames = map[c.Color]string{
	c.Green:  "VERDE",
	c.Yellow: "AMARELO",
	c.Red:    "VERMELHO",
}

var blindCycle = []d.BitmapID{d.BlindOne, d.BlindTwo, d.BlindThree}

// Sequencer derives the display frame from a state snapshot. It keeps
// the bookkeeping of the running animations and belongs to the display
// task; the controller state itself is never written.
type Sequencer struct {
	timing DisplayTiming

	// the state entry the bookkeeping belongs to
	seen      bool
	mode      c.Mode
	color     c.Color
	enteredAt clock.Timestamp

	alternated      bool
	lastAlternateAt clock.Timestamp
	blindStarted    bool
	blindIndex      int
	lastBlindAt     clock.Timestamp
}

func NewSequencer(timing DisplayTiming) *Sequencer {
	return &Sequencer{timing: timing}
}

// Frame returns the frame to show at now.
func (s *Sequencer) Frame(state c.State, now clock.Timestamp) DisplayFrame {
	s.follow(state)

	if state.Mode == c.Night {
		if s.due(&s.lastAlternateAt, now, s.timing.NightAlternate) {
			s.alternated = !s.alternated
		}
		bitmap := d.NightOne
		if s.alternated {
			bitmap = d.NightTwo
		}
		return DisplayFrame{
			Bitmap: bitmap,
			Text: []TextLine{
				{Text: "NOTURNO AMARELO", X: 0, Y: 0},
				{Text: "PISCANTE", X: 35, Y: 10},
			},
		}
	}

	frame := DisplayFrame{Text: normalText(state.Color)}
	if state.Sign.Running(now, s.timing.SignWindow) {
		if s.due(&s.lastAlternateAt, now, s.timing.SignAlternate) {
			s.alternated = !s.alternated
		}
		frame.Bitmap = d.Sign
		if s.alternated {
			switch state.Color {
			case c.Green:
				frame.Bitmap = d.SignPass
			case c.Red:
				frame.Bitmap = d.SignStop
			}
		}
		return frame
	}

	switch state.Color {
	case c.Green:
		if !s.blindStarted {
			s.blindStarted = true
			s.lastBlindAt = now
		} else if s.due(&s.lastBlindAt, now, s.timing.BlindCycle) {
			s.blindIndex = (s.blindIndex + 1) % len(blindCycle)
		}
		frame.Bitmap = blindCycle[s.blindIndex]
	case c.Yellow:
		frame.Bitmap = d.BlindThree
	default:
		frame.Bitmap = d.BlindOne
	}
	return frame
}

// follow resets the bookkeeping whenever the state was (re)entered.
func (s *Sequencer) follow(state c.State) {
	if s.seen && s.mode == state.Mode && s.color == state.Color && s.enteredAt == state.EnteredAt {
		return
	}
	s.seen = true
	s.mode = state.Mode
	s.color = state.Color
	s.enteredAt = state.EnteredAt
	s.alternated = false
	s.lastAlternateAt = state.EnteredAt
	s.blindStarted = false
	s.blindIndex = 0
}

// due reports whether interval has passed since *last and moves *last
// to now if so.
func (s *Sequencer) due(last *clock.Timestamp, now clock.Timestamp, interval time.Duration) bool {
	if now.Sub(*last) < interval {
		return false
	}
	*last = now
	return true
}

func normalText(color c.Color) []TextLine {
	lines := []TextLine{
		{Text: "NORMAL", X: 60, Y: 0},
		{Text: colorNames[color], X: 60, Y: 10},
	}
	if color == c.Green {
		lines = append(lines, TextLine{Text: "(SIGA)", X: 60, Y: 20})
	}
	return lines
}
