package producer

import (
	"time"

	"lautenbacher.net/intellitraffic/clock"
	"lautenbacher.net/intellitraffic/controller"
)

// CadenceRule describes the beep pattern for one signal state.
// OnAfter is the silence before the next beep, OffAfter the length of
// a beep. With FromOnset set both are measured from the start of the
// last beep, so OnAfter is the beep period; otherwise every buzzer
// change restarts the timer.
type CadenceRule struct {
	OnAfter   time.Duration
	OffAfter  time.Duration
	FreqHz    uint32
	FromOnset bool
}

// CadenceTable holds one rule per signal state.
type CadenceTable struct {
	Night  CadenceRule
	Green  CadenceRule
	Yellow CadenceRule
	Red    CadenceRule
}

func DefaultCadenceTable() CadenceTable {
	return CadenceTable{
		Night:  CadenceRule{OnAfter: 2000 * time.Millisecond, OffAfter: 100 * time.Millisecond, FreqHz: 1500, FromOnset: true},
		Green:  CadenceRule{OnAfter: 1000 * time.Millisecond, OffAfter: 100 * time.Millisecond, FreqHz: 2000, FromOnset: true},
		Yellow: CadenceRule{OnAfter: 100 * time.Millisecond, OffAfter: 100 * time.Millisecond, FreqHz: 3000},
		Red:    CadenceRule{OnAfter: 1500 * time.Millisecond, OffAfter: 500 * time.Millisecond, FreqHz: 1000},
	}
}

// Rule selects the rule that applies to state.
func (s CadenceTable) Rule(state controller.State) CadenceRule {
	if state.Mode == controller.Night {
		return s.Night
	}
	switch state.Color {
	case controller.Yellow:
		return s.Yellow
	case controller.Red:
		return s.Red
	default:
		return s.Green
	}
}

// Cadence is the audio policy for sight-impaired pedestrians. It
// implements controller.BuzzerPolicy and has no state of its own.
type Cadence struct {
	table CadenceTable
}

func NewCadence(table CadenceTable) *Cadence {
	return &Cadence{table: table}
}

// Decide returns at most one of TurnOn or TurnOff. A buzzer that is on
// can only be turned off and vice versa, so on and off never happen in
// the same decision.
func (s *Cadence) Decide(state controller.State, now clock.Timestamp) controller.BuzzerCommand {
	rule := s.table.Rule(state)
	since := now.Sub(state.BuzzerChangedAt)
	if state.BuzzerOn {
		if since >= rule.OffAfter {
			return controller.TurnOff(!rule.FromOnset)
		}
		return controller.NoOp()
	}
	if since >= rule.OnAfter {
		return controller.TurnOn(rule.FreqHz)
	}
	return controller.NoOp()
}
