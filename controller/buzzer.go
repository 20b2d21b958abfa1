package controller

import (
	"fmt"

	"lautenbacher.net/intellitraffic/clock"
)

type BuzzerAction int

const (
	BuzzerNoOp BuzzerAction = iota
	BuzzerOn
	BuzzerOff
)

// BuzzerCommand is the outcome of one cadence decision. ResetTimer
// tells the machine whether the command restarts the cadence timer;
// cadences measured from the last onset keep the timer on TurnOff.
type BuzzerCommand struct {
	Action     BuzzerAction
	FreqHz     uint32
	ResetTimer bool
}

func NoOp() BuzzerCommand {
	return BuzzerCommand{Action: BuzzerNoOp}
}

func TurnOn(freqHz uint32) BuzzerCommand {
	return BuzzerCommand{Action: BuzzerOn, FreqHz: freqHz, ResetTimer: true}
}

func TurnOff(resetTimer bool) BuzzerCommand {
	return BuzzerCommand{Action: BuzzerOff, ResetTimer: resetTimer}
}

func (s BuzzerCommand) String() string {
	switch s.Action {
	case BuzzerOn:
		return fmt.Sprintf("on(%dHz)", s.FreqHz)
	case BuzzerOff:
		return "off"
	default:
		return "noop"
	}
}

// BuzzerPolicy decides what the buzzer should do given the current
// state. Implementations must be pure.
type BuzzerPolicy interface {
	Decide(state State, now clock.Timestamp) BuzzerCommand
}
