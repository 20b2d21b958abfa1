package controller

import (
	"fmt"

	"lautenbacher.net/intellitraffic/clock"
)

// Color is the signal color shown in normal mode.
type Color int

const (
	Green Color = iota
	Yellow
	Red
)

func (c Color) String() string {
	switch c {
	case Green:
		return "green"
	case Yellow:
		return "yellow"
	case Red:
		return "red"
	default:
		return fmt.Sprintf("color(%d)", int(c))
	}
}

// Next returns the color following c in the green, yellow, red cycle.
func (c Color) Next() Color {
	switch c {
	case Green:
		return Yellow
	case Yellow:
		return Red
	default:
		return Green
	}
}

// Mode is the operating mode of the crossing.
type Mode int

const (
	Normal Mode = iota
	Night
)

func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case Night:
		return "night"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Lamps is the on/off state of the three physical signal lamps.
type Lamps struct {
	Red    bool `json:"red"`
	Yellow bool `json:"yellow"`
	Green  bool `json:"green"`
}

// ButtonID identifies one of the two push buttons.
type ButtonID int

const (
	// ButtonA toggles between normal and night mode.
	ButtonA ButtonID = iota
	// ButtonB confirms the startup screen.
	ButtonB
)

// Buttons lists all buttons in polling order.
var Buttons = []ButtonID{ButtonA, ButtonB}

func (b ButtonID) String() string {
	switch b {
	case ButtonA:
		return "A"
	case ButtonB:
		return "B"
	default:
		return fmt.Sprintf("button(%d)", int(b))
	}
}

// ButtonEvent is a raw edge seen on a button.
type ButtonEvent struct {
	Button     ButtonID
	ObservedAt clock.Timestamp
}

// Command is something that asks the controller to change its state.
type Command int

const (
	ToggleMode Command = iota
	ConfirmStartup
	// EnterNight and EnterNormal are issued by the automatic night
	// schedule. They are no-ops if the mode is already the requested one.
	EnterNight
	EnterNormal
)

func (c Command) String() string {
	switch c {
	case ToggleMode:
		return "toggle-mode"
	case ConfirmStartup:
		return "confirm-startup"
	case EnterNight:
		return "enter-night"
	case EnterNormal:
		return "enter-normal"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}
