package controller

import (
	"log/slog"
	"time"

	"github.com/anggasct/fluo"

	"lautenbacher.net/intellitraffic/clock"
)

// Timing holds the durations the signal state machine works with.
type Timing struct {
	Green      time.Duration
	Yellow     time.Duration
	Red        time.Duration
	Sign       time.Duration
	NightBlink time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		Green:      5 * time.Second,
		Yellow:     2 * time.Second,
		Red:        5 * time.Second,
		Sign:       2 * time.Second,
		NightBlink: 1 * time.Second,
	}
}

// Phase returns how long the signal stays in color c.
func (s Timing) Phase(c Color) time.Duration {
	switch c {
	case Yellow:
		return s.Yellow
	case Red:
		return s.Red
	default:
		return s.Green
	}
}

// Effects is what the owner of a Machine has to apply to the outside
// world after a call to Start, Tick or Apply.
type Effects struct {
	Transitioned bool
	From         string
	To           string
	Lamps        Lamps
	Buzzer       BuzzerCommand
}

// States and events of the signal state machine.
const (
	stateGreen  = "green"
	stateYellow = "yellow"
	stateRed    = "red"
	stateNight  = "night"

	eventTimer  = "timer"
	eventToggle = "toggle"
	eventNight  = "enter_night"
	eventNormal = "enter_normal"
)

// Machine is the signal state machine. The transition table is a fluo
// machine definition, the entry actions keep State in sync with it.
// Machine is the only writer of its State and is not safe for
// concurrent use: exactly one task owns it and publishes copies of
// State to the readers.
type Machine struct {
	timing     Timing
	policy     BuzzerPolicy
	definition fluo.MachineDefinition
	instance   fluo.Machine
	state      State
	// now is the time of the event being handled, entry actions and
	// guards read it.
	now clock.Timestamp
}

func NewMachine(timing Timing, policy BuzzerPolicy) *Machine {
	s := &Machine{
		timing: timing,
		policy: policy,
	}
	s.definition = s.define()
	return s
}

func (s *Machine) define() fluo.MachineDefinition {
	b := fluo.NewMachine()

	b.State(stateGreen).Initial().
		OnEntry(s.enterNormal(Green)).
		To(stateYellow).On(eventTimer).When(s.expired(Green)).
		To(stateNight).On(eventToggle).
		To(stateNight).On(eventNight)

	b.State(stateYellow).
		OnEntry(s.enterNormal(Yellow)).
		To(stateRed).On(eventTimer).When(s.expired(Yellow)).
		To(stateNight).On(eventToggle).
		To(stateNight).On(eventNight)

	b.State(stateRed).
		OnEntry(s.enterNormal(Red)).
		To(stateGreen).On(eventTimer).When(s.expired(Red)).
		To(stateNight).On(eventToggle).
		To(stateNight).On(eventNight)

	b.State(stateNight).
		OnEntry(s.enterNight).
		To(stateGreen).On(eventToggle).
		To(stateGreen).On(eventNormal)

	return b.Build()
}

func (s *Machine) enterNormal(color Color) fluo.ActionFunc {
	return func(ctx fluo.Context) error {
		s.enter(Normal, color, s.now)
		return nil
	}
}

func (s *Machine) enterNight(ctx fluo.Context) error {
	s.enter(Night, s.state.Color, s.now)
	return nil
}

// expired guards the timer transition out of color.
func (s *Machine) expired(color Color) fluo.GuardFunc {
	return func(ctx fluo.Context) bool {
		return s.now.Sub(s.state.EnteredAt) >= s.timing.Phase(color)
	}
}

// Start enters Normal(Green) at now. Calling Start again restarts the
// cycle.
func (s *Machine) Start(now clock.Timestamp) Effects {
	from := s.state.Label()
	s.now = now
	instance := s.definition.CreateInstance()
	if err := instance.Start(); err != nil {
		slog.Error("failed to start signal state machine", "error", err)
		return Effects{}
	}
	s.instance = instance
	return s.transitioned(from)
}

func (s *Machine) Started() bool {
	return s.instance != nil
}

// State returns a copy of the current state.
func (s *Machine) State() State {
	return s.state
}

// Tick evaluates the time based transitions and the buzzer cadence at
// now. Calling it several times with the same now has the same effect
// as calling it once, a late tick only delays the transition. At most
// one transition happens per tick.
func (s *Machine) Tick(now clock.Timestamp) Effects {
	if !s.Started() {
		return Effects{}
	}
	from := s.state.Label()
	if s.handle(eventTimer, now) {
		return s.transitioned(from)
	}

	if s.state.Mode == Night && now.Sub(s.state.LastBlinkAt) >= s.timing.NightBlink {
		s.state.BlinkOn = !s.state.BlinkOn
		s.state.LastBlinkAt = now
	}
	if s.state.Sign.Active && !s.state.Sign.Running(now, s.timing.Sign) {
		s.state.Sign.Active = false
	}

	cmd := NoOp()
	if s.policy != nil {
		cmd = s.policy.Decide(s.state, now)
	}
	s.record(cmd, now)
	return Effects{Lamps: s.state.Lamps(), Buzzer: cmd}
}

// Apply executes a command at now. ConfirmStartup is not handled by
// the machine and yields no effects.
func (s *Machine) Apply(cmd Command, now clock.Timestamp) Effects {
	if !s.Started() {
		return Effects{}
	}
	var event string
	switch cmd {
	case ToggleMode:
		event = eventToggle
	case EnterNight:
		event = eventNight
	case EnterNormal:
		event = eventNormal
	default:
		return s.unchanged()
	}
	from := s.state.Label()
	if !s.handle(event, now) {
		return s.unchanged()
	}
	slog.Info("mode changed", "mode", s.state.Mode, "command", cmd)
	return s.transitioned(from)
}

// handle feeds event into the definition and reports whether a
// transition was taken. Events without a matching transition in the
// current state are rejected by fluo and leave State untouched.
func (s *Machine) handle(event string, now clock.Timestamp) bool {
	s.now = now
	res := s.instance.HandleEvent(event, nil)
	return res.Success() && res.StateChanged
}

func (s *Machine) enter(mode Mode, color Color, now clock.Timestamp) {
	s.state.Mode = mode
	s.state.Color = color
	s.state.EnteredAt = now

	s.state.BuzzerOn = false
	s.state.BuzzerFreq = 0
	s.state.BuzzerChangedAt = now

	if mode == Night {
		s.state.Sign = SignAnimation{}
		s.state.BlinkOn = false
		s.state.LastBlinkAt = now
		return
	}
	if color == Green || color == Red {
		s.state.Sign = SignAnimation{Active: true, StartedAt: now}
	} else {
		s.state.Sign.Active = false
	}
}

func (s *Machine) record(cmd BuzzerCommand, now clock.Timestamp) {
	switch cmd.Action {
	case BuzzerOn:
		s.state.BuzzerOn = true
		s.state.BuzzerFreq = cmd.FreqHz
	case BuzzerOff:
		s.state.BuzzerOn = false
		s.state.BuzzerFreq = 0
	default:
		return
	}
	if cmd.ResetTimer {
		s.state.BuzzerChangedAt = now
	}
}

func (s *Machine) transitioned(from string) Effects {
	return Effects{
		Transitioned: true,
		From:         from,
		To:           s.state.Label(),
		Lamps:        s.state.Lamps(),
		Buzzer:       TurnOff(true),
	}
}

func (s *Machine) unchanged() Effects {
	return Effects{Lamps: s.state.Lamps(), Buzzer: NoOp()}
}
