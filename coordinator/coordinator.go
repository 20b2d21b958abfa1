package coordinator

import (
	"log/slog"
	"time"

	"lautenbacher.net/intellitraffic/clock"
	c "lautenbacher.net/intellitraffic/controller"
	p "lautenbacher.net/intellitraffic/producer"
	u "lautenbacher.net/intellitraffic/util"
)

// Periods are the scheduling periods of the signal, display, matrix and
// button work.
type Periods struct {
	Signal  time.Duration
	Display time.Duration
	Matrix  time.Duration
	Buttons time.Duration
}

func DefaultPeriods() Periods {
	return Periods{
		Signal:  10 * time.Millisecond,
		Display: 500 * time.Millisecond,
		Matrix:  100 * time.Millisecond,
		Buttons: 10 * time.Millisecond,
	}
}

// Options configure a Coordinator.
type Options struct {
	Timing   c.Timing
	Cadence  p.CadenceTable
	Display  p.DisplayTiming
	Startup  p.StartupTiming
	Palette  p.Palette
	Debounce time.Duration
	Periods  Periods

	// SkipStartup goes straight to Normal(Green) without boot screens.
	SkipStartup bool

	// NightSchedule switches night mode by sunset and sunrise if set.
	// WallClock defaults to time.Now.
	NightSchedule *c.NightSchedule
	NightCheck    time.Duration
	WallClock     func() time.Time

	HistorySize int
}

func DefaultOptions() Options {
	return Options{
		Timing:      c.DefaultTiming(),
		Cadence:     p.DefaultCadenceTable(),
		Display:     p.DefaultDisplayTiming(),
		Startup:     p.DefaultStartupTiming(),
		Palette:     p.DefaultPalette(),
		Debounce:    c.DefaultDebounce,
		Periods:     DefaultPeriods(),
		NightCheck:  time.Minute,
		WallClock:   time.Now,
		HistorySize: 64,
	}
}

// Snapshot is what the signal work publishes to the readers after
// every step. Its lamps and buzzer have already been driven.
type Snapshot struct {
	Startup p.Startup
	State   c.State
	Lamps   c.Lamps
}

// Running reports whether the boot screens are over.
func (s Snapshot) Running() bool {
	return s.Startup.Done()
}

// Coordinator wires the state machine, the sequencers and the drivers.
// Its work is split in four parts, each of which must only ever be run
// by one goroutine at a time:
//
//   - signal: Boot, Handle, StepSignal, Shutdown
//   - buttons: PollButtons
//   - display: RenderDisplay
//   - matrix: RenderMatrix
//
// The parts only share the published Snapshot, the debounce gate and
// the history, which are safe for concurrent use.
type Coordinator struct {
	opts    Options
	clock   clock.Clock
	drivers Drivers

	// signal
	machine        *c.Machine
	startup        p.Startup
	mode           c.Mode
	lamps          c.Lamps
	lampsSet       bool
	lastNightCheck clock.Timestamp
	nightChecked   bool

	// buttons
	gate *c.Gate

	// display
	seq *p.Sequencer

	// matrix
	reflector *p.Reflector

	snapshot    *u.AtomicEvent[Snapshot]
	modeChanged *u.AtomicEvent[c.Mode]
	history     *History
}

func New(clk clock.Clock, drivers Drivers, opts Options) *Coordinator {
	if opts.WallClock == nil {
		opts.WallClock = time.Now
	}
	return &Coordinator{
		opts:        opts,
		clock:       clk,
		drivers:     drivers,
		machine:     c.NewMachine(opts.Timing, p.NewCadence(opts.Cadence)),
		gate:        c.NewGate(opts.Debounce),
		seq:         p.NewSequencer(opts.Display),
		reflector:   p.NewReflector(opts.Palette),
		snapshot:    u.NewAtomicEvent[Snapshot](),
		modeChanged: u.NewAtomicEvent[c.Mode](),
		history:     NewHistory(opts.HistorySize),
	}
}

func (s *Coordinator) Now() clock.Timestamp {
	return s.clock.Now()
}

func (s *Coordinator) Periods() Periods {
	return s.opts.Periods
}

// Snapshot returns the last published snapshot.
func (s *Coordinator) Snapshot() Snapshot {
	return s.snapshot.Value()
}

// ModeChanged notifies after every transition that changed the mode.
func (s *Coordinator) ModeChanged() <-chan struct{} {
	return s.modeChanged.Channel()
}

func (s *Coordinator) History() []Transition {
	return s.history.Items()
}

// Boot starts the boot screens, or the signal cycle right away if
// startup is skipped.
func (s *Coordinator) Boot() {
	now := s.clock.Now()
	s.startup = p.BeginStartup(now)
	slog.Info("Controller booting", "skipStartup", s.opts.SkipStartup)
	if s.opts.SkipStartup {
		s.startup = p.Startup{Phase: p.StartupDone, Since: now}
		s.startMachine(now)
	}
	s.publish()
}

// PollButtons reads the pending edges of all buttons and returns the
// commands that passed the debounce gate.
func (s *Coordinator) PollButtons() []c.Command {
	if s.drivers.Buttons == nil {
		return nil
	}
	var cmds []c.Command
	for _, id := range c.Buttons {
		var at clock.Timestamp
		var edge bool
		s.guard("buttons", func() error {
			at, edge = s.drivers.Buttons.ReadEdge(id)
			return nil
		})
		if !edge {
			continue
		}
		if cmd, ok := s.gate.OnEdge(c.ButtonEvent{Button: id, ObservedAt: at}); ok {
			slog.Debug("Button accepted", "button", id, "command", cmd)
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

// Handle executes a command at now.
func (s *Coordinator) Handle(cmd c.Command, now clock.Timestamp) {
	if cmd == c.ConfirmStartup {
		if !s.startup.Done() {
			s.startup = s.startup.Confirm(now)
			slog.Info("Startup confirmed", "phase", s.startup.Phase)
			s.publish()
		}
		return
	}
	if !s.machine.Started() {
		slog.Debug("Command ignored during startup", "command", cmd)
		return
	}
	s.apply(s.machine.Apply(cmd, now), cmd.String(), now)
	s.publish()
}

// StepSignal advances the boot screens or the state machine to now and
// drives lamps and buzzer.
func (s *Coordinator) StepSignal(now clock.Timestamp) {
	if !s.startup.Done() {
		before := s.startup.Phase
		s.startup = s.startup.Advance(now, s.opts.Startup)
		if s.startup.Done() {
			s.startMachine(now)
		}
		if s.startup.Phase != before {
			s.publish()
		}
		return
	}

	s.checkNightSchedule(now)
	s.apply(s.machine.Tick(now), "timer", now)
	s.publish()
}

// RenderDisplay composes and flushes the display frame for now.
func (s *Coordinator) RenderDisplay(now clock.Timestamp) {
	if s.drivers.Display == nil {
		return
	}
	snap := s.snapshot.Value()
	var frame p.DisplayFrame
	if snap.Running() {
		frame = s.seq.Frame(snap.State, now)
	} else {
		frame = snap.Startup.Frame(now, s.opts.Startup)
	}
	s.guard("display", func() error {
		s.drivers.Display.Clear()
		s.drivers.Display.Blit(frame.Bitmap)
		for _, line := range frame.Text {
			s.drivers.Display.DrawText(line.Text, line.X, line.Y)
		}
		return s.drivers.Display.Flush()
	})
}

// RenderMatrix mirrors the current state onto the LED matrix. The
// matrix stays dark during startup.
func (s *Coordinator) RenderMatrix() {
	if s.drivers.Matrix == nil {
		return
	}
	snap := s.snapshot.Value()
	var frame [p.MatrixPixels]p.Led
	if snap.Running() {
		frame = s.reflector.Frame(snap.State.Mode, snap.State.Color)
	}
	s.writeMatrix(frame)
}

// Shutdown silences the buzzer and darkens lamps, matrix and display.
// It must be called after all other work has stopped.
func (s *Coordinator) Shutdown() {
	slog.Info("Controller shutting down")
	if s.drivers.Buzzer != nil {
		s.guard("buzzer", s.drivers.Buzzer.Stop)
	}
	if s.drivers.Lamps != nil {
		s.guard("lamps", func() error { return s.drivers.Lamps.SetLamps(c.Lamps{}) })
	}
	if s.drivers.Matrix != nil {
		s.writeMatrix([p.MatrixPixels]p.Led{})
	}
	if s.drivers.Display != nil {
		s.guard("display", func() error {
			s.drivers.Display.Clear()
			return s.drivers.Display.Flush()
		})
	}
}

func (s *Coordinator) writeMatrix(frame [p.MatrixPixels]p.Led) {
	s.guard("matrix", func() error {
		for i, led := range frame {
			s.drivers.Matrix.SetPixel(i, led)
		}
		return s.drivers.Matrix.Commit()
	})
}

func (s *Coordinator) startMachine(now clock.Timestamp) {
	s.apply(s.machine.Start(now), "startup", now)
}

func (s *Coordinator) checkNightSchedule(now clock.Timestamp) {
	if s.opts.NightSchedule == nil {
		return
	}
	if s.nightChecked && now.Sub(s.lastNightCheck) < s.opts.NightCheck {
		return
	}
	s.nightChecked = true
	s.lastNightCheck = now
	wall := s.opts.WallClock()
	if cmd, changed := s.opts.NightSchedule.Check(wall); changed {
		slog.Info("Night schedule", "command", cmd, "next", s.opts.NightSchedule.NextChange(wall))
		s.apply(s.machine.Apply(cmd, now), "schedule", now)
	}
}

// apply drives buzzer and lamps according to eff. Lamps are only
// written when they change.
func (s *Coordinator) apply(eff c.Effects, cause string, now clock.Timestamp) {
	if s.drivers.Buzzer != nil {
		switch eff.Buzzer.Action {
		case c.BuzzerOn:
			s.guard("buzzer", func() error { return s.drivers.Buzzer.SetTone(eff.Buzzer.FreqHz) })
		case c.BuzzerOff:
			s.guard("buzzer", s.drivers.Buzzer.Stop)
		}
	}

	if eff.Transitioned || !s.lampsSet || eff.Lamps != s.lamps {
		if s.drivers.Lamps != nil {
			s.guard("lamps", func() error { return s.drivers.Lamps.SetLamps(eff.Lamps) })
		}
		s.lamps = eff.Lamps
		s.lampsSet = true
	}

	if !eff.Transitioned {
		return
	}
	s.history.Add(Transition{At: now, From: eff.From, To: eff.To, Cause: cause})
	slog.Debug("Transition", "from", eff.From, "to", eff.To, "cause", cause, "at", now)
	if mode := s.machine.State().Mode; mode != s.mode {
		s.mode = mode
		// readers woken by the mode change must find the new state
		s.publish()
		s.modeChanged.Send(mode)
	}
}

func (s *Coordinator) publish() {
	s.snapshot.Send(Snapshot{
		Startup: s.startup,
		State:   s.machine.State(),
		Lamps:   s.lamps,
	})
}

// guard runs a driver call. Errors and panics drop the current frame;
// the next tick tries again.
func (s *Coordinator) guard(driver string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Driver panicked, frame dropped", "driver", driver, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		slog.Warn("Driver failed, frame dropped", "driver", driver, "error", err)
	}
}
