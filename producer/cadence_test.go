package producer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lautenbacher.net/intellitraffic/clock"
	c "lautenbacher.net/intellitraffic/controller"
)

type buzzerEvent struct {
	at  clock.Timestamp
	cmd c.BuzzerCommand
}

// runMachine ticks a machine every 10ms from..to and collects every
// buzzer command that is not a NoOp.
func runMachine(m *c.Machine, from, to clock.Timestamp) []buzzerEvent {
	var events []buzzerEvent
	for now := from; now <= to; now += 10 {
		eff := m.Tick(now)
		if eff.Buzzer.Action != c.BuzzerNoOp {
			events = append(events, buzzerEvent{at: now, cmd: eff.Buzzer})
		}
	}
	return events
}

func TestCadenceRules(t *testing.T) {
	cad := NewCadence(DefaultCadenceTable())

	tests := []struct {
		name   string
		state  c.State
		now    clock.Timestamp
		expect c.BuzzerCommand
	}{
		{"night silent too short", c.State{Mode: c.Night}, 1999, c.NoOp()},
		{"night on", c.State{Mode: c.Night}, 2000, c.TurnOn(1500)},
		{"night off keeps onset", c.State{Mode: c.Night, BuzzerOn: true}, 100, c.TurnOff(false)},
		{"green on", c.State{Color: c.Green}, 1000, c.TurnOn(2000)},
		{"green beep too short", c.State{Color: c.Green, BuzzerOn: true}, 99, c.NoOp()},
		{"yellow on", c.State{Color: c.Yellow}, 100, c.TurnOn(3000)},
		{"yellow off", c.State{Color: c.Yellow, BuzzerOn: true}, 100, c.TurnOff(true)},
		{"red silent", c.State{Color: c.Red}, 1499, c.NoOp()},
		{"red on", c.State{Color: c.Red}, 1500, c.TurnOn(1000)},
		{"red still on", c.State{Color: c.Red, BuzzerOn: true}, 499, c.NoOp()},
		{"red off", c.State{Color: c.Red, BuzzerOn: true}, 500, c.TurnOff(true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, cad.Decide(tt.state, tt.now))
		})
	}
}

func TestCadenceNightBeepPeriod(t *testing.T) {
	m := c.NewMachine(c.DefaultTiming(), NewCadence(DefaultCadenceTable()))
	m.Start(0)
	m.Apply(c.ToggleMode, 0)

	events := runMachine(m, 10, 4500)
	assert.Equal(t, []buzzerEvent{
		{at: 2000, cmd: c.TurnOn(1500)},
		{at: 2100, cmd: c.TurnOff(false)},
		{at: 4000, cmd: c.TurnOn(1500)},
		{at: 4100, cmd: c.TurnOff(false)},
	}, events)
}

func TestCadenceGreenToYellow(t *testing.T) {
	m := c.NewMachine(c.DefaultTiming(), NewCadence(DefaultCadenceTable()))
	m.Start(0)

	events := runMachine(m, 10, 5100)
	assert.Equal(t, c.TurnOn(2000), events[0].cmd)
	assert.Equal(t, clock.Timestamp(1000), events[0].at)

	var forced, yellowOn *buzzerEvent
	for i := range events {
		if events[i].at == 5000 {
			forced = &events[i]
		}
		if events[i].at > 5000 && events[i].cmd.Action == c.BuzzerOn {
			yellowOn = &events[i]
		}
	}
	if assert.NotNil(t, forced) {
		assert.Equal(t, c.BuzzerOff, forced.cmd.Action)
	}
	if assert.NotNil(t, yellowOn) {
		assert.Equal(t, uint32(3000), yellowOn.cmd.FreqHz)
		assert.LessOrEqual(t, yellowOn.at, clock.Timestamp(5100))
	}
}

func TestCadenceNeverRepeatsInsideInterval(t *testing.T) {
	m := c.NewMachine(c.DefaultTiming(), NewCadence(DefaultCadenceTable()))
	m.Start(0)

	events := runMachine(m, 10, 30_000)
	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		assert.NotEqual(t, prev.at, cur.at, "two buzzer commands in one tick")
		if prev.cmd.Action == c.BuzzerOn && cur.cmd.Action == c.BuzzerOn {
			t.Fatalf("buzzer turned on twice in a row at %d and %d", prev.at, cur.at)
		}
	}
}
