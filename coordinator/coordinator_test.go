package coordinator

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lautenbacher.net/intellitraffic/clock"
	c "lautenbacher.net/intellitraffic/controller"
	d "lautenbacher.net/intellitraffic/display"
	p "lautenbacher.net/intellitraffic/producer"
)

type event struct {
	at    clock.Timestamp
	kind  string
	value string
}

// mockDrivers implements all driver interfaces and records every call
// with the time it happened.
type mockDrivers struct {
	mu    sync.Mutex
	clk   clock.Clock
	log   []event
	edges map[c.ButtonID][]clock.Timestamp

	bitmap  d.BitmapID
	texts   []string
	pixels  [p.MatrixPixels]p.Led
	lamps   c.Lamps
	buzzing bool

	flushErr    error
	panicCommit bool
}

func newMockDrivers(clk clock.Clock) *mockDrivers {
	return &mockDrivers{clk: clk, edges: make(map[c.ButtonID][]clock.Timestamp)}
}

func (m *mockDrivers) drivers() Drivers {
	return Drivers{Display: m, Buzzer: m, Matrix: m, Buttons: m, Lamps: m}
}

func (m *mockDrivers) record(kind, value string) {
	m.log = append(m.log, event{at: m.clk.Now(), kind: kind, value: value})
}

func (m *mockDrivers) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bitmap = d.Blank
	m.texts = nil
}

func (m *mockDrivers) Blit(id d.BitmapID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bitmap = id
}

func (m *mockDrivers) DrawText(s string, x, y int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, s)
}

func (m *mockDrivers) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flushErr != nil {
		return m.flushErr
	}
	m.record("display", m.bitmap.String())
	return nil
}

func (m *mockDrivers) SetTone(freqHz uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buzzing = true
	m.record("tone", fmt.Sprint(freqHz))
	return nil
}

func (m *mockDrivers) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buzzing = false
	m.record("stop", "")
	return nil
}

func (m *mockDrivers) SetPixel(i int, led p.Led) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pixels[i] = led
}

func (m *mockDrivers) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicCommit {
		panic("spi bus gone")
	}
	m.record("matrix", fmt.Sprint(m.pixels[12]))
	return nil
}

func (m *mockDrivers) ReadEdge(id c.ButtonID) (clock.Timestamp, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.edges[id]
	if len(queue) == 0 {
		return 0, false
	}
	m.edges[id] = queue[1:]
	return queue[0], true
}

func (m *mockDrivers) SetLamps(l c.Lamps) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lamps = l
	m.record("lamps", fmt.Sprintf("%v", l))
	return nil
}

func (m *mockDrivers) press(id c.ButtonID, at clock.Timestamp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[id] = append(m.edges[id], at)
}

func (m *mockDrivers) events(kind string) []event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ret []event
	for _, e := range m.log {
		if e.kind == kind {
			ret = append(ret, e)
		}
	}
	return ret
}

func (m *mockDrivers) currentBitmap() d.BitmapID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bitmap
}

func (m *mockDrivers) currentLamps() c.Lamps {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lamps
}

// runLoop advances the virtual clock in signal periods up to and
// including until.
func runLoop(l *Loop, clk *clock.Virtual, until clock.Timestamp) {
	for clk.Now() < until {
		l.RunOnce(clk.Advance(10 * time.Millisecond))
	}
}

func newTestLoop(t *testing.T, opts Options) (*Coordinator, *Loop, *mockDrivers, *clock.Virtual) {
	t.Helper()
	clk := clock.NewVirtual(0)
	mock := newMockDrivers(clk)
	co := New(clk, mock.drivers(), opts)
	co.Boot()
	loop := NewLoop(co)
	loop.RunOnce(clk.Now())
	return co, loop, mock, clk
}

func skipStartup() Options {
	opts := DefaultOptions()
	opts.SkipStartup = true
	return opts
}

func TestBootToGreenAndFirstTransition(t *testing.T) {
	co, loop, mock, clk := newTestLoop(t, skipStartup())

	assert.Equal(t, c.Green, co.Snapshot().State.Color)
	assert.Equal(t, c.Lamps{Green: true}, mock.currentLamps())

	runLoop(loop, clk, 4990)
	assert.Equal(t, c.Green, co.Snapshot().State.Color)

	runLoop(loop, clk, 5000)
	snap := co.Snapshot()
	assert.Equal(t, c.Yellow, snap.State.Color)
	assert.Equal(t, c.Lamps{Yellow: true}, snap.Lamps)
	assert.Equal(t, c.Lamps{Yellow: true}, mock.currentLamps())

	runLoop(loop, clk, 5100)
	var stopAt5000 bool
	for _, e := range mock.events("stop") {
		if e.at == 5000 {
			stopAt5000 = true
		}
	}
	assert.True(t, stopAt5000, "the transition must force the buzzer off")

	tones := mock.events("tone")
	last := tones[len(tones)-1]
	assert.Equal(t, "3000", last.value)
	assert.Greater(t, last.at, clock.Timestamp(5000))
	assert.LessOrEqual(t, last.at, clock.Timestamp(5100))
}

func TestNightBeepCadence(t *testing.T) {
	co, loop, mock, clk := newTestLoop(t, skipStartup())
	co.Handle(c.ToggleMode, 0)

	runLoop(loop, clk, 4200)
	var beeps []clock.Timestamp
	for _, e := range mock.events("tone") {
		assert.Equal(t, "1500", e.value)
		beeps = append(beeps, e.at)
	}
	assert.Equal(t, []clock.Timestamp{2000, 4000}, beeps)
}

func TestStartupSequence(t *testing.T) {
	co, loop, mock, clk := newTestLoop(t, DefaultOptions())

	assert.Equal(t, d.StartOne, mock.currentBitmap())
	assert.False(t, co.Snapshot().Running())

	runLoop(loop, clk, 2500)
	assert.Equal(t, d.StartPress, mock.currentBitmap())
	assert.Equal(t, c.Lamps{}, mock.currentLamps())

	// the machine does not run while waiting
	mock.press(c.ButtonA, 2600)
	runLoop(loop, clk, 2700)
	assert.Equal(t, p.StartupAwaitConfirm, co.Snapshot().Startup.Phase)

	runLoop(loop, clk, 2990)
	mock.press(c.ButtonB, 3000)
	runLoop(loop, clk, 3000)
	assert.Equal(t, p.StartupSplash, co.Snapshot().Startup.Phase)

	runLoop(loop, clk, 5000)
	snap := co.Snapshot()
	assert.True(t, snap.Running())
	assert.Equal(t, c.Green, snap.State.Color)
	assert.Equal(t, clock.Timestamp(5000), snap.State.EnteredAt)
	assert.Equal(t, c.Lamps{Green: true}, mock.currentLamps())
}

func TestMatrixDarkDuringStartup(t *testing.T) {
	_, loop, mock, clk := newTestLoop(t, DefaultOptions())
	runLoop(loop, clk, 300)

	for _, e := range mock.events("matrix") {
		assert.Equal(t, fmt.Sprint(p.Led{}), e.value)
	}
}

func TestMatrixMirrorsSignal(t *testing.T) {
	_, loop, mock, clk := newTestLoop(t, skipStartup())

	runLoop(loop, clk, 100)
	wait := mock.events("matrix")
	assert.Equal(t, fmt.Sprint(p.Led{Red: 50}), wait[len(wait)-1].value)

	runLoop(loop, clk, 7100)
	walk := mock.events("matrix")
	assert.Equal(t, fmt.Sprint(p.Led{Green: 50}), walk[len(walk)-1].value)
}

func TestToggleRedrawsImmediately(t *testing.T) {
	co, loop, mock, clk := newTestLoop(t, skipStartup())
	runLoop(loop, clk, 100)

	mock.press(c.ButtonA, 110)
	runLoop(loop, clk, 110)

	assert.Equal(t, c.Night, co.Snapshot().State.Mode)
	assert.Equal(t, d.NightOne, mock.currentBitmap(), "display must not wait for its next period")
	displays := mock.events("display")
	assert.Equal(t, clock.Timestamp(110), displays[len(displays)-1].at)
}

func TestBouncingButtonTogglesOnce(t *testing.T) {
	co, loop, mock, clk := newTestLoop(t, skipStartup())

	mock.press(c.ButtonA, 1000)
	mock.press(c.ButtonA, 1050)
	mock.press(c.ButtonA, 1200)
	runLoop(loop, clk, 1100)
	runLoop(loop, clk, 1300)

	assert.Equal(t, c.Night, co.Snapshot().State.Mode)
	toggles := 0
	for _, tr := range co.History() {
		if tr.Cause == c.ToggleMode.String() {
			toggles++
		}
	}
	assert.Equal(t, 1, toggles)
}

func TestDriverFailuresDropFramesOnly(t *testing.T) {
	co, loop, mock, clk := newTestLoop(t, skipStartup())
	mock.mu.Lock()
	mock.flushErr = errors.New("i2c nack")
	mock.panicCommit = true
	mock.mu.Unlock()

	runLoop(loop, clk, 7000)
	assert.Equal(t, c.Red, co.Snapshot().State.Color)
	assert.Equal(t, c.Lamps{Red: true}, mock.currentLamps())
}

func TestHistoryRecordsTransitions(t *testing.T) {
	co, loop, _, clk := newTestLoop(t, skipStartup())
	runLoop(loop, clk, 7000)
	co.Handle(c.ToggleMode, clk.Now())

	h := co.History()
	require.Len(t, h, 4)
	assert.Equal(t, Transition{At: 0, From: "normal/green", To: "normal/green", Cause: "startup"}, h[0])
	assert.Equal(t, Transition{At: 5000, From: "normal/green", To: "normal/yellow", Cause: "timer"}, h[1])
	assert.Equal(t, Transition{At: 7000, From: "normal/yellow", To: "normal/red", Cause: "timer"}, h[2])
	assert.Equal(t, "night", h[3].To)
	assert.Equal(t, "toggle-mode", h[3].Cause)
}

func TestNightScheduleSwitchesMode(t *testing.T) {
	opts := skipStartup()
	opts.NightSchedule = c.NewNightSchedule(52.52, 13.405)
	opts.WallClock = func() time.Time { return time.Date(2024, time.June, 21, 23, 0, 0, 0, time.UTC) }

	co, loop, _, clk := newTestLoop(t, opts)
	runLoop(loop, clk, 20)

	assert.Equal(t, c.Night, co.Snapshot().State.Mode)
	h := co.History()
	assert.Equal(t, "schedule", h[len(h)-1].Cause)
}
