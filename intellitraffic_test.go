package main

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lautenbacher.net/intellitraffic/clock"
	"lautenbacher.net/intellitraffic/config"
	c "lautenbacher.net/intellitraffic/controller"
	co "lautenbacher.net/intellitraffic/coordinator"
	d "lautenbacher.net/intellitraffic/display"
	pl "lautenbacher.net/intellitraffic/platform"
	p "lautenbacher.net/intellitraffic/producer"
)

type MockPlatform struct {
	pl.Platform
	mu      sync.Mutex
	lamps   []c.Lamps
	tones   []uint32
	started bool
	stopped bool
	flushes int
	commits int
	ready   chan bool
}

func NewMockPlatform() *MockPlatform {
	ready := make(chan bool)
	close(ready)
	return &MockPlatform{ready: ready}
}

func (m *MockPlatform) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

func (m *MockPlatform) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *MockPlatform) Ready() <-chan bool {
	return m.ready
}

func (m *MockPlatform) Drivers() co.Drivers {
	return co.Drivers{Display: m, Buzzer: (*mockBuzzer)(m), Matrix: m, Buttons: m, Lamps: m}
}

func (m *MockPlatform) Clear()                      {}
func (m *MockPlatform) Blit(id d.BitmapID)          {}
func (m *MockPlatform) DrawText(s string, x, y int) {}
func (m *MockPlatform) SetPixel(i int, led p.Led)   {}

func (m *MockPlatform) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

func (m *MockPlatform) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	return nil
}

func (m *MockPlatform) ReadEdge(id c.ButtonID) (clock.Timestamp, bool) {
	return 0, false
}

func (m *MockPlatform) SetLamps(l c.Lamps) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lamps = append(m.lamps, l)
	return nil
}

func (m *MockPlatform) lastLamps() c.Lamps {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.lamps) == 0 {
		return c.Lamps{}
	}
	return m.lamps[len(m.lamps)-1]
}

type mockBuzzer MockPlatform

func (m *mockBuzzer) SetTone(freqHz uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tones = append(m.tones, freqHz)
	return nil
}

func (m *mockBuzzer) Stop() error { return nil }

func testConfig(mode string) *config.Config {
	conf := config.Default()
	conf.Timing.SkipStartup = true
	conf.Scheduler.Mode = mode
	return conf
}

func TestCoordinatorOptions(t *testing.T) {
	conf := config.Default()
	conf.Timing.Green = 8 * time.Second
	conf.Audio.Red.FreqHz = 1200
	conf.Matrix.WalkRGB = []float64{0, 80, 0}
	conf.NightAuto = config.NightAutoConfig{Enabled: true, Latitude: 52.5, Longitude: 13.4, Check: 30 * time.Second}

	opts := coordinatorOptions(conf)
	assert.Equal(t, 8*time.Second, opts.Timing.Green)
	assert.Equal(t, 2*time.Second, opts.Timing.Sign)
	assert.Equal(t, 2*time.Second, opts.Display.SignWindow)
	assert.Equal(t, uint32(1200), opts.Cadence.Red.FreqHz)
	assert.True(t, opts.Cadence.Night.FromOnset)
	assert.Equal(t, p.Led{Green: 80}, opts.Palette.Walk)
	assert.Equal(t, 300*time.Millisecond, opts.Debounce)
	assert.Equal(t, 10*time.Millisecond, opts.Periods.Signal)
	assert.NotNil(t, opts.NightSchedule)
	assert.Equal(t, 30*time.Second, opts.NightCheck)
}

func TestDefaultConfigMatchesDefaultOptions(t *testing.T) {
	opts := coordinatorOptions(config.Default())
	def := co.DefaultOptions()
	assert.Equal(t, def.Timing, opts.Timing)
	assert.Equal(t, def.Cadence, opts.Cadence)
	assert.Equal(t, def.Display, opts.Display)
	assert.Equal(t, def.Startup, opts.Startup)
	assert.Equal(t, def.Palette, opts.Palette)
	assert.Equal(t, def.Periods, opts.Periods)
	assert.Nil(t, opts.NightSchedule)
}

func TestStartAndShutdown(t *testing.T) {
	for _, mode := range []string{config.SchedulerLoop, config.SchedulerTasks} {
		t.Run(mode, func(t *testing.T) {
			app := NewApp(make(chan os.Signal, 1))
			mock := NewMockPlatform()

			require.NoError(t, app.start(testConfig(mode), clock.NewMonotonic(), mock))
			assert.Eventually(t, func() bool {
				return mock.lastLamps() == c.Lamps{Green: true}
			}, time.Second, 10*time.Millisecond)
			assert.Eventually(t, func() bool {
				mock.mu.Lock()
				defer mock.mu.Unlock()
				return mock.flushes > 0 && mock.commits > 0
			}, time.Second, 10*time.Millisecond)

			app.shutdown()
			assert.True(t, mock.stopped)
			assert.Equal(t, c.Lamps{}, mock.lastLamps(), "shutdown darkens the lamps")
			assert.Nil(t, app.platform)
		})
	}
}

func TestRecordingWritesWav(t *testing.T) {
	app := NewApp(make(chan os.Signal, 1))
	mock := NewMockPlatform()
	conf := testConfig(config.SchedulerLoop)
	conf.Audio.RecordFile = filepath.Join(t.TempDir(), "buzzer.wav")

	require.NoError(t, app.start(conf, clock.NewMonotonic(), mock))
	time.Sleep(1200 * time.Millisecond)
	app.shutdown()

	info, err := os.Stat(conf.Audio.RecordFile)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(44))
	mock.mu.Lock()
	defer mock.mu.Unlock()
	assert.Contains(t, mock.tones, uint32(2000), "the recorder passes tones on")
}

func TestWatchConfigSendsSIGHUP(t *testing.T) {
	dir := t.TempDir()
	cfile := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(cfile, []byte("Timing: {}\n"), 0o644))

	ossignal := make(chan os.Signal, 1)
	watcher, err := watchConfig(cfile, ossignal)
	require.NoError(t, err)
	defer watcher.Close()

	// other files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yml"), []byte("x"), 0o644))
	select {
	case sig := <-ossignal:
		t.Fatalf("unexpected signal %v", sig)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(cfile, []byte("Timing: {}\n"), 0o644))
	select {
	case sig := <-ossignal:
		assert.Equal(t, syscall.SIGHUP, sig)
	case <-time.After(2 * time.Second):
		t.Fatal("no SIGHUP after config change")
	}
}
