package producer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	d "lautenbacher.net/intellitraffic/display"
)

func TestStartupIntroThenAwait(t *testing.T) {
	timing := DefaultStartupTiming()
	s := BeginStartup(0)

	assert.Equal(t, d.StartOne, s.Frame(0, timing).Bitmap)
	assert.Equal(t, d.StartTwo, s.Frame(500, timing).Bitmap)
	assert.Equal(t, d.StartThree, s.Frame(1000, timing).Bitmap)
	assert.Equal(t, d.StartFour, s.Frame(1999, timing).Bitmap)

	s = s.Advance(1999, timing)
	assert.Equal(t, StartupIntro, s.Phase)
	s = s.Advance(2000, timing)
	assert.Equal(t, StartupAwaitConfirm, s.Phase)
	assert.Equal(t, d.StartPress, s.Frame(60_000, timing).Bitmap)

	// waiting does not time out
	assert.Equal(t, StartupAwaitConfirm, s.Advance(600_000, timing).Phase)
}

func TestStartupConfirmAndSplash(t *testing.T) {
	timing := DefaultStartupTiming()
	s := BeginStartup(0).Advance(2000, timing).Confirm(3000)

	assert.Equal(t, StartupSplash, s.Phase)
	frame := s.Frame(3100, timing)
	assert.Equal(t, d.Blank, frame.Bitmap)
	assert.Equal(t, []TextLine{
		{Text: "IntelliTraffic", X: 10, Y: 20},
		{Text: "Light", X: 45, Y: 35},
	}, frame.Text)

	assert.False(t, s.Advance(4999, timing).Done())
	assert.True(t, s.Advance(5000, timing).Done())
}

func TestStartupConfirmDuringIntro(t *testing.T) {
	s := BeginStartup(0).Confirm(700)
	assert.Equal(t, StartupSplash, s.Phase)
	assert.Equal(t, StartupSplash, s.Confirm(800).Phase, "a second press changes nothing")
}

func TestStartupPhaseString(t *testing.T) {
	assert.Equal(t, "await-confirm", StartupAwaitConfirm.String())
}
