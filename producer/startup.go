package producer

import (
	"fmt"
	"time"

	"lautenbacher.net/intellitraffic/clock"
	d "lautenbacher.net/intellitraffic/display"
)

type StartupPhase int

const (
	StartupIntro StartupPhase = iota
	StartupAwaitConfirm
	StartupSplash
	StartupDone
)

func (s StartupPhase) String() string {
	switch s {
	case StartupIntro:
		return "intro"
	case StartupAwaitConfirm:
		return "await-confirm"
	case StartupSplash:
		return "splash"
	case StartupDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(s))
	}
}

type StartupTiming struct {
	Step   time.Duration
	Splash time.Duration
}

func DefaultStartupTiming() StartupTiming {
	return StartupTiming{
		Step:   500 * time.Millisecond,
		Splash: 2 * time.Second,
	}
}

var introFrames = []d.BitmapID{d.StartOne, d.StartTwo, d.StartThree, d.StartFour}

// Startup is the boot screen sequence: four intro images, then a
// "press the button" screen until the user confirms, then a short
// splash. It is a value; every transition returns a new Startup.
type Startup struct {
	Phase StartupPhase
	Since clock.Timestamp
}

func BeginStartup(now clock.Timestamp) Startup {
	return Startup{Phase: StartupIntro, Since: now}
}

// Advance applies the time based transitions.
func (s Startup) Advance(now clock.Timestamp, timing StartupTiming) Startup {
	switch s.Phase {
	case StartupIntro:
		if now.Sub(s.Since) >= timing.Step*time.Duration(len(introFrames)) {
			return Startup{Phase: StartupAwaitConfirm, Since: now}
		}
	case StartupSplash:
		if now.Sub(s.Since) >= timing.Splash {
			return Startup{Phase: StartupDone, Since: now}
		}
	}
	return s
}

// Confirm ends the intro or the waiting screen. Pressing during the
// intro skips the remaining intro images.
func (s Startup) Confirm(now clock.Timestamp) Startup {
	if s.Phase == StartupIntro || s.Phase == StartupAwaitConfirm {
		return Startup{Phase: StartupSplash, Since: now}
	}
	return s
}

func (s Startup) Done() bool {
	return s.Phase == StartupDone
}

// Frame returns the boot screen to show at now.
func (s Startup) Frame(now clock.Timestamp, timing StartupTiming) DisplayFrame {
	switch s.Phase {
	case StartupIntro:
		i := 0
		if timing.Step > 0 {
			i = int(now.Sub(s.Since) / timing.Step)
		}
		if i >= len(introFrames) {
			return DisplayFrame{Bitmap: d.StartPress}
		}
		return DisplayFrame{Bitmap: introFrames[i]}
	case StartupAwaitConfirm:
		return DisplayFrame{Bitmap: d.StartPress}
	case StartupSplash:
		return DisplayFrame{
			Bitmap: d.Blank,
			Text: []TextLine{
				{Text: "IntelliTraffic", X: 10, Y: 20},
				{Text: "Light", X: 45, Y: 35},
			},
		}
	default:
		return DisplayFrame{Bitmap: d.Blank}
	}
}
