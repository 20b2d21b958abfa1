package coordinator

import (
	"context"
	"log/slog"
	"time"

	"lautenbacher.net/intellitraffic/clock"
)

// Loop runs all work cooperatively on one goroutine: every iteration
// polls the buttons and steps the signal, the display and matrix are
// rendered when their period is due. A mode change redraws the display
// in the same iteration.
type Loop struct {
	c           *Coordinator
	periods     Periods
	rendered    bool
	lastDisplay clock.Timestamp
	lastMatrix  clock.Timestamp
}

func NewLoop(c *Coordinator) *Loop {
	return &Loop{c: c, periods: c.Periods()}
}

// RunOnce performs one loop iteration at now.
func (s *Loop) RunOnce(now clock.Timestamp) {
	for _, cmd := range s.c.PollButtons() {
		s.c.Handle(cmd, now)
	}
	s.c.StepSignal(now)

	modeChanged := false
	select {
	case <-s.c.ModeChanged():
		modeChanged = true
	default:
	}

	if !s.rendered || modeChanged || now.Sub(s.lastDisplay) >= s.periods.Display {
		s.c.RenderDisplay(now)
		s.lastDisplay = now
	}
	if !s.rendered || modeChanged || now.Sub(s.lastMatrix) >= s.periods.Matrix {
		s.c.RenderMatrix()
		s.lastMatrix = now
	}
	s.rendered = true
}

// Run boots the coordinator and loops every signal period until ctx is
// done.
func (s *Loop) Run(ctx context.Context) error {
	slog.Info("Starting cooperative loop", "period", s.periods.Signal)
	s.c.Boot()
	ticker := time.NewTicker(s.periods.Signal)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.c.Shutdown()
			return nil
		case <-ticker.C:
			s.RunOnce(s.c.Now())
		}
	}
}
