package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	c "lautenbacher.net/intellitraffic/controller"
)

const commandQueueSize = 8

// Tasks runs the work as four independent goroutines with their own
// periods. The signal task is the only one touching the state machine:
// the button task sends it commands over a channel, the display and
// matrix tasks read the published snapshot. No task ever waits for
// another.
type Tasks struct {
	c        *Coordinator
	periods  Periods
	commands chan c.Command
	wg       sync.WaitGroup
}

func NewTasks(co *Coordinator) *Tasks {
	return &Tasks{
		c:        co,
		periods:  co.Periods(),
		commands: make(chan c.Command, commandQueueSize),
	}
}

// Submit queues a command for the signal task. It never blocks; if the
// queue is full the command is dropped.
func (s *Tasks) Submit(cmd c.Command) bool {
	select {
	case s.commands <- cmd:
		return true
	default:
		slog.Warn("Command queue full, command dropped", "command", cmd)
		return false
	}
}

// Run boots the coordinator, starts the tasks and blocks until ctx is
// done and all tasks have ended.
func (s *Tasks) Run(ctx context.Context) error {
	slog.Info("Starting tasks", "signal", s.periods.Signal, "display", s.periods.Display,
		"matrix", s.periods.Matrix, "buttons", s.periods.Buttons)
	s.c.Boot()

	s.wg.Add(4)
	go s.signalTask(ctx)
	go s.buttonTask(ctx)
	go s.displayTask(ctx)
	go s.matrixTask(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.c.Shutdown()
	return nil
}

func (s *Tasks) signalTask(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.periods.Signal)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Ending signal task...")
			return
		case cmd := <-s.commands:
			s.c.Handle(cmd, s.c.Now())
		case <-ticker.C:
			s.c.StepSignal(s.c.Now())
		}
	}
}

func (s *Tasks) buttonTask(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.periods.Buttons)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Ending button task...")
			return
		case <-ticker.C:
			for _, cmd := range s.c.PollButtons() {
				s.Submit(cmd)
			}
		}
	}
}

func (s *Tasks) displayTask(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.periods.Display)
	defer ticker.Stop()
	s.c.RenderDisplay(s.c.Now())
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Ending display task...")
			return
		case <-s.c.ModeChanged():
			s.c.RenderDisplay(s.c.Now())
		case <-ticker.C:
			s.c.RenderDisplay(s.c.Now())
		}
	}
}

func (s *Tasks) matrixTask(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.periods.Matrix)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Ending matrix task...")
			return
		case <-ticker.C:
			s.c.RenderMatrix()
		}
	}
}
