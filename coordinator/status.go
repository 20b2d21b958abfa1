package coordinator

import (
	c "lautenbacher.net/intellitraffic/controller"
	"lautenbacher.net/intellitraffic/logging"
)

// Status is the JSON document served on /api/status.
type Status struct {
	Boot    string       `json:"boot"`
	Uptime  uint64       `json:"uptimeMillis"`
	Startup string       `json:"startup"`
	Mode    string       `json:"mode"`
	Color   string       `json:"color"`
	Lamps   c.Lamps      `json:"lamps"`
	Buzzer  BuzzerStatus `json:"buzzer"`
	Sign    bool         `json:"signAnimation"`
	History []Transition `json:"history"`
}

type BuzzerStatus struct {
	On     bool   `json:"on"`
	FreqHz uint32 `json:"freqHz"`
}

// CurrentStatus assembles the status from the last snapshot.
func (s *Coordinator) CurrentStatus() Status {
	now := s.clock.Now()
	snap := s.snapshot.Value()
	return Status{
		Boot:    logging.BootID(),
		Uptime:  uint64(now),
		Startup: snap.Startup.Phase.String(),
		Mode:    snap.State.Mode.String(),
		Color:   snap.State.Color.String(),
		Lamps:   snap.Lamps,
		Buzzer:  BuzzerStatus{On: snap.State.BuzzerOn, FreqHz: snap.State.BuzzerFreq},
		Sign:    snap.State.Sign.Running(now, s.opts.Display.SignWindow),
		History: s.history.Items(),
	}
}
