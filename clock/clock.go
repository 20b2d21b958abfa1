package clock

import (
	"sync"
	"time"
)

// Timestamp is a point in time measured in milliseconds since the
// controller booted. It never goes backwards.
type Timestamp uint64

// Sub returns the duration between s and an earlier timestamp. If
// earlier lies after s the result is 0, a late reader must never see a
// negative elapsed time.
func (s Timestamp) Sub(earlier Timestamp) time.Duration {
	if earlier >= s {
		return 0
	}
	return time.Duration(s-earlier) * time.Millisecond
}

// Add returns s moved forward by d (truncated to milliseconds).
func (s Timestamp) Add(d time.Duration) Timestamp {
	return s + Timestamp(d.Milliseconds())
}

// Clock is the timing source every component reads "now" from.
type Clock interface {
	Now() Timestamp
}

// Monotonic is the real clock. It is based on the monotonic reading
// of time.Time, wall clock adjustments have no effect.
type Monotonic struct {
	boot time.Time
}

func NewMonotonic() *Monotonic {
	return &Monotonic{boot: time.Now()}
}

func (s *Monotonic) Now() Timestamp {
	return Timestamp(time.Since(s.boot).Milliseconds())
}

// Virtual is a manually advanced clock for tests and replays.
type Virtual struct {
	mu  sync.Mutex
	now Timestamp
}

func NewVirtual(start Timestamp) *Virtual {
	return &Virtual{now: start}
}

func (s *Virtual) Now() Timestamp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves the clock forward by d and returns the new time.
func (s *Virtual) Advance(d time.Duration) Timestamp {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
	return s.now
}

// Set jumps to ts. Jumps backwards are ignored.
func (s *Virtual) Set(ts Timestamp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ts > s.now {
		s.now = ts
	}
}
