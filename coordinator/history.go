package coordinator

import (
	"sync"

	"github.com/gammazero/deque"

	"lautenbacher.net/intellitraffic/clock"
)

// Transition is one state change of the signal.
type Transition struct {
	At    clock.Timestamp `json:"at"`
	From  string          `json:"from"`
	To    string          `json:"to"`
	Cause string          `json:"cause"`
}

// History keeps the most recent transitions, oldest first.
type History struct {
	mu    sync.Mutex
	size  int
	items deque.Deque[Transition]
}

func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{size: size}
}

func (s *History) Add(t Transition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.items.Len() >= s.size {
		s.items.PopFront()
	}
	s.items.PushBack(t)
}

// Items returns a copy of the stored transitions.
func (s *History) Items() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]Transition, s.items.Len())
	for i := range ret {
		ret[i] = s.items.At(i)
	}
	return ret
}
