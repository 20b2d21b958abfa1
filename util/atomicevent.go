package util

import (
	"sync"
)

// AtomicEvent publishes the latest value of something from a single
// writer to any number of readers. Readers either poll Value or wait
// on Channel; only the most recent value is retained and Send never
// blocks the writer.
type AtomicEvent[T any] struct {
	mu     sync.Mutex
	value  T
	notify chan struct{} // capacity 1, at most one pending notification
}

func NewAtomicEvent[T any]() *AtomicEvent[T] {
	return &AtomicEvent[T]{
		notify: make(chan struct{}, 1),
	}
}

// Send replaces the value and signals the readers. It is non-blocking.
func (ae *AtomicEvent[T]) Send(event T) {
	ae.mu.Lock()
	defer ae.mu.Unlock()

	ae.value = event

	select {
	case ae.notify <- struct{}{}:
	default:
		// a notification is already pending
	}
}

// Channel returns the notification channel for use in select statements.
func (ae *AtomicEvent[T]) Channel() <-chan struct{} {
	return ae.notify
}

// Value returns the latest value without consuming a notification.
func (ae *AtomicEvent[T]) Value() T {
	ae.mu.Lock()
	defer ae.mu.Unlock()
	return ae.value
}
