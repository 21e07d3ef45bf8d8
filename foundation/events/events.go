// Package events fans node events out to subscribed listeners.
package events

import (
	"fmt"
	"sync"
)

// listenerBuffer is the number of events a slow listener may fall behind
// before new events are dropped for it.
const listenerBuffer = 100

// Events maps a listener id to the channel that listener drains.
type Events struct {
	m  map[string]chan string
	mu sync.RWMutex
}

// New constructs an empty set of listeners.
func New() *Events {
	return &Events{
		m: make(map[string]chan string),
	}
}

// Shutdown closes every listener channel and forgets them.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		delete(evt.m, id)
		close(ch)
	}
}

// Acquire registers a listener and returns its channel. Acquiring an id
// twice returns the same channel.
func (evt *Events) Acquire(id string) <-chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if ch, exists := evt.m[id]; exists {
		return ch
	}

	ch := make(chan string, listenerBuffer)
	evt.m[id] = ch

	return ch
}

// Release closes and forgets the listener channel for the id.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("listener %q does not exist", id)
	}

	delete(evt.m, id)
	close(ch)

	return nil
}

// Count returns the number of registered listeners.
func (evt *Events) Count() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.m)
}

// Send delivers the event to every listener with room for it. Send never
// blocks on a listener.
func (evt *Events) Send(s string) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, ch := range evt.m {
		select {
		case ch <- s:
		default:
		}
	}
}
