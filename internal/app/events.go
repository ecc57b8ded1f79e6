package app

import (
	"sync"
	"time"
)

// EventType identifies what an Event reports.
type EventType string

// Event types published by the App.
const (
	EventVolumeChanged  EventType = "volume"
	EventSinkError      EventType = "sink_error"
	EventStartFailed    EventType = "start_failed"
	EventSessionStarted EventType = "session_started"
	EventSessionStopped EventType = "session_stopped"
)

// Event is a one-way notification from the control loop to the shell.
// Value is always a level in [0,1].
type Event struct {
	Type      EventType
	SessionID string
	Value     float64
	Err       error
	Time      time.Time
}

// Observer is notified of every accepted volume change.
type Observer interface {
	OnVolumeChanged(value float64)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(value float64)

// OnVolumeChanged calls f(value).
func (f ObserverFunc) OnVolumeChanged(value float64) { f(value) }

// subscriberBuffer is the per-subscriber queue length.
const subscriberBuffer = 16

// broadcaster fans events out to subscribers without ever blocking the
// publisher. A full subscriber loses its oldest queued event.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan Event]struct{})}
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

func (b *broadcaster) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		offer(ch, e)
	}
}

// offer queues e on ch, discarding the oldest queued events if ch is full.
func offer(ch chan Event, e Event) {
	for {
		select {
		case ch <- e:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
