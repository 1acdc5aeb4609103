// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"log/slog"
	"sync"
)

// Event is a zero-payload notification of a credential store
// transition.
type Event int

const (
	// EventAuthenticationComplete fires after a login has stored the
	// credential and profile.
	EventAuthenticationComplete Event = iota + 1
	// EventAuthenticationFailed fires when a guarded call received 401
	// and the session was cleared, or when the profile fetch during
	// login was rejected.
	EventAuthenticationFailed
	// EventLoggedOut fires on every Logout call.
	EventLoggedOut
)

func (e Event) String() string {
	switch e {
	case EventAuthenticationComplete:
		return "authentication_complete"
	case EventAuthenticationFailed:
		return "authentication_failed"
	case EventLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// eventBus fans events out to subscriber channels. Sends never block:
// a subscriber whose buffer is full misses the event and a warning is
// logged. Publishers call publish while holding the credential store
// lock, so subscribers observe events in transition order.
type eventBus struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	logger      *slog.Logger
}

func newEventBus(logger *slog.Logger) *eventBus {
	return &eventBus{
		subscribers: make(map[int]chan Event),
		logger:      logger,
	}
}

func (b *eventBus) subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	channel := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = channel
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
			close(channel)
		})
	}
	return channel, unsubscribe
}

func (b *eventBus) publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, channel := range b.subscribers {
		select {
		case channel <- event:
		default:
			b.logger.Warn("event subscriber buffer full, dropping event",
				"event", event.String(),
				"subscriber", id,
			)
		}
	}
}
