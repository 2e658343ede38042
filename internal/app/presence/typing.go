/*
This file implements the ephemeral typing-state tracker. Typing state is never
persisted; a server-side safety timer synthesizes a stop signal when a client
goes away mid-typing, so the receiver's "typing…" indicator can never stick.
*/
package presence

import (
	"sync"
	"time"
)

// typingTracker holds one expiry timer per active (sender, receiver) typing
// edge. Fresh typing signals reset the timer; an explicit stop cancels it.
type typingTracker struct {
	mu     sync.Mutex
	timers map[typingKey]*time.Timer
	expiry time.Duration

	// onExpire synthesizes the stop signal when the safety net fires.
	onExpire func(senderID, receiverID string)
}

type typingKey struct {
	senderID   string
	receiverID string
}

func newTypingTracker(expiry time.Duration, onExpire func(senderID, receiverID string)) *typingTracker {
	return &typingTracker{
		timers:   make(map[typingKey]*time.Timer),
		expiry:   expiry,
		onExpire: onExpire,
	}
}

// Touch records typing activity for the edge, arming or resetting its expiry.
func (t *typingTracker) Touch(senderID, receiverID string) {
	key := typingKey{senderID: senderID, receiverID: receiverID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[key]; ok {
		timer.Stop()
	}

	// The callback acts only while its own timer is still the registered one.
	// A superseded timer that already fired must not remove its replacement or
	// synthesize a stop for an edge that is still active.
	var timer *time.Timer
	timer = time.AfterFunc(t.expiry, func() {
		t.mu.Lock()
		current, ok := t.timers[key]
		active := ok && current == timer
		if active {
			delete(t.timers, key)
		}
		t.mu.Unlock()

		if active {
			t.onExpire(senderID, receiverID)
		}
	})
	t.timers[key] = timer
}

// Stop cancels the expiry for the edge. It reports whether the edge was
// active, so a stop for an already-expired edge is not re-broadcast.
func (t *typingTracker) Stop(senderID, receiverID string) bool {
	key := typingKey{senderID: senderID, receiverID: receiverID}

	t.mu.Lock()
	defer t.mu.Unlock()

	timer, ok := t.timers[key]
	if !ok {
		return false
	}

	timer.Stop()
	delete(t.timers, key)
	return true
}

// StopAll cancels every pending expiry (shutdown).
func (t *typingTracker) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
}
