/*
This file defines the Registry: the source of truth for which users are online.
It maps each user id to the set of their live sessions (multi-device) and
debounces the offline transition so quick reconnects never flap the online
indicator.
*/
package presence

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"talkora/internal/pkg/errs"
	"talkora/internal/pkg/logx"
)

// Sink is the outbound side of a live session. The concrete implementation is
// *Session; tests substitute recording fakes.
type Sink interface {
	// Send queues one event for best-effort delivery.
	Send(event string, data any) error

	// Close tears the underlying transport down.
	Close()
}

// Registry tracks every live session per user. It owns session membership
// exclusively; durable state never depends on it.
type Registry struct {
	mu sync.RWMutex

	// sessions maps a user id to that user's live sessions. A user is online
	// iff their set is non-empty.
	sessions map[string]map[Sink]struct{}

	// offlineTimers holds the pending offline debounce per user.
	offlineTimers map[string]*time.Timer

	// debounce is how long the last session must stay gone before the user is
	// reported offline.
	debounce time.Duration

	// onOnline fires when a user gains their first session.
	onOnline func(userID string)

	// onOffline fires once the debounce elapses with the user still offline.
	onOffline func(userID string)

	logger zerolog.Logger
}

// NewRegistry constructs a Registry with the given offline debounce window.
// The transition callbacks may be nil; SetTransitionHooks wires them after the
// broadcaster exists.
func NewRegistry(debounce time.Duration) *Registry {
	return &Registry{
		sessions:      make(map[string]map[Sink]struct{}),
		offlineTimers: make(map[string]*time.Timer),
		debounce:      debounce,
		logger:        logx.Logger().With().Str("component", "Registry").Logger(),
	}
}

// SetTransitionHooks installs the callbacks fired on online/offline
// transitions. Must be called before the first Register.
func (r *Registry) SetTransitionHooks(onOnline, onOffline func(userID string)) {
	r.onOnline = onOnline
	r.onOffline = onOffline
}

// Register adds a live session for the user. A second session for the same
// user never evicts the first. Registering without an authenticated identity
// fails with Unauthenticated; the caller must then close the transport.
func (r *Registry) Register(userID string, sink Sink) *errs.CustomError {
	if userID == "" {
		return errs.NewError(errs.ErrUnauthenticated)
	}

	var cameOnline bool

	r.mu.Lock()

	// A reconnect within the debounce window cancels the pending offline
	// notification so the user never appears to flicker.
	if timer, ok := r.offlineTimers[userID]; ok {
		timer.Stop()
		delete(r.offlineTimers, userID)
	} else if len(r.sessions[userID]) == 0 {
		cameOnline = true
	}

	set, ok := r.sessions[userID]
	if !ok {
		set = make(map[Sink]struct{})
		r.sessions[userID] = set
	}
	set[sink] = struct{}{}
	total := len(set)

	r.mu.Unlock()

	r.logger.Info().Str("user_id", userID).Int("sessions", total).Msg("Session registered.")

	if cameOnline && r.onOnline != nil {
		r.onOnline(userID)
	}

	return nil
}

// Unregister removes a session. When the user's last session disappears, the
// offline notification is armed after the debounce window rather than fired
// immediately.
func (r *Registry) Unregister(userID string, sink Sink) {
	r.mu.Lock()

	set, ok := r.sessions[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, ok := set[sink]; !ok {
		r.mu.Unlock()
		return
	}

	delete(set, sink)
	remaining := len(set)
	if remaining == 0 {
		delete(r.sessions, userID)
		r.armOfflineTimerLocked(userID)
	}

	r.mu.Unlock()

	r.logger.Info().Str("user_id", userID).Int("sessions", remaining).Msg("Session unregistered.")
}

// armOfflineTimerLocked schedules the debounced offline notification.
// Caller holds r.mu.
func (r *Registry) armOfflineTimerLocked(userID string) {
	if timer, ok := r.offlineTimers[userID]; ok {
		timer.Stop()
	}

	r.offlineTimers[userID] = time.AfterFunc(r.debounce, func() {
		r.mu.Lock()
		_, pending := r.offlineTimers[userID]
		stillOffline := pending && len(r.sessions[userID]) == 0
		delete(r.offlineTimers, userID)
		r.mu.Unlock()

		if stillOffline && r.onOffline != nil {
			r.onOffline(userID)
		}
	})
}

// SessionsFor returns a snapshot of the user's live sessions.
func (r *Registry) SessionsFor(userID string) []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.sessions[userID]
	sinks := make([]Sink, 0, len(set))
	for sink := range set {
		sinks = append(sinks, sink)
	}
	return sinks
}

// IsOnline reports whether the user has at least one live session.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID]) > 0
}

// OnlineIDs returns a snapshot of every currently online user id.
func (r *Registry) OnlineIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// CloseUser tears down every session of the given user (account deletion).
func (r *Registry) CloseUser(userID string) {
	for _, sink := range r.SessionsFor(userID) {
		sink.Close()
	}
}

// Shutdown stops all pending timers and closes every live session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	for userID, timer := range r.offlineTimers {
		timer.Stop()
		delete(r.offlineTimers, userID)
	}
	all := make([]Sink, 0)
	for _, set := range r.sessions {
		for sink := range set {
			all = append(all, sink)
		}
	}
	r.sessions = make(map[string]map[Sink]struct{})
	r.mu.Unlock()

	for _, sink := range all {
		sink.Close()
	}

	r.logger.Info().Msg("Registry shutdown complete.")
}
