package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"talkora/internal/pkg/errs"
)

// recordedEvent is one frame captured by fakeSink.
type recordedEvent struct {
	Event string
	Data  any
}

// fakeSink records everything sent to it, standing in for a live session.
type fakeSink struct {
	mu     sync.Mutex
	events []recordedEvent
	closed bool
}

func (f *fakeSink) Send(event string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{Event: event, Data: data})
	return nil
}

func (f *fakeSink) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSink) Events() []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedEvent, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeSink) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// transitionRecorder captures online/offline hook invocations.
type transitionRecorder struct {
	mu      sync.Mutex
	online  []string
	offline []string
}

func (tr *transitionRecorder) hooks() (func(string), func(string)) {
	return func(userID string) {
			tr.mu.Lock()
			defer tr.mu.Unlock()
			tr.online = append(tr.online, userID)
		}, func(userID string) {
			tr.mu.Lock()
			defer tr.mu.Unlock()
			tr.offline = append(tr.offline, userID)
		}
}

func (tr *transitionRecorder) snapshot() (online, offline []string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.online...), append([]string(nil), tr.offline...)
}

func TestRegistry_Register_RequiresIdentity(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(time.Second)

	cerr := registry.Register("", &fakeSink{})
	req.NotNil(cerr)
	req.Equal(errs.ErrUnauthenticated, cerr.Code)
}

func TestRegistry_MultipleSessionsPerUser(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(time.Second)

	phone := &fakeSink{}
	laptop := &fakeSink{}

	// Given two devices of the same user connect
	req.Nil(registry.Register("alice", phone))
	req.Nil(registry.Register("alice", laptop))

	// Then the second session never evicts the first
	req.Len(registry.SessionsFor("alice"), 2)
	req.True(registry.IsOnline("alice"))

	// When one device disconnects the user stays online
	registry.Unregister("alice", phone)
	req.True(registry.IsOnline("alice"))
	req.Len(registry.SessionsFor("alice"), 1)
}

func TestRegistry_OnlineFiresOnceForFirstSession(t *testing.T) {
	req := require.New(t)

	registry := NewRegistry(time.Second)
	recorder := &transitionRecorder{}
	registry.SetTransitionHooks(recorder.hooks())

	req.Nil(registry.Register("alice", &fakeSink{}))
	req.Nil(registry.Register("alice", &fakeSink{}))

	online, offline := recorder.snapshot()
	req.Equal([]string{"alice"}, online)
	req.Empty(offline)
}

func TestRegistry_OfflineIsDebounced(t *testing.T) {
	req := require.New(t)

	registry := NewRegistry(30 * time.Millisecond)
	recorder := &transitionRecorder{}
	registry.SetTransitionHooks(recorder.hooks())

	sink := &fakeSink{}
	req.Nil(registry.Register("alice", sink))

	// When the last session drops, the offline notification waits out the
	// debounce window instead of firing immediately.
	registry.Unregister("alice", sink)
	req.False(registry.IsOnline("alice"))

	_, offline := recorder.snapshot()
	req.Empty(offline)

	req.Eventually(func() bool {
		_, offline := recorder.snapshot()
		return len(offline) == 1 && offline[0] == "alice"
	}, time.Second, 5*time.Millisecond)
}

func TestRegistry_ReconnectCancelsOfflineNotification(t *testing.T) {
	req := require.New(t)

	registry := NewRegistry(50 * time.Millisecond)
	recorder := &transitionRecorder{}
	registry.SetTransitionHooks(recorder.hooks())

	first := &fakeSink{}
	req.Nil(registry.Register("alice", first))
	registry.Unregister("alice", first)

	// Reconnect inside the debounce window.
	req.Nil(registry.Register("alice", &fakeSink{}))

	// The offline hook must never fire, and the reconnect is not a fresh
	// online transition either.
	time.Sleep(120 * time.Millisecond)

	online, offline := recorder.snapshot()
	req.Empty(offline)
	req.Equal([]string{"alice"}, online)
	req.True(registry.IsOnline("alice"))
}

func TestRegistry_UnregisterUnknownSessionIsNoop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(time.Second)

	req.Nil(registry.Register("alice", &fakeSink{}))

	// A sink that was never registered must not disturb the user's state.
	registry.Unregister("alice", &fakeSink{})
	req.True(registry.IsOnline("alice"))
}

func TestRegistry_CloseUserTearsDownAllSessions(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(time.Second)

	phone := &fakeSink{}
	laptop := &fakeSink{}
	req.Nil(registry.Register("alice", phone))
	req.Nil(registry.Register("alice", laptop))

	registry.CloseUser("alice")

	req.True(phone.Closed())
	req.True(laptop.Closed())
}
