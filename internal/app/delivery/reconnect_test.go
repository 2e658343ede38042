package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"talkora/internal/app/presence"
	"talkora/internal/pkg/errs"
)

func TestOnReconnect_RegistersAndPrimesSession(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()
	reconnector := NewReconnector(f.registry, f.broadcaster)

	sink := &fakeSink{}
	req.Nil(reconnector.OnReconnect(context.Background(), "alice", sink))

	req.True(f.registry.IsOnline("alice"))

	// The fresh session is primed with the online snapshot and told to
	// re-fetch its conversation lists.
	req.Len(eventsNamed(sink.Events(), presence.EventOnlineUsers), 1)
	req.Len(eventsNamed(sink.Events(), presence.EventRefreshContactsList), 1)
}

func TestOnReconnect_RefusesAnonymousSession(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()
	reconnector := NewReconnector(f.registry, f.broadcaster)

	cerr := reconnector.OnReconnect(context.Background(), "", &fakeSink{})
	req.NotNil(cerr)
	req.Equal(errs.ErrUnauthenticated, cerr.Code)
}

func TestOnReconnect_InsideDebounceKeepsUserOnline(t *testing.T) {
	req := require.New(t)

	registry := presence.NewRegistry(50 * time.Millisecond)
	graph := &fakeFriends{friends: map[string][]string{}}
	blocks := newFakeBlocks()
	broadcaster := presence.NewBroadcaster(registry, graph, blocks, time.Second)
	reconnector := NewReconnector(registry, broadcaster)

	first := &fakeSink{}
	req.Nil(reconnector.OnReconnect(context.Background(), "alice", first))
	registry.Unregister("alice", first)

	// Reconnect before the debounce fires.
	req.Nil(reconnector.OnReconnect(context.Background(), "alice", &fakeSink{}))

	time.Sleep(80 * time.Millisecond)
	req.True(registry.IsOnline("alice"))
}
