package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"talkora/internal/pkg/errs"
)

// fakeGraph serves canned friend and block data for broadcaster tests.
type fakeGraph struct {
	friends map[string][]string
	blocked map[string]map[string]struct{}
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		friends: make(map[string][]string),
		blocked: make(map[string]map[string]struct{}),
	}
}

func (g *fakeGraph) befriend(a, b string) {
	g.friends[a] = append(g.friends[a], b)
	g.friends[b] = append(g.friends[b], a)
}

func (g *fakeGraph) block(a, b string) {
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		if g.blocked[pair[0]] == nil {
			g.blocked[pair[0]] = make(map[string]struct{})
		}
		g.blocked[pair[0]][pair[1]] = struct{}{}
	}
}

func (g *fakeGraph) FriendIDs(_ context.Context, userID string) ([]string, *errs.CustomError) {
	return g.friends[userID], nil
}

func (g *fakeGraph) IsBlockedEitherDirection(_ context.Context, userA, userB string) (bool, *errs.CustomError) {
	_, ok := g.blocked[userA][userB]
	return ok, nil
}

func (g *fakeGraph) BlockedEitherIDs(_ context.Context, userID string) (map[string]struct{}, *errs.CustomError) {
	return g.blocked[userID], nil
}

func eventsNamed(events []recordedEvent, name string) []recordedEvent {
	var out []recordedEvent
	for _, e := range events {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func TestSnapshot_HidesBlockedUsers(t *testing.T) {
	req := require.New(t)

	registry := NewRegistry(time.Second)
	graph := newFakeGraph()
	graph.block("alice", "mallory")

	b := NewBroadcaster(registry, graph, graph, time.Second)

	req.Nil(registry.Register("alice", &fakeSink{}))
	req.Nil(registry.Register("bob", &fakeSink{}))
	req.Nil(registry.Register("mallory", &fakeSink{}))

	snapshot, cerr := b.Snapshot(context.Background(), "alice")
	req.Nil(cerr)
	req.ElementsMatch([]string{"alice", "bob"}, snapshot)
}

func TestOnlineSetChanged_NotifiesFriendsNotStrangers(t *testing.T) {
	req := require.New(t)

	registry := NewRegistry(time.Second)
	graph := newFakeGraph()
	graph.befriend("alice", "bob")

	b := NewBroadcaster(registry, graph, graph, time.Second)

	bobSink := &fakeSink{}
	strangerSink := &fakeSink{}
	req.Nil(registry.Register("bob", bobSink))
	req.Nil(registry.Register("stranger", strangerSink))
	req.Nil(registry.Register("alice", &fakeSink{}))

	b.OnlineSetChanged(context.Background(), "alice")

	req.NotEmpty(eventsNamed(bobSink.Events(), EventOnlineUsers))
	req.Empty(strangerSink.Events())
}

func TestEmitTyping_DeliversToReceiverSessions(t *testing.T) {
	req := require.New(t)

	registry := NewRegistry(time.Second)
	graph := newFakeGraph()
	b := NewBroadcaster(registry, graph, graph, time.Second)
	defer b.Shutdown()

	phone := &fakeSink{}
	laptop := &fakeSink{}
	req.Nil(registry.Register("bob", phone))
	req.Nil(registry.Register("bob", laptop))

	b.EmitTyping(context.Background(), "alice", "bob", true)

	for _, sink := range []*fakeSink{phone, laptop} {
		typing := eventsNamed(sink.Events(), EventUserTyping)
		req.Len(typing, 1)
		req.Equal(TypingPayload{SenderID: "alice"}, typing[0].Data)
	}
}

func TestEmitTyping_SuppressedAcrossBlock(t *testing.T) {
	req := require.New(t)

	registry := NewRegistry(time.Second)
	graph := newFakeGraph()
	graph.block("alice", "bob")

	b := NewBroadcaster(registry, graph, graph, time.Second)
	defer b.Shutdown()

	bobSink := &fakeSink{}
	req.Nil(registry.Register("bob", bobSink))

	b.EmitTyping(context.Background(), "alice", "bob", true)
	b.EmitTyping(context.Background(), "alice", "bob", false)

	req.Empty(bobSink.Events())
}

func TestEmitTyping_ExpirySynthesizesStop(t *testing.T) {
	req := require.New(t)

	registry := NewRegistry(time.Second)
	graph := newFakeGraph()
	b := NewBroadcaster(registry, graph, graph, 30*time.Millisecond)
	defer b.Shutdown()

	bobSink := &fakeSink{}
	req.Nil(registry.Register("bob", bobSink))

	// The client starts typing and then vanishes without a stop signal.
	b.EmitTyping(context.Background(), "alice", "bob", true)

	req.Eventually(func() bool {
		return len(eventsNamed(bobSink.Events(), EventUserStoppedTyping)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestEmitTyping_FreshActivityResetsExpiry(t *testing.T) {
	req := require.New(t)

	registry := NewRegistry(time.Second)
	graph := newFakeGraph()
	b := NewBroadcaster(registry, graph, graph, 60*time.Millisecond)
	defer b.Shutdown()

	bobSink := &fakeSink{}
	req.Nil(registry.Register("bob", bobSink))

	b.EmitTyping(context.Background(), "alice", "bob", true)
	time.Sleep(35 * time.Millisecond)
	b.EmitTyping(context.Background(), "alice", "bob", true)
	time.Sleep(35 * time.Millisecond)

	// The second signal reset the timer, so no synthesized stop yet.
	req.Empty(eventsNamed(bobSink.Events(), EventUserStoppedTyping))
}

func TestEmitTyping_StopAfterExpiryIsNotRebroadcast(t *testing.T) {
	req := require.New(t)

	registry := NewRegistry(time.Second)
	graph := newFakeGraph()
	b := NewBroadcaster(registry, graph, graph, 20*time.Millisecond)
	defer b.Shutdown()

	bobSink := &fakeSink{}
	req.Nil(registry.Register("bob", bobSink))

	b.EmitTyping(context.Background(), "alice", "bob", true)

	req.Eventually(func() bool {
		return len(eventsNamed(bobSink.Events(), EventUserStoppedTyping)) == 1
	}, time.Second, 5*time.Millisecond)

	// The client's late explicit stop finds the edge already expired.
	b.EmitTyping(context.Background(), "alice", "bob", false)

	req.Len(eventsNamed(bobSink.Events(), EventUserStoppedTyping), 1)
}
