package delivery

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"talkora/internal/app/presence"
	"talkora/internal/app/store"
	"talkora/internal/pkg/errs"
)

type recordedEvent struct {
	Event string
	Data  any
}

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

func eventsNamed(events []recordedEvent, name string) []recordedEvent {
	var out []recordedEvent
	for _, e := range events {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

// fakeConversations is an in-memory stand-in for the conversation store.
type fakeConversations struct {
	mu       sync.Mutex
	seq      int64
	appended []store.Message
	unread   int64
	images   []string
	purged   []string
}

func (f *fakeConversations) Append(_ context.Context, senderID, receiverID, text, imageKey string) (*store.Message, *errs.CustomError) {
	if (text == "") == (imageKey == "") {
		return nil, errs.NewError(errs.ErrInvalidContent)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	msg := store.Message{
		ID:         fmt.Sprintf("m%d", f.seq),
		Seq:        f.seq,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		ImageKey:   imageKey,
		CreatedAt:  time.Now(),
	}
	f.appended = append(f.appended, msg)
	f.unread++
	return &msg, nil
}

func (f *fakeConversations) MarkRead(_ context.Context, readerID, otherID string) (int64, *errs.CustomError) {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := f.unread
	f.unread = 0
	return count, nil
}

func (f *fakeConversations) Purge(_ context.Context, userA, userB string) ([]string, *errs.CustomError) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.purged = append(f.purged, store.PairKey(userA, userB))
	f.appended = nil
	return f.images, nil
}

// fakeBlocks records block state keyed by canonical pair.
type fakeBlocks struct {
	mu      sync.Mutex
	blocked map[string]bool
}

func newFakeBlocks() *fakeBlocks {
	return &fakeBlocks{blocked: make(map[string]bool)}
}

func (f *fakeBlocks) IsBlockedEitherDirection(_ context.Context, userA, userB string) (bool, *errs.CustomError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocked[store.PairKey(userA, userB)], nil
}

func (f *fakeBlocks) Block(_ context.Context, blockerID, blockedID string) *errs.CustomError {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked[store.PairKey(blockerID, blockedID)] = true
	return nil
}

func (f *fakeBlocks) Unblock(_ context.Context, blockerID, blockedID string) *errs.CustomError {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blocked, store.PairKey(blockerID, blockedID))
	return nil
}

func (f *fakeBlocks) BlockedEitherIDs(_ context.Context, userID string) (map[string]struct{}, *errs.CustomError) {
	return nil, nil
}

type fakeFriends struct {
	friends map[string][]string
}

func (f *fakeFriends) FriendIDs(_ context.Context, userID string) ([]string, *errs.CustomError) {
	return f.friends[userID], nil
}

// fakeImages records presign and delete calls. presignDelay simulates the
// network round trip of a real presign.
type fakeImages struct {
	mu           sync.Mutex
	deleted      []string
	presignDelay time.Duration
}

func (f *fakeImages) PresignDownload(_ context.Context, key string, _ time.Duration) (string, error) {
	if f.presignDelay > 0 {
		time.Sleep(f.presignDelay)
	}
	return "https://cdn.test/" + key, nil
}

func (f *fakeImages) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

type routerFixture struct {
	registry      *presence.Registry
	broadcaster   *presence.Broadcaster
	conversations *fakeConversations
	blocks        *fakeBlocks
	friends       *fakeFriends
	images        *fakeImages
	router        *Router
}

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		registry:      presence.NewRegistry(time.Second),
		conversations: &fakeConversations{},
		blocks:        newFakeBlocks(),
		friends:       &fakeFriends{friends: make(map[string][]string)},
		images:        &fakeImages{},
	}
	f.broadcaster = presence.NewBroadcaster(f.registry, f.friends, f.blocks, time.Second)
	f.router = NewRouter(f.registry, f.broadcaster, f.conversations, f.blocks, f.friends, f.images)
	return f
}

func TestRouteMessage_RejectedAcrossBlock(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()

	req.Nil(f.blocks.Block(context.Background(), "bob", "alice"))

	// The block holds in both directions, whichever side sends.
	_, cerr := f.router.RouteMessage(context.Background(), "alice", "bob", "hello", "", nil)
	req.NotNil(cerr)
	req.Equal(errs.ErrBlocked, cerr.Code)

	_, cerr = f.router.RouteMessage(context.Background(), "bob", "alice", "hello", "", nil)
	req.NotNil(cerr)
	req.Equal(errs.ErrBlocked, cerr.Code)

	req.Empty(f.conversations.appended)
}

func TestRouteMessage_StoredEvenWhenReceiverOffline(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()

	// Receiver has no live session.
	msg, cerr := f.router.RouteMessage(context.Background(), "alice", "bob", "hello", "", nil)
	req.Nil(cerr)
	req.NotNil(msg)
	req.Len(f.conversations.appended, 1)
	req.Equal("hello", f.conversations.appended[0].Text)
}

func TestRouteMessage_PushesToAllReceiverSessions(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()

	phone := &fakeSink{}
	laptop := &fakeSink{}
	req.Nil(f.registry.Register("bob", phone))
	req.Nil(f.registry.Register("bob", laptop))

	_, cerr := f.router.RouteMessage(context.Background(), "alice", "bob", "hello", "", nil)
	req.Nil(cerr)

	for _, sink := range []*fakeSink{phone, laptop} {
		pushes := eventsNamed(sink.Events(), presence.EventNewMessage)
		req.Len(pushes, 1)
		req.Equal("hello", pushes[0].Data.(*store.Message).Text)
	}
}

func TestRouteMessage_EchoSkipsOriginSession(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()

	origin := &fakeSink{}
	otherDevice := &fakeSink{}
	req.Nil(f.registry.Register("alice", origin))
	req.Nil(f.registry.Register("alice", otherDevice))

	_, cerr := f.router.RouteMessage(context.Background(), "alice", "bob", "hello", "", origin)
	req.Nil(cerr)

	// The device the message came from must not receive its own echo.
	req.Empty(eventsNamed(origin.Events(), presence.EventNewMessage))
	req.Len(eventsNamed(otherDevice.Events(), presence.EventNewMessage), 1)
}

func TestRouteMessage_ResolvesImageURL(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()

	receiver := &fakeSink{}
	req.Nil(f.registry.Register("bob", receiver))

	msg, cerr := f.router.RouteMessage(context.Background(), "alice", "bob", "", "chat/alice:bob/pic.png", nil)
	req.Nil(cerr)
	req.Equal("https://cdn.test/chat/alice:bob/pic.png", msg.ImageURL)
}

func TestRouteMessage_ConcurrentSendsPushInAppendOrder(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()
	f.images.presignDelay = 150 * time.Millisecond

	receiver := &fakeSink{}
	req.Nil(f.registry.Register("bob", receiver))

	// An image send whose presign is slow overlaps a quick text send to the
	// same pair. The text message appends first, so it must push first.
	var slowErr, quickErr *errs.CustomError
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, slowErr = f.router.RouteMessage(context.Background(), "alice", "bob", "", "chat/alice:bob/pic.png", nil)
	}()
	go func() {
		defer wg.Done()
		time.Sleep(30 * time.Millisecond)
		_, quickErr = f.router.RouteMessage(context.Background(), "alice", "bob", "quick reply", "", nil)
	}()
	wg.Wait()

	req.Nil(slowErr)
	req.Nil(quickErr)

	pushes := eventsNamed(receiver.Events(), presence.EventNewMessage)
	req.Len(pushes, 2)
	for i := 1; i < len(pushes); i++ {
		prev := pushes[i-1].Data.(*store.Message).Seq
		next := pushes[i].Data.(*store.Message).Seq
		req.Less(prev, next, "receiver observed messages out of append order")
	}
}

func TestRouteRead_FansOutReceipt(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()

	aliceSink := &fakeSink{}
	bobOrigin := &fakeSink{}
	bobOther := &fakeSink{}
	req.Nil(f.registry.Register("alice", aliceSink))
	req.Nil(f.registry.Register("bob", bobOrigin))
	req.Nil(f.registry.Register("bob", bobOther))

	_, cerr := f.router.RouteMessage(context.Background(), "alice", "bob", "hello", "", nil)
	req.Nil(cerr)

	count, cerr := f.router.RouteRead(context.Background(), "bob", "alice", bobOrigin)
	req.Nil(cerr)
	req.Equal(int64(1), count)

	// The sender learns the read happened; the reader's other device syncs
	// its unread badge; the reading device itself is skipped.
	req.Len(eventsNamed(aliceSink.Events(), presence.EventMessagesRead), 1)
	req.Len(eventsNamed(bobOther.Events(), presence.EventMessagesRead), 1)
	req.Empty(eventsNamed(bobOrigin.Events(), presence.EventMessagesRead))
}

func TestRouteRead_NothingUnreadIsSilent(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()

	aliceSink := &fakeSink{}
	req.Nil(f.registry.Register("alice", aliceSink))

	count, cerr := f.router.RouteRead(context.Background(), "bob", "alice", nil)
	req.Nil(cerr)
	req.Zero(count)
	req.Empty(aliceSink.Events())
}

func TestPurgeConversation_DeletesImagesAndNotifiesBoth(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()
	f.conversations.images = []string{"chat/alice:bob/a.png", "chat/alice:bob/b.png"}

	aliceSink := &fakeSink{}
	bobSink := &fakeSink{}
	req.Nil(f.registry.Register("alice", aliceSink))
	req.Nil(f.registry.Register("bob", bobSink))

	req.Nil(f.router.PurgeConversation(context.Background(), "alice", "bob"))

	req.ElementsMatch(f.conversations.images, f.images.deleted)
	req.Len(eventsNamed(aliceSink.Events(), presence.EventChatDeleted), 1)
	req.Len(eventsNamed(bobSink.Events(), presence.EventChatDeleted), 1)
}

func TestRouteBlockEvent_NotifiesBothSides(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()

	actorSink := &fakeSink{}
	targetSink := &fakeSink{}
	req.Nil(f.registry.Register("alice", actorSink))
	req.Nil(f.registry.Register("bob", targetSink))

	f.router.RouteBlockEvent(context.Background(), "alice", "bob", true)

	req.Len(eventsNamed(targetSink.Events(), presence.EventYouWereBlocked), 1)
	req.Len(eventsNamed(actorSink.Events(), presence.EventBlockActionConfirmed), 1)

	f.router.RouteBlockEvent(context.Background(), "alice", "bob", false)
	req.Len(eventsNamed(targetSink.Events(), presence.EventYouWereUnblocked), 1)
}

func TestNotifyFriends_ReachesEveryFriendSession(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()
	f.friends.friends["alice"] = []string{"bob", "carol"}

	bobSink := &fakeSink{}
	carolSink := &fakeSink{}
	strangerSink := &fakeSink{}
	req.Nil(f.registry.Register("bob", bobSink))
	req.Nil(f.registry.Register("carol", carolSink))
	req.Nil(f.registry.Register("stranger", strangerSink))

	f.router.NotifyFriends(context.Background(), "alice", presence.EventProfileUpdated, nil)

	req.Len(eventsNamed(bobSink.Events(), presence.EventProfileUpdated), 1)
	req.Len(eventsNamed(carolSink.Events(), presence.EventProfileUpdated), 1)
	req.Empty(strangerSink.Events())
}
