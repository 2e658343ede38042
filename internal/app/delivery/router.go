/*
Package delivery routes outbound events (messages, read receipts, friend and
block actions) to the live sessions of the users affected, after the durable
mutation has committed. Store-and-forward is the rule: a message exists in the
conversation log before any push is attempted, so an offline receiver always
recovers it from history and a dead socket never fails the originating call.
*/
package delivery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"talkora/internal/app/presence"
	"talkora/internal/app/store"
	"talkora/internal/pkg/errs"
	"talkora/internal/pkg/logx"
)

// imageURLTTL is how long presigned image download links stay valid.
const imageURLTTL = 24 * time.Hour

// Conversations is the slice of the ConversationStore the router needs.
type Conversations interface {
	Append(ctx context.Context, senderID, receiverID, text, imageKey string) (*store.Message, *errs.CustomError)
	MarkRead(ctx context.Context, readerID, otherID string) (int64, *errs.CustomError)
	Purge(ctx context.Context, userA, userB string) ([]string, *errs.CustomError)
}

// Blocks is the slice of the BlockList the router needs: the delivery gate
// plus the socket-driven block/unblock mutations.
type Blocks interface {
	IsBlockedEitherDirection(ctx context.Context, userA, userB string) (bool, *errs.CustomError)
	Block(ctx context.Context, blockerID, blockedID string) *errs.CustomError
	Unblock(ctx context.Context, blockerID, blockedID string) *errs.CustomError
}

// Friends exposes the edges used for contact-list refresh fan-out.
type Friends interface {
	FriendIDs(ctx context.Context, userID string) ([]string, *errs.CustomError)
}

// ImageStore resolves stored image keys to downloadable URLs and removes
// objects orphaned by a purge. Both are best-effort from the router's view.
type ImageStore interface {
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Router decides, for each outbound event, which sessions receive a push.
// It reads the conversation log and the block list; it owns neither.
type Router struct {
	registry      *presence.Registry
	broadcaster   *presence.Broadcaster
	conversations Conversations
	blocks        Blocks
	friends       Friends
	images        ImageStore

	// ordered serializes append+push per conversation pair so the receiver
	// observes messages in append order.
	ordered store.PairLock

	logger zerolog.Logger
}

// NewRouter constructs the delivery router. images may be nil when object
// storage is not configured (image URLs then stay unresolved).
func NewRouter(
	registry *presence.Registry,
	broadcaster *presence.Broadcaster,
	conversations Conversations,
	blocks Blocks,
	friends Friends,
	images ImageStore,
) *Router {
	return &Router{
		registry:      registry,
		broadcaster:   broadcaster,
		conversations: conversations,
		blocks:        blocks,
		friends:       friends,
		images:        images,
		logger:        logx.Logger().With().Str("component", "DeliveryRouter").Logger(),
	}
}

// RouteMessage persists and delivers one message. It fails with Blocked when
// a block relation exists in either direction; otherwise the message is
// durably appended first, then pushed to all of the receiver's sessions plus
// an echo to the sender's other sessions for multi-device sync. origin is the
// session the message arrived on, or nil for REST sends.
func (r *Router) RouteMessage(ctx context.Context, senderID, receiverID, text, imageKey string, origin presence.Sink) (*store.Message, *errs.CustomError) {
	blocked, cerr := r.blocks.IsBlockedEitherDirection(ctx, senderID, receiverID)
	if cerr != nil {
		return nil, cerr
	}
	if blocked {
		return nil, errs.NewError(errs.ErrBlocked)
	}

	// Presigning is a network round trip; it happens before the pair stripe is
	// taken so the ordered section is append and push only.
	imageURL := r.presignImage(ctx, imageKey)

	// The stripe stays held until every push is queued. Without it a second
	// send to the same pair could push its later row first.
	unlock := r.ordered.Lock(senderID, receiverID)
	defer unlock()

	msg, cerr := r.conversations.Append(ctx, senderID, receiverID, text, imageKey)
	if cerr != nil {
		return nil, cerr
	}
	msg.ImageURL = imageURL

	// Push failures are swallowed: the message is already at rest and the
	// receiver fetches it from history on the next sync.
	for _, sink := range r.registry.SessionsFor(receiverID) {
		if err := sink.Send(presence.EventNewMessage, msg); err != nil {
			r.logger.Debug().Err(err).Str("receiver_id", receiverID).Msg("Dropped newMessage push")
		}
	}

	for _, sink := range r.registry.SessionsFor(senderID) {
		if sink == origin {
			continue
		}
		if err := sink.Send(presence.EventNewMessage, msg); err != nil {
			r.logger.Debug().Err(err).Str("sender_id", senderID).Msg("Dropped newMessage echo")
		}
	}

	return msg, nil
}

// ResolveImageURLs fills presigned download URLs on a page of history rows.
func (r *Router) ResolveImageURLs(ctx context.Context, messages []store.Message) {
	for i := range messages {
		r.resolveImageURL(ctx, &messages[i])
	}
}

func (r *Router) resolveImageURL(ctx context.Context, msg *store.Message) {
	if !msg.HasImage() {
		return
	}
	if url := r.presignImage(ctx, msg.ImageKey); url != "" {
		msg.ImageURL = url
	}
}

// presignImage resolves a stored image key to a download URL, returning the
// empty string when there is no key, no object storage, or the presign fails.
func (r *Router) presignImage(ctx context.Context, key string) string {
	if r.images == nil || key == "" {
		return ""
	}

	url, err := r.images.PresignDownload(ctx, key, imageURLTTL)
	if err != nil {
		r.logger.Warn().Err(err).Str("image_key", key).Msg("Failed to presign image URL")
		return ""
	}
	return url
}

// readReceipt is the payload of a messagesRead push.
type readReceipt struct {
	ReaderID string `json:"readerId"`
	OtherID  string `json:"otherId"`
	Count    int64  `json:"count"`
}

// RouteRead marks the conversation read and, when anything changed, notifies
// the counterpart's sessions and the reader's other sessions so every device
// converges on the single shared unread cursor.
func (r *Router) RouteRead(ctx context.Context, readerID, otherID string, origin presence.Sink) (int64, *errs.CustomError) {
	count, cerr := r.conversations.MarkRead(ctx, readerID, otherID)
	if cerr != nil {
		return 0, cerr
	}
	if count == 0 {
		return 0, nil
	}

	receipt := readReceipt{ReaderID: readerID, OtherID: otherID, Count: count}

	for _, sink := range r.registry.SessionsFor(otherID) {
		if err := sink.Send(presence.EventMessagesRead, receipt); err != nil {
			r.logger.Debug().Err(err).Str("other_id", otherID).Msg("Dropped messagesRead push")
		}
	}

	for _, sink := range r.registry.SessionsFor(readerID) {
		if sink == origin {
			continue
		}
		if err := sink.Send(presence.EventMessagesRead, receipt); err != nil {
			r.logger.Debug().Err(err).Str("reader_id", readerID).Msg("Dropped messagesRead echo")
		}
	}

	return count, nil
}

// PurgeConversation hard-deletes the pair's history, removes any orphaned
// image objects, and pushes chatDeleted to both users' sessions.
func (r *Router) PurgeConversation(ctx context.Context, userA, userB string) *errs.CustomError {
	imageKeys, cerr := r.conversations.Purge(ctx, userA, userB)
	if cerr != nil {
		return cerr
	}

	if r.images != nil {
		for _, key := range imageKeys {
			if err := r.images.Delete(ctx, key); err != nil {
				r.logger.Warn().Err(err).Str("image_key", key).Msg("Failed to delete purged image object")
			}
		}
	}

	payload := map[string]string{"userA": userA, "userB": userB}
	r.NotifyUser(userA, presence.EventChatDeleted, payload)
	r.NotifyUser(userB, presence.EventChatDeleted, payload)

	return nil
}

// NotifyUser pushes one event to every session of the target user.
// Push failures are swallowed; the REST path stays authoritative.
func (r *Router) NotifyUser(targetID, event string, data any) {
	for _, sink := range r.registry.SessionsFor(targetID) {
		if err := sink.Send(event, data); err != nil {
			r.logger.Debug().Err(err).Str("target_id", targetID).Str("event", event).Msg("Dropped push")
		}
	}
}

// NotifyFriends pushes one event to every session of every friend of userID.
func (r *Router) NotifyFriends(ctx context.Context, userID, event string, data any) {
	friendIDs, cerr := r.friends.FriendIDs(ctx, userID)
	if cerr != nil {
		r.logger.Error().Err(cerr).Str("user_id", userID).Msg("Failed to load friends for fan-out")
		return
	}

	for _, friendID := range friendIDs {
		r.NotifyUser(friendID, event, data)
	}
}

// RouteBlockEvent applies the pushes that follow a block or unblock: the
// target learns their standing changed, the actor's sessions get the action
// confirmed, and both parties receive fresh presence snapshots since their
// mutual visibility just changed.
func (r *Router) RouteBlockEvent(ctx context.Context, actorID, targetID string, blocked bool) {
	targetEvent := presence.EventYouWereUnblocked
	if blocked {
		targetEvent = presence.EventYouWereBlocked
	}

	r.NotifyUser(targetID, targetEvent, map[string]string{"userId": actorID})
	r.NotifyUser(actorID, presence.EventBlockActionConfirmed, map[string]any{
		"userId":  targetID,
		"blocked": blocked,
	})

	r.broadcaster.OnlineSetChanged(ctx, actorID)
	r.broadcaster.OnlineSetChanged(ctx, targetID)
}

// HandleTyping implements presence.InboundHandler.
func (r *Router) HandleTyping(s *presence.Session, receiverID string, isTyping bool) {
	r.broadcaster.EmitTyping(context.Background(), s.UserID, receiverID, isTyping)
}

// HandleRequestOnlineUsers implements presence.InboundHandler.
func (r *Router) HandleRequestOnlineUsers(s *presence.Session) {
	r.broadcaster.PushSnapshot(context.Background(), s.UserID, s)
}

// HandleBlockAction implements presence.InboundHandler: the socket variant of
// the block/unblock REST calls. The mutation commits before any push so a
// message sent immediately after the block is already suppressed.
func (r *Router) HandleBlockAction(s *presence.Session, targetID string, block bool) {
	ctx := context.Background()

	var cerr *errs.CustomError
	if block {
		cerr = r.blocks.Block(ctx, s.UserID, targetID)
	} else {
		cerr = r.blocks.Unblock(ctx, s.UserID, targetID)
	}
	if cerr != nil {
		r.logger.Error().Err(cerr).Str("actor_id", s.UserID).Str("target_id", targetID).Msg("Socket block action failed")
		return
	}

	r.RouteBlockEvent(ctx, s.UserID, targetID, block)
}

// HandleContactsRefresh implements presence.InboundHandler: fan a contact
// list refresh hint to the user's friends and their own other sessions.
func (r *Router) HandleContactsRefresh(s *presence.Session) {
	ctx := context.Background()

	r.NotifyFriends(ctx, s.UserID, presence.EventRefreshContactsList, nil)

	for _, sink := range r.registry.SessionsFor(s.UserID) {
		if sink == presence.Sink(s) {
			continue
		}
		if err := sink.Send(presence.EventRefreshContactsList, nil); err != nil {
			r.logger.Debug().Err(err).Str("user_id", s.UserID).Msg("Dropped contacts refresh echo")
		}
	}
}
