/*
This file defines the Broadcaster, which computes per-viewer online snapshots
and pushes presence and typing events to the sessions allowed to see them.

Visibility rules: a block in either direction hides the two users from each
other's online set and suppresses typing signals between them. Presence
changes fan out to the changed user's friends only, never globally.
*/
package presence

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"talkora/internal/pkg/errs"
	"talkora/internal/pkg/logx"
)

// FriendSource exposes the friend edges the broadcaster fans out along.
type FriendSource interface {
	FriendIDs(ctx context.Context, userID string) ([]string, *errs.CustomError)
}

// BlockSource exposes the block relations that gate visibility.
type BlockSource interface {
	IsBlockedEitherDirection(ctx context.Context, userA, userB string) (bool, *errs.CustomError)
	BlockedEitherIDs(ctx context.Context, userID string) (map[string]struct{}, *errs.CustomError)
}

// Broadcaster pushes presence and typing events. All pushes are best-effort:
// a full session queue drops the frame and never blocks other sessions.
type Broadcaster struct {
	registry *Registry
	friends  FriendSource
	blocks   BlockSource
	typing   *typingTracker
	logger   zerolog.Logger
}

// NewBroadcaster constructs a Broadcaster over the given registry and graph
// sources. typingExpiry is the server-side stuck-indicator safety net.
func NewBroadcaster(registry *Registry, friends FriendSource, blocks BlockSource, typingExpiry time.Duration) *Broadcaster {
	b := &Broadcaster{
		registry: registry,
		friends:  friends,
		blocks:   blocks,
		logger:   logx.Logger().With().Str("component", "Broadcaster").Logger(),
	}

	b.typing = newTypingTracker(typingExpiry, b.expireTyping)

	return b
}

// Snapshot returns the online user ids visible to the viewer: everyone online
// minus users in a block relation with the viewer in either direction.
func (b *Broadcaster) Snapshot(ctx context.Context, viewerID string) ([]string, *errs.CustomError) {
	hidden, cerr := b.blocks.BlockedEitherIDs(ctx, viewerID)
	if cerr != nil {
		return nil, cerr
	}

	online := b.registry.OnlineIDs()
	visible := make([]string, 0, len(online))
	for _, id := range online {
		if _, blocked := hidden[id]; blocked {
			continue
		}
		visible = append(visible, id)
	}

	return visible, nil
}

// PushSnapshot sends a fresh filtered online set to one session.
func (b *Broadcaster) PushSnapshot(ctx context.Context, viewerID string, sink Sink) {
	snapshot, cerr := b.Snapshot(ctx, viewerID)
	if cerr != nil {
		b.logger.Error().Err(cerr).Str("viewer_id", viewerID).Msg("Failed to compute presence snapshot")
		return
	}

	if err := sink.Send(EventOnlineUsers, snapshot); err != nil {
		b.logger.Debug().Err(err).Str("viewer_id", viewerID).Msg("Dropped presence snapshot")
	}
}

// OnlineSetChanged recomputes and pushes the filtered online set to every
// session of the changed user's friends, and to the changed user's own
// sessions. Strangers are never notified.
func (b *Broadcaster) OnlineSetChanged(ctx context.Context, changedUserID string) {
	friendIDs, cerr := b.friends.FriendIDs(ctx, changedUserID)
	if cerr != nil {
		b.logger.Error().Err(cerr).Str("user_id", changedUserID).Msg("Failed to load friends for presence fan-out")
		return
	}

	viewers := append(friendIDs, changedUserID)
	for _, viewerID := range viewers {
		sinks := b.registry.SessionsFor(viewerID)
		if len(sinks) == 0 {
			continue
		}

		snapshot, cerr := b.Snapshot(ctx, viewerID)
		if cerr != nil {
			b.logger.Error().Err(cerr).Str("viewer_id", viewerID).Msg("Failed to compute presence snapshot")
			continue
		}

		for _, sink := range sinks {
			if err := sink.Send(EventOnlineUsers, snapshot); err != nil {
				b.logger.Debug().Err(err).Str("viewer_id", viewerID).Msg("Dropped presence update")
			}
		}
	}
}

// EmitTyping delivers a typing start/stop signal to the receiver's sessions,
// suppressed entirely when a block relation exists. Delivery is at-most-once;
// a lost typing frame is tolerable transient UI state.
func (b *Broadcaster) EmitTyping(ctx context.Context, senderID, receiverID string, isTyping bool) {
	blocked, cerr := b.blocks.IsBlockedEitherDirection(ctx, senderID, receiverID)
	if cerr != nil {
		b.logger.Error().Err(cerr).Msg("Failed to check block relation for typing signal")
		return
	}
	if blocked {
		return
	}

	if isTyping {
		b.typing.Touch(senderID, receiverID)
		b.pushTyping(senderID, receiverID, EventUserTyping)
		return
	}

	// Only broadcast a stop for an edge that was actually active; the safety
	// net may have synthesized it already.
	if b.typing.Stop(senderID, receiverID) {
		b.pushTyping(senderID, receiverID, EventUserStoppedTyping)
	}
}

// expireTyping is the safety-net callback: the client never sent a stop, so
// the server synthesizes one to unstick the receiver's indicator.
func (b *Broadcaster) expireTyping(senderID, receiverID string) {
	b.pushTyping(senderID, receiverID, EventUserStoppedTyping)
}

func (b *Broadcaster) pushTyping(senderID, receiverID, event string) {
	payload := TypingPayload{SenderID: senderID}

	for _, sink := range b.registry.SessionsFor(receiverID) {
		if err := sink.Send(event, payload); err != nil {
			b.logger.Debug().Err(err).Str("receiver_id", receiverID).Msg("Dropped typing signal")
		}
	}
}

// Shutdown cancels all pending typing timers.
func (b *Broadcaster) Shutdown() {
	b.typing.StopAll()
}
