/*
This file defines the Reconnector: the client-facing contract for resuming
state after a dropped transport session. Presence and typing are ephemeral and
are not replayed; the client re-fetches conversations over REST, which stays
the durable source of truth. The socket is purely a low-latency notification
channel.
*/
package delivery

import (
	"context"

	"talkora/internal/app/presence"
	"talkora/internal/pkg/errs"
)

// Reconnector re-establishes a user's real-time state when a session connects,
// whether for the first time or after a drop.
type Reconnector struct {
	registry    *presence.Registry
	broadcaster *presence.Broadcaster
}

// NewReconnector constructs a Reconnector over the registry and broadcaster.
func NewReconnector(registry *presence.Registry, broadcaster *presence.Broadcaster) *Reconnector {
	return &Reconnector{registry: registry, broadcaster: broadcaster}
}

// OnReconnect registers the session, pushes a fresh presence snapshot to it,
// and signals the client to re-fetch its conversation lists. Registering
// before the debounce fires cancels any pending offline notification, so a
// quick reconnect never flaps the user's online indicator.
func (c *Reconnector) OnReconnect(ctx context.Context, userID string, session presence.Sink) *errs.CustomError {
	if cerr := c.registry.Register(userID, session); cerr != nil {
		return cerr
	}

	c.broadcaster.PushSnapshot(ctx, userID, session)

	// Missed messages are recoverable from the conversation log; the hint
	// tells the client to go fetch rather than replaying a socket event log.
	_ = session.Send(presence.EventRefreshContactsList, nil)

	return nil
}
