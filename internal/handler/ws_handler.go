/*
Package handler provides the HTTP handler function for WebSocket connection
upgrading and session initialization.

HandleWebSocket authenticates the upgrade request, checks the advisory userId
query parameter against the token subject, rate limits by IP and registers the
new session with the presence registry.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"talkora/internal/app/presence"
	"talkora/internal/pkg/errs"
	"talkora/internal/pkg/limiter"
	"talkora/internal/pkg/logx"
	"talkora/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		// The client passes its own id on the handshake for debugging. It is
		// advisory only and must agree with the token subject.
		if advisoryID := r.URL.Query().Get("userId"); advisoryID != "" && advisoryID != identity.UserID {
			logx.Warn("WebSocket request rejected: userId does not match token subject", "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthenticated))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		session := presence.NewSession(deps.Registry, conn, identity.UserID, deps.Delivery)

		go session.WritePump()

		if customErr := deps.Reconnector.OnReconnect(r.Context(), identity.UserID, session); customErr != nil {
			logx.Warn("WebSocket session registration failed", "user_id", identity.UserID, "code", customErr.Code)
			session.Close()
			return
		}

		logx.Info("WebSocket connection established", "user_id", identity.UserID)

		session.ReadPump()
	}
}
