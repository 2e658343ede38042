/*
Package handler provides the HTTP handlers and routing setup for the Talkora server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"talkora/internal/pkg/auth/jwt"
	"talkora/internal/pkg/limiter"
	"talkora/internal/pkg/logx"
	"talkora/internal/pkg/resp"
)

const (
	// Signup and login are the abuse-prone endpoints; everything else rides
	// on the authenticated session.
	AuthRate  = 0.2
	AuthBurst = 5

	SocketRate  = 0.5
	SocketBurst = 10
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global and
// per-route middleware before mounting the REST and WebSocket surfaces.
func Router(deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(rate.Limit(AuthRate), AuthBurst)
	socketLimiter := limiter.NewIPRateLimiter(rate.Limit(SocketRate), SocketBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				// Native clients send no Origin header.
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "Talkora Server",
		})
	})

	r.Group(func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/auth", func(auth chi.Router) {
			auth.With(authLimiter.Middleware).Post("/signup", HandleSignup(deps))
			auth.With(authLimiter.Middleware).Post("/login", HandleLogin(deps))
			auth.Post("/logout", HandleLogout(deps))
			auth.Get("/check", HandleCheckAuth(deps))
			auth.Get("/verify/{token}", HandleVerifyEmail(deps))
			auth.Post("/resend-verification", HandleResendVerification(deps))

			auth.Put("/update-profile", HandleUpdateProfile(deps))
			auth.Delete("/delete-account", HandleDeleteAccount(deps))
			auth.Get("/user-profile/{userId}", HandleGetUserProfile(deps))
			auth.Get("/last-seen/{userId}", HandleLastSeen(deps))
			auth.Post("/push-token", HandleSavePushToken(deps))

			auth.Post("/block/{userId}", HandleBlockUser(deps))
			auth.Post("/unblock/{userId}", HandleUnblockUser(deps))
			auth.Get("/blocked-users", HandleBlockedUsers(deps))
			auth.Get("/block-status/{userId}", HandleBlockStatus(deps))
		})

		api.Route("/friends", func(friends chi.Router) {
			friends.Get("/", HandleGetFriends(deps))
			friends.Post("/send-request", HandleSendFriendRequest(deps))
			friends.Post("/accept/{id}", HandleAcceptFriendRequest(deps))
			friends.Post("/reject/{id}", HandleRejectFriendRequest(deps))
			friends.Delete("/cancel/{id}", HandleCancelFriendRequest(deps))
			friends.Get("/requests/incoming", HandleIncomingRequests(deps))
			friends.Get("/requests/outgoing", HandleOutgoingRequests(deps))
			friends.Get("/search", HandleSearchUsers(deps))
			friends.Delete("/remove/{userId}", HandleRemoveFriend(deps))
		})

		api.Route("/messages", func(messages chi.Router) {
			messages.Get("/users", HandleGetContacts(deps))
			messages.Get("/unread/{userId}", HandleUnreadCount(deps))
			messages.Get("/{userId}", HandleGetMessages(deps))
			messages.Post("/send/{userId}", HandleSendMessage(deps))
			messages.Put("/read/{userId}", HandleMarkRead(deps))
			messages.Delete("/privacy/{userId}", HandleDeleteChat(deps))
		})

		api.Get("/ws", HandleWebSocket(wsUpgrader, socketLimiter, deps))
	})

	return r
}
