package handler

import (
	"net/http"
	"strings"

	"talkora/internal/app/delivery"
	"talkora/internal/app/presence"
	"talkora/internal/app/store"
	"talkora/internal/app/storage"
	"talkora/internal/configs"
	"talkora/internal/pkg/auth/jwt"
	"talkora/internal/pkg/errs"
	"talkora/internal/pkg/resp"
)

// AppDeps bundles the wired application components handed to every handler.
type AppDeps struct {
	Config         *configs.AppConfig
	Users          *store.Users
	Conversations  *store.ConversationStore
	Friends        *store.FriendGraph
	Blocks         *store.BlockList
	Registry       *presence.Registry
	Broadcaster    *presence.Broadcaster
	Delivery       *delivery.Router
	Reconnector    *delivery.Reconnector
	StorageService storage.StorageService
}

// SecureCookies reports whether session cookies should carry the Secure flag.
func (d *AppDeps) SecureCookies() bool {
	return d.Config.Environment != "development"
}

// FullAssetURL turns a stored profile picture key into a fetchable URL.
// Values that are already absolute URLs pass through unchanged.
func (d *AppDeps) FullAssetURL(key string) string {
	if key == "" {
		return ""
	}
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key
	}
	return strings.TrimRight(d.Config.S3Endpoint, "/") + "/" + d.Config.S3BucketName + "/" + key
}

// authedUser extracts the authenticated identity from the request context.
// When the request carries no valid token it writes the error response and
// returns nil; callers must return immediately in that case.
func authedUser(w http.ResponseWriter, r *http.Request) *jwt.Payload {
	payload := jwt.GetPayloadFromContext(r)
	if payload == nil {
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthenticated))
		return nil
	}
	return payload
}
