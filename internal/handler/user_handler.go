/*
Package handler provides HTTP handler functions for profile management and
per-user block controls.
*/
package handler

import (
	"bytes"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"talkora/internal/app/presence"
	"talkora/internal/app/storage"
	"talkora/internal/pkg/auth/jwt"
	"talkora/internal/pkg/errs"
	"talkora/internal/pkg/logx"
	"talkora/internal/pkg/req"
	"talkora/internal/pkg/resp"
)

type UpdateProfileInput struct {
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic"`
}

// HandleUpdateProfile updates the display name and/or profile picture. A new
// picture arrives as a base64 data URL and is uploaded to object storage; the
// stored value is the public asset URL. Friends are notified so cached contact
// rows refresh.
func HandleUpdateProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		var input UpdateProfileInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.FullName = strings.TrimSpace(input.FullName)
		if input.FullName != "" && utf8.RuneCountInString(input.FullName) > 50 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		profilePicURL := ""
		if input.ProfilePic != "" {
			mimeType, data, customErr := storage.DecodeImageDataURL(input.ProfilePic)
			if customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}

			key := "profile/" + identity.UserID + storage.ImageExtension(mimeType)
			if _, err := deps.StorageService.Upload(r.Context(), key, mimeType, bytes.NewReader(data)); err != nil {
				logx.Error(err, "update_profile: upload failed", "user_id", identity.UserID)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
				return
			}
			profilePicURL = deps.FullAssetURL(key)
		}

		user, customErr := deps.Users.UpdateProfile(r.Context(), identity.UserID, input.FullName, profilePicURL)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		deps.Delivery.NotifyFriends(r.Context(), user.ID, presence.EventProfileUpdated, map[string]any{"user": user.Public()})
		deps.Delivery.NotifyUser(user.ID, presence.EventProfileUpdated, map[string]any{"user": user.Public()})

		resp.RespondSuccess(w, r, map[string]any{"user": user.Public()})
	}
}

// HandleDeleteAccount removes the account and every row hanging off it, tells
// the user's friends and tears down any live sessions.
func HandleDeleteAccount(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		// Friend edges vanish with the cascade, so collect recipients first.
		friendIDs, customErr := deps.Friends.FriendIDs(r.Context(), identity.UserID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := deps.Users.Delete(r.Context(), identity.UserID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		payload := map[string]any{"userId": identity.UserID}
		for _, friendID := range friendIDs {
			deps.Delivery.NotifyUser(friendID, presence.EventUserAccountDeleted, payload)
		}

		deps.Registry.CloseUser(identity.UserID)
		jwt.ClearSessionCookie(w, deps.SecureCookies())

		logx.Info("account deleted", "user_id", identity.UserID)
		resp.RespondSuccess(w, r, map[string]any{"deleted": true})
	}
}

// HandleGetUserProfile returns another user's public profile.
func HandleGetUserProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		user, customErr := deps.Users.GetByID(r.Context(), chi.URLParam(r, "userId"))
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"user": user.Public()})
	}
}

// HandleLastSeen returns another user's live status and last-seen timestamp.
// Across a block in either direction the user always reads as offline with no
// timestamp.
func HandleLastSeen(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		targetID := chi.URLParam(r, "userId")

		blocked, customErr := deps.Blocks.IsBlockedEitherDirection(r.Context(), identity.UserID, targetID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if blocked {
			resp.RespondSuccess(w, r, map[string]any{"isOnline": false, "lastSeenAt": nil})
			return
		}

		user, customErr := deps.Users.GetByID(r.Context(), targetID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"isOnline":   deps.Registry.IsOnline(targetID),
			"lastSeenAt": user.LastSeenAt,
		})
	}
}

type PushTokenInput struct {
	Token string `json:"token"`
}

// HandleSavePushToken stores the device push token for the notification
// gateway.
func HandleSavePushToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		var input PushTokenInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if input.Token == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if customErr := deps.Users.SavePushToken(r.Context(), identity.UserID, input.Token); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"saved": true})
	}
}

// HandleBlockUser blocks the target user and fans out the presence and
// notification fallout.
func HandleBlockUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		targetID := chi.URLParam(r, "userId")
		if customErr := deps.Blocks.Block(r.Context(), identity.UserID, targetID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		deps.Delivery.RouteBlockEvent(r.Context(), identity.UserID, targetID, true)
		resp.RespondSuccess(w, r, map[string]any{"blocked": true})
	}
}

// HandleUnblockUser lifts a block previously placed by the caller.
func HandleUnblockUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		targetID := chi.URLParam(r, "userId")
		if customErr := deps.Blocks.Unblock(r.Context(), identity.UserID, targetID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		deps.Delivery.RouteBlockEvent(r.Context(), identity.UserID, targetID, false)
		resp.RespondSuccess(w, r, map[string]any{"blocked": false})
	}
}

// HandleBlockedUsers lists the users the caller has blocked.
func HandleBlockedUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		users, customErr := deps.Blocks.BlockedUsers(r.Context(), identity.UserID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"users": users})
	}
}

// HandleBlockStatus reports the block relationship between the caller and the
// target, in both directions.
func HandleBlockStatus(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		targetID := chi.URLParam(r, "userId")

		blockedByMe, customErr := deps.Blocks.IsBlocked(r.Context(), identity.UserID, targetID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		blockedMe, customErr := deps.Blocks.IsBlocked(r.Context(), targetID, identity.UserID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"isBlockedByMe": blockedByMe,
			"hasBlockedMe":  blockedMe,
		})
	}
}
