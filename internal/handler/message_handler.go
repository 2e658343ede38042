/*
Package handler provides HTTP handler functions for conversations: the chat
contact list, history pages, sending, read receipts and privacy deletion.
*/
package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"talkora/internal/app/storage"
	"talkora/internal/app/store"
	"talkora/internal/pkg/errs"
	"talkora/internal/pkg/logx"
	"talkora/internal/pkg/randx"
	"talkora/internal/pkg/req"
	"talkora/internal/pkg/resp"
)

// HandleGetContacts backs the chat list screen: every friend together with
// the latest message in the shared conversation and the caller's unread count.
func HandleGetContacts(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		friends, customErr := deps.Friends.Friends(r.Context(), identity.UserID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		unread, customErr := deps.Conversations.UnreadCounts(r.Context(), identity.UserID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		contacts := make([]store.ContactSummary, 0, len(friends))
		for _, friend := range friends {
			last, customErr := deps.Conversations.LastMessage(r.Context(), identity.UserID, friend.ID)
			if customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}

			if last != nil && last.HasImage() {
				page := []store.Message{*last}
				deps.Delivery.ResolveImageURLs(r.Context(), page)
				last = &page[0]
			}

			contacts = append(contacts, store.ContactSummary{
				User:        friend,
				LastMessage: last,
				UnreadCount: unread[friend.ID],
			})
		}

		resp.RespondSuccess(w, r, map[string]any{"users": contacts})
	}
}

// HandleGetMessages returns one history page of the conversation with the
// given user, oldest first, resuming from the opaque cursor when provided.
func HandleGetMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		otherID := chi.URLParam(r, "userId")

		cursor, err := store.DecodeCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		limit := 0
		if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
			limit, err = strconv.Atoi(rawLimit)
			if err != nil || limit < 0 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
		}

		messages, nextCursor, customErr := deps.Conversations.History(r.Context(), identity.UserID, otherID, cursor, limit)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		deps.Delivery.ResolveImageURLs(r.Context(), messages)

		resp.RespondSuccess(w, r, map[string]any{
			"messages":   messages,
			"nextCursor": nextCursor,
		})
	}
}

type SendMessageInput struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// HandleSendMessage persists and delivers one message to the given user. The
// body carries either text or an inline base64 image; images are uploaded to
// object storage and travel onward as presigned URLs.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		receiverID := chi.URLParam(r, "userId")

		var input SendMessageInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		imageKey := ""
		if input.Image != "" {
			mimeType, data, customErr := storage.DecodeImageDataURL(input.Image)
			if customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}

			imageKey = "chat/" + store.PairKey(identity.UserID, receiverID) + "/" + randx.ID() + storage.ImageExtension(mimeType)
			if _, err := deps.StorageService.Upload(r.Context(), imageKey, mimeType, bytes.NewReader(data)); err != nil {
				logx.Error(err, "send_message: image upload failed", "sender_id", identity.UserID)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
				return
			}
		}

		message, customErr := deps.Delivery.RouteMessage(r.Context(), identity.UserID, receiverID, input.Text, imageKey, nil)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"message": message})
	}
}

// HandleMarkRead marks every unread message from the given user as read and
// fans out the read receipt.
func HandleMarkRead(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		count, customErr := deps.Delivery.RouteRead(r.Context(), identity.UserID, chi.URLParam(r, "userId"), nil)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"updated": count})
	}
}

// HandleDeleteChat removes the entire conversation with the given user for
// both participants, including stored images.
func HandleDeleteChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		if customErr := deps.Delivery.PurgeConversation(r.Context(), identity.UserID, chi.URLParam(r, "userId")); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"deleted": true})
	}
}

// HandleUnreadCount returns the caller's unread count for one conversation.
func HandleUnreadCount(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		count, customErr := deps.Conversations.UnreadCount(r.Context(), identity.UserID, chi.URLParam(r, "userId"))
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"count": count})
	}
}
