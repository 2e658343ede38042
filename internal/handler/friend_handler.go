/*
Package handler provides HTTP handler functions for the friend graph: sending,
answering and withdrawing friend requests, searching users and removing
friends.
*/
package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"talkora/internal/app/presence"
	"talkora/internal/app/store"
	"talkora/internal/pkg/errs"
	"talkora/internal/pkg/logx"
	"talkora/internal/pkg/req"
	"talkora/internal/pkg/resp"
)

// HandleGetFriends lists the caller's friends.
func HandleGetFriends(deps *AppDeps) http.HandlerFunc {
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

		resp.RespondSuccess(w, r, map[string]any{"friends": friends})
	}
}

type SendRequestInput struct {
	ReceiverID string `json:"receiverId"`
}

// HandleSendFriendRequest creates a pending request and pushes it to the
// receiver's live sessions. A block in either direction refuses the request.
func HandleSendFriendRequest(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		var input SendRequestInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if input.ReceiverID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		blocked, customErr := deps.Blocks.IsBlockedEitherDirection(r.Context(), identity.UserID, input.ReceiverID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if blocked {
			resp.RespondError(w, r, errs.NewError(errs.ErrBlocked))
			return
		}

		request, customErr := deps.Friends.SendRequest(r.Context(), identity.UserID, input.ReceiverID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		sender, customErr := deps.Users.GetByID(r.Context(), identity.UserID)
		if customErr == nil {
			deps.Delivery.NotifyUser(input.ReceiverID, presence.EventFriendRequestReceived, store.RequestWithProfile{
				Request: *request,
				User:    sender.Public(),
			})
		}

		resp.RespondSuccess(w, r, map[string]any{"request": request})
	}
}

// HandleAcceptFriendRequest accepts a pending request addressed to the caller
// and tells both sides to refresh their friend lists.
func HandleAcceptFriendRequest(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		request, customErr := deps.Friends.Accept(r.Context(), chi.URLParam(r, "id"), identity.UserID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		accepter, customErr := deps.Users.GetByID(r.Context(), identity.UserID)
		if customErr == nil {
			deps.Delivery.NotifyUser(request.SenderID, presence.EventFriendRequestAccepted, store.RequestWithProfile{
				Request: *request,
				User:    accepter.Public(),
			})
		}
		deps.Delivery.NotifyUser(request.SenderID, presence.EventFriendListUpdated, nil)
		deps.Delivery.NotifyUser(request.ReceiverID, presence.EventFriendListUpdated, nil)

		resp.RespondSuccess(w, r, map[string]any{"request": request})
	}
}

// HandleRejectFriendRequest rejects a pending request addressed to the caller.
func HandleRejectFriendRequest(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		request, customErr := deps.Friends.Reject(r.Context(), chi.URLParam(r, "id"), identity.UserID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		deps.Delivery.NotifyUser(request.SenderID, presence.EventFriendRequestRejected, map[string]any{"requestId": request.ID})
		resp.RespondSuccess(w, r, map[string]any{"request": request})
	}
}

// HandleCancelFriendRequest withdraws the caller's own pending request.
func HandleCancelFriendRequest(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		request, customErr := deps.Friends.Cancel(r.Context(), chi.URLParam(r, "id"), identity.UserID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		deps.Delivery.NotifyUser(request.ReceiverID, presence.EventFriendRequestCancelled, map[string]any{"requestId": request.ID})
		resp.RespondSuccess(w, r, map[string]any{"request": request})
	}
}

// HandleIncomingRequests lists pending requests addressed to the caller.
func HandleIncomingRequests(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		requests, customErr := deps.Friends.IncomingRequests(r.Context(), identity.UserID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"requests": requests})
	}
}

// HandleOutgoingRequests lists the caller's own pending requests.
func HandleOutgoingRequests(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		requests, customErr := deps.Friends.OutgoingRequests(r.Context(), identity.UserID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"requests": requests})
	}
}

// HandleSearchUsers searches accounts by name or email fragment, annotating
// each hit with the caller's relationship to it.
func HandleSearchUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		query := strings.TrimSpace(r.URL.Query().Get("query"))
		if query == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		results, customErr := deps.Friends.Search(r.Context(), identity.UserID, query)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"users": results})
	}
}

// HandleRemoveFriend deletes the friendship edge and purges the shared
// conversation, then tells both sides to refresh.
func HandleRemoveFriend(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		otherID := chi.URLParam(r, "userId")
		if customErr := deps.Friends.RemoveFriend(r.Context(), identity.UserID, otherID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := deps.Delivery.PurgeConversation(r.Context(), identity.UserID, otherID); customErr != nil {
			logx.Error(customErr, "remove_friend: conversation purge failed", "user_id", identity.UserID, "other_id", otherID)
		}

		deps.Delivery.NotifyUser(identity.UserID, presence.EventFriendListUpdated, nil)
		deps.Delivery.NotifyUser(otherID, presence.EventFriendListUpdated, nil)

		resp.RespondSuccess(w, r, map[string]any{"removed": true})
	}
}
