/*
Package presence contains the real-time side of the messaging engine: live
WebSocket sessions, the per-user connection registry that is the source of
truth for online state, and the broadcaster that fans presence and typing
events out to the sessions allowed to see them.

This file defines the socket event envelope and the event name constants of
the client protocol.
*/
package presence

import "encoding/json"

// Server to client event names.
const (
	EventNewMessage             = "newMessage"
	EventOnlineUsers            = "getOnlineUsers"
	EventMessagesRead           = "messagesRead"
	EventUserTyping             = "userTyping"
	EventUserStoppedTyping      = "userStoppedTyping"
	EventFriendRequestReceived  = "friendRequestReceived"
	EventFriendRequestAccepted  = "friendRequestAccepted"
	EventFriendRequestRejected  = "friendRequestRejected"
	EventFriendRequestCancelled = "friendRequestCancelled"
	EventFriendListUpdated      = "friendListUpdated"
	EventProfileUpdated         = "profileUpdated"
	EventYouWereBlocked         = "youWereBlocked"
	EventYouWereUnblocked       = "youWereUnblocked"
	EventBlockActionConfirmed   = "blockActionConfirmed"
	EventRefreshContactsList    = "refreshContactsList"
	EventChatDeleted            = "chatDeleted"
	EventUserAccountDeleted     = "userAccountDeleted"
	EventPong                   = "pong"
)

// Client to server event names.
const (
	ClientEventTyping             = "typing"
	ClientEventStopTyping         = "stopTyping"
	ClientEventRequestOnlineUsers = "requestOnlineUsers"
	ClientEventJoinRoom           = "joinRoom"
	ClientEventLeaveRoom          = "leaveRoom"
	ClientEventBlockUser          = "blockUser"
	ClientEventUnblockUser        = "unblockUser"
	ClientEventContactsRefresh    = "requestContactsRefresh"
	ClientEventPing               = "ping"
)

// Envelope is the wire format of every socket frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TypingPayload carries the counterpart id of a typing signal.
type TypingPayload struct {
	SenderID   string `json:"senderId,omitempty"`
	ReceiverID string `json:"receiverId,omitempty"`
}

// TargetPayload carries a single target user id (blockUser, unblockUser).
type TargetPayload struct {
	UserID string `json:"userId"`
}
