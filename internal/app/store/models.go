package store

import "time"

// User is the account row as persisted. PasswordHash and VerificationToken
// never leave the server; Public() strips them for API responses.
type User struct {
	ID                string     `json:"id"`
	FullName          string     `json:"fullName"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	ProfilePic        string     `json:"profilePic"`
	Verified          bool       `json:"verified"`
	VerificationToken string     `json:"-"`
	LastSeenAt        *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// PublicUser is the client-facing projection of a user account.
type PublicUser struct {
	ID         string     `json:"id"`
	FullName   string     `json:"fullName"`
	Email      string     `json:"email"`
	ProfilePic string     `json:"profilePic"`
	Verified   bool       `json:"verified"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// Public returns the projection of the user safe to send to clients.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		Verified:   u.Verified,
		LastSeenAt: u.LastSeenAt,
	}
}

// Message is one entry of a conversation log. Immutable once created except
// for the one-way ReadAt transition. Exactly one of Text/ImageKey is set.
type Message struct {
	ID         string     `json:"id"`
	Seq        int64      `json:"-"`
	SenderID   string     `json:"senderId"`
	ReceiverID string     `json:"receiverId"`
	Text       string     `json:"text,omitempty"`
	ImageKey   string     `json:"-"`
	ImageURL   string     `json:"image,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
}

// HasImage reports whether the message carries image content.
func (m *Message) HasImage() bool {
	return m.ImageKey != ""
}

// Cursor returns the pagination cursor pointing just past this message.
func (m *Message) Cursor() Cursor {
	return Cursor{CreatedAt: m.CreatedAt, Seq: m.Seq}
}

// Friend request lifecycle states. pending is the only non-terminal state.
const (
	RequestPending   = "pending"
	RequestAccepted  = "accepted"
	RequestRejected  = "rejected"
	RequestCancelled = "cancelled"
)

// FriendRequest is a directed request row. At most one pending request exists
// per ordered (sender, receiver) pair, enforced by a partial unique index.
type FriendRequest struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"senderId"`
	ReceiverID string     `json:"receiverId"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	HandledAt  *time.Time `json:"handledAt,omitempty"`
}

// Relationship statuses returned by user search, relative to the requester.
const (
	RelationNone            = "none"
	RelationPendingSent     = "pending_sent"
	RelationPendingReceived = "pending_received"
	RelationFriends         = "friends"
)

// SearchResult is one user search candidate together with the requester's
// relationship to them, which drives the client's button state.
type SearchResult struct {
	User               PublicUser `json:"user"`
	RelationshipStatus string     `json:"relationshipStatus"`
}

// ContactSummary backs the chat list: a friend plus the latest message in the
// conversation and the requester's unread count for it.
type ContactSummary struct {
	User        PublicUser `json:"user"`
	LastMessage *Message   `json:"lastMessage,omitempty"`
	UnreadCount int64      `json:"unreadCount"`
}
