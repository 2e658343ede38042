/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1005

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1006
)

// 2xxx: Messaging and Conversation Errors
const (
	// ErrInvalidContent indicates a message without exactly one of text or image content.
	ErrInvalidContent = 2101

	// ErrMessageTooLong indicates that the message text exceeded the maximum length limit.
	ErrMessageTooLong = 2102

	// ErrImageInvalid indicates that the image payload could not be decoded or has an unsupported type.
	ErrImageInvalid = 2103

	// ErrImageTooLarge indicates that the decoded image exceeded the maximum allowed size.
	ErrImageTooLarge = 2104

	// ErrBlocked indicates that delivery was suppressed because a block relation exists between the two users.
	ErrBlocked = 2201
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthenticated indicates that no valid session or token accompanied the request.
	ErrUnauthenticated = 3001

	// ErrUnauthorized indicates a valid session acting on a resource it does not own
	// (e.g., accepting someone else's friend request).
	ErrUnauthorized = 3002

	// ErrInvalidCredentials indicates an incorrect email or password at login.
	ErrInvalidCredentials = 3003

	// ErrUserAlreadyExists indicates that the signup email is already registered.
	ErrUserAlreadyExists = 3004

	// ErrInvalidEmail indicates a malformed signup email address.
	ErrInvalidEmail = 3005

	// ErrInvalidPassword indicates a password outside the accepted length bounds.
	ErrInvalidPassword = 3006

	// ErrAccountNotVerified indicates the account exists but has not confirmed its email yet.
	ErrAccountNotVerified = 3007

	// ErrAlreadyVerified indicates a verification resend for an account that is already verified.
	ErrAlreadyVerified = 3008
)

// 4xxx: Friend Graph Errors
const (
	// ErrSelfRequest indicates a friend request where sender and receiver are the same user.
	ErrSelfRequest = 4001

	// ErrAlreadyFriends indicates a friend request between users who already share a friendship edge.
	ErrAlreadyFriends = 4002

	// ErrRequestAlreadyPending indicates a second request for an ordered pair that already has one pending.
	ErrRequestAlreadyPending = 4003

	// ErrNotPending indicates a transition attempt on a request that already reached a terminal state.
	ErrNotPending = 4004

	// ErrNotFriends indicates an operation that requires an existing friendship edge.
	ErrNotFriends = 4005
)

// Shared lookup and internal errors
const (
	// ErrNotFound indicates that the referenced user, request, or message does not exist.
	ErrNotFound = 4041

	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
