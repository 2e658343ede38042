/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Messaging and Conversation Errors
	ErrInvalidContent: {Code: ErrInvalidContent, Message: "Message must contain text or an image.", Status: http.StatusBadRequest},
	ErrMessageTooLong: {Code: ErrMessageTooLong, Message: "Message is too long.", Status: http.StatusBadRequest},
	ErrImageInvalid:   {Code: ErrImageInvalid, Message: "Image could not be processed.", Status: http.StatusBadRequest},
	ErrImageTooLarge:  {Code: ErrImageTooLarge, Message: "Image is too large.", Status: http.StatusBadRequest},
	ErrBlocked:        {Code: ErrBlocked, Message: "Message could not be delivered.", Status: http.StatusForbidden},

	// 3xxx: User, Session, and Security Errors
	ErrUnauthenticated:    {Code: ErrUnauthenticated, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "You are not allowed to perform this action.", Status: http.StatusForbidden},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect email or password.", Status: http.StatusBadRequest},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "Email is already registered.", Status: http.StatusConflict},
	ErrInvalidEmail:       {Code: ErrInvalidEmail, Message: "Invalid email address.", Status: http.StatusBadRequest},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Password must be between 6 and 50 characters.", Status: http.StatusBadRequest},
	ErrAccountNotVerified: {Code: ErrAccountNotVerified, Message: "Please verify your email before signing in.", Status: http.StatusForbidden},
	ErrAlreadyVerified:    {Code: ErrAlreadyVerified, Message: "Your account is already verified.", Status: http.StatusBadRequest},

	// 4xxx: Friend Graph Errors
	ErrSelfRequest:           {Code: ErrSelfRequest, Message: "You cannot send a friend request to yourself.", Status: http.StatusBadRequest},
	ErrAlreadyFriends:        {Code: ErrAlreadyFriends, Message: "You are already friends with this user.", Status: http.StatusConflict},
	ErrRequestAlreadyPending: {Code: ErrRequestAlreadyPending, Message: "A friend request is already pending.", Status: http.StatusConflict},
	ErrNotPending:            {Code: ErrNotPending, Message: "This friend request has already been handled.", Status: http.StatusConflict},
	ErrNotFriends:            {Code: ErrNotFriends, Message: "You are not friends with this user.", Status: http.StatusBadRequest},

	ErrNotFound: {Code: ErrNotFound, Message: "Not found.", Status: http.StatusNotFound},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
