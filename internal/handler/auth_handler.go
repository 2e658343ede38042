/*
Package handler provides HTTP handler functions for account signup, login and
session management.
*/
package handler

import (
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"talkora/internal/pkg/auth/jwt"
	"talkora/internal/pkg/errs"
	"talkora/internal/pkg/logx"
	"talkora/internal/pkg/req"
	"talkora/internal/pkg/resp"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type SignupInput struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignup creates a new unverified account, logs the verification token
// for the mail gateway and issues a session immediately.
func HandleSignup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input SignupInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.FullName = strings.TrimSpace(input.FullName)
		input.Email = strings.ToLower(strings.TrimSpace(input.Email))

		if input.FullName == "" || utf8.RuneCountInString(input.FullName) > 50 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if !emailRegex.MatchString(input.Email) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidEmail))
			return
		}

		passwordLen := utf8.RuneCountInString(input.Password)
		if passwordLen < 6 || passwordLen > 50 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		user, customErr := deps.Users.Create(r.Context(), input.FullName, input.Email, string(hashedPassword))
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		// The mail gateway tails these entries in development. Production
		// wires a real sender onto the same log stream.
		logx.Info("verification email queued", "user_id", user.ID, "email", user.Email, "token", user.VerificationToken)

		token, err := jwt.GenerateToken(&jwt.Payload{
			UserID:   user.ID,
			Email:    user.Email,
			Verified: user.Verified,
		}, deps.Config.JWTSecret, jwt.SessionExpiration)
		if err != nil {
			logx.Error(err, "signup: jwt generation failed", "user_id", user.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		jwt.SetSessionCookie(w, token, deps.SecureCookies())

		resp.RespondSuccess(w, r, map[string]any{
			"token": token,
			"user":  user.Public(),
		})
	}
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin verifies credentials and issues a session token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.Email = strings.ToLower(strings.TrimSpace(input.Email))

		user, customErr := deps.Users.GetByEmail(r.Context(), input.Email)
		if customErr != nil {
			logx.Warn("login: user fetch failed", "email", input.Email)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
			logx.Warn("login: password mismatch", "email", input.Email)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if customErr := deps.Users.TouchLastSeen(r.Context(), user.ID); customErr != nil {
			logx.Error(customErr, "login: failed to update last_seen_at", "user_id", user.ID)
		}

		token, err := jwt.GenerateToken(&jwt.Payload{
			UserID:   user.ID,
			Email:    user.Email,
			Verified: user.Verified,
		}, deps.Config.JWTSecret, jwt.SessionExpiration)
		if err != nil {
			logx.Error(err, "login: jwt generation failed", "user_id", user.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		jwt.SetSessionCookie(w, token, deps.SecureCookies())

		resp.RespondSuccess(w, r, map[string]any{
			"token": token,
			"user":  user.Public(),
		})
	}
}

// HandleLogout clears the session cookie. Token-holding clients simply drop
// their stored token.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwt.ClearSessionCookie(w, deps.SecureCookies())
		resp.RespondSuccess(w, r, map[string]any{"loggedOut": true})
	}
}

// HandleCheckAuth returns the current account for a valid session, letting the
// client restore state after a cold start.
func HandleCheckAuth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		user, customErr := deps.Users.GetByID(r.Context(), identity.UserID)
		if customErr != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthenticated))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"user": user.Public()})
	}
}

// HandleVerifyEmail flips the account to verified when the token matches.
func HandleVerifyEmail(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		if token == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		user, customErr := deps.Users.Verify(r.Context(), token)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		logx.Info("account verified", "user_id", user.ID)
		resp.RespondSuccess(w, r, map[string]any{"user": user.Public()})
	}
}

// HandleResendVerification rotates the verification token and queues a new
// verification email.
func HandleResendVerification(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := authedUser(w, r)
		if identity == nil {
			return
		}

		token, customErr := deps.Users.RotateVerificationToken(r.Context(), identity.UserID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		logx.Info("verification email queued", "user_id", identity.UserID, "token", token)
		resp.RespondSuccess(w, r, map[string]any{"sent": true})
	}
}
