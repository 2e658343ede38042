/*
This file implements user account persistence: signup, credential lookup,
email verification, profile updates, last-seen tracking, push tokens, and
account deletion.
*/
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"talkora/internal/app/db"
	"talkora/internal/pkg/errs"
	"talkora/internal/pkg/logx"
	"talkora/internal/pkg/randx"
)

// Users owns the accounts table.
type Users struct {
	pool *pgxpool.Pool
}

// NewUsers constructs a Users store backed by the shared pool.
func NewUsers(pool *pgxpool.Pool) *Users {
	return &Users{pool: pool}
}

const userColumns = `id, full_name, email, password_hash, profile_pic, verified, verification_token, last_seen_at, created_at`

// Create inserts a new unverified account with a fresh verification token.
// It fails with UserAlreadyExists when the email is taken.
func (s *Users) Create(ctx context.Context, fullName, email, passwordHash string) (*User, *errs.CustomError) {
	token, err := randx.VerificationToken()
	if err != nil {
		logx.Error(err, "failed to generate verification token")
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	user := &User{
		ID:                randx.ID(),
		FullName:          fullName,
		Email:             email,
		PasswordHash:      passwordHash,
		VerificationToken: token,
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO users (id, full_name, email, password_hash, verification_token)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		user.ID, fullName, email, passwordHash, token,
	).Scan(&user.CreatedAt)

	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, errs.NewError(errs.ErrUserAlreadyExists)
		}
		logx.Error(err, "failed to create user", "email", email)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return user, nil
}

// GetByID loads a user by id, failing with NotFound for unknown ids.
func (s *Users) GetByID(ctx context.Context, id string) (*User, *errs.CustomError) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail loads a user by login email.
func (s *Users) GetByEmail(ctx context.Context, email string) (*User, *errs.CustomError) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *Users) getOne(ctx context.Context, query string, arg any) (*User, *errs.CustomError) {
	var u User
	var lastSeen *time.Time

	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.ProfilePic,
		&u.Verified, &u.VerificationToken, &lastSeen, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NewError(errs.ErrNotFound)
		}
		logx.Error(err, "failed to load user")
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	u.LastSeenAt = lastSeen
	return &u, nil
}

// Verify flips the verified flag for the account matching the token. The flag
// only ever transitions false -> true; the token is cleared on success.
func (s *Users) Verify(ctx context.Context, token string) (*User, *errs.CustomError) {
	if token == "" {
		return nil, errs.NewError(errs.ErrNotFound)
	}

	var id string
	err := s.pool.QueryRow(ctx,
		`UPDATE users SET verified = TRUE, verification_token = ''
		 WHERE verification_token = $1 AND verified = FALSE
		 RETURNING id`,
		token,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NewError(errs.ErrNotFound)
		}
		logx.Error(err, "failed to verify user")
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return s.GetByID(ctx, id)
}

// RotateVerificationToken issues a fresh verification token for an unverified
// account, failing with AlreadyVerified otherwise.
func (s *Users) RotateVerificationToken(ctx context.Context, userID string) (string, *errs.CustomError) {
	user, cerr := s.GetByID(ctx, userID)
	if cerr != nil {
		return "", cerr
	}
	if user.Verified {
		return "", errs.NewError(errs.ErrAlreadyVerified)
	}

	token, err := randx.VerificationToken()
	if err != nil {
		logx.Error(err, "failed to generate verification token", "user_id", userID)
		return "", errs.NewError(errs.ErrUnknown, err)
	}

	if _, err := s.pool.Exec(ctx,
		`UPDATE users SET verification_token = $2 WHERE id = $1`, userID, token,
	); err != nil {
		logx.Error(err, "failed to rotate verification token", "user_id", userID)
		return "", errs.NewError(errs.ErrUnknown, err)
	}

	return token, nil
}

// UpdateProfile overwrites the mutable profile fields. Empty arguments leave
// the current value in place.
func (s *Users) UpdateProfile(ctx context.Context, userID, fullName, profilePicKey string) (*User, *errs.CustomError) {
	if _, err := s.pool.Exec(ctx,
		`UPDATE users SET
		     full_name = CASE WHEN $2 <> '' THEN $2 ELSE full_name END,
		     profile_pic = CASE WHEN $3 <> '' THEN $3 ELSE profile_pic END
		 WHERE id = $1`,
		userID, fullName, profilePicKey,
	); err != nil {
		logx.Error(err, "failed to update profile", "user_id", userID)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return s.GetByID(ctx, userID)
}

// TouchLastSeen records the moment the user's last session went offline.
func (s *Users) TouchLastSeen(ctx context.Context, userID string) *errs.CustomError {
	if _, err := s.pool.Exec(ctx,
		`UPDATE users SET last_seen_at = now() WHERE id = $1`, userID,
	); err != nil {
		logx.Error(err, "failed to update last_seen_at", "user_id", userID)
		return errs.NewError(errs.ErrUnknown, err)
	}
	return nil
}

// Delete removes the account. Messages, requests, friendships, blocks, and
// push tokens cascade at the schema level.
func (s *Users) Delete(ctx context.Context, userID string) *errs.CustomError {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		logx.Error(err, "failed to delete user", "user_id", userID)
		return errs.NewError(errs.ErrUnknown, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NewError(errs.ErrNotFound)
	}
	return nil
}

// SavePushToken stores a device push token for the user. Duplicate
// registrations of the same token are no-ops.
func (s *Users) SavePushToken(ctx context.Context, userID, token string) *errs.CustomError {
	if token == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO push_tokens (user_id, token) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		userID, token,
	); err != nil {
		logx.Error(err, "failed to save push token", "user_id", userID)
		return errs.NewError(errs.ErrUnknown, err)
	}

	return nil
}
