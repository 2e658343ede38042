/*
This file implements the BlockList: the directed block relation that gates
message delivery and presence visibility.

Blocking is deliberately independent from friend removal: it never deletes the
friendship edge or the message history, it only suppresses future delivery and
mutual presence visibility.
*/
package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"talkora/internal/app/db"
	"talkora/internal/pkg/errs"
	"talkora/internal/pkg/logx"
)

// BlockList owns the directed (blocker, blocked) edges.
type BlockList struct {
	pool *pgxpool.Pool
}

// NewBlockList constructs a BlockList backed by the shared pool.
func NewBlockList(pool *pgxpool.Pool) *BlockList {
	return &BlockList{pool: pool}
}

// Block inserts the directed edge blocker -> blocked. Re-blocking an already
// blocked user is a no-op.
func (b *BlockList) Block(ctx context.Context, blockerID, blockedID string) *errs.CustomError {
	if blockerID == blockedID {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if _, err := b.pool.Exec(ctx,
		`INSERT INTO blocks (blocker_id, blocked_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		blockerID, blockedID,
	); err != nil {
		if db.IsForeignKeyViolation(err) {
			return errs.NewError(errs.ErrNotFound)
		}
		logx.Error(err, "failed to insert block", "blocker_id", blockerID, "blocked_id", blockedID)
		return errs.NewError(errs.ErrUnknown, err)
	}

	return nil
}

// Unblock removes the directed edge blocker -> blocked. Unblocking a user who
// is not blocked is a no-op.
func (b *BlockList) Unblock(ctx context.Context, blockerID, blockedID string) *errs.CustomError {
	if _, err := b.pool.Exec(ctx,
		`DELETE FROM blocks WHERE blocker_id = $1 AND blocked_id = $2`,
		blockerID, blockedID,
	); err != nil {
		logx.Error(err, "failed to delete block", "blocker_id", blockerID, "blocked_id", blockedID)
		return errs.NewError(errs.ErrUnknown, err)
	}

	return nil
}

// IsBlocked reports whether blockerID has blocked blockedID (directed).
func (b *BlockList) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, *errs.CustomError) {
	var exists bool
	err := b.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blocks WHERE blocker_id = $1 AND blocked_id = $2)`,
		blockerID, blockedID,
	).Scan(&exists)
	if err != nil {
		logx.Error(err, "failed to check block", "blocker_id", blockerID, "blocked_id", blockedID)
		return false, errs.NewError(errs.ErrUnknown, err)
	}

	return exists, nil
}

// IsBlockedEitherDirection reports whether a block exists between the two
// users in either direction. Delivery and presence gating use this form.
func (b *BlockList) IsBlockedEitherDirection(ctx context.Context, userA, userB string) (bool, *errs.CustomError) {
	var exists bool
	err := b.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM blocks
		     WHERE (blocker_id = $1 AND blocked_id = $2)
		        OR (blocker_id = $2 AND blocked_id = $1))`,
		userA, userB,
	).Scan(&exists)
	if err != nil {
		logx.Error(err, "failed to check mutual block", "pair", PairKey(userA, userB))
		return false, errs.NewError(errs.ErrUnknown, err)
	}

	return exists, nil
}

// BlockedEitherIDs returns every user the given user is in a block relation
// with, in either direction. Presence snapshots filter against this set.
func (b *BlockList) BlockedEitherIDs(ctx context.Context, userID string) (map[string]struct{}, *errs.CustomError) {
	rows, err := b.pool.Query(ctx,
		`SELECT blocked_id FROM blocks WHERE blocker_id = $1
		 UNION
		 SELECT blocker_id FROM blocks WHERE blocked_id = $1`,
		userID,
	)
	if err != nil {
		logx.Error(err, "failed to query block relations", "user_id", userID)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.NewError(errs.ErrUnknown, err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return ids, nil
}

// BlockedUsers returns the public profiles of everyone the user has blocked.
func (b *BlockList) BlockedUsers(ctx context.Context, blockerID string) ([]PublicUser, *errs.CustomError) {
	rows, err := b.pool.Query(ctx,
		`SELECT u.id, u.full_name, u.email, u.profile_pic, u.verified, u.last_seen_at
		 FROM blocks bl
		 JOIN users u ON u.id = bl.blocked_id
		 WHERE bl.blocker_id = $1
		 ORDER BY bl.created_at DESC`,
		blockerID,
	)
	if err != nil {
		logx.Error(err, "failed to query blocked users", "blocker_id", blockerID)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return scanPublicUsers(rows)
}
