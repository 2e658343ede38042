/*
This file implements the FriendGraph: friend request lifecycle, friendship
edges, and requester-relative relationship classification for user search.

Request rows are immutable after reaching a terminal state; transitions happen
inside a transaction holding a row lock so concurrent accept/reject/cancel
attempts on the same request serialize cleanly.
*/
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"talkora/internal/app/db"
	"talkora/internal/pkg/errs"
	"talkora/internal/pkg/logx"
	"talkora/internal/pkg/randx"
)

// MaxSearchResults caps the number of candidates a single search returns.
const MaxSearchResults = 20

// FriendGraph owns friendship edges and the pending-request state machine.
type FriendGraph struct {
	pool *pgxpool.Pool
}

// NewFriendGraph constructs a FriendGraph backed by the shared pool.
func NewFriendGraph(pool *pgxpool.Pool) *FriendGraph {
	return &FriendGraph{pool: pool}
}

// SendRequest creates a pending request from senderID to receiverID.
// It fails with SelfRequest, AlreadyFriends, RequestAlreadyPending, or
// NotFound (unknown receiver).
func (g *FriendGraph) SendRequest(ctx context.Context, senderID, receiverID string) (*FriendRequest, *errs.CustomError) {
	if senderID == receiverID {
		return nil, errs.NewError(errs.ErrSelfRequest)
	}

	var exists bool
	if err := g.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, receiverID,
	).Scan(&exists); err != nil {
		logx.Error(err, "failed to check receiver existence", "receiver_id", receiverID)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}
	if !exists {
		return nil, errs.NewError(errs.ErrNotFound)
	}

	friends, cerr := g.AreFriends(ctx, senderID, receiverID)
	if cerr != nil {
		return nil, cerr
	}
	if friends {
		return nil, errs.NewError(errs.ErrAlreadyFriends)
	}

	req := &FriendRequest{
		ID:         randx.ID(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     RequestPending,
	}

	err := g.pool.QueryRow(ctx,
		`INSERT INTO friend_requests (id, sender_id, receiver_id)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		req.ID, senderID, receiverID,
	).Scan(&req.CreatedAt)

	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, errs.NewError(errs.ErrRequestAlreadyPending)
		}
		logx.Error(err, "failed to insert friend request", "sender_id", senderID, "receiver_id", receiverID)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return req, nil
}

// Accept transitions a pending request to accepted and creates the friendship
// edge in the same transaction. Only the request's receiver may accept; a
// terminal request fails with NotPending.
func (g *FriendGraph) Accept(ctx context.Context, requestID, actorID string) (*FriendRequest, *errs.CustomError) {
	return g.transition(ctx, requestID, actorID, RequestAccepted)
}

// Reject transitions a pending request to rejected. Only the receiver may reject.
func (g *FriendGraph) Reject(ctx context.Context, requestID, actorID string) (*FriendRequest, *errs.CustomError) {
	return g.transition(ctx, requestID, actorID, RequestRejected)
}

// Cancel transitions a pending request to cancelled. Only the original sender
// may cancel.
func (g *FriendGraph) Cancel(ctx context.Context, requestID, actorID string) (*FriendRequest, *errs.CustomError) {
	return g.transition(ctx, requestID, actorID, RequestCancelled)
}

// transition applies one state-machine step under a row lock.
func (g *FriendGraph) transition(ctx context.Context, requestID, actorID, target string) (*FriendRequest, *errs.CustomError) {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		logx.Error(err, "failed to begin transaction for request transition", "request_id", requestID)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}
	defer tx.Rollback(ctx)

	req := &FriendRequest{ID: requestID}
	err = tx.QueryRow(ctx,
		`SELECT sender_id, receiver_id, status, created_at, handled_at
		 FROM friend_requests WHERE id = $1 FOR UPDATE`,
		requestID,
	).Scan(&req.SenderID, &req.ReceiverID, &req.Status, &req.CreatedAt, &req.HandledAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NewError(errs.ErrNotFound)
		}
		logx.Error(err, "failed to load friend request", "request_id", requestID)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	// Cancel belongs to the sender; accept and reject belong to the receiver.
	authorized := actorID == req.ReceiverID
	if target == RequestCancelled {
		authorized = actorID == req.SenderID
	}
	if !authorized {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}

	if req.Status != RequestPending {
		return nil, errs.NewError(errs.ErrNotPending)
	}

	err = tx.QueryRow(ctx,
		`UPDATE friend_requests SET status = $2, handled_at = now()
		 WHERE id = $1
		 RETURNING handled_at`,
		requestID, target,
	).Scan(&req.HandledAt)
	if err != nil {
		logx.Error(err, "failed to update friend request", "request_id", requestID)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}
	req.Status = target

	if target == RequestAccepted {
		userA, userB := OrderPair(req.SenderID, req.ReceiverID)
		// A mirrored request may have been accepted already; the edge is symmetric.
		if _, err := tx.Exec(ctx,
			`INSERT INTO friendships (user_a, user_b) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			userA, userB,
		); err != nil {
			logx.Error(err, "failed to create friendship edge", "request_id", requestID)
			return nil, errs.NewError(errs.ErrUnknown, err)
		}

		// A pending request in the opposite direction is now moot; cancel it so
		// it stops surfacing in either party's request lists.
		if _, err := tx.Exec(ctx,
			`UPDATE friend_requests SET status = 'cancelled', handled_at = now()
			 WHERE sender_id = $1 AND receiver_id = $2 AND status = 'pending'`,
			req.ReceiverID, req.SenderID,
		); err != nil {
			logx.Error(err, "failed to cancel mirrored friend request", "request_id", requestID)
			return nil, errs.NewError(errs.ErrUnknown, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		logx.Error(err, "failed to commit request transition", "request_id", requestID)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return req, nil
}

// RemoveFriend deletes the friendship edge between the two users. It fails
// with NotFriends when no edge exists. The caller cascades the conversation
// purge; blocking is a separate relation and is untouched here.
func (g *FriendGraph) RemoveFriend(ctx context.Context, userA, userB string) *errs.CustomError {
	a, b := OrderPair(userA, userB)

	tag, err := g.pool.Exec(ctx,
		`DELETE FROM friendships WHERE user_a = $1 AND user_b = $2`, a, b,
	)
	if err != nil {
		logx.Error(err, "failed to delete friendship", "pair", PairKey(userA, userB))
		return errs.NewError(errs.ErrUnknown, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NewError(errs.ErrNotFriends)
	}

	return nil
}

// AreFriends reports whether a friendship edge exists between the two users.
func (g *FriendGraph) AreFriends(ctx context.Context, userA, userB string) (bool, *errs.CustomError) {
	a, b := OrderPair(userA, userB)

	var exists bool
	err := g.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM friendships WHERE user_a = $1 AND user_b = $2)`, a, b,
	).Scan(&exists)
	if err != nil {
		logx.Error(err, "failed to check friendship", "pair", PairKey(userA, userB))
		return false, errs.NewError(errs.ErrUnknown, err)
	}

	return exists, nil
}

// FriendIDs returns the ids of every friend of the given user.
func (g *FriendGraph) FriendIDs(ctx context.Context, userID string) ([]string, *errs.CustomError) {
	rows, err := g.pool.Query(ctx,
		`SELECT CASE WHEN user_a = $1 THEN user_b ELSE user_a END
		 FROM friendships WHERE user_a = $1 OR user_b = $1`,
		userID,
	)
	if err != nil {
		logx.Error(err, "failed to query friend ids", "user_id", userID)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.NewError(errs.ErrUnknown, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return ids, nil
}

// Friends returns the public profiles of every friend of the given user.
func (g *FriendGraph) Friends(ctx context.Context, userID string) ([]PublicUser, *errs.CustomError) {
	rows, err := g.pool.Query(ctx,
		`SELECT u.id, u.full_name, u.email, u.profile_pic, u.verified, u.last_seen_at
		 FROM friendships f
		 JOIN users u ON u.id = CASE WHEN f.user_a = $1 THEN f.user_b ELSE f.user_a END
		 WHERE f.user_a = $1 OR f.user_b = $1
		 ORDER BY u.full_name`,
		userID,
	)
	if err != nil {
		logx.Error(err, "failed to query friends", "user_id", userID)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return scanPublicUsers(rows)
}

// IncomingRequests returns the pending requests addressed to the user,
// including each sender's public profile.
func (g *FriendGraph) IncomingRequests(ctx context.Context, userID string) ([]RequestWithProfile, *errs.CustomError) {
	return g.pendingRequests(ctx, userID, true)
}

// OutgoingRequests returns the user's own pending requests, including each
// receiver's public profile.
func (g *FriendGraph) OutgoingRequests(ctx context.Context, userID string) ([]RequestWithProfile, *errs.CustomError) {
	return g.pendingRequests(ctx, userID, false)
}

// RequestWithProfile pairs a pending request with the counterpart's profile.
type RequestWithProfile struct {
	Request FriendRequest `json:"request"`
	User    PublicUser    `json:"user"`
}

func (g *FriendGraph) pendingRequests(ctx context.Context, userID string, incoming bool) ([]RequestWithProfile, *errs.CustomError) {
	ownColumn, otherColumn := "receiver_id", "sender_id"
	if !incoming {
		ownColumn, otherColumn = "sender_id", "receiver_id"
	}

	rows, err := g.pool.Query(ctx,
		`SELECT r.id, r.sender_id, r.receiver_id, r.status, r.created_at,
		        u.id, u.full_name, u.email, u.profile_pic, u.verified, u.last_seen_at
		 FROM friend_requests r
		 JOIN users u ON u.id = r.`+otherColumn+`
		 WHERE r.`+ownColumn+` = $1 AND r.status = 'pending'
		 ORDER BY r.created_at DESC`,
		userID,
	)
	if err != nil {
		logx.Error(err, "failed to query pending requests", "user_id", userID)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}
	defer rows.Close()

	results := make([]RequestWithProfile, 0)
	for rows.Next() {
		var item RequestWithProfile
		if err := rows.Scan(
			&item.Request.ID, &item.Request.SenderID, &item.Request.ReceiverID,
			&item.Request.Status, &item.Request.CreatedAt,
			&item.User.ID, &item.User.FullName, &item.User.Email,
			&item.User.ProfilePic, &item.User.Verified, &item.User.LastSeenAt,
		); err != nil {
			return nil, errs.NewError(errs.ErrUnknown, err)
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return results, nil
}

// Search finds users matching the query by name or email and classifies each
// candidate's relationship to the requester. Users in a block relation with
// the requester (either direction) are excluded entirely.
func (g *FriendGraph) Search(ctx context.Context, requesterID, query string) ([]SearchResult, *errs.CustomError) {
	rows, err := g.pool.Query(ctx,
		`SELECT u.id, u.full_name, u.email, u.profile_pic, u.verified, u.last_seen_at
		 FROM users u
		 WHERE u.id <> $1
		   AND (u.full_name ILIKE '%' || $2 || '%' OR u.email ILIKE '%' || $2 || '%')
		   AND NOT EXISTS (
		       SELECT 1 FROM blocks b
		       WHERE (b.blocker_id = $1 AND b.blocked_id = u.id)
		          OR (b.blocker_id = u.id AND b.blocked_id = $1))
		 ORDER BY u.full_name
		 LIMIT $3`,
		requesterID, query, MaxSearchResults,
	)
	if err != nil {
		logx.Error(err, "failed to search users", "requester_id", requesterID)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	candidates, cerr := scanPublicUsers(rows)
	if cerr != nil {
		return nil, cerr
	}

	friends, pendingSent, pendingReceived, cerr := g.relationSets(ctx, requesterID)
	if cerr != nil {
		return nil, cerr
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, candidate := range candidates {
		results = append(results, SearchResult{
			User:               candidate,
			RelationshipStatus: ClassifyRelationship(candidate.ID, friends, pendingSent, pendingReceived),
		})
	}

	return results, nil
}

// relationSets loads the requester's friend set and pending request sets once,
// so classification of a whole result page needs no per-candidate queries.
func (g *FriendGraph) relationSets(ctx context.Context, requesterID string) (friends, pendingSent, pendingReceived map[string]struct{}, cerr *errs.CustomError) {
	friendIDs, cerr := g.FriendIDs(ctx, requesterID)
	if cerr != nil {
		return nil, nil, nil, cerr
	}

	friends = make(map[string]struct{}, len(friendIDs))
	for _, id := range friendIDs {
		friends[id] = struct{}{}
	}

	rows, err := g.pool.Query(ctx,
		`SELECT sender_id, receiver_id FROM friend_requests
		 WHERE (sender_id = $1 OR receiver_id = $1) AND status = 'pending'`,
		requesterID,
	)
	if err != nil {
		logx.Error(err, "failed to query pending relation sets", "requester_id", requesterID)
		return nil, nil, nil, errs.NewError(errs.ErrUnknown, err)
	}
	defer rows.Close()

	pendingSent = make(map[string]struct{})
	pendingReceived = make(map[string]struct{})
	for rows.Next() {
		var senderID, receiverID string
		if err := rows.Scan(&senderID, &receiverID); err != nil {
			return nil, nil, nil, errs.NewError(errs.ErrUnknown, err)
		}
		if senderID == requesterID {
			pendingSent[receiverID] = struct{}{}
		} else {
			pendingReceived[senderID] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, nil, errs.NewError(errs.ErrUnknown, err)
	}

	return friends, pendingSent, pendingReceived, nil
}

// ClassifyRelationship computes the requester-relative relationship status for
// one candidate. Friendship wins over any stale pending rows; an outgoing
// pending request wins over an incoming one for the same pair.
func ClassifyRelationship(candidateID string, friends, pendingSent, pendingReceived map[string]struct{}) string {
	if _, ok := friends[candidateID]; ok {
		return RelationFriends
	}
	if _, ok := pendingSent[candidateID]; ok {
		return RelationPendingSent
	}
	if _, ok := pendingReceived[candidateID]; ok {
		return RelationPendingReceived
	}
	return RelationNone
}

func scanPublicUsers(rows pgx.Rows) ([]PublicUser, *errs.CustomError) {
	defer rows.Close()

	users := make([]PublicUser, 0)
	for rows.Next() {
		var u PublicUser
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email, &u.ProfilePic, &u.Verified, &u.LastSeenAt); err != nil {
			return nil, errs.NewError(errs.ErrUnknown, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return users, nil
}
