/*
This file implements the ConversationStore: the durable, ordered message log for
each pair of users, plus the derived unread counters.

Ordering invariant: history is sorted by (created_at, seq). seq is assigned by
the database at insert time while the pair stripe is held, so any two appends to
the same conversation are serialized and every reader observes them in append
order.
*/
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"talkora/internal/pkg/errs"
	"talkora/internal/pkg/logx"
	"talkora/internal/pkg/randx"
)

const (
	// MaxTextBytes is the maximum allowed size of message text content.
	MaxTextBytes = 5000

	// DefaultHistoryPageSize bounds a history page when the client passes no limit.
	DefaultHistoryPageSize = 50

	// MaxHistoryPageSize caps a single history page regardless of the requested limit.
	MaxHistoryPageSize = 200
)

// ConversationStore owns the per-pair message logs. DeliveryRouter reads from
// it to decide delivery; nothing else mutates messages.
type ConversationStore struct {
	pool  *pgxpool.Pool
	locks PairLock
}

// NewConversationStore constructs a ConversationStore backed by the shared pool.
func NewConversationStore(pool *pgxpool.Pool) *ConversationStore {
	return &ConversationStore{pool: pool}
}

// Append validates and persists a new message, returning the stored row with
// its database-assigned sequence and timestamp. It fails with ErrInvalidContent
// unless exactly one of text/imageKey is non-empty.
func (s *ConversationStore) Append(ctx context.Context, senderID, receiverID, text, imageKey string) (*Message, *errs.CustomError) {
	if (text == "") == (imageKey == "") {
		return nil, errs.NewError(errs.ErrInvalidContent)
	}

	if len(text) > MaxTextBytes {
		return nil, errs.NewError(errs.ErrMessageTooLong)
	}

	unlock := s.locks.Lock(senderID, receiverID)
	defer unlock()

	msg := &Message{
		ID:         randx.ID(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		ImageKey:   imageKey,
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, text, image_key)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING seq, created_at`,
		msg.ID, senderID, receiverID, text, imageKey,
	).Scan(&msg.Seq, &msg.CreatedAt)

	if err != nil {
		logx.Error(err, "failed to append message", "sender_id", senderID, "receiver_id", receiverID)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return msg, nil
}

// History returns one page of the conversation between userA and userB,
// oldest first, starting strictly after the given cursor. The second return
// value is the cursor for the next page, empty when this page was short.
func (s *ConversationStore) History(ctx context.Context, userA, userB string, cursor Cursor, limit int) ([]Message, string, *errs.CustomError) {
	if limit <= 0 {
		limit = DefaultHistoryPageSize
	}
	if limit > MaxHistoryPageSize {
		limit = MaxHistoryPageSize
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, seq, sender_id, receiver_id, text, image_key, created_at, read_at
		 FROM messages
		 WHERE LEAST(sender_id, receiver_id) = LEAST($1::uuid, $2::uuid)
		   AND GREATEST(sender_id, receiver_id) = GREATEST($1::uuid, $2::uuid)
		   AND (created_at, seq) > ($3, $4)
		 ORDER BY created_at, seq
		 LIMIT $5`,
		userA, userB, cursor.CreatedAt, cursor.Seq, limit,
	)
	if err != nil {
		logx.Error(err, "failed to query history", "pair", PairKey(userA, userB))
		return nil, "", errs.NewError(errs.ErrUnknown, err)
	}

	messages, scanErr := scanMessages(rows)
	if scanErr != nil {
		logx.Error(scanErr, "failed to scan history rows", "pair", PairKey(userA, userB))
		return nil, "", errs.NewError(errs.ErrUnknown, scanErr)
	}

	nextCursor := ""
	if len(messages) == limit {
		nextCursor = messages[len(messages)-1].Cursor().Encode()
	}

	return messages, nextCursor, nil
}

// MarkRead sets read_at on every unread message sent from otherID to readerID
// and returns the number of rows affected. It is idempotent: a second call
// with no intervening messages affects zero rows. read_at never reverts.
func (s *ConversationStore) MarkRead(ctx context.Context, readerID, otherID string) (int64, *errs.CustomError) {
	unlock := s.locks.Lock(readerID, otherID)
	defer unlock()

	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET read_at = now()
		 WHERE receiver_id = $1 AND sender_id = $2 AND read_at IS NULL`,
		readerID, otherID,
	)
	if err != nil {
		logx.Error(err, "failed to mark messages read", "reader_id", readerID, "other_id", otherID)
		return 0, errs.NewError(errs.ErrUnknown, err)
	}

	return tag.RowsAffected(), nil
}

// Purge hard-deletes every message between the pair and returns the storage
// keys of deleted image messages so the caller can remove the objects.
// Unread counters are derived from message rows, so no cursor state survives.
func (s *ConversationStore) Purge(ctx context.Context, userA, userB string) ([]string, *errs.CustomError) {
	unlock := s.locks.Lock(userA, userB)
	defer unlock()

	rows, err := s.pool.Query(ctx,
		`DELETE FROM messages
		 WHERE LEAST(sender_id, receiver_id) = LEAST($1::uuid, $2::uuid)
		   AND GREATEST(sender_id, receiver_id) = GREATEST($1::uuid, $2::uuid)
		 RETURNING image_key`,
		userA, userB,
	)
	if err != nil {
		logx.Error(err, "failed to purge conversation", "pair", PairKey(userA, userB))
		return nil, errs.NewError(errs.ErrUnknown, err)
	}
	defer rows.Close()

	var imageKeys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errs.NewError(errs.ErrUnknown, err)
		}
		if key != "" {
			imageKeys = append(imageKeys, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return imageKeys, nil
}

// UnreadCount returns how many messages from otherID to readerID are unread.
func (s *ConversationStore) UnreadCount(ctx context.Context, readerID, otherID string) (int64, *errs.CustomError) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM messages
		 WHERE receiver_id = $1 AND sender_id = $2 AND read_at IS NULL`,
		readerID, otherID,
	).Scan(&count)
	if err != nil {
		logx.Error(err, "failed to count unread messages", "reader_id", readerID)
		return 0, errs.NewError(errs.ErrUnknown, err)
	}
	return count, nil
}

// UnreadCounts returns the reader's unread counts grouped by sender.
func (s *ConversationStore) UnreadCounts(ctx context.Context, readerID string) (map[string]int64, *errs.CustomError) {
	rows, err := s.pool.Query(ctx,
		`SELECT sender_id, count(*) FROM messages
		 WHERE receiver_id = $1 AND read_at IS NULL
		 GROUP BY sender_id`,
		readerID,
	)
	if err != nil {
		logx.Error(err, "failed to query unread counts", "reader_id", readerID)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var senderID string
		var count int64
		if err := rows.Scan(&senderID, &count); err != nil {
			return nil, errs.NewError(errs.ErrUnknown, err)
		}
		counts[senderID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return counts, nil
}

// LastMessage returns the newest message between the pair, or nil when the
// conversation is empty.
func (s *ConversationStore) LastMessage(ctx context.Context, userA, userB string) (*Message, *errs.CustomError) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, seq, sender_id, receiver_id, text, image_key, created_at, read_at
		 FROM messages
		 WHERE LEAST(sender_id, receiver_id) = LEAST($1::uuid, $2::uuid)
		   AND GREATEST(sender_id, receiver_id) = GREATEST($1::uuid, $2::uuid)
		 ORDER BY created_at DESC, seq DESC
		 LIMIT 1`,
		userA, userB,
	)

	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		logx.Error(err, "failed to query last message", "pair", PairKey(userA, userB))
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return msg, nil
}

func scanMessage(row pgx.Row) (*Message, error) {
	var msg Message
	var readAt *time.Time

	err := row.Scan(&msg.ID, &msg.Seq, &msg.SenderID, &msg.ReceiverID,
		&msg.Text, &msg.ImageKey, &msg.CreatedAt, &readAt)
	if err != nil {
		return nil, err
	}

	msg.ReadAt = readAt
	return &msg, nil
}

func scanMessages(rows pgx.Rows) ([]Message, error) {
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}

	return messages, rows.Err()
}
