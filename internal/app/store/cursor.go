package store

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cursor marks a position in a conversation's history for incremental,
// oldest-first pagination. It is presented to clients as an opaque string so
// pagination stays correct under concurrent inserts, unlike numeric offsets.
type Cursor struct {
	// CreatedAt is the timestamp of the last message the client has seen.
	CreatedAt time.Time

	// Seq is the insertion-order tie breaker for messages sharing a timestamp.
	Seq int64
}

// Encode serializes the cursor into its opaque wire form.
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%d:%d", c.CreatedAt.UnixMicro(), c.Seq)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses an opaque cursor string produced by Encode.
// An empty input yields a zero cursor, meaning "from the beginning".
func DecodeCursor(encoded string) (Cursor, error) {
	if encoded == "" {
		return Cursor{}, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor: %w", err)
	}

	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return Cursor{}, fmt.Errorf("malformed cursor: missing separator")
	}

	micros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor timestamp: %w", err)
	}

	seq, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor sequence: %w", err)
	}

	return Cursor{CreatedAt: time.UnixMicro(micros).UTC(), Seq: seq}, nil
}

// IsZero reports whether the cursor points at the beginning of history.
func (c Cursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.Seq == 0
}
