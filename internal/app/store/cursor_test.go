package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCursor_RoundTrip(t *testing.T) {
	req := require.New(t)

	original := Cursor{
		CreatedAt: time.Date(2025, 6, 14, 9, 30, 12, 345678000, time.UTC),
		Seq:       42,
	}

	decoded, err := DecodeCursor(original.Encode())
	req.NoError(err)
	req.Equal(original.CreatedAt.UnixMicro(), decoded.CreatedAt.UnixMicro())
	req.Equal(original.Seq, decoded.Seq)
}

func TestDecodeCursor_EmptyMeansBeginning(t *testing.T) {
	req := require.New(t)

	cursor, err := DecodeCursor("")
	req.NoError(err)
	req.True(cursor.IsZero())
}

func TestDecodeCursor_RejectsMalformedInput(t *testing.T) {
	req := require.New(t)

	// Not base64 at all.
	_, err := DecodeCursor("%%%")
	req.Error(err)

	// Valid base64 but no separator inside.
	_, err = DecodeCursor("bm9zZXBhcmF0b3I")
	req.Error(err)

	// Separator present but non-numeric fields.
	_, err = DecodeCursor("YWJjOmRlZg")
	req.Error(err)
}

func TestMessageCursor_OrdersByTimestampThenSeq(t *testing.T) {
	req := require.New(t)

	at := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)
	first := Message{Seq: 7, CreatedAt: at}
	second := Message{Seq: 8, CreatedAt: at}

	// Same timestamp: seq breaks the tie, so the cursors must differ and
	// decode back to distinguishable positions.
	c1, err := DecodeCursor(first.Cursor().Encode())
	req.NoError(err)
	c2, err := DecodeCursor(second.Cursor().Encode())
	req.NoError(err)

	req.Equal(c1.CreatedAt.UnixMicro(), c2.CreatedAt.UnixMicro())
	req.Less(c1.Seq, c2.Seq)
}
