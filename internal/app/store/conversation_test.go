package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"talkora/internal/pkg/errs"
)

func TestAppend_RejectsInvalidContent(t *testing.T) {
	req := require.New(t)

	// Content validation runs before any database access.
	s := &ConversationStore{}
	ctx := context.Background()

	// Neither text nor image.
	_, cerr := s.Append(ctx, "alice", "bob", "", "")
	req.NotNil(cerr)
	req.Equal(errs.ErrInvalidContent, cerr.Code)

	// Both text and image.
	_, cerr = s.Append(ctx, "alice", "bob", "hi", "chat/alice:bob/img.png")
	req.NotNil(cerr)
	req.Equal(errs.ErrInvalidContent, cerr.Code)
}

func TestAppend_RejectsOversizedText(t *testing.T) {
	req := require.New(t)

	s := &ConversationStore{}
	long := strings.Repeat("a", MaxTextBytes+1)

	_, cerr := s.Append(context.Background(), "alice", "bob", long, "")
	req.NotNil(cerr)
	req.Equal(errs.ErrMessageTooLong, cerr.Code)
}
