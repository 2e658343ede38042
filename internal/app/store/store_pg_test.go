package store

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"talkora/internal/app/db"
	"talkora/internal/pkg/errs"
	"talkora/internal/pkg/randx"
)

// testPool connects to the database named by TALKORA_TEST_DATABASE_URL and
// runs migrations. Tests depending on it are skipped when the variable is
// unset, so the unit suite stays runnable without Postgres.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TALKORA_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TALKORA_TEST_DATABASE_URL not set")
	}

	pool, err := db.NewPool(dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func createTestUser(t *testing.T, users *Users, name string) *User {
	t.Helper()

	user, cerr := users.Create(context.Background(), name, randx.ID()+"@example.com", "hash")
	require.Nil(t, cerr)
	return user
}

func TestUsers_CreateAndFetch(t *testing.T) {
	req := require.New(t)
	pool := testPool(t)
	users := NewUsers(pool)
	ctx := context.Background()

	created := createTestUser(t, users, "Alice")
	req.False(created.Verified)
	req.NotEmpty(created.VerificationToken)

	byID, cerr := users.GetByID(ctx, created.ID)
	req.Nil(cerr)
	req.Equal(created.Email, byID.Email)

	byEmail, cerr := users.GetByEmail(ctx, created.Email)
	req.Nil(cerr)
	req.Equal(created.ID, byEmail.ID)

	// Duplicate email is refused.
	_, cerr = users.Create(ctx, "Other", created.Email, "hash")
	req.NotNil(cerr)
	req.Equal(errs.ErrUserAlreadyExists, cerr.Code)
}

func TestUsers_VerifyFlow(t *testing.T) {
	req := require.New(t)
	pool := testPool(t)
	users := NewUsers(pool)
	ctx := context.Background()

	user := createTestUser(t, users, "Alice")

	verified, cerr := users.Verify(ctx, user.VerificationToken)
	req.Nil(cerr)
	req.True(verified.Verified)

	// The token is single-use.
	_, cerr = users.Verify(ctx, user.VerificationToken)
	req.NotNil(cerr)
	req.Equal(errs.ErrNotFound, cerr.Code)

	// Rotating a token for an already verified account is refused.
	_, cerr = users.RotateVerificationToken(ctx, user.ID)
	req.NotNil(cerr)
	req.Equal(errs.ErrAlreadyVerified, cerr.Code)
}

func TestFriendGraph_RequestLifecycle(t *testing.T) {
	req := require.New(t)
	pool := testPool(t)
	users := NewUsers(pool)
	graph := NewFriendGraph(pool)
	ctx := context.Background()

	alice := createTestUser(t, users, "Alice")
	bob := createTestUser(t, users, "Bob")

	// Self requests are refused.
	_, cerr := graph.SendRequest(ctx, alice.ID, alice.ID)
	req.NotNil(cerr)
	req.Equal(errs.ErrSelfRequest, cerr.Code)

	request, cerr := graph.SendRequest(ctx, alice.ID, bob.ID)
	req.Nil(cerr)
	req.Equal(RequestPending, request.Status)

	// A second identical request collides with the pending one.
	_, cerr = graph.SendRequest(ctx, alice.ID, bob.ID)
	req.NotNil(cerr)
	req.Equal(errs.ErrRequestAlreadyPending, cerr.Code)

	// Only the receiver may accept.
	_, cerr = graph.Accept(ctx, request.ID, alice.ID)
	req.NotNil(cerr)
	req.Equal(errs.ErrUnauthorized, cerr.Code)

	accepted, cerr := graph.Accept(ctx, request.ID, bob.ID)
	req.Nil(cerr)
	req.Equal(RequestAccepted, accepted.Status)

	areFriends, cerr := graph.AreFriends(ctx, alice.ID, bob.ID)
	req.Nil(cerr)
	req.True(areFriends)

	// Accepting twice finds the request no longer pending.
	_, cerr = graph.Accept(ctx, request.ID, bob.ID)
	req.NotNil(cerr)
	req.Equal(errs.ErrNotPending, cerr.Code)

	// A new request between friends is refused.
	_, cerr = graph.SendRequest(ctx, bob.ID, alice.ID)
	req.NotNil(cerr)
	req.Equal(errs.ErrAlreadyFriends, cerr.Code)

	req.Nil(graph.RemoveFriend(ctx, alice.ID, bob.ID))

	areFriends, cerr = graph.AreFriends(ctx, alice.ID, bob.ID)
	req.Nil(cerr)
	req.False(areFriends)
}

func TestFriendGraph_AcceptCancelsMirroredRequest(t *testing.T) {
	req := require.New(t)
	pool := testPool(t)
	users := NewUsers(pool)
	graph := NewFriendGraph(pool)
	ctx := context.Background()

	alice := createTestUser(t, users, "Alice")
	bob := createTestUser(t, users, "Bob")

	// Both users request each other before either accepts.
	aliceReq, cerr := graph.SendRequest(ctx, alice.ID, bob.ID)
	req.Nil(cerr)
	_, cerr = graph.SendRequest(ctx, bob.ID, alice.ID)
	req.Nil(cerr)

	_, cerr = graph.Accept(ctx, aliceReq.ID, bob.ID)
	req.Nil(cerr)

	areFriends, cerr := graph.AreFriends(ctx, alice.ID, bob.ID)
	req.Nil(cerr)
	req.True(areFriends)

	// The mirrored pending request no longer surfaces in either request list.
	incoming, cerr := graph.IncomingRequests(ctx, alice.ID)
	req.Nil(cerr)
	req.Empty(incoming)

	outgoing, cerr := graph.OutgoingRequests(ctx, bob.ID)
	req.Nil(cerr)
	req.Empty(outgoing)
}

func TestConversationStore_AppendHistoryMarkReadPurge(t *testing.T) {
	req := require.New(t)
	pool := testPool(t)
	users := NewUsers(pool)
	conversations := NewConversationStore(pool)
	ctx := context.Background()

	alice := createTestUser(t, users, "Alice")
	bob := createTestUser(t, users, "Bob")

	first, cerr := conversations.Append(ctx, alice.ID, bob.ID, "first", "")
	req.Nil(cerr)
	second, cerr := conversations.Append(ctx, bob.ID, alice.ID, "second", "")
	req.Nil(cerr)
	req.Less(first.Seq, second.Seq)

	// History reads oldest first regardless of caller order.
	page, next, cerr := conversations.History(ctx, bob.ID, alice.ID, Cursor{}, 10)
	req.Nil(cerr)
	req.Len(page, 2)
	req.Equal("first", page[0].Text)
	req.Equal("second", page[1].Text)
	req.Empty(next)

	// Paging resumes strictly after the cursor.
	page, next, cerr = conversations.History(ctx, alice.ID, bob.ID, Cursor{}, 1)
	req.Nil(cerr)
	req.Len(page, 1)
	req.NotEmpty(next)

	cursor, err := DecodeCursor(next)
	req.NoError(err)
	page, _, cerr = conversations.History(ctx, alice.ID, bob.ID, cursor, 10)
	req.Nil(cerr)
	req.Len(page, 1)
	req.Equal("second", page[0].Text)

	// MarkRead covers only messages addressed to the reader, and is
	// idempotent.
	count, cerr := conversations.MarkRead(ctx, alice.ID, bob.ID)
	req.Nil(cerr)
	req.Equal(int64(1), count)

	count, cerr = conversations.MarkRead(ctx, alice.ID, bob.ID)
	req.Nil(cerr)
	req.Zero(count)

	unread, cerr := conversations.UnreadCount(ctx, bob.ID, alice.ID)
	req.Nil(cerr)
	req.Equal(int64(1), unread)

	last, cerr := conversations.LastMessage(ctx, alice.ID, bob.ID)
	req.Nil(cerr)
	req.Equal("second", last.Text)

	_, cerr = conversations.Purge(ctx, alice.ID, bob.ID)
	req.Nil(cerr)

	page, _, cerr = conversations.History(ctx, alice.ID, bob.ID, Cursor{}, 10)
	req.Nil(cerr)
	req.Empty(page)
}

func TestBlockList_RoundTrip(t *testing.T) {
	req := require.New(t)
	pool := testPool(t)
	users := NewUsers(pool)
	blocks := NewBlockList(pool)
	ctx := context.Background()

	alice := createTestUser(t, users, "Alice")
	bob := createTestUser(t, users, "Bob")

	req.Nil(blocks.Block(ctx, alice.ID, bob.ID))

	// Blocking is idempotent.
	req.Nil(blocks.Block(ctx, alice.ID, bob.ID))

	blocked, cerr := blocks.IsBlocked(ctx, alice.ID, bob.ID)
	req.Nil(cerr)
	req.True(blocked)

	// The reverse single-direction check is false, the either-direction
	// check is true from both sides.
	blocked, cerr = blocks.IsBlocked(ctx, bob.ID, alice.ID)
	req.Nil(cerr)
	req.False(blocked)

	either, cerr := blocks.IsBlockedEitherDirection(ctx, bob.ID, alice.ID)
	req.Nil(cerr)
	req.True(either)

	req.Nil(blocks.Unblock(ctx, alice.ID, bob.ID))

	either, cerr = blocks.IsBlockedEitherDirection(ctx, alice.ID, bob.ID)
	req.Nil(cerr)
	req.False(either)

	// Blocking a user that does not exist is NotFound, not a server error.
	cerr = blocks.Block(ctx, alice.ID, randx.ID())
	req.NotNil(cerr)
	req.Equal(errs.ErrNotFound, cerr.Code)
}
