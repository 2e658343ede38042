package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateAndParseToken(t *testing.T) {
	req := require.New(t)

	payload := &Payload{
		UserID:   "user-1",
		Email:    "alice@example.com",
		Verified: true,
	}

	token, err := GenerateToken(payload, testSecret, time.Hour)
	req.NoError(err)
	req.NotEmpty(token)

	parsed, err := ParseToken(token, testSecret)
	req.NoError(err)
	req.Equal("user-1", parsed.UserID)
	req.Equal("alice@example.com", parsed.Email)
	req.True(parsed.Verified)
	req.Equal(TokenIssuer, parsed.Issuer)
}

func TestParseToken_RejectsWrongSecret(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(&Payload{UserID: "user-1"}, testSecret, time.Hour)
	req.NoError(err)

	_, err = ParseToken(token, "other-secret")
	req.Error(err)
}

func TestParseToken_RejectsExpiredToken(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(&Payload{UserID: "user-1"}, testSecret, -time.Minute)
	req.NoError(err)

	_, err = ParseToken(token, testSecret)
	req.Error(err)
}

func TestParseToken_RejectsGarbage(t *testing.T) {
	req := require.New(t)

	_, err := ParseToken("not.a.token", testSecret)
	req.Error(err)
}
