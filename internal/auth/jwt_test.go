package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	in := Claims{
		UserID:      "01HZXW5N8QTESTUSER00000000",
		DisplayName: "Ada Lovelace",
		Slug:        "ada-lovelace",
		Roles:       []string{"user", "email-verified"},
	}
	tok, err := NewAccessToken("secret", in, time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Token)
	assert.WithinDuration(t, time.Now().Add(time.Minute), tok.Exp, 5*time.Second)

	out, err := ParseAccessToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseAccessTokenWrongSecret(t *testing.T) {
	tok, err := NewAccessToken("secret", Claims{UserID: "u1"}, time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken("other-secret", tok.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseAccessTokenExpired(t *testing.T) {
	tok, err := NewAccessToken("secret", Claims{UserID: "u1"}, -time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken("secret", tok.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseAccessTokenGarbage(t *testing.T) {
	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := ParseAccessToken("secret", raw)
		assert.ErrorIs(t, err, ErrTokenInvalid, "raw=%q", raw)
	}
}

func TestParseAccessTokenMissingSubject(t *testing.T) {
	tok, err := NewAccessToken("secret", Claims{DisplayName: "No Subject"}, time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken("secret", tok.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
