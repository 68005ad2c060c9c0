// Package auth holds the token and password primitives shared by handlers
// and middleware: HS256 access tokens, bcrypt password hashing, and the
// random opaque secrets backing refresh and ephemeral tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired and ErrTokenInvalid are the only two verification
// failures. Both map to 401 at the API boundary; callers log which one.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the identity snapshot carried by an access token. Roles are
// fixed at mint time; a refresh is required to observe role changes.
type Claims struct {
	UserID      string
	DisplayName string
	Slug        string
	Roles       []string
}

// AccessToken is a signed JWT plus its expiry.
type AccessToken struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"expires"`
}

// NewAccessToken signs an HS256 JWT for the given claims. TTL should be
// minutes, not hours; the refresh flow exists so this can stay short.
func NewAccessToken(secret string, c Claims, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   c.UserID,
		"name":  c.DisplayName,
		"slug":  c.Slug,
		"roles": c.Roles,
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
	})
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies signature and expiry and returns the embedded
// claims. The signing method is pinned to HMAC; anything else is invalid.
func ParseAccessToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return Claims{}, ErrTokenInvalid
	}
	c := Claims{}
	if v, ok := mc["sub"].(string); ok {
		c.UserID = v
	}
	if c.UserID == "" {
		return Claims{}, ErrTokenInvalid
	}
	if v, ok := mc["name"].(string); ok {
		c.DisplayName = v
	}
	if v, ok := mc["slug"].(string); ok {
		c.Slug = v
	}
	if vs, ok := mc["roles"].([]interface{}); ok {
		for _, v := range vs {
			if s, ok := v.(string); ok {
				c.Roles = append(c.Roles, s)
			}
		}
	}
	return c, nil
}
