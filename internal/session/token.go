package session

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"ebookviewer/internal/pkg/jwt"
)

// tokenPayload is the only payload shape accepted from an access token.
type tokenPayload struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	jwtlib.RegisteredClaims
}

var errNoExpiry = errors.New("token has no exp claim")

// inspect reads only the payload segment. The header is never looked at, so
// an alg the client has no verifier for does not make a live token look dead.
func inspect(token string) (*tokenPayload, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errors.New("token is not three segments")
	}
	raw, err := jwtlib.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return nil, err
	}
	var p tokenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.ExpiresAt == nil {
		return nil, errNoExpiry
	}
	return &p, nil
}

// IsExpired decodes the payload without checking the signature. Anything it
// cannot read counts as expired.
func IsExpired(token string, now time.Time) bool {
	p, err := inspect(token)
	if err != nil {
		return true
	}
	return p.ExpiresAt.UnixMilli() <= now.UnixMilli()
}

// Username returns the decoded username claim of an access token.
func Username(token string) (string, error) {
	p, err := inspect(token)
	if err != nil {
		return "", err
	}
	if p.Username == "" {
		return "", errors.New("token has no username claim")
	}
	return jwt.DecodeUsername(p.Username)
}

// IsAdmin reports the admin claim; unreadable tokens are not admin.
func IsAdmin(token string) bool {
	p, err := inspect(token)
	return err == nil && p.IsAdmin
}
