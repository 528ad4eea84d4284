package session

import (
	"encoding/base64"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("any-secret"))
	require.NoError(t, err)
	return tok
}

func TestIsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name    string
		token   string
		expired bool
	}{
		{"future exp", signed(t, jwtlib.MapClaims{"username": "bob", "exp": now.Add(time.Minute).Unix()}), false},
		{"past exp", signed(t, jwtlib.MapClaims{"username": "bob", "exp": now.Add(-time.Minute).Unix()}), true},
		{"exp equals now", signed(t, jwtlib.MapClaims{"exp": now.Unix()}), true},
		{"no exp", signed(t, jwtlib.MapClaims{"username": "bob"}), true},
		{"exp is a string", signed(t, jwtlib.MapClaims{"exp": "tomorrow"}), true},
		{"username wrong type", signed(t, jwtlib.MapClaims{"username": 42, "exp": now.Add(time.Hour).Unix()}), true},
		{"empty", "", true},
		{"one segment", "abc", true},
		{"two segments", "abc.def", true},
		{"four segments", "a.b.c.d", true},
		{"payload not base64", header + ".!!!.sig", true},
		{"payload not json", header + "." + payload("not json") + ".sig", true},
		{"payload is an array", header + "." + payload(`[1,2]`) + ".sig", true},
		{"payload is null", header + "." + payload(`null`) + ".sig", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, IsExpired(tt.token, now))
		})
	}
}

func TestIsExpiredIgnoresSignature(t *testing.T) {
	now := time.Now()
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"exp": now.Add(time.Hour).Unix(),
	}).SignedString([]byte("a-secret-the-client-never-sees"))
	require.NoError(t, err)

	assert.False(t, IsExpired(tok, now))
}

func TestIsExpiredIgnoresHeader(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	live := enc(`{"username":"bob","exp":1700003600}`)

	for name, hdr := range map[string]string{
		"unknown alg":   `{"alg":"XS999","typ":"JWT"}`,
		"missing alg":   `{"typ":"JWT"}`,
		"alg not a str": `{"alg":7}`,
	} {
		t.Run(name, func(t *testing.T) {
			tok := enc(hdr) + "." + live + ".sig"
			assert.False(t, IsExpired(tok, now))
			got, err := Username(tok)
			require.NoError(t, err)
			assert.Equal(t, "bob", got)
		})
	}

	assert.True(t, IsExpired(enc(`{"alg":"XS999"}`)+"."+enc(`{"exp":1699996400}`)+".sig", now))
}

func TestUsernameDecodesClaim(t *testing.T) {
	tok := signed(t, jwtlib.MapClaims{
		"username": "jane%20doe",
		"isAdmin":  true,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	name, err := Username(tok)
	require.NoError(t, err)
	assert.Equal(t, "jane doe", name)
	assert.True(t, IsAdmin(tok))

	_, err = Username("garbage")
	assert.Error(t, err)
	assert.False(t, IsAdmin("garbage"))
}
