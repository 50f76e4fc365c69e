package utils

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perftracker/api/models"
)

func TestResolveClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "203.0.113.7", "X-Forwarded-For": "198.51.100.1"}, "10.0.0.1:1234", "203.0.113.7"},
		{"first forwarded element", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"}, "10.0.0.1:1234", "198.51.100.1"},
		{"invalid header skipped", map[string]string{"Client-IP": "not-an-ip", "X-Forwarded": "198.51.100.9"}, "10.0.0.1:1234", "198.51.100.9"},
		{"connection address", nil, "10.0.0.1:1234", "10.0.0.1"},
		{"ipv6 connection address", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"nothing valid", map[string]string{"Forwarded": "garbage"}, "pipe", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, ResolveClientIP(h.Get, tt.remote))
		})
	}
}

func TestAnonymizeIP(t *testing.T) {
	assert.Equal(t, "203.0.113.0", AnonymizeIP("203.0.113.77"))
	assert.Equal(t, "2001:db8:1234::", AnonymizeIP("2001:db8:1234:5678::1"))
	assert.Equal(t, "", AnonymizeIP("nope"))
}

func TestGuestSessionIDs(t *testing.T) {
	id := NewGuestSessionID()
	assert.Len(t, id, len("guest_")+32)
	assert.True(t, IsGuestSessionID(id))
	assert.NotEqual(t, id, NewGuestSessionID())

	assert.False(t, IsGuestSessionID("guest_short"))
	assert.False(t, IsGuestSessionID("user_12"))
	assert.False(t, IsGuestSessionID("guest_ZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZ"))
	assert.Equal(t, "user_12", UserSessionID(12))
}

func TestParseLimit(t *testing.T) {
	n, err := ParseLimit("", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = ParseLimit("25", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	for _, bad := range []string{"0", "101", "ten", "-5"} {
		_, err := ParseLimit(bad, 10, 1, 100)
		assert.Error(t, err, bad)
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID("product_id", "")
	require.NoError(t, err)
	assert.Zero(t, id)

	id, err = ParseID("product_id", "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = ParseID("product_id", "-1")
	assert.Error(t, err)
}

func TestTokenManagerRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, err := m.GenerateJWT(&models.User{ID: 3, Email: "a@example.com", Role: models.RoleShopManager})
	require.NoError(t, err)

	claims, err := m.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, 3, claims.UserID)
	assert.Equal(t, models.RoleShopManager, claims.Role)

	_, err = NewTokenManager("other", time.Hour).ValidateJWT(token)
	assert.Error(t, err)

	_, err = NewTokenManager("", time.Hour).GenerateJWT(&models.User{ID: 1})
	assert.Error(t, err)
}
