package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"cmms/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() *models.User {
	u := &models.User{TenantID: "t1", Email: "gestor@acme.test", Role: models.RoleGestor}
	u.ID = "u1"
	return u
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", "cmms", time.Minute, time.Hour)

	access, err := issuer.GenerateJWT(testUser())
	require.NoError(t, err)
	claims, err := issuer.Parse(access, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "t1", claims.TenantID)
	assert.Equal(t, models.RoleGestor, claims.Role)
	assert.Equal(t, "cmms", claims.Issuer)

	_, err = issuer.Parse(access, TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer := NewTokenIssuer("secret", "cmms", time.Minute, time.Hour)
	other := NewTokenIssuer("other", "cmms", time.Minute, time.Hour)

	tok, err := other.GenerateJWT(testUser())
	require.NoError(t, err)
	_, err = issuer.Parse(tok, TokenTypeAccess)
	assert.Error(t, err)

	expired := NewTokenIssuer("secret", "cmms", -time.Minute, time.Hour)
	tok, err = expired.GenerateJWT(testUser())
	require.NoError(t, err)
	_, err = issuer.Parse(tok, TokenTypeAccess)
	assert.Error(t, err)
}

func TestNewIPExtractor(t *testing.T) {
	direct, err := NewIPExtractor(nil)
	require.NoError(t, err)
	behindProxy, err := NewIPExtractor([]string{"10.0.0.0/8", "192.0.2.50"})
	require.NoError(t, err)

	cases := []struct {
		name    string
		extract echo.IPExtractor
		xff     string
		remote  string
		want    string
	}{
		{"spoofed header without trusted proxies", direct, "203.0.113.7", "192.0.2.1:5555", "192.0.2.1"},
		{"remote v6", direct, "", "[2001:db8::1]:5555", "2001:db8::1"},
		{"trusted proxy chain", behindProxy, "203.0.113.7, 10.0.0.1", "10.0.0.2:80", "203.0.113.7"},
		{"single trusted host", behindProxy, "203.0.113.9", "192.0.2.50:80", "203.0.113.9"},
		{"client prepends a fake hop", behindProxy, "198.51.100.1, 203.0.113.7", "10.0.0.2:80", "203.0.113.7"},
		{"untrusted peer", behindProxy, "203.0.113.7", "192.0.2.1:5555", "192.0.2.1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set(echo.HeaderXForwardedFor, tc.xff)
			}
			r.Header.Set(echo.HeaderXRealIP, "198.51.100.99")
			assert.Equal(t, tc.want, tc.extract(r))
		})
	}

	_, err = NewIPExtractor([]string{"not-a-cidr"})
	assert.Error(t, err)
}
