package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseClaims(t *testing.T, svc *Service, tokenString string) jwt.MapClaims {
	t.Helper()

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return svc.jwtSecret, nil
	})
	require.NoError(t, err)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	return claims
}

func TestGenerateTokenInvalidCredentials(t *testing.T) {
	svc := NewService("secret")
	svc.RegisterAPICredentials("key-1", "secret-1", "user-1")

	_, err := svc.GenerateToken(Credentials{APIKey: "key-1", APISecret: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.GenerateToken(Credentials{APIKey: "unknown", APISecret: "secret-1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestDashboardTokenClaims(t *testing.T) {
	svc := NewService("secret")
	svc.RegisterAPICredentials("key-1", "secret-1", "user-1")

	token, err := svc.GenerateToken(Credentials{APIKey: "key-1", APISecret: "secret-1"})
	require.NoError(t, err)

	claims := parseClaims(t, svc, token.Token)
	assert.Equal(t, "user-1", GetUserID(claims))
	assert.True(t, HasPermission(claims, "accounts"))
	assert.False(t, HasPermission(claims, "internal"), "dashboard tokens never carry internal")
}

func TestInternalTokenClaims(t *testing.T) {
	svc := NewService("secret")
	svc.RegisterInternalCredentials("admin-key", "admin-secret", "admin@moneyx.io")

	token, err := svc.GenerateToken(Credentials{APIKey: "admin-key", APISecret: "admin-secret"})
	require.NoError(t, err)

	claims := parseClaims(t, svc, token.Token)
	assert.Equal(t, "admin@moneyx.io", GetUserID(claims))
	assert.True(t, HasPermission(claims, "internal"))
	assert.True(t, HasPermission(claims, "accounts"))
}

func TestClaimHelpersMalformedInput(t *testing.T) {
	assert.Empty(t, GetUserID(nil))
	assert.Empty(t, GetUserID("not-claims"))
	assert.False(t, HasPermission(nil, "internal"))
	assert.False(t, HasPermission(jwt.MapClaims{"permissions": "not-a-list"}, "internal"))
}
