package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute)

	token, err := m.GenerateAccessToken("user-1", "a@x.com", "CUSTOMER")
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.ID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "CUSTOMER", claims.Role)
}

func TestAccessToken_WrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret-a", 15*time.Minute).GenerateAccessToken("user-1", "a@x.com", "CUSTOMER")
	require.NoError(t, err)

	_, err = NewJWTManager("secret-b", 15*time.Minute).ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestAccessToken_Expired(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)

	token, err := m.GenerateAccessToken("user-1", "a@x.com", "CUSTOMER")
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestAccessToken_RejectsNonHMAC(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": "user-1"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestNewRefreshToken_Unique(t *testing.T) {
	a, err := NewRefreshToken()
	require.NoError(t, err)
	b, err := NewRefreshToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	// 48 bytes base64url without padding is 64 characters.
	assert.Len(t, a, 64)
}

func TestHashToken(t *testing.T) {
	h := HashToken("some-token")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("some-token"))
	assert.NotEqual(t, h, HashToken("other-token"))
}
