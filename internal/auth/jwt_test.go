package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key, &key.PublicKey
}

func newTestService(t *testing.T) *JWTService {
	t.Helper()
	priv, pub := generateTestKeys(t)
	svc, err := NewJWTService(JWTConfig{
		PrivateKey:    priv,
		PublicKey:     pub,
		TokenDuration: time.Hour,
		Issuer:        "test-issuer",
	})
	require.NoError(t, err)
	return svc
}

func TestNewJWTService_RequiresKeys(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	assert.Error(t, err)

	priv, _ := generateTestKeys(t)
	_, err = NewJWTService(JWTConfig{PrivateKey: priv})
	assert.Error(t, err)
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestService(t)

	token, expiresAt, err := svc.GenerateToken("user-123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "test-issuer", claims.Issuer)
}

func TestValidateToken_Malformed(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateToken_WrongKey(t *testing.T) {
	svc := newTestService(t)
	other := newTestService(t)

	token, _, err := svc.GenerateToken("user-123")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	priv, pub := generateTestKeys(t)
	svc, err := NewJWTService(JWTConfig{
		PrivateKey:    priv,
		PublicKey:     pub,
		TokenDuration: -time.Minute,
		Issuer:        "test-issuer",
	})
	require.NoError(t, err)

	token, _, err := svc.GenerateToken("user-123")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
