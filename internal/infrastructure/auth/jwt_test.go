package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedConfig "checkoutgo/internal/shared/config"
)

func TestJWTService_GenerateAndVerify(t *testing.T) {
	svc := NewJWTService(sharedConfig.JWTConfig{Secret: "test-secret", AccessExpMinutes: 15})

	token, err := svc.Generate("merchant_123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "merchant_123", claims.MerchantID)
	assert.NotNil(t, claims.ExpiresAt)
}

func TestJWTService_Verify_WrongSecret(t *testing.T) {
	svc := NewJWTService(sharedConfig.JWTConfig{Secret: "test-secret", AccessExpMinutes: 15})
	other := NewJWTService(sharedConfig.JWTConfig{Secret: "other-secret", AccessExpMinutes: 15})

	token, err := svc.Generate("merchant_123")
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestJWTService_Verify_Garbage(t *testing.T) {
	svc := NewJWTService(sharedConfig.JWTConfig{Secret: "test-secret", AccessExpMinutes: 15})

	_, err := svc.Verify("not-a-token")
	assert.Error(t, err)
}

func TestJWTService_Verify_Expired(t *testing.T) {
	svc := NewJWTService(sharedConfig.JWTConfig{Secret: "test-secret", AccessExpMinutes: -1})

	token, err := svc.Generate("merchant_123")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.Error(t, err)
}
