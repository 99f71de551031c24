package security_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon/internal/security"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := security.NewTokenService("test-secret", time.Hour)

	token, err := svc.CreateForUser("user-42")
	require.NoError(t, err)

	sub, err := svc.Subject(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", sub)
}

func TestTokenWrongSecret(t *testing.T) {
	svc := security.NewTokenService("test-secret", time.Hour)
	other := security.NewTokenService("other-secret", time.Hour)

	token, err := svc.CreateForUser("user-42")
	require.NoError(t, err)

	_, err = other.Subject(token)
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	svc := security.NewTokenService("test-secret", time.Hour)

	token, err := svc.CreateWithTTL("user-42", -time.Minute)
	require.NoError(t, err)

	_, err = svc.Subject(token)
	assert.Error(t, err)
}

func TestTokenGarbage(t *testing.T) {
	svc := security.NewTokenService("test-secret", time.Hour)
	_, err := svc.Subject("not-a-token")
	assert.Error(t, err)
}
