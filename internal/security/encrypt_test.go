package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon/internal/security"
)

func TestEncryptRoundTrip(t *testing.T) {
	enc, err := security.NewEncryptor([]byte("some secret of arbitrary length"))
	require.NoError(t, err)

	cipher, err := enc.Encrypt("bonjour")
	require.NoError(t, err)
	assert.NotEqual(t, "bonjour", cipher)

	plain, err := enc.Decrypt(cipher)
	require.NoError(t, err)
	assert.Equal(t, "bonjour", plain)
}

func TestEncryptUniqueNonce(t *testing.T) {
	enc, err := security.NewEncryptor([]byte("key"))
	require.NoError(t, err)

	a, err := enc.Encrypt("same message")
	require.NoError(t, err)
	b, err := enc.Encrypt("same message")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptWrongKey(t *testing.T) {
	enc, err := security.NewEncryptor([]byte("key-one"))
	require.NoError(t, err)
	other, err := security.NewEncryptor([]byte("key-two"))
	require.NoError(t, err)

	cipher, err := enc.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(cipher)
	assert.Error(t, err)
}

func TestEncryptEmptyKeyRejected(t *testing.T) {
	_, err := security.NewEncryptor(nil)
	assert.Error(t, err)
}
