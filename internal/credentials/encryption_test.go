package credentials

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenEncryption_RoundTrip(t *testing.T) {
	key, err := GenerateEncryptionKey()
	require.NoError(t, err)
	enc, err := NewTokenEncryption(key)
	require.NoError(t, err)
	require.True(t, enc.Enabled())

	ciphertext, err := enc.Encrypt("ya29.secret")
	require.NoError(t, err)
	assert.NotEqual(t, "ya29.secret", ciphertext)

	again, err := enc.Encrypt("ya29.secret")
	require.NoError(t, err)
	assert.NotEqual(t, ciphertext, again, "nonces differ per call")

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "ya29.secret", plaintext)
}

func TestTokenEncryption_Disabled(t *testing.T) {
	enc, err := NewTokenEncryption(nil)
	require.NoError(t, err)
	assert.False(t, enc.Enabled())

	out, err := enc.Encrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", out)

	var nilEnc *TokenEncryption
	assert.False(t, nilEnc.Enabled())
	out, err = nilEnc.Decrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
}

func TestTokenEncryption_WrongKey(t *testing.T) {
	key1, _ := GenerateEncryptionKey()
	key2, _ := GenerateEncryptionKey()
	enc1, err := NewTokenEncryption(key1)
	require.NoError(t, err)
	enc2, err := NewTokenEncryption(key2)
	require.NoError(t, err)

	ciphertext, err := enc1.Encrypt("secret")
	require.NoError(t, err)

	_, err = enc2.Decrypt(ciphertext)
	assert.Error(t, err)

	_, err = enc1.Decrypt("not base64!")
	assert.Error(t, err)

	_, err = enc1.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestNewTokenEncryption_KeyLength(t *testing.T) {
	_, err := NewTokenEncryption([]byte("too-short"))
	assert.Error(t, err)
}

func TestEncryptionKeyFromBase64(t *testing.T) {
	key, err := EncryptionKeyFromBase64("")
	require.NoError(t, err)
	assert.Nil(t, key)

	raw, _ := GenerateEncryptionKey()
	key, err = EncryptionKeyFromBase64(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, key)

	_, err = EncryptionKeyFromBase64(base64.StdEncoding.EncodeToString([]byte("16-bytes-of-key!")))
	assert.Error(t, err)

	_, err = EncryptionKeyFromBase64("%%%")
	assert.Error(t, err)
}
