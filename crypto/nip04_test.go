package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptSelf(t *testing.T) {
	keys, err := Generate()
	require.NoError(t, err)

	plaintext := `{"GCounter":{"key":"visitors","increment":5}}`
	content, err := keys.Encrypt(keys.PublicKey(), plaintext)
	require.NoError(t, err)
	assert.True(t, IsEncrypted(content))
	assert.NotContains(t, content, "visitors")

	back, err := keys.Decrypt(keys.PublicKey(), content)
	require.NoError(t, err)
	assert.Equal(t, plaintext, back)
}

func TestEncryptDecryptBetweenPeers(t *testing.T) {
	alice, err := Generate()
	require.NoError(t, err)
	bob, err := Generate()
	require.NoError(t, err)

	content, err := alice.Encrypt(bob.PublicKey(), "for bob")
	require.NoError(t, err)

	// ECDH is symmetric: bob opens it with alice's public key.
	back, err := bob.Decrypt(alice.PublicKey(), content)
	require.NoError(t, err)
	assert.Equal(t, "for bob", back)
}

func TestDecryptWithWrongIdentityFails(t *testing.T) {
	alice, err := Generate()
	require.NoError(t, err)
	eve, err := Generate()
	require.NoError(t, err)

	content, err := alice.Encrypt(alice.PublicKey(), "secret")
	require.NoError(t, err)

	back, err := eve.Decrypt(alice.PublicKey(), content)
	if err == nil {
		// CBC padding can survive by chance; the plaintext cannot.
		assert.NotEqual(t, "secret", back)
	}
}

func TestDecryptRejectsMalformedContent(t *testing.T) {
	keys, err := Generate()
	require.NoError(t, err)

	for _, bad := range []string{
		"no marker at all",
		"notb64?iv=notb64",
		"YWJj?iv=YWJj", // iv wrong length, ct not block-aligned
		"?iv=",
	} {
		_, err := keys.Decrypt(keys.PublicKey(), bad)
		assert.Error(t, err, "input: %s", bad)
	}
}

func TestEncryptUniqueIVs(t *testing.T) {
	keys, err := Generate()
	require.NoError(t, err)

	a, err := keys.Encrypt(keys.PublicKey(), "same plaintext")
	require.NoError(t, err)
	b, err := keys.Encrypt(keys.PublicKey(), "same plaintext")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, ivA, _ := strings.Cut(a, "?iv=")
	_, ivB, _ := strings.Cut(b, "?iv=")
	assert.NotEqual(t, ivA, ivB)
}
