package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSAFingerprintFormat(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	fp := RSAFingerprint(&priv.PublicKey)
	parts := strings.Split(fp, ":")
	assert.Len(t, parts, 16)
	for _, p := range parts {
		assert.Len(t, p, 2)
	}
}

func TestRSAFingerprintDeterministic(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	assert.Equal(t, RSAFingerprint(&priv.PublicKey), RSAFingerprint(&priv.PublicKey))
}
