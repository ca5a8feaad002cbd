package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidpkg/xbps-go/crypto"
)

func TestTrustThenGetRoundTrips(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, pk, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	require.NoError(t, s.Trust("https://repo.example/current", pk))

	got, ok := s.Get(pk.KeyNumHex())
	require.True(t, ok)
	assert.Equal(t, pk.Encode(), got.Encode())
}

func TestRevokeRemovesKey(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, pk, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, s.Trust("https://repo.example/current", pk))

	require.NoError(t, s.Revoke(pk.KeyNumHex()))
	_, ok := s.Get(pk.KeyNumHex())
	assert.False(t, ok)
}

func TestAllLoadsEveryTrustedKey(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, pk1, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	_, pk2, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, s.Trust("https://repo.example/current", pk1))
	require.NoError(t, s.Trust("https://repo.example/other", pk2))

	all, err := s.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
