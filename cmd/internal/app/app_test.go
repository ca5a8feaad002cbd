package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDefaultsRootDirAndCacheDir(t *testing.T) {
	root := t.TempDir()

	a, err := Open("", root, "x86_64", "")
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, root, a.Config.RootDir)
	assert.Equal(t, "x86_64", a.Config.Architecture)
	assert.NotEmpty(t, a.Config.CacheDir)
}

func TestOpenPoolWithNoRepositoriesReturnsEmptyPool(t *testing.T) {
	root := t.TempDir()

	a, err := Open("", root, "x86_64", "")
	require.NoError(t, err)
	defer a.Close()

	pool, err := a.OpenPool()
	require.NoError(t, err)
	assert.Empty(t, pool.Repos)
}

func TestTrustedKeyMapEmptyWhenNoKeyTrusted(t *testing.T) {
	root := t.TempDir()

	a, err := Open("", root, "x86_64", "")
	require.NoError(t, err)
	defer a.Close()

	pool, err := a.OpenPool()
	require.NoError(t, err)

	assert.Empty(t, a.TrustedKeyMap(pool))
}
