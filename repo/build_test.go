package repo

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidpkg/xbps-go/crypto"
	"github.com/voidpkg/xbps-go/model"
)

type buildFilesDoc struct {
	Files     []model.FileEntry `toml:"files,omitempty"`
	ConfFiles []model.FileEntry `toml:"conf_files,omitempty"`
	Links     []model.FileEntry `toml:"links,omitempty"`
	Dirs      []model.FileEntry `toml:"dirs,omitempty"`
}

func writeTestPackage(t *testing.T, dir, name, arch string, props *model.PackageRecord) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name+"."+arch+".xbps"))
	require.NoError(t, err)
	defer f.Close()

	tw := tar.NewWriter(f)
	now := time.Unix(0, 0)

	var propsBuf bytes.Buffer
	require.NoError(t, toml.NewEncoder(&propsBuf).Encode(props))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "./props.plist", Typeflag: tar.TypeReg, Size: int64(propsBuf.Len()), Mode: 0644, ModTime: now}))
	_, err = tw.Write(propsBuf.Bytes())
	require.NoError(t, err)

	doc := buildFilesDoc{Files: props.Files}
	var filesBuf bytes.Buffer
	require.NoError(t, toml.NewEncoder(&filesBuf).Encode(doc))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "./files.plist", Typeflag: tar.TypeReg, Size: int64(filesBuf.Len()), Mode: 0644, ModTime: now}))
	_, err = tw.Write(filesBuf.Bytes())
	require.NoError(t, err)

	for _, fe := range props.Files {
		body := []byte("payload:" + fe.File)
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: "." + fe.File, Typeflag: tar.TypeReg, Size: int64(len(body)), Mode: 0644, ModTime: now}))
		_, err = tw.Write(body)
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
}

func TestBuildIndexCollectsOnlyMatchingArchSuffix(t *testing.T) {
	dir := t.TempDir()
	writeTestPackage(t, dir, "foo", "x86_64", &model.PackageRecord{
		Pkgname: "foo", Pkgver: "foo-1.0_1", Architecture: "x86_64",
		Files: []model.FileEntry{{File: "/usr/bin/foo"}},
	})
	writeTestPackage(t, dir, "bar", "aarch64", &model.PackageRecord{
		Pkgname: "bar", Pkgver: "bar-2.0_1", Architecture: "aarch64",
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("not a package"), 0644))

	index, err := BuildIndex(dir, "x86_64")
	require.NoError(t, err)

	require.Contains(t, index, "foo")
	assert.NotContains(t, index, "bar")
	assert.Equal(t, "foo-1.0_1", index["foo"].Pkgver)
	assert.NotEmpty(t, index["foo"].FilenameSHA256)
	assert.NotZero(t, index["foo"].FilenameSize)
}

func TestWriteRepodataUnsignedRoundTripsThroughOpen(t *testing.T) {
	dir := t.TempDir()
	writeTestPackage(t, dir, "foo", "x86_64", &model.PackageRecord{
		Pkgname: "foo", Pkgver: "foo-1.0_1", Architecture: "x86_64",
	})
	index, err := BuildIndex(dir, "x86_64")
	require.NoError(t, err)

	path, err := WriteRepodata(dir, "x86_64", index, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "x86_64-repodata"), path)
	_, err = os.Stat(path + ".sig")
	assert.True(t, os.IsNotExist(err))

	repository, err := Open(dir, "x86_64", "", nil, nil)
	require.NoError(t, err)
	pkg, ok := repository.GetPkg("foo")
	require.True(t, ok)
	assert.Equal(t, "foo-1.0_1", pkg.Pkgver)
}

func TestWriteRepodataSignedProducesDetachedSignature(t *testing.T) {
	dir := t.TempDir()
	writeTestPackage(t, dir, "foo", "x86_64", &model.PackageRecord{
		Pkgname: "foo", Pkgver: "foo-1.0_1", Architecture: "x86_64",
	})
	index, err := BuildIndex(dir, "x86_64")
	require.NoError(t, err)

	sk, pk, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	path, err := WriteRepodata(dir, "x86_64", index, sk)
	require.NoError(t, err)

	sig, err := os.ReadFile(path + ".sig")
	require.NoError(t, err)
	assert.Contains(t, string(sig), "signify/minisign signature")

	m, err := crypto.DecodeMinisig(bytes.NewReader(sig))
	require.NoError(t, err)
	require.NoError(t, crypto.Verify(pk, path, m))
}
