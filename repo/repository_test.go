package repo

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidpkg/xbps-go/model"
)

func writeLocalRepo(t *testing.T, dir, architecture string, members repodataMembers) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, writeRepodataArchive(&buf, members))
	require.NoError(t, os.WriteFile(filepath.Join(dir, architecture+"-repodata"), buf.Bytes(), 0644))
}

func indexToml(t *testing.T, pkgs map[string]*model.PackageRecord) []byte {
	t.Helper()
	var buf bytes.Buffer
	doc := struct {
		Packages map[string]*model.PackageRecord `toml:"packages"`
	}{Packages: pkgs}
	require.NoError(t, toml.NewEncoder(&buf).Encode(doc))
	return buf.Bytes()
}

func TestOpenLocalRepositoryAndGetPkg(t *testing.T) {
	dir := t.TempDir()
	pkgs := map[string]*model.PackageRecord{
		"foo": {Pkgver: "foo-1.0_1", Architecture: "x86_64"},
	}
	writeLocalRepo(t, dir, "x86_64", repodataMembers{
		"index.toml": indexToml(t, pkgs),
	})

	r, err := Open(dir, "x86_64", t.TempDir(), nil, nil)
	require.NoError(t, err)

	rec, ok := r.GetPkg("foo")
	require.True(t, ok)
	assert.Equal(t, "foo-1.0_1", rec.Pkgver)
	assert.Equal(t, dir, rec.Repository)
}

func TestOpenMissingRepodataYieldsEmptyIndex(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir, "x86_64", t.TempDir(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, r.All())
}

func TestStageOverridesIndex(t *testing.T) {
	dir := t.TempDir()
	writeLocalRepo(t, dir, "x86_64", repodataMembers{
		"index.toml": indexToml(t, map[string]*model.PackageRecord{
			"foo": {Pkgver: "foo-1.0_1"},
		}),
		"stage.toml": indexToml(t, map[string]*model.PackageRecord{
			"foo": {Pkgver: "foo-1.1_1"},
		}),
	})

	r, err := Open(dir, "x86_64", t.TempDir(), nil, nil)
	require.NoError(t, err)

	rec, ok := r.GetPkg("foo")
	require.True(t, ok)
	assert.Equal(t, "foo-1.1_1", rec.Pkgver)
}

func TestGetVirtualPkg(t *testing.T) {
	dir := t.TempDir()
	writeLocalRepo(t, dir, "x86_64", repodataMembers{
		"index.toml": indexToml(t, map[string]*model.PackageRecord{
			"vim": {Pkgver: "vim-9.0_1", Provides: []string{"editor-1_1"}},
		}),
	})

	r, err := Open(dir, "x86_64", t.TempDir(), nil, nil)
	require.NoError(t, err)

	rec, ok := r.GetVirtualPkg("editor")
	require.True(t, ok)
	assert.Equal(t, "vim", rec.Pkgname)
}
