package unpack

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidpkg/xbps-go/internal/xbpsutil"
	"github.com/voidpkg/xbps-go/model"
	"github.com/voidpkg/xbps-go/xbpslog"
)

func TestUnpackFreshInstall(t *testing.T) {
	root := t.TempDir()
	props := &model.PackageRecord{Pkgname: "foo", Pkgver: "foo-1.0_1"}
	files := &model.PackageRecord{Files: []model.FileEntry{{File: "/usr/bin/foo", SHA256: xbpsutil.BytesSHA256([]byte("binary"))}}}
	buf := buildArchive(t, props, files, []fixtureEntry{
		{name: "./usr/bin/foo", body: []byte("binary"), mode: 0755},
	})

	e := &Engine{RootDir: root, Sink: &xbpslog.RecordingSink{}}
	res, err := e.Unpack(tar.NewReader(buf), "foo-1.0_1", nil)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/foo", res.Files.Files[0].File)

	body, err := os.ReadFile(filepath.Join(root, "usr/bin/foo"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(body))
}

func TestUnpackRejectsPkgverMismatch(t *testing.T) {
	root := t.TempDir()
	props := &model.PackageRecord{Pkgname: "foo", Pkgver: "foo-1.0_1"}
	files := &model.PackageRecord{}
	buf := buildArchive(t, props, files, nil)

	e := &Engine{RootDir: root}
	_, err := e.Unpack(tar.NewReader(buf), "foo-2.0_1", nil)
	assert.Error(t, err)
}

func TestUnpackSkipsPreservedExistingFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "etc/keep.conf"), []byte("local"), 0644))

	props := &model.PackageRecord{Pkgname: "foo", Pkgver: "foo-1.0_1"}
	files := &model.PackageRecord{Files: []model.FileEntry{{File: "/etc/keep.conf"}}}
	buf := buildArchive(t, props, files, []fixtureEntry{
		{name: "./etc/keep.conf", body: []byte("fromarchive")},
	})

	e := &Engine{RootDir: root, PreserveList: []string{"/etc/keep.conf"}}
	_, err := e.Unpack(tar.NewReader(buf), "foo-1.0_1", nil)
	require.NoError(t, err)

	body, err := os.ReadFile(filepath.Join(root, "etc/keep.conf"))
	require.NoError(t, err)
	assert.Equal(t, "local", string(body))
}

func TestUnpackSkipsUnchangedHashMatch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr/bin"), 0755))
	path := filepath.Join(root, "usr/bin/foo")
	require.NoError(t, os.WriteFile(path, []byte("same"), 0600))
	before, err := os.Stat(path)
	require.NoError(t, err)

	props := &model.PackageRecord{Pkgname: "foo", Pkgver: "foo-1.0_1"}
	files := &model.PackageRecord{Files: []model.FileEntry{{File: "/usr/bin/foo", SHA256: xbpsutil.BytesSHA256([]byte("same"))}}}
	buf := buildArchive(t, props, files, []fixtureEntry{
		{name: "./usr/bin/foo", body: []byte("same"), mode: 0755},
	})

	e := &Engine{RootDir: root}
	_, err = e.Unpack(tar.NewReader(buf), "foo-1.0_1", nil)
	require.NoError(t, err)

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotEqual(t, before.Mode(), after.Mode()) // mode still synced despite body skip
}

func TestUnpackConffileKeepsLocalEdit(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc"), 0755))
	path := filepath.Join(root, "etc/app.conf")
	require.NoError(t, os.WriteFile(path, []byte("edited"), 0644))

	old := &model.PackageRecord{
		Pkgname: "foo", Pkgver: "foo-1.0_1",
		ConfFiles: []model.FileEntry{{File: "/etc/app.conf", SHA256: xbpsutil.BytesSHA256([]byte("orig"))}},
	}

	props := &model.PackageRecord{Pkgname: "foo", Pkgver: "foo-2.0_1"}
	files := &model.PackageRecord{ConfFiles: []model.FileEntry{{File: "/etc/app.conf", SHA256: xbpsutil.BytesSHA256([]byte("orig"))}}}
	buf := buildArchive(t, props, files, []fixtureEntry{
		{name: "./etc/app.conf", body: []byte("orig")},
	})

	e := &Engine{RootDir: root}
	_, err := e.Unpack(tar.NewReader(buf), "foo-2.0_1", old)
	require.NoError(t, err)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "edited", string(body))
}

func TestUnpackConffileInstallsNewAsideWhenAllThreeDiffer(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc"), 0755))
	path := filepath.Join(root, "etc/app.conf")
	require.NoError(t, os.WriteFile(path, []byte("edited"), 0644))

	old := &model.PackageRecord{
		Pkgname: "foo", Pkgver: "foo-1.0_1",
		ConfFiles: []model.FileEntry{{File: "/etc/app.conf", SHA256: xbpsutil.BytesSHA256([]byte("orig"))}},
	}

	props := &model.PackageRecord{Pkgname: "foo", Pkgver: "foo-2.0_1"}
	files := &model.PackageRecord{ConfFiles: []model.FileEntry{{File: "/etc/app.conf", SHA256: xbpsutil.BytesSHA256([]byte("upstream"))}}}
	buf := buildArchive(t, props, files, []fixtureEntry{
		{name: "./etc/app.conf", body: []byte("upstream")},
	})

	e := &Engine{RootDir: root}
	_, err := e.Unpack(tar.NewReader(buf), "foo-2.0_1", old)
	require.NoError(t, err)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "edited", string(body))

	newCopy, err := os.ReadFile(path + ".new-2.0_1")
	require.NoError(t, err)
	assert.Equal(t, "upstream", string(newCopy))
}

func TestUnpackRemovesObsoleteUnchangedFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr/share"), 0755))
	obsolete := filepath.Join(root, "usr/share/old.dat")
	require.NoError(t, os.WriteFile(obsolete, []byte("stale"), 0644))

	old := &model.PackageRecord{
		Pkgname: "foo", Pkgver: "foo-1.0_1",
		Files: []model.FileEntry{{File: "/usr/share/old.dat", SHA256: xbpsutil.BytesSHA256([]byte("stale"))}},
	}

	props := &model.PackageRecord{Pkgname: "foo", Pkgver: "foo-2.0_1"}
	files := &model.PackageRecord{}
	buf := buildArchive(t, props, files, nil)

	e := &Engine{RootDir: root, Sink: &xbpslog.RecordingSink{}}
	_, err := e.Unpack(tar.NewReader(buf), "foo-2.0_1", old)
	require.NoError(t, err)

	_, err = os.Stat(obsolete)
	assert.True(t, os.IsNotExist(err))
}

func TestUnpackKeepsObsoleteIfUserModified(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr/share"), 0755))
	path := filepath.Join(root, "usr/share/old.dat")
	require.NoError(t, os.WriteFile(path, []byte("edited"), 0644))

	old := &model.PackageRecord{
		Pkgname: "foo", Pkgver: "foo-1.0_1",
		Files: []model.FileEntry{{File: "/usr/share/old.dat", SHA256: xbpsutil.BytesSHA256([]byte("stale"))}},
	}

	props := &model.PackageRecord{Pkgname: "foo", Pkgver: "foo-2.0_1"}
	files := &model.PackageRecord{}
	buf := buildArchive(t, props, files, nil)

	e := &Engine{RootDir: root}
	_, err := e.Unpack(tar.NewReader(buf), "foo-2.0_1", old)
	require.NoError(t, err)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "edited", string(body))
}
