package commit

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidpkg/xbps-go/alternatives"
	"github.com/voidpkg/xbps-go/internal/xbpsutil"
	"github.com/voidpkg/xbps-go/model"
	"github.com/voidpkg/xbps-go/pkgdb"
	"github.com/voidpkg/xbps-go/transaction"
	"github.com/voidpkg/xbps-go/unpack"
	"github.com/voidpkg/xbps-go/xbpslog"
)

type filesDocFixture struct {
	Files     []model.FileEntry `toml:"files"`
	ConfFiles []model.FileEntry `toml:"conf_files"`
	Links     []model.FileEntry `toml:"links"`
	Dirs      []model.FileEntry `toml:"dirs"`
}

// buildPackageArchive writes a minimal, uncompressed xbps-shaped tar
// archive (props.plist, files.plist, one regular file per entry of
// files) and returns its
// raw bytes, mirroring unpack's own archive fixtures one layer up.
func buildPackageArchive(t *testing.T, props *model.PackageRecord, files []model.FileEntry, installMsg []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	if len(installMsg) > 0 {
		props.InstallMsg = installMsg
	}
	var propsBuf bytes.Buffer
	require.NoError(t, toml.NewEncoder(&propsBuf).Encode(props))
	writeMember(t, tw, "./props.plist", propsBuf.Bytes())

	var filesBuf bytes.Buffer
	require.NoError(t, toml.NewEncoder(&filesBuf).Encode(filesDocFixture{Files: files}))
	writeMember(t, tw, "./files.plist", filesBuf.Bytes())

	for _, f := range files {
		body := []byte("payload:" + f.File)
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: "." + f.File, Typeflag: tar.TypeReg, Size: int64(len(body)), Mode: 0644}))
		_, err := tw.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func writeMember(t *testing.T, tw *tar.Writer, name string, body []byte) {
	t.Helper()
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Size: int64(len(body)), Mode: 0644}))
	_, err := tw.Write(body)
	require.NoError(t, err)
}

// newTestOrchestrator wires a full Orchestrator against a fresh pkgdb
// and rootdir, the same way a CLI frontend would.
func newTestOrchestrator(t *testing.T, sink xbpslog.EventSink) (*Orchestrator, *pkgdb.DB, string) {
	t.Helper()
	root := t.TempDir()
	db, err := pkgdb.Lock(root, xbpslog.New())
	require.NoError(t, err)
	t.Cleanup(func() { db.Release() })

	o := &Orchestrator{
		DB:       db,
		RootDir:  root,
		Arch:     "x86_64",
		CacheDir: t.TempDir(),
		Checker:  &transaction.Checker{DB: db},
		Alt:      &alternatives.Manager{DB: db, RootDir: root, Sink: sink},
		Unpack:   &unpack.Engine{RootDir: root, Sink: sink},
		Sink:     sink,
	}
	return o, db, root
}

func TestCommitInstallsFetchesUnpacksRegistersAndConfigures(t *testing.T) {
	sink := &xbpslog.RecordingSink{}
	o, db, root := newTestOrchestrator(t, sink)

	files := []model.FileEntry{{File: "/usr/bin/bar", SHA256: xbpsutil.BytesSHA256([]byte("payload:/usr/bin/bar"))}}
	archiveBytes := buildPackageArchive(t, &model.PackageRecord{Pkgname: "bar", Pkgver: "bar-1.0_1", Architecture: "x86_64"}, files, []byte("welcome to bar"))

	repoDir := t.TempDir()
	archivePath := filepath.Join(repoDir, "bar-1.0_1.x86_64.xbps")
	require.NoError(t, os.WriteFile(archivePath, archiveBytes, 0644))

	trans := &model.Transaction{Packages: []model.TransactionEntry{
		{
			Action: model.ActionInstall,
			Package: &model.PackageRecord{
				Pkgname: "bar", Pkgver: "bar-1.0_1", Architecture: "x86_64",
				Repository:     repoDir,
				FilenameSHA256: xbpsutil.BytesSHA256(archiveBytes),
			},
		},
	}}

	require.NoError(t, o.Commit(trans))

	installed, ok := db.GetPkg("bar")
	require.True(t, ok)
	assert.Equal(t, model.StateInstalled, installed.State)
	assert.NotEmpty(t, installed.InstallDate)
	assert.NotEmpty(t, installed.MetafileSHA256)

	body, err := os.ReadFile(filepath.Join(root, "usr/bin/bar"))
	require.NoError(t, err)
	assert.Equal(t, "payload:/usr/bin/bar", string(body))

	var sawInstallMsg bool
	for _, ev := range sink.Events {
		if ev.State == xbpslog.ShowInstallMsg && ev.Pkgname == "bar" {
			sawInstallMsg = true
		}
	}
	assert.True(t, sawInstallMsg)
}

func TestCommitRemoveUnlinksFilesAndDrops(t *testing.T) {
	sink := &xbpslog.RecordingSink{}
	o, db, root := newTestOrchestrator(t, sink)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr/bin"), 0755))
	path := filepath.Join(root, "usr/bin/baz")
	require.NoError(t, os.WriteFile(path, []byte("gone-soon"), 0644))

	db.Put(&model.PackageRecord{
		Pkgname: "baz", Pkgver: "baz-1.0_1", State: model.StateInstalled,
		Files: []model.FileEntry{{File: "/usr/bin/baz", SHA256: xbpsutil.BytesSHA256([]byte("gone-soon"))}},
	})

	trans := &model.Transaction{Packages: []model.TransactionEntry{
		{Action: model.ActionRemove, Package: &model.PackageRecord{Pkgname: "baz", Pkgver: "baz-1.0_1"}},
	}}

	require.NoError(t, o.Commit(trans))

	_, ok := db.GetPkg("baz")
	assert.False(t, ok)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCommitDownloadOnlyStopsBeforeUnpack(t *testing.T) {
	sink := &xbpslog.RecordingSink{}
	o, db, root := newTestOrchestrator(t, sink)
	o.DownloadOnly = true

	files := []model.FileEntry{{File: "/usr/bin/qux", SHA256: xbpsutil.BytesSHA256([]byte("payload:/usr/bin/qux"))}}
	archiveBytes := buildPackageArchive(t, &model.PackageRecord{Pkgname: "qux", Pkgver: "qux-1.0_1"}, files, nil)

	repoDir := t.TempDir()
	archivePath := filepath.Join(repoDir, "qux-1.0_1.x86_64.xbps")
	require.NoError(t, os.WriteFile(archivePath, archiveBytes, 0644))

	trans := &model.Transaction{Packages: []model.TransactionEntry{
		{
			Action: model.ActionDownload,
			Package: &model.PackageRecord{
				Pkgname: "qux", Pkgver: "qux-1.0_1",
				Repository:     repoDir,
				FilenameSHA256: xbpsutil.BytesSHA256(archiveBytes),
			},
		},
	}}

	require.NoError(t, o.Commit(trans))

	_, ok := db.GetPkg("qux")
	assert.False(t, ok)
	_, err := os.Stat(filepath.Join(root, "usr/bin/qux"))
	assert.True(t, os.IsNotExist(err))
}

func TestConfigureIsIdempotentOnceInstalled(t *testing.T) {
	sink := &xbpslog.RecordingSink{}
	o, db, _ := newTestOrchestrator(t, sink)

	pkg := &model.PackageRecord{Pkgname: "quux", Pkgver: "quux-1.0_1", State: model.StateInstalled, InstallMsg: []byte("hi")}
	db.Put(pkg)

	require.NoError(t, o.Configure(pkg))

	for _, ev := range sink.Events {
		assert.NotEqual(t, xbpslog.ShowInstallMsg, ev.State)
	}
}
