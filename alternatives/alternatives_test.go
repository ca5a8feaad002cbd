package alternatives

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidpkg/xbps-go/model"
	"github.com/voidpkg/xbps-go/pkgdb"
	"github.com/voidpkg/xbps-go/xbpslog"
)

func newTestManager(t *testing.T) (*Manager, *pkgdb.DB, string) {
	t.Helper()
	db, err := pkgdb.Lock(t.TempDir(), xbpslog.New())
	require.NoError(t, err)
	t.Cleanup(func() { db.Release() })

	root := t.TempDir()
	return &Manager{DB: db, RootDir: root}, db, root
}

func TestRegisterNewGroupMaterializesLink(t *testing.T) {
	m, _, root := newTestManager(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr/bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "usr/bin/vim"), nil, 0755))

	pkg := &model.PackageRecord{
		Pkgname: "vim",
		Alternatives: map[string][]model.AlternativeSpec{
			"editor": {{LinkPath: "/usr/bin/editor", TargetPath: "/usr/bin/vim"}},
		},
	}
	require.NoError(t, m.Register(pkg))

	target, err := os.Readlink(filepath.Join(root, "usr/bin/editor"))
	require.NoError(t, err)
	assert.Equal(t, "vim", target)
	assert.Equal(t, []string{"vim"}, m.DB.AlternativeGroupProviders("editor"))
}

func TestRegisterSecondProviderDoesNotTakeOver(t *testing.T) {
	m, db, root := newTestManager(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr/bin"), 0755))
	db.SetAlternativeGroupProviders("editor", []string{"vim"})

	require.NoError(t, os.Symlink("vim", filepath.Join(root, "usr/bin/editor")))

	pkg := &model.PackageRecord{
		Pkgname: "nano",
		Alternatives: map[string][]model.AlternativeSpec{
			"editor": {{LinkPath: "/usr/bin/editor", TargetPath: "/usr/bin/nano"}},
		},
	}
	require.NoError(t, m.Register(pkg))

	assert.Equal(t, []string{"vim", "nano"}, m.DB.AlternativeGroupProviders("editor"))
	target, err := os.Readlink(filepath.Join(root, "usr/bin/editor"))
	require.NoError(t, err)
	assert.Equal(t, "vim", target) // unchanged: nano is not head
}

func TestUnregisterHeadPromotesRemainingProvider(t *testing.T) {
	m, db, root := newTestManager(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr/bin"), 0755))
	require.NoError(t, os.Symlink("vim", filepath.Join(root, "usr/bin/editor")))
	db.SetAlternativeGroupProviders("editor", []string{"vim", "nano"})
	db.Put(&model.PackageRecord{
		Pkgname: "nano",
		Alternatives: map[string][]model.AlternativeSpec{
			"editor": {{LinkPath: "/usr/bin/editor", TargetPath: "/usr/bin/nano"}},
		},
	})

	vim := &model.PackageRecord{
		Pkgname:    "vim",
		RunDepends: []string{"libc"},
		Alternatives: map[string][]model.AlternativeSpec{
			"editor": {{LinkPath: "/usr/bin/editor", TargetPath: "/usr/bin/vim"}},
		},
	}
	require.NoError(t, m.Unregister(vim, true))

	assert.Equal(t, []string{"nano"}, m.DB.AlternativeGroupProviders("editor"))
	target, err := os.Readlink(filepath.Join(root, "usr/bin/editor"))
	require.NoError(t, err)
	assert.Equal(t, "nano", target)
}

func TestUnregisterLastProviderDeletesGroup(t *testing.T) {
	m, db, root := newTestManager(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr/bin"), 0755))
	require.NoError(t, os.Symlink("vim", filepath.Join(root, "usr/bin/editor")))
	db.SetAlternativeGroupProviders("editor", []string{"vim"})

	vim := &model.PackageRecord{
		Pkgname: "vim",
		Alternatives: map[string][]model.AlternativeSpec{
			"editor": {{LinkPath: "/usr/bin/editor", TargetPath: "/usr/bin/vim"}},
		},
	}
	require.NoError(t, m.Unregister(vim, true))

	assert.Empty(t, m.DB.AlternativeGroupProviders("editor"))
	_, err := os.Lstat(filepath.Join(root, "usr/bin/editor"))
	assert.True(t, os.IsNotExist(err))
}
