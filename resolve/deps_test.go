package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidpkg/xbps-go/model"
)

func TestRepoDepsQueuesTransitiveDependency(t *testing.T) {
	r, _ := newTestResolver(t, map[string]*model.PackageRecord{
		"foo": {Pkgname: "foo", Pkgver: "foo-1.0_1", RunDepends: []string{"bar"}},
		"bar": {Pkgname: "bar", Pkgver: "bar-1.0_1", RunDepends: []string{"baz"}},
		"baz": {Pkgname: "baz", Pkgver: "baz-1.0_1"},
	})

	staged, _, err := r.TransFindPkg("foo", false)
	require.NoError(t, err)

	trans := &model.Transaction{}
	require.NoError(t, r.RepoDeps(trans, staged))

	names := map[string]bool{}
	for _, e := range trans.Packages {
		names[e.Package.Pkgname] = true
		assert.True(t, e.Package.AutomaticInstall)
	}
	assert.True(t, names["bar"])
	assert.True(t, names["baz"])
}

func TestRepoDepsSkipsIgnored(t *testing.T) {
	r, _ := newTestResolver(t, map[string]*model.PackageRecord{
		"foo": {Pkgname: "foo", Pkgver: "foo-1.0_1", RunDepends: []string{"bar"}},
		"bar": {Pkgname: "bar", Pkgver: "bar-1.0_1"},
	})
	r.Ignore["bar"] = true

	staged, _, err := r.TransFindPkg("foo", false)
	require.NoError(t, err)

	trans := &model.Transaction{}
	require.NoError(t, r.RepoDeps(trans, staged))
	assert.Empty(t, trans.Packages)
}

func TestRepoDepsRecordsMissingDep(t *testing.T) {
	r, _ := newTestResolver(t, map[string]*model.PackageRecord{
		"foo": {Pkgname: "foo", Pkgver: "foo-1.0_1", RunDepends: []string{"nonexistent"}},
	})

	staged, _, err := r.TransFindPkg("foo", false)
	require.NoError(t, err)

	trans := &model.Transaction{}
	require.NoError(t, r.RepoDeps(trans, staged))
	assert.Contains(t, trans.MissingDeps, "nonexistent")
}

func TestRepoDepsSkipsAlreadyProvided(t *testing.T) {
	r, _ := newTestResolver(t, map[string]*model.PackageRecord{
		"foo": {Pkgname: "foo", Pkgver: "foo-1.0_1", RunDepends: []string{"editor"}, Provides: []string{"editor-1_1"}},
	})

	staged, _, err := r.TransFindPkg("foo", false)
	require.NoError(t, err)

	trans := &model.Transaction{}
	require.NoError(t, r.RepoDeps(trans, staged))
	assert.Empty(t, trans.Packages)
}
