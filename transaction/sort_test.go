package transaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidpkg/xbps-go/model"
)

func indexOf(t *testing.T, entries []model.TransactionEntry, name string) int {
	t.Helper()
	for i, e := range entries {
		if e.Package.Pkgname == name {
			return i
		}
	}
	require.Failf(t, "package not found", "%s not in sorted list", name)
	return -1
}

func TestSortRunDependencyBeforeDependent(t *testing.T) {
	db := newTestDB(t)

	entries := []model.TransactionEntry{
		{Package: &model.PackageRecord{Pkgname: "app", Pkgver: "app-1.0_1", RunDepends: []string{"lib>=0"}}, Action: model.ActionInstall},
		{Package: &model.PackageRecord{Pkgname: "lib", Pkgver: "lib-1.0_1"}, Action: model.ActionInstall},
	}

	out := Sort(db, entries)
	require.Len(t, out, 2)
	assert.Less(t, indexOf(t, out, "lib"), indexOf(t, out, "app"))
}

func TestSortMovesDepBeforeDependentWhenDiscoveredLater(t *testing.T) {
	db := newTestDB(t)

	entries := []model.TransactionEntry{
		{Package: &model.PackageRecord{Pkgname: "lib", Pkgver: "lib-1.0_1"}, Action: model.ActionInstall},
		{Package: &model.PackageRecord{Pkgname: "app", Pkgver: "app-1.0_1", RunDepends: []string{"lib>=0"}}, Action: model.ActionInstall},
	}

	out := Sort(db, entries)
	require.Len(t, out, 2)
	assert.Less(t, indexOf(t, out, "lib"), indexOf(t, out, "app"))
}

func TestSortRemovalsComeFirst(t *testing.T) {
	db := newTestDB(t)

	entries := []model.TransactionEntry{
		{Package: &model.PackageRecord{Pkgname: "app", Pkgver: "app-1.0_1"}, Action: model.ActionInstall},
		{Package: &model.PackageRecord{Pkgname: "old", Pkgver: "old-1.0_1"}, Action: model.ActionRemove},
	}

	out := Sort(db, entries)
	require.Len(t, out, 2)
	assert.Less(t, indexOf(t, out, "old"), indexOf(t, out, "app"))
}

func TestSortDropsSelfEdge(t *testing.T) {
	db := newTestDB(t)

	entries := []model.TransactionEntry{
		{Package: &model.PackageRecord{Pkgname: "weird", Pkgver: "weird-1.0_1", RunDepends: []string{"weird>=0"}}, Action: model.ActionInstall},
	}

	out := Sort(db, entries)
	require.Len(t, out, 1)
	assert.Equal(t, "weird", out[0].Package.Pkgname)
}

func TestSortIgnoresDependencySatisfiedOutsideTransaction(t *testing.T) {
	db := newTestDB(t)
	db.Put(&model.PackageRecord{Pkgname: "lib", Pkgver: "lib-1.0_1", State: model.StateInstalled})

	entries := []model.TransactionEntry{
		{Package: &model.PackageRecord{Pkgname: "app", Pkgver: "app-1.0_1", RunDepends: []string{"lib>=0"}}, Action: model.ActionInstall},
	}

	out := Sort(db, entries)
	require.Len(t, out, 1)
	assert.Equal(t, "app", out[0].Package.Pkgname)
}

func TestSortPreservesChainOrder(t *testing.T) {
	db := newTestDB(t)

	entries := []model.TransactionEntry{
		{Package: &model.PackageRecord{Pkgname: "top", Pkgver: "top-1.0_1", RunDepends: []string{"mid>=0"}}, Action: model.ActionInstall},
		{Package: &model.PackageRecord{Pkgname: "mid", Pkgver: "mid-1.0_1", RunDepends: []string{"bottom>=0"}}, Action: model.ActionInstall},
		{Package: &model.PackageRecord{Pkgname: "bottom", Pkgver: "bottom-1.0_1"}, Action: model.ActionInstall},
	}

	out := Sort(db, entries)
	require.Len(t, out, 3)
	assert.Less(t, indexOf(t, out, "bottom"), indexOf(t, out, "mid"))
	assert.Less(t, indexOf(t, out, "mid"), indexOf(t, out, "top"))
}
