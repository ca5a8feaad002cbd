package pkgdb

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidpkg/xbps-go/model"
)

func TestForEachCBVisitsAll(t *testing.T) {
	db := openTestDB(t)
	for _, name := range []string{"a", "b", "c"} {
		db.Put(&model.PackageRecord{Pkgname: name, Pkgver: name + "-1.0_1"})
	}

	var count int32
	require.NoError(t, db.ForEachCB(func(pkg *model.PackageRecord) error {
		atomic.AddInt32(&count, 1)
		return nil
	}))
	assert.EqualValues(t, 3, count)
}

func TestForEachCBMultiVisitsAll(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 20; i++ {
		name := string(rune('a' + i))
		db.Put(&model.PackageRecord{Pkgname: name, Pkgver: name + "-1.0_1"})
	}

	var count int32
	err := db.ForEachCBMulti(context.Background(), func(pkg *model.PackageRecord) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 20, count)
}
