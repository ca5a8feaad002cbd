package unpack

import (
	"archive/tar"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidpkg/xbps-go/model"
)

func TestReadHeaderParsesPropsAndFiles(t *testing.T) {
	props := &model.PackageRecord{Pkgname: "foo", Pkgver: "foo-1.0_1"}
	files := &model.PackageRecord{Files: []model.FileEntry{{File: "/usr/bin/foo", SHA256: "abc"}}}
	buf := buildArchive(t, props, files, nil)

	tr := tar.NewReader(buf)
	h, err := readHeader(tr)
	require.NoError(t, err)
	assert.Equal(t, "foo-1.0_1", h.Props.Pkgver)
	require.Len(t, h.Files.Files, 1)
	assert.Equal(t, "/usr/bin/foo", h.Files.Files[0].File)
}

func TestReadHeaderCapturesScripts(t *testing.T) {
	var buf = newTarWithScripts(t)
	tr := tar.NewReader(buf)
	h, err := readHeader(tr)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho pre\n", string(h.InstallScript))
	assert.Equal(t, "#!/bin/sh\necho remove\n", string(h.RemoveScript))
}

func TestReadHeaderMissingFilesPlistIsNoDevice(t *testing.T) {
	props := &model.PackageRecord{Pkgname: "foo", Pkgver: "foo-1.0_1"}

	var buf = buildArchiveNoFiles(t, props)
	tr := tar.NewReader(buf)
	_, err := readHeader(tr)
	assert.ErrorIs(t, err, syscall.ENODEV)
}
