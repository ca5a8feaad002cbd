package unpack

import (
	"archive/tar"
	"bytes"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"

	"github.com/voidpkg/xbps-go/model"
)

type fixtureEntry struct {
	name string
	mode int64
	body []byte
	link string
	dir  bool
}

func buildArchive(t *testing.T, props *model.PackageRecord, files *model.PackageRecord, payload []fixtureEntry) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	var propsBuf bytes.Buffer
	require.NoError(t, toml.NewEncoder(&propsBuf).Encode(props))
	writeFixture(t, tw, "./props.plist", propsBuf.Bytes())

	doc := filesDoc{Files: files.Files, ConfFiles: files.ConfFiles, Links: files.Links, Dirs: files.Dirs}
	var filesBuf bytes.Buffer
	require.NoError(t, toml.NewEncoder(&filesBuf).Encode(doc))
	writeFixture(t, tw, "./files.plist", filesBuf.Bytes())

	for _, e := range payload {
		now := time.Unix(0, 0)
		switch {
		case e.dir:
			require.NoError(t, tw.WriteHeader(&tar.Header{Name: e.name, Typeflag: tar.TypeDir, Mode: 0755, ModTime: now}))
		case e.link != "":
			require.NoError(t, tw.WriteHeader(&tar.Header{Name: e.name, Typeflag: tar.TypeSymlink, Linkname: e.link, Mode: 0777, ModTime: now}))
		default:
			mode := e.mode
			if mode == 0 {
				mode = 0644
			}
			require.NoError(t, tw.WriteHeader(&tar.Header{Name: e.name, Typeflag: tar.TypeReg, Size: int64(len(e.body)), Mode: mode, ModTime: now}))
			_, err := tw.Write(e.body)
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return &buf
}

func writeFixture(t *testing.T, tw *tar.Writer, name string, body []byte) {
	t.Helper()
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Size: int64(len(body)), Mode: 0644}))
	_, err := tw.Write(body)
	require.NoError(t, err)
}

func newTarWithScripts(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	writeFixture(t, tw, "./INSTALL", []byte("#!/bin/sh\necho pre\n"))
	writeFixture(t, tw, "./REMOVE", []byte("#!/bin/sh\necho remove\n"))

	var propsBuf bytes.Buffer
	require.NoError(t, toml.NewEncoder(&propsBuf).Encode(&model.PackageRecord{Pkgname: "foo", Pkgver: "foo-1.0_1"}))
	writeFixture(t, tw, "./props.plist", propsBuf.Bytes())

	var filesBuf bytes.Buffer
	require.NoError(t, toml.NewEncoder(&filesBuf).Encode(filesDoc{}))
	writeFixture(t, tw, "./files.plist", filesBuf.Bytes())

	require.NoError(t, tw.Close())
	return &buf
}

func buildArchiveNoFiles(t *testing.T, props *model.PackageRecord) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	var propsBuf bytes.Buffer
	require.NoError(t, toml.NewEncoder(&propsBuf).Encode(props))
	writeFixture(t, tw, "./props.plist", propsBuf.Bytes())

	require.NoError(t, tw.Close())
	return &buf
}
