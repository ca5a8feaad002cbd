// Package unpack implements the per-package extraction engine of
// spec.md §4.9: header parsing, conf-file three-way merge, payload
// extraction with preserve/force/hash-skip rules, and obsolete-file
// diffing. Grounded on the teacher's tar-writing style (holo-build/
// common/tar.go) read in reverse as a tar-reading pipeline, and on
// original_source/lib/unpack_cb.c for extraction step ordering.
package unpack

import (
	"archive/tar"
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/voidpkg/xbps-go/errs"
)

// magic byte sequences used to sniff the compression format of a
// package archive, checked in the order spec §4.9 lists them.
var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicBzip2 = []byte{'B', 'Z', 'h'}
	magicXz    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicZstd  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicLz4   = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Open wraps r in a *tar.Reader after sniffing and decompressing
// whichever of gzip/bzip2/xz/zstd/lz4 the archive was built with. An
// archive with no recognized magic is assumed to be a plain tar.
func Open(r io.Reader) (*tar.Reader, error) {
	br := bufio.NewReaderSize(r, 4096)
	head, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return nil, err
	}

	switch {
	case hasPrefix(head, magicGzip):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errs.Invalid("unpack: gzip header: %v", err)
		}
		return tar.NewReader(gz), nil
	case hasPrefix(head, magicBzip2):
		return tar.NewReader(bzip2.NewReader(br)), nil
	case hasPrefix(head, magicXz):
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, errs.Invalid("unpack: xz header: %v", err)
		}
		return tar.NewReader(xzr), nil
	case hasPrefix(head, magicZstd):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, errs.Invalid("unpack: zstd header: %v", err)
		}
		return tar.NewReader(zr.IOReadCloser()), nil
	case hasPrefix(head, magicLz4):
		return tar.NewReader(lz4.NewReader(br)), nil
	default:
		return tar.NewReader(br), nil
	}
}

func hasPrefix(head, magic []byte) bool {
	if len(head) < len(magic) {
		return false
	}
	for i, b := range magic {
		if head[i] != b {
			return false
		}
	}
	return true
}
