package xbpsutil

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// SHA256File returns the hex-encoded SHA-256 digest of path's contents,
// used for archive integrity checks (spec §4.2, §4.11).
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// BLAKE2b512File returns the BLAKE2b-512 digest of path's contents, the
// hash minisign-compatible signatures are computed over (spec §4.2).
func BLAKE2b512File(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := blake2b.New512(nil)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// BytesSHA256 returns the hex-encoded SHA-256 digest of b, used when an
// archive member has already been buffered into memory (unpack's
// conffile merge needs the new side's hash before deciding where to
// write it).
func BytesSHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashesEqual compares two hex-encoded hash strings in constant time,
// per spec §4.1 ("Hashes are compared by constant-time byte
// comparison").
func HashesEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// BytesEqual compares two byte slices in constant time.
func BytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
