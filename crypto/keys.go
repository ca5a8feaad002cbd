// Package crypto implements the Ed25519/minisign and legacy RSA
// verification paths of spec.md §4.2: public/secret key file codecs,
// minisig sign/verify, and BLAKE2b/SHA-256 file hashing (the latter via
// internal/xbpsutil). Grounded on the teacher's TOML-based definition
// file parsing style (holo-build/parser.go) for the comment-line/base64
// codecs, and on golang.org/x/crypto (required directly by
// GoogleCloudPlatform-osconfig, M0Rf30-yap, and essentialkaos-rep in the
// example corpus) for blake2b and scrypt.
package crypto

import (
	"bufio"
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/voidpkg/xbps-go/errs"
)

const (
	sigAlgEd       = "Ed" // plain Ed25519 public key
	sigAlgEDHashed = "ED" // hashed (prehashed-message) Ed25519 signature
	kdfNone        = "\x00\x00"
	kdfScrypt      = "Sc"
)

// PublicKey is a minisign-format Ed25519 public key (spec §4.2: two
// lines, an "untrusted comment:" line and a base64 blob of
// sig_alg[2]||keynum[8]||pk[32]).
type PublicKey struct {
	Comment string
	KeyNum  [8]byte
	PK      ed25519.PublicKey
}

// DecodePublicKey parses a two-line minisign public-key file.
func DecodePublicKey(r io.Reader) (*PublicKey, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		return nil, errs.Invalid("crypto: empty public key file")
	}
	commentLine := sc.Text()
	if !strings.HasPrefix(commentLine, "untrusted comment: ") {
		return nil, errs.Invalid("crypto: missing untrusted comment line")
	}
	comment := strings.TrimPrefix(commentLine, "untrusted comment: ")

	if !sc.Scan() {
		return nil, errs.Invalid("crypto: public key file missing base64 line")
	}
	blob, err := base64.StdEncoding.DecodeString(sc.Text())
	if err != nil {
		return nil, errs.Invalid("crypto: decoding public key base64: %v", err)
	}
	if len(blob) != 2+8+32 {
		return nil, errs.Invalid("crypto: public key blob has wrong length %d", len(blob))
	}
	if string(blob[0:2]) != sigAlgEd {
		return nil, errs.Unsupported("crypto: unsupported sig_alg %q", blob[0:2])
	}

	pk := &PublicKey{Comment: comment}
	copy(pk.KeyNum[:], blob[2:10])
	pk.PK = append(ed25519.PublicKey(nil), blob[10:42]...)
	return pk, nil
}

// Encode renders the public key back to its two-line minisign form.
// Encode(Decode(s)) == s for any valid s (spec §8 round-trip law).
func (pk *PublicKey) Encode() []byte {
	var blob bytes.Buffer
	blob.WriteString(sigAlgEd)
	blob.Write(pk.KeyNum[:])
	blob.Write(pk.PK)

	var out bytes.Buffer
	fmt.Fprintf(&out, "untrusted comment: %s\n", pk.Comment)
	fmt.Fprintf(&out, "%s\n", base64.StdEncoding.EncodeToString(blob.Bytes()))
	return out.Bytes()
}

// KeyNumHex returns the hex-encoded keynum, used as the Ed25519
// fingerprint presented to users during key import (spec §6).
func (pk *PublicKey) KeyNumHex() string {
	return fmt.Sprintf("%x", pk.KeyNum[:])
}

// SecretKey is a minisign-format Ed25519 secret key (spec §4.2).
// Encryption of secret keys (kdf_alg = "Sc") is supported via secretkey.go;
// an unencrypted key has KdfAlg = kdfNone.
type SecretKey struct {
	KdfAlg    [2]byte
	ChkAlg    [2]byte
	KdfSalt   [32]byte
	KdfOpsLim uint64
	KdfMemLim uint64
	KeyNum    [8]byte
	SK        ed25519.PrivateKey // 64 bytes: seed(32) || pk(32), decrypted
	PK        ed25519.PublicKey
}

// GenerateKeyPair draws a fresh Ed25519 key pair from the system CSPRNG.
// Per spec §4.2, random bytes are drawn in chunks of at most 256 bytes
// retrying on transient errors; crypto/rand.Reader already implements
// that retry loop internally for us on all supported platforms, so no
// extra chunking logic is needed here.
func GenerateKeyPair() (*SecretKey, *PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: generating key pair: %w", err)
	}
	var keynum [8]byte
	copy(keynum[:], priv[:8]) // derive a stable keynum from the seed material

	sk := &SecretKey{
		KdfAlg: [2]byte{0, 0},
		SK:     priv,
		PK:     pub,
		KeyNum: keynum,
	}
	pk := &PublicKey{PK: pub, KeyNum: keynum}
	return sk, pk, nil
}
