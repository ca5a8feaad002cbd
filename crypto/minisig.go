package crypto

import (
	"bufio"
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/voidpkg/xbps-go/errs"
	"github.com/voidpkg/xbps-go/internal/xbpsutil"
)

// Minisig is a detached minisign-format signature file (spec §4.2): a
// leading untrusted comment, the base64-encoded signature over the
// file's hash, a trusted comment, and a base64-encoded global signature
// over sig||trusted_comment binding the comment to the signature.
type Minisig struct {
	UntrustedComment string
	KeyNum           [8]byte
	Sig              [64]byte
	TrustedComment   string
	GlobalSig        [64]byte
}

// Sign produces a detached signature for path using sk, per spec §4.2's
// signing algorithm: hash the file with BLAKE2b-512, Ed25519-sign the
// hash, then Ed25519-sign sig||trustedComment to bind the comment.
func Sign(sk *SecretKey, path, untrustedComment, trustedComment string) (*Minisig, error) {
	hash, err := xbpsutil.BLAKE2b512File(path)
	if err != nil {
		return nil, err
	}

	m := &Minisig{
		UntrustedComment: untrustedComment,
		TrustedComment:   trustedComment,
		KeyNum:           sk.KeyNum,
	}
	copy(m.Sig[:], ed25519.Sign(sk.SK, hash))
	copy(m.GlobalSig[:], ed25519.Sign(sk.SK, append(append([]byte(nil), m.Sig[:]...), trustedComment...)))
	return m, nil
}

// Verify checks m against path's contents under pk, per spec §4.2's
// three-step verification: keynum match, signature over the file hash,
// then signature over sig||trusted_comment binding the comment.
func Verify(pk *PublicKey, path string, m *Minisig) error {
	if !bytes.Equal(m.KeyNum[:], pk.KeyNum[:]) {
		return errs.Invalid("crypto: signature key %x does not match public key %x", m.KeyNum[:], pk.KeyNum[:])
	}

	hash, err := xbpsutil.BLAKE2b512File(path)
	if err != nil {
		return err
	}
	if !ed25519.Verify(pk.PK, hash, m.Sig[:]) {
		return errs.Integrity(syscall.ERANGE, "crypto: signature verification failed for %s", path)
	}

	signedComment := append(append([]byte(nil), m.Sig[:]...), m.TrustedComment...)
	if !ed25519.Verify(pk.PK, signedComment, m.GlobalSig[:]) {
		return errs.Integrity(syscall.ERANGE, "crypto: trusted comment signature verification failed for %s", path)
	}
	return nil
}

// Encode renders m to the four-line minisign text form.
func (m *Minisig) Encode() []byte {
	var blob bytes.Buffer
	blob.WriteString(sigAlgEDHashed)
	blob.Write(m.KeyNum[:])
	blob.Write(m.Sig[:])

	var out bytes.Buffer
	fmt.Fprintf(&out, "untrusted comment: %s\n", m.UntrustedComment)
	fmt.Fprintf(&out, "%s\n", base64.StdEncoding.EncodeToString(blob.Bytes()))
	fmt.Fprintf(&out, "trusted comment: %s\n", m.TrustedComment)
	fmt.Fprintf(&out, "%s\n", base64.StdEncoding.EncodeToString(m.GlobalSig[:]))
	return out.Bytes()
}

// DecodeMinisig parses a four-line minisign signature file.
func DecodeMinisig(r io.Reader) (*Minisig, error) {
	sc := bufio.NewScanner(r)
	lines := make([]string, 0, 4)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(lines) < 4 {
		return nil, errs.Invalid("crypto: signature file has %d lines, want 4", len(lines))
	}

	m := &Minisig{}
	if !strings.HasPrefix(lines[0], "untrusted comment: ") {
		return nil, errs.Invalid("crypto: missing untrusted comment line")
	}
	m.UntrustedComment = strings.TrimPrefix(lines[0], "untrusted comment: ")

	sigBlob, err := base64.StdEncoding.DecodeString(lines[1])
	if err != nil {
		return nil, errs.Invalid("crypto: decoding signature base64: %v", err)
	}
	if len(sigBlob) != 2+8+64 {
		return nil, errs.Invalid("crypto: signature blob has wrong length %d", len(sigBlob))
	}
	if string(sigBlob[0:2]) != sigAlgEDHashed {
		return nil, errs.Unsupported("crypto: unsupported sig_alg %q", sigBlob[0:2])
	}
	copy(m.KeyNum[:], sigBlob[2:10])
	copy(m.Sig[:], sigBlob[10:74])

	if !strings.HasPrefix(lines[2], "trusted comment: ") {
		return nil, errs.Invalid("crypto: missing trusted comment line")
	}
	m.TrustedComment = strings.TrimPrefix(lines[2], "trusted comment: ")

	globalSig, err := base64.StdEncoding.DecodeString(lines[3])
	if err != nil {
		return nil, errs.Invalid("crypto: decoding global signature base64: %v", err)
	}
	if len(globalSig) != 64 {
		return nil, errs.Invalid("crypto: global signature has wrong length %d", len(globalSig))
	}
	copy(m.GlobalSig[:], globalSig)

	return m, nil
}
