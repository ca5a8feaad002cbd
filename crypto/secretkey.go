package crypto

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"io"
	"syscall"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/scrypt"

	"github.com/voidpkg/xbps-go/errs"
)

// secretKeyBlobLen is len(sig_alg[2] || kdf_alg[2] || chk_alg[2] ||
// kdf_salt[32] || kdf_opslimit[8] || kdf_memlimit[8] || keynum[8] ||
// sk[32] || pk[32] || chk[32]).
const secretKeyBlobLen = 2 + 2 + 2 + 32 + 8 + 8 + 8 + 32 + 32 + 32

// DecodeSecretKey parses a minisign-format secret key, decrypting it
// with passphrase if the key is scrypt-encrypted. An empty passphrase
// is valid for an unencrypted (kdf_alg = "\0\0") key.
func DecodeSecretKey(r io.Reader, passphrase []byte) (*SecretKey, error) {
	blob, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	// tolerate an optional leading comment line, like the public key format
	if i := bytes.IndexByte(blob, '\n'); i >= 0 && bytes.HasPrefix(blob, []byte("untrusted comment:")) {
		blob = blob[i+1:]
	}
	blob = bytes.TrimSpace(blob)

	raw, err := base64.StdEncoding.DecodeString(string(blob))
	if err != nil {
		return nil, errs.Invalid("crypto: decoding secret key base64: %v", err)
	}
	if len(raw) != secretKeyBlobLen {
		return nil, errs.Invalid("crypto: secret key blob has wrong length %d", len(raw))
	}

	off := 0
	sigAlg := raw[off : off+2]
	off += 2
	if string(sigAlg) != sigAlgEd {
		return nil, errs.Unsupported("crypto: unsupported sig_alg %q", sigAlg)
	}
	sk := &SecretKey{}
	copy(sk.KdfAlg[:], raw[off:off+2])
	off += 2
	copy(sk.ChkAlg[:], raw[off:off+2])
	off += 2
	copy(sk.KdfSalt[:], raw[off:off+32])
	off += 32
	sk.KdfOpsLim = beUint64(raw[off : off+8])
	off += 8
	sk.KdfMemLim = beUint64(raw[off : off+8])
	off += 8
	copy(sk.KeyNum[:], raw[off:off+8])
	off += 8
	skBytes := append([]byte(nil), raw[off:off+32]...)
	off += 32
	pkBytes := append([]byte(nil), raw[off:off+32]...)
	off += 32
	chk := raw[off : off+32]

	switch string(sk.KdfAlg[:]) {
	case kdfNone:
		// unencrypted: skBytes is the raw 32-byte seed
	case kdfScrypt:
		xorKey, err := scryptXORKey(passphrase, sk.KdfSalt[:], sk.KdfOpsLim, sk.KdfMemLim, len(skBytes))
		if err != nil {
			return nil, err
		}
		for i := range skBytes {
			skBytes[i] ^= xorKey[i]
		}
	default:
		return nil, errs.Unsupported("crypto: unsupported kdf_alg %q", sk.KdfAlg[:])
	}

	// chk = BLAKE2b(sig_alg || keynum || sk), computed over the
	// (now-decrypted) seed.
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	h.Write([]byte(sigAlgEd))
	h.Write(sk.KeyNum[:])
	h.Write(skBytes)
	if !bytesEqualConstantTime(h.Sum(nil), chk) {
		return nil, errs.Integrity(syscall.EPERM, "crypto: secret key checksum mismatch (wrong passphrase?)")
	}

	seed := skBytes
	priv := ed25519.NewKeyFromSeed(seed)
	sk.SK = priv
	sk.PK = append(ed25519.PublicKey(nil), pkBytes...)
	return sk, nil
}

// Encode serializes sk back to its base64 blob form, encrypting the
// seed with passphrase if sk.KdfAlg is kdfScrypt. Callers that want an
// unencrypted export should pass a zeroed KdfAlg and a nil passphrase.
func (sk *SecretKey) Encode(passphrase []byte) ([]byte, error) {
	seed := sk.SK.Seed()
	skBytes := append([]byte(nil), seed...)

	switch string(sk.KdfAlg[:]) {
	case kdfNone:
	case kdfScrypt:
		xorKey, err := scryptXORKey(passphrase, sk.KdfSalt[:], sk.KdfOpsLim, sk.KdfMemLim, len(skBytes))
		if err != nil {
			return nil, err
		}
		for i := range skBytes {
			skBytes[i] ^= xorKey[i]
		}
	default:
		return nil, errs.Unsupported("crypto: unsupported kdf_alg %q", sk.KdfAlg[:])
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	h.Write([]byte(sigAlgEd))
	h.Write(sk.KeyNum[:])
	h.Write(seed)
	chk := h.Sum(nil)

	var buf bytes.Buffer
	buf.WriteString(sigAlgEd)
	buf.Write(sk.KdfAlg[:])
	buf.Write(sk.ChkAlg[:])
	buf.Write(sk.KdfSalt[:])
	buf.Write(putBeUint64(sk.KdfOpsLim))
	buf.Write(putBeUint64(sk.KdfMemLim))
	buf.Write(sk.KeyNum[:])
	buf.Write(skBytes)
	buf.Write(sk.PK)
	buf.Write(chk)

	return []byte(base64.StdEncoding.EncodeToString(buf.Bytes()) + "\n"), nil
}

func bytesEqualConstantTime(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func putBeUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// scryptXORKey derives keyLen bytes of keystream from passphrase and
// salt via scrypt, used to XOR-encrypt/decrypt the 32-byte secret-key
// seed in a minisign secret key file; keynum is stored unencrypted.
func scryptXORKey(passphrase, salt []byte, opsLimit, memLimit uint64, keyLen int) ([]byte, error) {
	if opsLimit == 0 {
		opsLimit = 1 << 25
	}
	if memLimit == 0 {
		memLimit = 1 << 25
	}
	// scrypt runs with fixed parameters N=2^15, r=8, p=1; the stored
	// opsLimit/memLimit values do not change the derived keystream.
	n := 1 << 15
	return scrypt.Key(passphrase, salt, n, 8, 1, keyLen)
}
