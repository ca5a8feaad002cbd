package crypto

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"syscall"

	"github.com/voidpkg/xbps-go/errs"
	"github.com/voidpkg/xbps-go/internal/xbpsutil"
)

// DecodeRSAPublicKey parses a PEM-encoded RSA public key, the legacy
// signing format predating minisign (spec §4.2's "legacy RSA" note).
// No example repo wraps PKCS1/PKIX RSA parsing in a third-party
// library; crypto/x509 and encoding/pem are the ecosystem-standard way
// to do this (see crossplane-crossplane/internal/initializer/
// cert_generator.go, which reaches directly for the same packages).
func DecodeRSAPublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errs.Invalid("crypto: no PEM block found in RSA public key")
	}

	if pub, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return pub, nil
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, errs.Invalid("crypto: parsing RSA public key: %v", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errs.Unsupported("crypto: PEM block is not an RSA public key")
	}
	return rsaPub, nil
}

// VerifyRSA checks a legacy PKCS#1 v1.5 signature over path's SHA-256
// digest, for repositories that carry legacy RSA signatures rather
// than Ed25519 ones.
func VerifyRSA(pub *rsa.PublicKey, path string, sig []byte) error {
	digest, err := sha256HashFile(path)
	if err != nil {
		return err
	}
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest, sig); err != nil {
		return errs.Integrity(syscall.ERANGE, "crypto: RSA signature verification failed for %s", path)
	}
	return nil
}

func sha256HashFile(path string) ([]byte, error) {
	hexHash, err := xbpsutil.SHA256File(path)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(hexHash)
}
