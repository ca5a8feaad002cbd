package crypto

import (
	"crypto/md5"
	"crypto/rsa"
	"encoding/binary"
	"fmt"
	"math/big"
)

// RSAFingerprint returns the colon-separated MD5 fingerprint of pub in
// the classic SSH wire format (spec §6), computed over the same
// ssh-rsa public-key blob `ssh-keygen -lf` hashes: the string "ssh-rsa"
// followed by the exponent and modulus as SSH mpints.
func RSAFingerprint(pub *rsa.PublicKey) string {
	blob := sshRSAPublicKeyBlob(pub)
	sum := md5.Sum(blob)

	hexParts := make([]string, len(sum))
	for i, b := range sum {
		hexParts[i] = fmt.Sprintf("%02x", b)
	}
	fp := hexParts[0]
	for _, part := range hexParts[1:] {
		fp += ":" + part
	}
	return fp
}

func sshRSAPublicKeyBlob(pub *rsa.PublicKey) []byte {
	var buf []byte
	buf = appendSSHString(buf, []byte("ssh-rsa"))
	buf = appendSSHMPInt(buf, big.NewInt(int64(pub.E)))
	buf = appendSSHMPInt(buf, pub.N)
	return buf
}

func appendSSHString(buf, s []byte) []byte {
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(s)))
	buf = append(buf, lenBytes[:]...)
	return append(buf, s...)
}

// appendSSHMPInt encodes n as an SSH mpint: a length-prefixed big-endian
// two's-complement integer, with a leading zero byte inserted if the
// high bit of the first byte would otherwise be set (so positive
// numbers are never misread as negative).
func appendSSHMPInt(buf []byte, n *big.Int) []byte {
	b := n.Bytes()
	if len(b) > 0 && b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	return appendSSHString(buf, b)
}
