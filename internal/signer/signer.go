package signer

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Verifier checks that a signature over a digest was produced by the account
// identified by identity. Curve arithmetic stays behind this interface.
type Verifier interface {
	Recover(identity string, digest, sig []byte) bool
}

// Ed25519 verifies signatures for accounts whose identity is the hex-encoded
// ed25519 public key.
type Ed25519 struct{}

// Recover reports whether sig is a valid signature over digest by the key
// encoded in identity.
func (Ed25519) Recover(identity string, digest, sig []byte) bool {
	pub, err := hex.DecodeString(identity)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), digest, sig)
}

// Digest hashes a domain separator and a sequence of length-prefixed fields
// into a 32-byte message digest. Length prefixing keeps adjacent variable
// length fields from colliding.
func Digest(domain []byte, fields ...[]byte) []byte {
	h := sha3.New256()
	h.Write(domain)
	var lenBuf [8]byte
	for _, field := range fields {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(field)))
		h.Write(lenBuf[:])
		h.Write(field)
	}
	return h.Sum(nil)
}

// DomainSeparator derives a deterministic 32-byte domain identifier from the
// token's name and symbol.
func DomainSeparator(name, symbol string) []byte {
	sum := sha3.Sum256([]byte("wrapmint/permit/v1|" + name + "|" + symbol))
	return sum[:]
}
