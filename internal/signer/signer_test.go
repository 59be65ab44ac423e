package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"
)

func TestRecoverMatchesSigner(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	digest := Digest(DomainSeparator("Wrapped Value", "WVAL"), []byte("owner"), []byte("spender"))
	sig := ed25519.Sign(priv, digest)

	v := Ed25519{}
	if !v.Recover(hex.EncodeToString(pub), digest, sig) {
		t.Fatalf("expected signature to verify")
	}
	if v.Recover(hex.EncodeToString(pub), Digest(DomainSeparator("Wrapped Value", "WVAL"), []byte("other")), sig) {
		t.Fatalf("expected mismatched digest to fail")
	}
	if v.Recover("not-hex", digest, sig) {
		t.Fatalf("expected malformed identity to fail")
	}
}

func TestDigestFieldBoundaries(t *testing.T) {
	domain := DomainSeparator("Wrapped Value", "WVAL")
	a := Digest(domain, []byte("ab"), []byte("c"))
	b := Digest(domain, []byte("a"), []byte("bc"))
	if string(a) == string(b) {
		t.Fatalf("length prefixing failed: shifted fields collide")
	}
}
