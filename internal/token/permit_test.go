package token

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"
	"time"
)

func newPermitOwner(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return hex.EncodeToString(pub), priv
}

func TestPermitSetsAllowanceAndAdvancesNonce(t *testing.T) {
	svc, _, _, _ := newTestLedger(t, rateOne)
	ctx := context.Background()

	owner, priv := newPermitOwner(t)
	deadline := time.Now().Add(time.Hour).Unix()
	value := bi("12345")

	digest := svc.PermitDigest(owner, "carol", value, 0, deadline)
	input := PermitInput{
		Owner:     owner,
		Spender:   "carol",
		Value:     value,
		Deadline:  deadline,
		Signature: ed25519.Sign(priv, digest),
	}
	if err := svc.Permit(ctx, input); err != nil {
		t.Fatalf("permit: %v", err)
	}

	allowed, err := svc.Allowance(ctx, owner, "carol")
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if allowed.Cmp(value) != 0 {
		t.Fatalf("expected allowance %s, got %s", value, allowed)
	}

	nonce, err := svc.Nonce(ctx, owner)
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	if nonce != 1 {
		t.Fatalf("expected nonce 1 after permit, got %d", nonce)
	}

	// Replaying the same signature must fail: the nonce moved on.
	if err := svc.Permit(ctx, input); !errors.Is(err, ErrInvalidAuthorization) {
		t.Fatalf("expected replay to fail with ErrInvalidAuthorization, got %v", err)
	}
	if nonce, _ = svc.Nonce(ctx, owner); nonce != 1 {
		t.Fatalf("failed permit must not advance the nonce, got %d", nonce)
	}
}

func TestPermitExpiredDeadline(t *testing.T) {
	svc, _, _, _ := newTestLedger(t, rateOne)

	owner, priv := newPermitOwner(t)
	deadline := time.Now().Add(-time.Minute).Unix()
	digest := svc.PermitDigest(owner, "carol", bi("1"), 0, deadline)

	err := svc.Permit(context.Background(), PermitInput{
		Owner:     owner,
		Spender:   "carol",
		Value:     bi("1"),
		Deadline:  deadline,
		Signature: ed25519.Sign(priv, digest),
	})
	if !errors.Is(err, ErrExpiredAuthorization) {
		t.Fatalf("expected ErrExpiredAuthorization, got %v", err)
	}
}

func TestPermitWrongSigner(t *testing.T) {
	svc, _, _, _ := newTestLedger(t, rateOne)

	owner, _ := newPermitOwner(t)
	_, otherPriv := newPermitOwner(t)
	deadline := time.Now().Add(time.Hour).Unix()
	digest := svc.PermitDigest(owner, "carol", bi("1"), 0, deadline)

	err := svc.Permit(context.Background(), PermitInput{
		Owner:     owner,
		Spender:   "carol",
		Value:     bi("1"),
		Deadline:  deadline,
		Signature: ed25519.Sign(otherPriv, digest),
	})
	if !errors.Is(err, ErrInvalidAuthorization) {
		t.Fatalf("expected ErrInvalidAuthorization, got %v", err)
	}
}
