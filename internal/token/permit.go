package token

import (
	"context"
	"encoding/binary"
	"math/big"
	"time"

	"github.com/wrapmint/wrapmint/internal/notification"
	"github.com/wrapmint/wrapmint/internal/signer"
)

// PermitInput carries a signature-based approval. The signature covers the
// domain separator, owner, spender, value, the owner's current nonce and the
// deadline (unix seconds).
type PermitInput struct {
	Owner     string
	Spender   string
	Value     *big.Int
	Deadline  int64
	Signature []byte
}

// PermitDigest computes the message digest a holder signs to authorize an
// allowance without calling Approve themselves.
func (s *Service) PermitDigest(owner, spender string, value *big.Int, nonce uint64, deadline int64) []byte {
	if value == nil {
		value = new(big.Int)
	}
	var nonceBuf, deadlineBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)
	binary.BigEndian.PutUint64(deadlineBuf[:], uint64(deadline))
	return signer.Digest(s.domain,
		[]byte(owner),
		[]byte(spender),
		value.Bytes(),
		nonceBuf[:],
		deadlineBuf[:],
	)
}

// Permit verifies the signature against the owner's current nonce, then sets
// the allowance as if Approve had been called. The nonce advances exactly
// once per successful call, so a signature can never be replayed.
func (s *Service) Permit(ctx context.Context, input PermitInput) error {
	if input.Owner == "" || input.Spender == "" {
		return ErrInvalidAddress
	}
	if time.Now().UTC().Unix() > input.Deadline {
		return ErrExpiredAuthorization
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.store.Nonce(ctx, input.Owner)
	if err != nil {
		return err
	}
	digest := s.PermitDigest(input.Owner, input.Spender, input.Value, nonce, input.Deadline)
	if !s.verifier.Recover(input.Owner, digest, input.Signature) {
		return ErrInvalidAuthorization
	}

	if _, err := s.store.IncrementNonce(ctx, input.Owner); err != nil {
		return err
	}
	value := input.Value
	if value == nil {
		value = new(big.Int)
	}
	if err := s.store.SetAllowance(ctx, input.Owner, input.Spender, value); err != nil {
		return err
	}

	s.emit(ctx, notification.Event{
		Kind:    notification.KindApproval,
		Owner:   input.Owner,
		Spender: input.Spender,
		Amount:  value.String(),
	})
	return nil
}
