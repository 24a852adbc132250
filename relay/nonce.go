package relay

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	thirdweb "github.com/slide-web3/thirdweb-go-sdk"
)

// NonceSequencer reads the next meta-transaction nonce from a
// forwarder contract, immediately before signing.
//
// This is a get-then-use pattern, not an atomic reservation: the
// forwarder contract itself is the authority for uniqueness and
// rejects stale nonces at execution time. The sequencer's only job is
// to always read fresh state right before use and never cache a value
// across calls. Concurrent gasless calls from the same sender can read
// the same nonce and one will fail at the forwarder; serializing such
// calls is the caller's responsibility.
type NonceSequencer struct {
	signer thirdweb.Signer
}

// NewNonceSequencer creates a sequencer reading through the given
// signer's chain backend.
func NewNonceSequencer(signer thirdweb.Signer) *NonceSequencer {
	return &NonceSequencer{signer: signer}
}

// ReserveNonce reads the forwarder's nonce-tracking getter for the
// given key arguments (the sender, plus a batch identifier on the
// Biconomy forwarder) and returns the value to use immediately.
func (s *NonceSequencer) ReserveNonce(
	ctx context.Context,
	forwarder common.Address,
	abiJSON []byte,
	getter string,
	keyArgs ...interface{},
) (*big.Int, error) {
	result, err := s.signer.ReadContract(ctx, forwarder, abiJSON, getter, keyArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to read forwarder nonce: %w", err)
	}

	nonce, ok := result.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected nonce type: %T", result)
	}
	return nonce, nil
}
