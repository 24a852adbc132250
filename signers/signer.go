// Package signers provides a private-key implementation of the
// thirdweb.Signer interface.
package signers

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	thirdweb "github.com/slide-web3/thirdweb-go-sdk"
)

// PrivateKeySigner implements thirdweb.Signer using a raw ECDSA private
// key. Contract reads go through the optional chain backend; without
// one, ReadContract returns an error.
type PrivateKeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chain      thirdweb.ChainBackend
}

// NewPrivateKeySigner creates a signer from a hex-encoded private key,
// with or without the "0x" prefix.
func NewPrivateKeySigner(privateKeyHex string) (*PrivateKeySigner, error) {
	return NewPrivateKeySignerWithChain(privateKeyHex, nil)
}

// NewPrivateKeySignerWithChain creates a signer that can additionally
// perform contract reads (forwarder nonces, EIP-2612 token metadata)
// through the given chain backend.
func NewPrivateKeySignerWithChain(privateKeyHex string, chain thirdweb.ChainBackend) (*PrivateKeySigner, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &PrivateKeySigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chain:      chain,
	}, nil
}

// Address returns the Ethereum address of the signer.
func (s *PrivateKeySigner) Address() common.Address {
	return s.address
}

// SignTypedData signs EIP-712 typed data and returns a 65-byte
// signature with v in {27, 28}.
func (s *PrivateKeySigner) SignTypedData(
	_ context.Context,
	domain thirdweb.TypedDataDomain,
	fieldTypes map[string][]thirdweb.TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	digest, err := thirdweb.HashTypedData(domain, fieldTypes, primaryType, message)
	if err != nil {
		return nil, err
	}

	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	// Recovery ID 0/1 -> 27/28.
	signature[64] += 27
	return signature, nil
}

// SignMessage signs message as an EIP-191 personal message.
func (s *PrivateKeySigner) SignMessage(_ context.Context, message []byte) ([]byte, error) {
	digest := accounts.TextHash(message)

	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}

	signature[64] += 27
	return signature, nil
}

// SignTx signs a transaction for the given chain.
func (s *PrivateKeySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// ReadContract reads data from a smart contract through the configured
// chain backend.
func (s *PrivateKeySigner) ReadContract(
	ctx context.Context,
	contract common.Address,
	abiJSON []byte,
	method string,
	args ...interface{},
) (interface{}, error) {
	if s.chain == nil {
		return nil, fmt.Errorf("ReadContract requires a chain backend; use NewPrivateKeySignerWithChain")
	}

	contractABI, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack method call: %w", err)
	}

	result, err := s.chain.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("contract call failed: %w", err)
	}

	outputs, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack result: %w", err)
	}

	if len(outputs) == 0 {
		return nil, nil
	}
	if len(outputs) == 1 {
		return outputs[0], nil
	}
	return outputs, nil
}
