package relay

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	thirdweb "github.com/slide-web3/thirdweb-go-sdk"
)

// PayloadBuilder turns a GaslessTransaction into a signed relay
// payload. It emits a SignatureEvent with status "submitted" carrying
// the exact hash about to be signed, and "completed" with the
// resulting signature, so observers can see what was cryptographically
// approved.
type PayloadBuilder struct {
	signer thirdweb.Signer
	events *thirdweb.EventBus
	nonces *NonceSequencer
}

// NewPayloadBuilder creates a builder signing with the given signer.
// A nil bus disables signature events.
func NewPayloadBuilder(signer thirdweb.Signer, events *thirdweb.EventBus) *PayloadBuilder {
	return &PayloadBuilder{
		signer: signer,
		events: events,
		nonces: NewNonceSequencer(signer),
	}
}

// BuildForwarderPayload builds and signs the payload for the forwarder
// backend: an EIP-712 ForwardRequest by default, or an EIP-2612
// PermitRequest when the call is a two-argument approve on a
// permit-capable token. Fails before any signature or network call if
// the transaction carries native value.
func (b *PayloadBuilder) BuildForwarderPayload(
	ctx context.Context,
	tx *thirdweb.GaslessTransaction,
	forwarder common.Address,
	gasLimit uint64,
) (*SignedPayload, error) {
	if tx.Overrides.HasValue() {
		return nil, thirdweb.NewUnsupportedValueTransferError(tx.Overrides.Value)
	}

	if isPermitCall(tx) {
		return b.buildPermitPayload(ctx, tx)
	}
	return b.buildForwardPayload(ctx, tx, forwarder, gasLimit)
}

func (b *PayloadBuilder) buildForwardPayload(
	ctx context.Context,
	tx *thirdweb.GaslessTransaction,
	forwarder common.Address,
	gasLimit uint64,
) (*SignedPayload, error) {
	// Fresh read immediately before signing; the forwarder rejects
	// stale nonces at execution time.
	nonce, err := b.nonces.ReserveNonce(ctx, forwarder, ForwarderNonceABI, "getNonce", tx.From)
	if err != nil {
		return nil, err
	}

	request := &ForwardRequest{
		From:  tx.From.Hex(),
		To:    tx.To.Hex(),
		Value: "0",
		Gas:   new(big.Int).SetUint64(gasLimit).String(),
		Nonce: nonce.String(),
		Data:  hexutil.Encode(tx.Data),
	}

	domain := thirdweb.TypedDataDomain{
		Name:              ForwarderDomainName,
		Version:           ForwarderDomainVersion,
		ChainID:           tx.ChainID,
		VerifyingContract: forwarder.Hex(),
	}

	message := map[string]interface{}{
		"from":  request.From,
		"to":    request.To,
		"value": big.NewInt(0),
		"gas":   new(big.Int).SetUint64(gasLimit),
		"nonce": nonce,
		"data":  tx.Data,
	}

	signature, err := b.signTypedData(ctx, domain, ForwardRequestTypes(), "ForwardRequest", message)
	if err != nil {
		return nil, err
	}

	return &SignedPayload{Forward: request, Signature: signature}, nil
}

// buildPermitPayload derives an EIP-2612 permit signature directly
// against the target token, with the domain bound to the token rather
// than the forwarder. This skips forwarder relay entirely for
// approvals on permit-capable tokens.
func (b *PayloadBuilder) buildPermitPayload(ctx context.Context, tx *thirdweb.GaslessTransaction) (*SignedPayload, error) {
	spender, err := argAddress(tx.FunctionArgs[0])
	if err != nil {
		return nil, fmt.Errorf("invalid approve spender argument: %w", err)
	}
	amount, err := argBigInt(tx.FunctionArgs[1])
	if err != nil {
		return nil, fmt.Errorf("invalid approve amount argument: %w", err)
	}

	nameResult, err := b.signer.ReadContract(ctx, tx.To, ERC20NameABI, "name")
	if err != nil {
		return nil, fmt.Errorf("failed to read token name: %w", err)
	}
	tokenName, ok := nameResult.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected token name type: %T", nameResult)
	}

	nonceResult, err := b.signer.ReadContract(ctx, tx.To, ERC20NoncesABI, "nonces", tx.From)
	if err != nil {
		return nil, fmt.Errorf("failed to read permit nonce: %w", err)
	}
	nonce, ok := nonceResult.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected permit nonce type: %T", nonceResult)
	}

	domain := thirdweb.TypedDataDomain{
		Name:              tokenName,
		Version:           PermitDomainVersion,
		ChainID:           tx.ChainID,
		VerifyingContract: tx.To.Hex(),
	}

	message := map[string]interface{}{
		"owner":    tx.From.Hex(),
		"spender":  spender.Hex(),
		"value":    amount,
		"nonce":    nonce,
		"deadline": MaxUint256,
	}

	signature, err := b.signTypedData(ctx, domain, PermitTypes(), "Permit", message)
	if err != nil {
		return nil, err
	}

	request := &PermitRequest{
		Owner:    tx.From.Hex(),
		Spender:  spender.Hex(),
		Value:    amount.String(),
		Nonce:    nonce.String(),
		Deadline: MaxUint256.String(),
		V:        signature[64],
		R:        hexutil.Encode(signature[0:32]),
		S:        hexutil.Encode(signature[32:64]),
	}

	return &SignedPayload{Permit: request, Signature: signature}, nil
}

// BuildBiconomyRequest builds and signs the Biconomy request tuple.
// Biconomy does not use EIP-712: the signature is a personal-message
// signature over the keccak256 hash of the ABI-encoded tuple
// (from, to, token=0, txGas, tokenGasPrice=0, batchId=0, batchNonce,
// deadline, keccak256(data)).
func (b *PayloadBuilder) BuildBiconomyRequest(
	ctx context.Context,
	tx *thirdweb.GaslessTransaction,
	gasLimit uint64,
	deadlineSeconds int64,
) (*BiconomyForwardRequest, []byte, error) {
	if tx.Overrides.HasValue() {
		return nil, nil, thirdweb.NewUnsupportedValueTransferError(tx.Overrides.Value)
	}

	forwarder := common.HexToAddress(BiconomyForwarderAddress)
	batchID := big.NewInt(0)
	batchNonce, err := b.nonces.ReserveNonce(ctx, forwarder, BiconomyNonceABI, "getNonce", tx.From, batchID)
	if err != nil {
		return nil, nil, err
	}

	if deadlineSeconds <= 0 {
		deadlineSeconds = DefaultBiconomyDeadlineSeconds
	}
	deadline := big.NewInt(time.Now().Unix() + deadlineSeconds)

	hash, err := hashBiconomyRequest(tx, gasLimit, batchID, batchNonce, deadline)
	if err != nil {
		return nil, nil, err
	}

	b.events.EmitSignature(thirdweb.SignatureEvent{
		Status:  thirdweb.StatusSubmitted,
		Message: hash,
	})
	signature, err := b.signer.SignMessage(ctx, hash)
	if err != nil {
		return nil, nil, thirdweb.NewSignatureError(err)
	}
	b.events.EmitSignature(thirdweb.SignatureEvent{
		Status:    thirdweb.StatusCompleted,
		Message:   hash,
		Signature: signature,
	})

	request := &BiconomyForwardRequest{
		From:          tx.From.Hex(),
		To:            tx.To.Hex(),
		Token:         (common.Address{}).Hex(),
		TxGas:         gasLimit,
		TokenGasPrice: "0",
		BatchID:       batchID.Uint64(),
		BatchNonce:    batchNonce.String(),
		Deadline:      deadline.Uint64(),
		Data:          hexutil.Encode(tx.Data),
	}
	return request, signature, nil
}

// signTypedData signs an EIP-712 structure, emitting signature events
// around the signing with the exact digest being approved.
func (b *PayloadBuilder) signTypedData(
	ctx context.Context,
	domain thirdweb.TypedDataDomain,
	fieldTypes map[string][]thirdweb.TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	digest, err := thirdweb.HashTypedData(domain, fieldTypes, primaryType, message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", primaryType, err)
	}

	b.events.EmitSignature(thirdweb.SignatureEvent{
		Status:  thirdweb.StatusSubmitted,
		Message: digest,
	})

	signature, err := b.signer.SignTypedData(ctx, domain, fieldTypes, primaryType, message)
	if err != nil {
		return nil, thirdweb.NewSignatureError(err)
	}
	if len(signature) != 65 {
		return nil, thirdweb.NewSignatureError(fmt.Errorf("expected 65-byte signature, got %d bytes", len(signature)))
	}

	b.events.EmitSignature(thirdweb.SignatureEvent{
		Status:    thirdweb.StatusCompleted,
		Message:   digest,
		Signature: signature,
	})
	return signature, nil
}

// hashBiconomyRequest computes the keccak256 hash of the ABI-encoded
// Biconomy request tuple.
func hashBiconomyRequest(tx *thirdweb.GaslessTransaction, gasLimit uint64, batchID, batchNonce, deadline *big.Int) ([]byte, error) {
	addressType, _ := abi.NewType("address", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	bytes32Type, _ := abi.NewType("bytes32", "", nil)

	arguments := abi.Arguments{
		{Type: addressType}, // from
		{Type: addressType}, // to
		{Type: addressType}, // token (always zero: no token-denominated gas payment)
		{Type: uint256Type}, // txGas
		{Type: uint256Type}, // tokenGasPrice
		{Type: uint256Type}, // batchId
		{Type: uint256Type}, // batchNonce
		{Type: uint256Type}, // deadline
		{Type: bytes32Type}, // keccak256(data)
	}

	dataHash := [32]byte(crypto.Keccak256Hash(tx.Data))
	packed, err := arguments.Pack(
		tx.From,
		tx.To,
		common.Address{},
		new(big.Int).SetUint64(gasLimit),
		big.NewInt(0),
		batchID,
		batchNonce,
		deadline,
		dataHash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to encode relay request: %w", err)
	}
	return crypto.Keccak256(packed), nil
}

// isPermitCall reports whether the call is recognizable as
// approve(spender, amount), the only shape the permit substitution
// applies to.
func isPermitCall(tx *thirdweb.GaslessTransaction) bool {
	return tx.FunctionName == "approve" && len(tx.FunctionArgs) == 2
}

func argAddress(arg interface{}) (common.Address, error) {
	switch v := arg.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	case string:
		if !common.IsHexAddress(v) {
			return common.Address{}, fmt.Errorf("not a hex address: %q", v)
		}
		return common.HexToAddress(v), nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type: %T", arg)
	}
}

func argBigInt(arg interface{}) (*big.Int, error) {
	switch v := arg.(type) {
	case *big.Int:
		return v, nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int64:
		return big.NewInt(v), nil
	case int:
		return big.NewInt(int64(v)), nil
	case string:
		parsed, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, fmt.Errorf("not a decimal integer: %q", v)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("unsupported integer type: %T", arg)
	}
}
