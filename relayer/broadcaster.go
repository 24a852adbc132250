package relayer

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	thirdweb "github.com/slide-web3/thirdweb-go-sdk"
	"github.com/slide-web3/thirdweb-go-sdk/relay"
)

// forwarderExecuteABI is the forwarder's execute entry point taking a
// forward request tuple and the signature it was authorized with.
const forwarderExecuteABI = `[
	{
		"inputs": [
			{
				"components": [
					{"name": "from", "type": "address"},
					{"name": "to", "type": "address"},
					{"name": "value", "type": "uint256"},
					{"name": "gas", "type": "uint256"},
					{"name": "nonce", "type": "uint256"},
					{"name": "data", "type": "bytes"}
				],
				"name": "req",
				"type": "tuple"
			},
			{"name": "signature", "type": "bytes"}
		],
		"name": "execute",
		"outputs": [
			{"name": "", "type": "bool"},
			{"name": "", "type": "bytes"}
		],
		"stateMutability": "payable",
		"type": "function"
	}
]`

// erc20PermitABI is the EIP-2612 permit entry point.
const erc20PermitABI = `[
	{
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"},
			{"name": "value", "type": "uint256"},
			{"name": "deadline", "type": "uint256"},
			{"name": "v", "type": "uint8"},
			{"name": "r", "type": "bytes32"},
			{"name": "s", "type": "bytes32"}
		],
		"name": "permit",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// forwardCalldata is the Go shape of the forward request tuple for ABI
// packing.
type forwardCalldata struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Gas   *big.Int
	Nonce *big.Int
	Data  []byte
}

// EthBroadcaster submits relay payloads on-chain from a funded relayer
// account, fronting the gas cost. It returns as soon as the wrapping
// transaction is broadcast; confirmation is the submitter's concern.
type EthBroadcaster struct {
	chain       thirdweb.ChainBackend
	signer      thirdweb.Signer
	fees        thirdweb.FeeResolver
	chainID     *big.Int
	forwarder   common.Address
	permitToken common.Address
	speed       thirdweb.SpeedTier
	logger      *zap.Logger

	executeABI abi.ABI
	permitABI  abi.ABI
}

// BroadcasterOption configures an EthBroadcaster.
type BroadcasterOption func(*EthBroadcaster)

// WithBroadcasterLogger sets the broadcaster logger.
func WithBroadcasterLogger(logger *zap.Logger) BroadcasterOption {
	return func(b *EthBroadcaster) {
		b.logger = logger
	}
}

// WithBroadcasterSpeed sets the priority tier for the relayer's own
// transactions.
func WithBroadcasterSpeed(speed thirdweb.SpeedTier) BroadcasterOption {
	return func(b *EthBroadcaster) {
		b.speed = speed
	}
}

// NewEthBroadcaster creates a broadcaster executing forward requests
// through the given forwarder and permits against the given token.
func NewEthBroadcaster(
	chain thirdweb.ChainBackend,
	signer thirdweb.Signer,
	fees thirdweb.FeeResolver,
	chainID *big.Int,
	forwarder common.Address,
	permitToken common.Address,
	opts ...BroadcasterOption,
) (*EthBroadcaster, error) {
	executeABI, err := abi.JSON(strings.NewReader(forwarderExecuteABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse forwarder ABI: %w", err)
	}
	permitABI, err := abi.JSON(strings.NewReader(erc20PermitABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse permit ABI: %w", err)
	}

	b := &EthBroadcaster{
		chain:       chain,
		signer:      signer,
		fees:        fees,
		chainID:     chainID,
		forwarder:   forwarder,
		permitToken: permitToken,
		speed:       thirdweb.SpeedStandard,
		logger:      zap.NewNop(),
		executeABI:  executeABI,
		permitABI:   permitABI,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// ExecuteForward wraps the signed request in a forwarder execute call
// and broadcasts it.
func (b *EthBroadcaster) ExecuteForward(ctx context.Context, request *relay.ForwardRequest, signature []byte) (common.Hash, error) {
	req, err := toForwardCalldata(request)
	if err != nil {
		return common.Hash{}, err
	}

	data, err := b.executeABI.Pack("execute", req, signature)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode execute call: %w", err)
	}
	return b.broadcast(ctx, b.forwarder, data)
}

// ExecutePermit broadcasts a permit call against the configured token.
func (b *EthBroadcaster) ExecutePermit(ctx context.Context, request *relay.PermitRequest) (common.Hash, error) {
	owner, spender := common.HexToAddress(request.Owner), common.HexToAddress(request.Spender)
	value, ok := new(big.Int).SetString(request.Value, 10)
	if !ok {
		return common.Hash{}, fmt.Errorf("invalid permit value %q", request.Value)
	}
	deadline, ok := new(big.Int).SetString(request.Deadline, 10)
	if !ok {
		return common.Hash{}, fmt.Errorf("invalid permit deadline %q", request.Deadline)
	}
	r, err := wordFromHex(request.R)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid permit r: %w", err)
	}
	s, err := wordFromHex(request.S)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid permit s: %w", err)
	}

	data, err := b.permitABI.Pack("permit", owner, spender, value, deadline, request.V, r, s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode permit call: %w", err)
	}
	return b.broadcast(ctx, b.permitToken, data)
}

// broadcast signs and sends a transaction from the relayer account
// without waiting for it to mine.
func (b *EthBroadcaster) broadcast(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	overrides, err := b.fees.ResolveOverrides(ctx, b.speed)
	if err != nil {
		return common.Hash{}, err
	}

	from := b.signer.Address()
	gasLimit, err := b.chain.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, thirdweb.NewEstimationError("gas estimation failed", err)
	}

	nonce, err := b.chain.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read account nonce: %w", err)
	}

	var tx *types.Transaction
	if overrides.MaxFeePerGas != nil {
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   b.chainID,
			Nonce:     nonce,
			GasTipCap: overrides.MaxPriorityFeePerGas,
			GasFeeCap: overrides.MaxFeePerGas,
			Gas:       gasLimit,
			To:        &to,
			Data:      data,
		})
	} else {
		gasPrice := overrides.GasPrice
		if gasPrice == nil {
			gasPrice, err = b.chain.SuggestGasPrice(ctx)
			if err != nil {
				return common.Hash{}, fmt.Errorf("failed to fetch gas price: %w", err)
			}
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gasLimit,
			To:       &to,
			Data:     data,
		})
	}

	signed, err := b.signer.SignTx(tx, b.chainID)
	if err != nil {
		return common.Hash{}, thirdweb.NewSignatureError(err)
	}
	if err := b.chain.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	hash := signed.Hash()
	b.logger.Debug("broadcast relayer transaction",
		zap.String("to", to.Hex()),
		zap.String("txHash", hash.Hex()),
		zap.Uint64("nonce", nonce),
	)
	return hash, nil
}

func toForwardCalldata(request *relay.ForwardRequest) (forwardCalldata, error) {
	value, ok := new(big.Int).SetString(request.Value, 10)
	if !ok {
		return forwardCalldata{}, fmt.Errorf("invalid value %q", request.Value)
	}
	gas, ok := new(big.Int).SetString(request.Gas, 10)
	if !ok {
		return forwardCalldata{}, fmt.Errorf("invalid gas %q", request.Gas)
	}
	nonce, ok := new(big.Int).SetString(request.Nonce, 10)
	if !ok {
		return forwardCalldata{}, fmt.Errorf("invalid nonce %q", request.Nonce)
	}
	data, err := hexutil.Decode(request.Data)
	if err != nil {
		return forwardCalldata{}, fmt.Errorf("invalid data: %w", err)
	}
	return forwardCalldata{
		From:  common.HexToAddress(request.From),
		To:    common.HexToAddress(request.To),
		Value: value,
		Gas:   gas,
		Nonce: nonce,
		Data:  data,
	}, nil
}

func wordFromHex(value string) ([32]byte, error) {
	var word [32]byte
	decoded, err := hexutil.Decode(value)
	if err != nil {
		return word, err
	}
	if len(decoded) != 32 {
		return word, fmt.Errorf("expected 32 bytes, got %d", len(decoded))
	}
	copy(word[:], decoded)
	return word, nil
}
