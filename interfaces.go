package thirdweb

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainBackend is the read/submit surface the pipeline needs from an
// Ethereum node. *ethclient.Client satisfies it; tests substitute fakes.
// The pipeline only consumes these operations and never manages the
// connection's lifecycle.
type ChainBackend interface {
	// CodeAt returns the deployed bytecode at the given address.
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)

	// HeaderByNumber returns the header of the given block, or the
	// latest header when number is nil.
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)

	// SuggestGasPrice returns the node's legacy gas price suggestion.
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// SuggestGasTipCap returns the node's EIP-1559 priority fee
	// suggestion. Errors on pre-London networks.
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)

	// EstimateGas estimates the gas needed to execute the call.
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)

	// CallContract executes a read-only contract call.
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

	// PendingNonceAt returns the account nonce including pending txs.
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)

	// SendTransaction broadcasts a signed transaction.
	SendTransaction(ctx context.Context, tx *types.Transaction) error

	// TransactionReceipt returns the receipt of a mined transaction,
	// or ethereum.NotFound while it is still pending.
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Signer produces signatures on behalf of a single account.
type Signer interface {
	// Address returns the account the signer controls.
	Address() common.Address

	// SignTypedData signs EIP-712 typed structured data and returns a
	// 65-byte (r, s, v) signature with v in {27, 28}.
	SignTypedData(
		ctx context.Context,
		domain TypedDataDomain,
		fieldTypes map[string][]TypedDataField,
		primaryType string,
		message map[string]interface{},
	) ([]byte, error)

	// SignMessage signs message as an EIP-191 personal message
	// ("\x19Ethereum Signed Message:\n" prefix).
	SignMessage(ctx context.Context, message []byte) ([]byte, error)

	// SignTx signs a transaction for the given chain.
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)

	// ReadContract performs a read-only call against a contract,
	// packing and unpacking via the supplied JSON ABI. Returns the
	// single output, a slice for multiple outputs, or nil for none.
	ReadContract(
		ctx context.Context,
		contract common.Address,
		abiJSON []byte,
		method string,
		args ...interface{},
	) (interface{}, error)
}

// GaslessBackend submits a transaction through a relay so a third party
// pays the gas. Implementations build and sign the relay payload,
// dispatch it, and return the relay-reported transaction hash.
//
// Backend selection is a construction-time decision: exactly one
// backend is wired per contract connection, never probed at call time.
type GaslessBackend interface {
	Relay(ctx context.Context, tx *GaslessTransaction) (common.Hash, error)
}

// FeeResolver computes fee overrides from current chain state and a
// speed tier. Implementations are pure functions of network state:
// identical state and tier yield identical fields.
type FeeResolver interface {
	ResolveOverrides(ctx context.Context, tier SpeedTier) (CallOverrides, error)
}
