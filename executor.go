package thirdweb

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// TxState is a stage of the transaction execution state machine.
type TxState string

const (
	StateCreated           TxState = "created"
	StateOverridesResolved TxState = "overrides_resolved"
	StateValidityChecked   TxState = "validity_checked"
	StateDirectSigning     TxState = "direct_signing"
	StatePayloadBuilding   TxState = "payload_building"
	StateRelaySubmitted    TxState = "relay_submitted"
	StateSubmitted         TxState = "submitted"
	StatePollingReceipt    TxState = "polling_receipt"
	StateMined             TxState = "mined"
	StateCompleted         TxState = "completed"
)

// DefaultReceiptPollInterval is how often the executor polls for a
// receipt after submission.
const DefaultReceiptPollInterval = 5 * time.Second

// Call is a fully resolved contract invocation: the capability layer
// has already mapped it to calldata. The executor only decides how it
// gets executed, never which function to call.
type Call struct {
	// To is the target contract.
	To common.Address

	// Data is the ABI-encoded calldata.
	Data []byte

	// FunctionName and Args describe the high-level operation the
	// calldata encodes. The gasless path inspects them for permit
	// substitution.
	FunctionName string
	Args         []interface{}

	// Overrides are explicit per-call overrides. Populated fields take
	// precedence, field by field, over the resolved fee strategy.
	Overrides *CallOverrides
}

// Executor drives a call through the execution pipeline: fee
// resolution, contract validity check, then either direct signing and
// broadcast or gasless relay, followed by the receipt wait. It emits a
// "submitted" event as soon as the transaction enters the network and a
// "completed" event once the receipt is obtained.
//
// Multiple calls may be in flight concurrently against one Executor;
// each call's pipeline is single-threaded from the caller's view.
type Executor struct {
	chain   ChainBackend
	chainID *big.Int
	signer  Signer
	fees    FeeResolver
	gasless GaslessBackend
	guard   *ContractGuard
	events  *EventBus
	logger  *zap.Logger

	speed          SpeedTier
	pollInterval   time.Duration
	receiptTimeout time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithSigner connects a signer. Without one the executor is read-only
// and every write fails with no_signer_configured.
func WithSigner(signer Signer) ExecutorOption {
	return func(e *Executor) { e.signer = signer }
}

// WithFeeResolver sets the fee strategy used when a call does not carry
// explicit fee overrides. Without one, fee selection is deferred to the
// connected wallet or node.
func WithFeeResolver(resolver FeeResolver) ExecutorOption {
	return func(e *Executor) { e.fees = resolver }
}

// WithGaslessBackend routes zero-value calls through the given relay
// backend instead of direct broadcast.
func WithGaslessBackend(backend GaslessBackend) ExecutorOption {
	return func(e *Executor) { e.gasless = backend }
}

// WithEventBus sets the bus lifecycle events are emitted on.
func WithEventBus(bus *EventBus) ExecutorOption {
	return func(e *Executor) { e.events = bus }
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// WithSpeed sets the default speed tier for fee resolution.
func WithSpeed(tier SpeedTier) ExecutorOption {
	return func(e *Executor) { e.speed = tier }
}

// WithReceiptPollInterval sets how often the receipt wait polls.
func WithReceiptPollInterval(interval time.Duration) ExecutorOption {
	return func(e *Executor) { e.pollInterval = interval }
}

// WithReceiptTimeout bounds the receipt wait. Zero means wait until the
// context is cancelled.
func WithReceiptTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) { e.receiptTimeout = timeout }
}

// NewExecutor creates an executor bound to one chain connection.
func NewExecutor(chain ChainBackend, chainID *big.Int, opts ...ExecutorOption) *Executor {
	e := &Executor{
		chain:        chain,
		chainID:      chainID,
		events:       NewEventBus(),
		logger:       zap.NewNop(),
		speed:        SpeedStandard,
		pollInterval: DefaultReceiptPollInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.guard = NewContractGuard(chain)
	return e
}

// Events returns the bus lifecycle events are emitted on.
func (e *Executor) Events() *EventBus {
	return e.events
}

// Execute runs call through the pipeline and blocks until the
// transaction is mined or the pipeline fails. All failures surface
// synchronously; nothing is retried.
func (e *Executor) Execute(ctx context.Context, call Call) (*types.Receipt, error) {
	state := e.enterState(StateCreated, call.FunctionName)

	// Resolve the fee strategy first, then merge explicit per-call
	// overrides on top, field by field.
	resolved := CallOverrides{}
	if e.fees != nil && (call.Overrides == nil || !call.Overrides.HasFeeFields()) {
		var err error
		resolved, err = e.fees.ResolveOverrides(ctx, e.speed)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve fee overrides: %w", err)
		}
	}
	overrides := resolved
	if call.Overrides != nil {
		overrides = call.Overrides.Merge(resolved)
	}
	state = e.transition(state, StateOverridesResolved)

	// Fatal before any signature is requested.
	if err := e.guard.EnsureContract(ctx, call.To); err != nil {
		return nil, err
	}
	state = e.transition(state, StateValidityChecked)

	if e.gasless != nil && !overrides.HasValue() {
		return e.executeGasless(ctx, state, call, overrides)
	}
	return e.executeDirect(ctx, state, call, overrides)
}

func (e *Executor) executeDirect(ctx context.Context, state TxState, call Call, overrides CallOverrides) (*types.Receipt, error) {
	if e.signer == nil {
		return nil, ErrNoSigner
	}
	from := e.signer.Address()
	state = e.transition(state, StateDirectSigning)

	gasLimit := overrides.GasLimit
	if gasLimit == 0 {
		estimate, err := e.chain.EstimateGas(ctx, ethereum.CallMsg{
			From:  from,
			To:    &call.To,
			Value: overrides.Value,
			Data:  call.Data,
		})
		if err != nil {
			return nil, NewEstimationError(revertReason(err), err)
		}
		gasLimit = estimate
	}

	nonce, err := e.chain.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account nonce: %w", err)
	}

	tx, err := e.buildTransaction(ctx, call, overrides, nonce, gasLimit)
	if err != nil {
		return nil, err
	}

	signed, err := e.signer.SignTx(tx, e.chainID)
	if err != nil {
		return nil, NewSignatureError(err)
	}

	if err := e.chain.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	hash := signed.Hash()
	state = e.transition(state, StateSubmitted)
	e.events.EmitTransaction(TransactionEvent{Status: StatusSubmitted, TransactionHash: hash})

	receipt, err := e.WaitForReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	state = e.transition(state, StateMined)
	e.transition(state, StateCompleted)
	e.events.EmitTransaction(TransactionEvent{Status: StatusCompleted, TransactionHash: hash})
	return receipt, nil
}

func (e *Executor) executeGasless(ctx context.Context, state TxState, call Call, overrides CallOverrides) (*types.Receipt, error) {
	if e.signer == nil {
		return nil, ErrNoSigner
	}
	state = e.transition(state, StatePayloadBuilding)

	tx := &GaslessTransaction{
		From:         e.signer.Address(),
		To:           call.To,
		Data:         call.Data,
		ChainID:      e.chainID,
		GasLimit:     overrides.GasLimit,
		FunctionName: call.FunctionName,
		FunctionArgs: call.Args,
		Overrides:    overrides,
	}

	hash, err := e.gasless.Relay(ctx, tx)
	if err != nil {
		return nil, err
	}
	state = e.transition(state, StateRelaySubmitted)
	state = e.transition(state, StateSubmitted)

	// The relay-returned hash is trusted as the eventual on-chain
	// hash; if the relay substitutes a different one, completion waits
	// until the receipt timeout fires.
	e.events.EmitTransaction(TransactionEvent{Status: StatusSubmitted, TransactionHash: hash})

	state = e.transition(state, StatePollingReceipt)
	receipt, err := e.WaitForReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	e.transition(state, StateCompleted)
	e.events.EmitTransaction(TransactionEvent{Status: StatusCompleted, TransactionHash: hash})
	return receipt, nil
}

// buildTransaction assembles an unsigned transaction from the resolved
// overrides, preserving the fee-field shape: EIP-1559 fields produce a
// dynamic-fee transaction, a gas price produces a legacy one. With no
// fee fields at all the node's legacy suggestion is used.
func (e *Executor) buildTransaction(ctx context.Context, call Call, overrides CallOverrides, nonce uint64, gasLimit uint64) (*types.Transaction, error) {
	value := overrides.Value
	if value == nil {
		value = new(big.Int)
	}

	if overrides.MaxFeePerGas != nil {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   e.chainID,
			Nonce:     nonce,
			GasTipCap: overrides.MaxPriorityFeePerGas,
			GasFeeCap: overrides.MaxFeePerGas,
			Gas:       gasLimit,
			To:        &call.To,
			Value:     value,
			Data:      call.Data,
		}), nil
	}

	gasPrice := overrides.GasPrice
	if gasPrice == nil {
		suggested, err := e.chain.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch gas price: %w", err)
		}
		gasPrice = suggested
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &call.To,
		Value:    value,
		Data:     call.Data,
	}), nil
}

// WaitForReceipt polls the chain for the receipt of hash until it is
// mined, the context is cancelled, or the configured receipt timeout
// elapses. There is no cancellation of the transaction itself; once
// dispatched it can only be awaited.
func (e *Executor) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var deadline <-chan time.Time
	if e.receiptTimeout > 0 {
		timer := time.NewTimer(e.receiptTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	interval := e.pollInterval
	if interval <= 0 {
		interval = DefaultReceiptPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := e.chain.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to fetch receipt for %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, NewReceiptTimeoutError(hash)
		case <-ticker.C:
		}
	}
}

func (e *Executor) enterState(state TxState, function string) TxState {
	e.logger.Debug("transaction state",
		zap.String("state", string(state)),
		zap.String("function", function))
	return state
}

func (e *Executor) transition(from, to TxState) TxState {
	e.logger.Debug("transaction state",
		zap.String("from", string(from)),
		zap.String("state", string(to)))
	return to
}

// revertReason extracts a decodable Error(string) revert reason from a
// node error, or "" when none is available.
func revertReason(err error) string {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return ""
	}
	hexData, ok := dataErr.ErrorData().(string)
	if !ok {
		return ""
	}
	data, decodeErr := hexutil.Decode(hexData)
	if decodeErr != nil {
		return ""
	}
	reason, unpackErr := abi.UnpackRevert(data)
	if unpackErr != nil {
		return ""
	}
	return reason
}
