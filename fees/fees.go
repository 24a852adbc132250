// Package fees computes gas price and EIP-1559 fee fields from chain
// state and a user-selected speed tier.
package fees

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	thirdweb "github.com/slide-web3/thirdweb-go-sdk"
)

// Fee bounds and defaults, in wei.
var (
	// PriorityFeeFloor is the minimum priority fee on EIP-1559 paths:
	// 2.5 gwei. Below this, inclusion on busy networks is unreliable.
	PriorityFeeFloor = big.NewInt(2_500_000_000)

	// DefaultBaseFee substitutes for a missing block base fee: 1 gwei.
	DefaultBaseFee = big.NewInt(1_000_000_000)

	// DefaultMaxPrice is the default fee ceiling: 300 gwei.
	DefaultMaxPrice = new(big.Int).Mul(big.NewInt(300), big.NewInt(1_000_000_000))
)

// PriorityFeeOracle supplies a chain-specific default priority fee,
// e.g. a gas station endpoint for networks whose node-reported tip is
// unreliable. Oracle failures are best-effort: the resolver falls back
// to the network-reported value instead of failing the call.
type PriorityFeeOracle interface {
	SuggestPriorityFee(ctx context.Context) (*big.Int, error)
}

// Resolver implements thirdweb.FeeResolver. It is a pure function of
// network state: no caching, no retries, no side effects.
type Resolver struct {
	chain         thirdweb.ChainBackend
	maxPrice      *big.Int
	oracle        PriorityFeeOracle
	deferToWallet bool
	logger        *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxPrice sets the fee ceiling in wei.
func WithMaxPrice(maxPrice *big.Int) Option {
	return func(r *Resolver) { r.maxPrice = maxPrice }
}

// WithPriorityFeeOracle sets a chain-specific priority fee source.
func WithPriorityFeeOracle(oracle PriorityFeeOracle) Option {
	return func(r *Resolver) { r.oracle = oracle }
}

// WithDeferToWallet makes the resolver return empty overrides so an
// external wallet that prompts for fee selection stays in control.
func WithDeferToWallet(deferToWallet bool) Option {
	return func(r *Resolver) { r.deferToWallet = deferToWallet }
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver creates a fee resolver over the given chain connection.
func NewResolver(chain thirdweb.ChainBackend, opts ...Option) *Resolver {
	r := &Resolver{
		chain:    chain,
		maxPrice: DefaultMaxPrice,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveOverrides computes the fee fields for the given speed tier.
//
// On EIP-1559 networks it returns maxFeePerGas = 2 * baseFee plus an
// adjusted priority fee: the default priority fee (oracle, or the
// network-reported tip) raised by the tier surcharge and clamped to
// [2.5 gwei, maxPrice]. On legacy networks it returns the network gas
// price raised by the tier surcharge (standard adds exactly 1 wei) and
// capped at maxPrice; legacy prices have no lower clamp since some
// networks run near zero.
func (r *Resolver) ResolveOverrides(ctx context.Context, tier thirdweb.SpeedTier) (thirdweb.CallOverrides, error) {
	if r.deferToWallet {
		// The connected wallet prompts for fees itself.
		return thirdweb.CallOverrides{}, nil
	}

	tip, tipErr := r.chain.SuggestGasTipCap(ctx)
	if tipErr == nil && tip != nil {
		return r.resolveDynamic(ctx, tier, tip)
	}
	return r.resolveLegacy(ctx, tier)
}

func (r *Resolver) resolveDynamic(ctx context.Context, tier thirdweb.SpeedTier, networkTip *big.Int) (thirdweb.CallOverrides, error) {
	head, err := r.chain.HeaderByNumber(ctx, nil)
	if err != nil {
		return thirdweb.CallOverrides{}, fmt.Errorf("failed to fetch latest block header: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = DefaultBaseFee
	}
	baseMaxFee := new(big.Int).Mul(baseFee, big.NewInt(2))

	defaultPriority := networkTip
	if r.oracle != nil {
		oraclePriority, oracleErr := r.oracle.SuggestPriorityFee(ctx)
		if oracleErr == nil && oraclePriority != nil {
			defaultPriority = oraclePriority
		} else if oracleErr != nil {
			r.logger.Debug("priority fee oracle failed, using network tip",
				zap.Error(oracleErr))
		}
	}

	priority := addPercent(defaultPriority, tier.PrioritySurchargePercent())
	priority = clamp(priority, PriorityFeeFloor, r.maxPrice)

	return thirdweb.CallOverrides{
		MaxFeePerGas:         new(big.Int).Add(baseMaxFee, priority),
		MaxPriorityFeePerGas: priority,
	}, nil
}

func (r *Resolver) resolveLegacy(ctx context.Context, tier thirdweb.SpeedTier) (thirdweb.CallOverrides, error) {
	gasPrice, err := r.chain.SuggestGasPrice(ctx)
	if err != nil {
		return thirdweb.CallOverrides{}, fmt.Errorf("failed to fetch gas price: %w", err)
	}

	var adjusted *big.Int
	if tier == thirdweb.SpeedStandard {
		// Minimum increment over the network price.
		adjusted = new(big.Int).Add(gasPrice, big.NewInt(1))
	} else {
		adjusted = addPercent(gasPrice, tier.PrioritySurchargePercent())
	}
	if adjusted.Cmp(r.maxPrice) > 0 {
		adjusted = new(big.Int).Set(r.maxPrice)
	}

	return thirdweb.CallOverrides{GasPrice: adjusted}, nil
}

// addPercent returns v + v*percent/100 without mutating v.
func addPercent(v *big.Int, percent int64) *big.Int {
	surcharge := new(big.Int).Mul(v, big.NewInt(percent))
	surcharge.Div(surcharge, big.NewInt(100))
	return new(big.Int).Add(v, surcharge)
}

// clamp bounds v to [floor, ceiling] without mutating v.
func clamp(v, floor, ceiling *big.Int) *big.Int {
	if v.Cmp(floor) < 0 {
		return new(big.Int).Set(floor)
	}
	if v.Cmp(ceiling) > 0 {
		return new(big.Int).Set(ceiling)
	}
	return new(big.Int).Set(v)
}
