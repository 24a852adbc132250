package thirdweb

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SpeedTier selects how aggressively fees are priced relative to the
// network-reported defaults.
type SpeedTier string

const (
	// SpeedStandard prices the transaction at the network default.
	SpeedStandard SpeedTier = "standard"
	// SpeedFast adds a 5% surcharge on the default priority fee or gas price.
	SpeedFast SpeedTier = "fast"
	// SpeedFastest adds a 10% surcharge on the default priority fee or gas price.
	SpeedFastest SpeedTier = "fastest"
)

// PrioritySurchargePercent returns the tier's surcharge over the default
// priority fee (EIP-1559) or gas price (legacy, fast/fastest tiers).
func (t SpeedTier) PrioritySurchargePercent() int64 {
	switch t {
	case SpeedFast:
		return 5
	case SpeedFastest:
		return 10
	default:
		return 0
	}
}

// CallOverrides carries optional per-call execution parameters.
//
// Exactly one fee-field shape is populated once overrides are resolved:
// either GasPrice (legacy) or MaxFeePerGas + MaxPriorityFeePerGas
// (EIP-1559), never both. Empty overrides defer fee selection entirely
// to the connected wallet.
type CallOverrides struct {
	// Value is the native currency amount to send with the call.
	// Nil means zero.
	Value *big.Int

	// GasLimit caps execution gas. Zero means "estimate".
	GasLimit uint64

	// GasPrice is the legacy fee field.
	GasPrice *big.Int

	// MaxFeePerGas and MaxPriorityFeePerGas are the EIP-1559 fee fields.
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// HasFeeFields reports whether any fee field is populated.
func (o CallOverrides) HasFeeFields() bool {
	return o.GasPrice != nil || o.MaxFeePerGas != nil || o.MaxPriorityFeePerGas != nil
}

// HasValue reports whether the overrides carry a non-zero native value.
func (o CallOverrides) HasValue() bool {
	return o.Value != nil && o.Value.Sign() != 0
}

// Merge returns a copy of o with any unset field filled in from defaults.
// Populated fields in o always win; the fee-field shape of o is preserved
// whenever o carries any fee field, so the two shapes never mix.
func (o CallOverrides) Merge(defaults CallOverrides) CallOverrides {
	merged := o
	if merged.Value == nil {
		merged.Value = defaults.Value
	}
	if merged.GasLimit == 0 {
		merged.GasLimit = defaults.GasLimit
	}
	if !merged.HasFeeFields() {
		merged.GasPrice = defaults.GasPrice
		merged.MaxFeePerGas = defaults.MaxFeePerGas
		merged.MaxPriorityFeePerGas = defaults.MaxPriorityFeePerGas
	}
	return merged
}

// GaslessTransaction is the single source of truth consumed by the relay
// backends. It is constructed once per call and never mutated afterwards.
type GaslessTransaction struct {
	From         common.Address
	To           common.Address
	Data         []byte
	ChainID      *big.Int
	GasLimit     uint64
	FunctionName string
	FunctionArgs []interface{}
	Overrides    CallOverrides
}

// TypedDataDomain is an EIP-712 domain separator.
type TypedDataDomain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract string
}

// TypedDataField describes a single field of an EIP-712 struct type.
type TypedDataField struct {
	Name string
	Type string
}
