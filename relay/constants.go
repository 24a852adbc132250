package relay

import (
	"math/big"

	thirdweb "github.com/slide-web3/thirdweb-go-sdk"
)

const (
	// EIP-712 domain of the generic forwarder contract. Fixed: existing
	// forwarder deployments verify against exactly these values.
	ForwarderDomainName    = "GSNv2 Forwarder"
	ForwarderDomainVersion = "0.0.1"

	// EIP-2612 domain version used by permit-capable tokens.
	PermitDomainVersion = "1"

	// BiconomyRelayURL is the fixed Biconomy meta-transaction endpoint.
	BiconomyRelayURL = "https://api.biconomy.io/api/v2/meta-tx/native"

	// BiconomyAPIKeyHeader carries the API key on Biconomy requests.
	BiconomyAPIKeyHeader = "x-api-key"

	// BiconomyForwarderAddress is Biconomy's trusted forwarder
	// contract, deployed at the same address across EVM chains.
	BiconomyForwarderAddress = "0x84a0856b038eaAd1cC7E297cF34A7e72685A8693"

	// DefaultBiconomyDeadlineSeconds bounds how long a signed Biconomy
	// request stays valid.
	DefaultBiconomyDeadlineSeconds = 3600

	// Relay payload types.
	PayloadTypeForward = "forward"
	PayloadTypePermit  = "permit"

	// Gas margin policy: the raw estimate is doubled; estimates under
	// the threshold are unreliable with some wallet/relayer
	// combinations and are replaced by the fixed fallback limit.
	gasEstimateMultiplier          = 2
	unreliableGasEstimateThreshold = 25_000
	fallbackRelayGasLimit          = 500_000
)

var (
	// MaxUint256 is used as the permit deadline on the forwarder path:
	// the permit never expires, matching the approve it substitutes.
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	// ForwarderNonceABI reads the generic forwarder's per-sender nonce.
	ForwarderNonceABI = []byte(`[
		{
			"inputs": [{"name": "from", "type": "address"}],
			"name": "getNonce",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)

	// BiconomyNonceABI reads the Biconomy forwarder's nonce for a
	// (sender, batch) pair.
	BiconomyNonceABI = []byte(`[
		{
			"inputs": [
				{"name": "user", "type": "address"},
				{"name": "batchId", "type": "uint256"}
			],
			"name": "getNonce",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)

	// ERC20NoncesABI reads a token's EIP-2612 permit nonce.
	ERC20NoncesABI = []byte(`[
		{
			"inputs": [{"name": "owner", "type": "address"}],
			"name": "nonces",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)

	// ERC20NameABI reads a token's name for the permit domain.
	ERC20NameABI = []byte(`[
		{
			"inputs": [],
			"name": "name",
			"outputs": [{"name": "", "type": "string"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)
)

// ForwardRequestTypes returns the EIP-712 type definitions for the
// forwarder's ForwardRequest struct.
func ForwardRequestTypes() map[string][]thirdweb.TypedDataField {
	return map[string][]thirdweb.TypedDataField{
		"ForwardRequest": {
			{Name: "from", Type: "address"},
			{Name: "to", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "gas", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "data", Type: "bytes"},
		},
	}
}

// PermitTypes returns the EIP-712 type definitions for EIP-2612's
// Permit struct.
func PermitTypes() map[string][]thirdweb.TypedDataField {
	return map[string][]thirdweb.TypedDataField{
		"Permit": {
			{Name: "owner", Type: "address"},
			{Name: "spender", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "deadline", Type: "uint256"},
		},
	}
}
