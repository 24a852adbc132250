// Package relay builds, signs, and dispatches gasless meta-transaction
// payloads to a relay backend: a self-hosted forwarder relayer or the
// Biconomy native meta-transaction API.
package relay

import (
	"github.com/ethereum/go-ethereum/common"
)

// ForwardRequest is the wire form of a generic forwarder
// meta-transaction. Numeric fields are decimal strings; addresses are
// checksummed hex; data is 0x-prefixed hex. Field names are bit-exact
// requirements of existing relayer deployments.
type ForwardRequest struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
	Gas   string `json:"gas"`
	Nonce string `json:"nonce"`
	Data  string `json:"data"`
}

// PermitRequest is the wire form of an EIP-2612 permit: the split
// (v, r, s) signature over the token's own Permit struct. It replaces
// a ForwardRequest when the call is a two-argument approve on a
// permit-capable token.
type PermitRequest struct {
	Owner    string `json:"owner"`
	Spender  string `json:"spender"`
	Value    string `json:"value"`
	Nonce    string `json:"nonce"`
	Deadline string `json:"deadline"`
	V        uint8  `json:"v"`
	R        string `json:"r"`
	S        string `json:"s"`
}

// BiconomyForwardRequest is the request tuple Biconomy expects in the
// params array, mirroring the fields hashed into the signed message.
type BiconomyForwardRequest struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Token         string `json:"token"`
	TxGas         uint64 `json:"txGas"`
	TokenGasPrice string `json:"tokenGasPrice"`
	BatchID       uint64 `json:"batchId"`
	BatchNonce    string `json:"batchNonce"`
	Deadline      uint64 `json:"deadline"`
	Data          string `json:"data"`
}

// SignedPayload is a signed forwarder relay payload: exactly one of
// Forward or Permit is set.
type SignedPayload struct {
	Forward *ForwardRequest
	Permit  *PermitRequest

	// Signature is the full 65-byte signature. For the forward path it
	// is the EIP-712 signature the forwarder verifies; for the permit
	// path it is the unsplit form of (v, r, s).
	Signature []byte
}

// Type returns the relay payload type: "permit" when the payload
// carries an owner, "forward" otherwise.
func (p *SignedPayload) Type() string {
	if p.Permit != nil {
		return PayloadTypePermit
	}
	return PayloadTypeForward
}

// ForwarderConfig configures the self-hosted forwarder relay backend.
// The relayer endpoint is deployment-specific configuration, unlike
// the fixed Biconomy endpoint.
type ForwarderConfig struct {
	// RelayerURL is the HTTP endpoint of the relayer.
	RelayerURL string

	// ForwarderAddress is the on-chain forwarder contract that
	// verifies signatures and nonces.
	ForwarderAddress common.Address
}

// BiconomyConfig configures the Biconomy relay backend.
type BiconomyConfig struct {
	// APIID identifies the registered method on Biconomy's dashboard.
	APIID string

	// APIKey authenticates the dapp.
	APIKey string

	// DeadlineSeconds bounds signed-request validity. Zero means
	// DefaultBiconomyDeadlineSeconds.
	DeadlineSeconds int64
}
