package thirdweb

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Error codes for the execution pipeline. Every failure surfaced by the
// pipeline carries exactly one of these.
const (
	ErrCodeNotAContract     = "not_a_contract"
	ErrCodeEstimationFailed = "estimation_failed"
	ErrCodeRelayRejected    = "relay_rejected"
	ErrCodeSignatureFailed  = "signature_failed"
	ErrCodeValueTransfer    = "unsupported_value_transfer"
	ErrCodeNoSigner         = "no_signer_configured"
	ErrCodeReceiptTimeout   = "receipt_timeout"
)

// PipelineError is the error type returned by the execution pipeline.
// Code is machine-readable; Message is human-readable; Err, when set,
// is the underlying cause and participates in errors.Is/As chains.
type PipelineError struct {
	Code    string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the pipeline error code from err, or "" if no
// PipelineError is present in the wrap chain.
func ErrorCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// NewNotAContractError reports that the target address has no deployed
// code. Fatal; no retry will change the outcome on this chain.
func NewNotAContractError(address common.Address) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeNotAContract,
		Message: fmt.Sprintf("no contract deployed at %s; double-check the address and network", address.Hex()),
	}
}

// NewEstimationError reports a failed gas estimation. When the node
// returned a decodable revert reason it is included in the message.
func NewEstimationError(reason string, err error) *PipelineError {
	msg := "gas estimation failed"
	if reason != "" {
		msg = fmt.Sprintf("gas estimation failed: execution reverted: %s", reason)
	}
	return &PipelineError{Code: ErrCodeEstimationFailed, Message: msg, Err: err}
}

// NewRelayRejectedError reports a relay backend refusal: a non-200
// response, a malformed body, or a 200 body missing the transaction hash.
func NewRelayRejectedError(status int, detail string) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeRelayRejected,
		Message: fmt.Sprintf("relay rejected the transaction (%d): %s", status, detail),
	}
}

// NewSignatureError reports that the signer was unavailable or refused
// to sign.
func NewSignatureError(err error) *PipelineError {
	return &PipelineError{Code: ErrCodeSignatureFailed, Message: "signing failed", Err: err}
}

// NewUnsupportedValueTransferError reports an attempted native-currency
// transfer through the gasless path. Meta-transactions never move native
// currency, only data calls.
func NewUnsupportedValueTransferError(value *big.Int) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeValueTransfer,
		Message: fmt.Sprintf("cannot send native currency (%s wei) through a gasless relay", value.String()),
	}
}

// ErrNoSigner reports a write attempted on a read-only connection.
var ErrNoSigner = &PipelineError{
	Code:    ErrCodeNoSigner,
	Message: "no signer configured; connect a signer to send transactions",
}

// NewReceiptTimeoutError reports that a submitted transaction was not
// mined within the configured wait window. The transaction may still be
// mined later; the hash identifies it.
func NewReceiptTimeoutError(hash common.Hash) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeReceiptTimeout,
		Message: fmt.Sprintf("timed out waiting for receipt of %s", hash.Hex()),
	}
}
