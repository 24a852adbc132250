package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"go.uber.org/zap"

	thirdweb "github.com/slide-web3/thirdweb-go-sdk"
)

// forwarderSubmission is the body posted to the relayer service.
type forwarderSubmission struct {
	Request   interface{} `json:"request"`
	Signature string      `json:"signature"`
	Type      string      `json:"type"`
}

// forwarderResponse is the relayer's canonical success envelope. The
// relayer always wraps its payload in a result object.
type forwarderResponse struct {
	Result *struct {
		TxHash string `json:"txHash"`
	} `json:"result"`
}

// ForwarderBackend relays transactions through a GSNv2-style forwarder
// via a trusted relayer service. It implements thirdweb.GaslessBackend.
type ForwarderBackend struct {
	chain   thirdweb.ChainBackend
	builder *PayloadBuilder
	config  ForwarderConfig
	client  *http.Client
	logger  *zap.Logger
}

// NewForwarderBackend creates a forwarder relay backend. The signer
// produces the EIP-712 (or EIP-2612 permit) signatures the relayer
// submits on-chain.
func NewForwarderBackend(
	chain thirdweb.ChainBackend,
	signer thirdweb.Signer,
	config ForwarderConfig,
	opts ...BackendOption,
) *ForwarderBackend {
	options := applyBackendOptions(opts)
	return &ForwarderBackend{
		chain:   chain,
		builder: NewPayloadBuilder(signer, options.events),
		config:  config,
		client:  options.httpClient,
		logger:  options.logger,
	}
}

// Relay builds, signs and submits the payload, returning the
// transaction hash reported by the relayer.
func (f *ForwarderBackend) Relay(ctx context.Context, tx *thirdweb.GaslessTransaction) (common.Hash, error) {
	gasLimit, err := relayGasLimit(ctx, f.chain, tx)
	if err != nil {
		return common.Hash{}, err
	}

	payload, err := f.builder.BuildForwarderPayload(ctx, tx, f.config.ForwarderAddress, gasLimit)
	if err != nil {
		return common.Hash{}, err
	}

	submission := forwarderSubmission{
		Signature: hexutil.Encode(payload.Signature),
		Type:      payload.Type(),
	}
	if payload.Permit != nil {
		submission.Request = payload.Permit
	} else {
		submission.Request = payload.Forward
	}

	f.logger.Debug("submitting relay request",
		zap.String("relayer", f.config.RelayerURL),
		zap.String("type", submission.Type),
		zap.Uint64("gasLimit", gasLimit),
	)

	body, err := json.Marshal(submission)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.config.RelayerURL, bytes.NewReader(body))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to reach relayer: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read relayer response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return common.Hash{}, thirdweb.NewRelayRejectedError(resp.StatusCode, string(respBody))
	}

	var parsed forwarderResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return common.Hash{}, thirdweb.NewRelayRejectedError(resp.StatusCode, fmt.Sprintf("malformed relayer response: %s", respBody))
	}
	if parsed.Result == nil || parsed.Result.TxHash == "" {
		return common.Hash{}, thirdweb.NewRelayRejectedError(resp.StatusCode, fmt.Sprintf("relayer response missing txHash: %s", respBody))
	}

	hash := common.HexToHash(parsed.Result.TxHash)
	f.logger.Debug("relay accepted", zap.String("txHash", hash.Hex()))
	return hash, nil
}
