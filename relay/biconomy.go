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

// biconomySubmission is the body posted to the Biconomy native
// meta-transaction API. Params carries the request tuple first and the
// hex signature second, in that order.
type biconomySubmission struct {
	From     string        `json:"from"`
	APIID    string        `json:"apiId"`
	Params   []interface{} `json:"params"`
	To       string        `json:"to"`
	GasLimit uint64        `json:"gasLimit"`
}

type biconomyResponse struct {
	TxHash string `json:"txHash"`
}

// BiconomyBackend relays transactions through the hosted Biconomy
// native meta-transaction service. It implements
// thirdweb.GaslessBackend.
type BiconomyBackend struct {
	chain   thirdweb.ChainBackend
	builder *PayloadBuilder
	config  BiconomyConfig
	url     string
	client  *http.Client
	logger  *zap.Logger
}

// NewBiconomyBackend creates a Biconomy relay backend. The API id and
// key come from the Biconomy dashboard registration of the target
// contract method.
func NewBiconomyBackend(
	chain thirdweb.ChainBackend,
	signer thirdweb.Signer,
	config BiconomyConfig,
	opts ...BackendOption,
) *BiconomyBackend {
	options := applyBackendOptions(opts)
	url := BiconomyRelayURL
	if options.endpoint != "" {
		url = options.endpoint
	}
	return &BiconomyBackend{
		chain:   chain,
		builder: NewPayloadBuilder(signer, options.events),
		config:  config,
		url:     url,
		client:  options.httpClient,
		logger:  options.logger,
	}
}

// Relay builds, signs and submits the request, returning the
// transaction hash reported by Biconomy.
func (b *BiconomyBackend) Relay(ctx context.Context, tx *thirdweb.GaslessTransaction) (common.Hash, error) {
	gasLimit, err := relayGasLimit(ctx, b.chain, tx)
	if err != nil {
		return common.Hash{}, err
	}

	request, signature, err := b.builder.BuildBiconomyRequest(ctx, tx, gasLimit, b.config.DeadlineSeconds)
	if err != nil {
		return common.Hash{}, err
	}

	submission := biconomySubmission{
		From:     tx.From.Hex(),
		APIID:    b.config.APIID,
		Params:   []interface{}{request, hexutil.Encode(signature)},
		To:       tx.To.Hex(),
		GasLimit: gasLimit,
	}

	b.logger.Debug("submitting biconomy request",
		zap.String("apiId", b.config.APIID),
		zap.Uint64("gasLimit", gasLimit),
	)

	body, err := json.Marshal(submission)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(BiconomyAPIKeyHeader, b.config.APIKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to reach relay service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read relay response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return common.Hash{}, thirdweb.NewRelayRejectedError(resp.StatusCode, string(respBody))
	}

	var parsed biconomyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return common.Hash{}, thirdweb.NewRelayRejectedError(resp.StatusCode, fmt.Sprintf("malformed relay response: %s", respBody))
	}
	if parsed.TxHash == "" {
		return common.Hash{}, thirdweb.NewRelayRejectedError(resp.StatusCode, fmt.Sprintf("relay response missing txHash: %s", respBody))
	}

	hash := common.HexToHash(parsed.TxHash)
	b.logger.Debug("relay accepted", zap.String("txHash", hash.Hex()))
	return hash, nil
}
