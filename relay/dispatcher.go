package relay

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"

	"go.uber.org/zap"

	thirdweb "github.com/slide-web3/thirdweb-go-sdk"
)

const defaultHTTPTimeout = 30 * time.Second

// backendOptions are the knobs shared by both relay backends.
type backendOptions struct {
	httpClient *http.Client
	events     *thirdweb.EventBus
	logger     *zap.Logger
	endpoint   string
}

// BackendOption configures a relay backend.
type BackendOption func(*backendOptions)

// WithHTTPClient sets the HTTP client used to reach the relay service.
func WithHTTPClient(client *http.Client) BackendOption {
	return func(o *backendOptions) {
		o.httpClient = client
	}
}

// WithEvents sets the bus receiving signature events emitted while
// payloads are built.
func WithEvents(events *thirdweb.EventBus) BackendOption {
	return func(o *backendOptions) {
		o.events = events
	}
}

// WithEndpoint overrides the relay service URL. Only meaningful for
// backends with a fixed production endpoint; used to point at a local
// stand-in.
func WithEndpoint(url string) BackendOption {
	return func(o *backendOptions) {
		o.endpoint = url
	}
}

// WithLogger sets the backend logger.
func WithLogger(logger *zap.Logger) BackendOption {
	return func(o *backendOptions) {
		o.logger = logger
	}
}

func applyBackendOptions(opts []BackendOption) backendOptions {
	options := backendOptions{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// relayGasLimit resolves the gas limit forwarded to the relay service.
// An explicit override wins. Otherwise the node estimate is doubled:
// the relay call wraps the target call in forwarder execution, which
// the plain estimate does not account for. Estimates below
// unreliableGasEstimateThreshold are treated as unusable (nodes return
// near-intrinsic-cost figures for calls they cannot simulate) and
// replaced with fallbackRelayGasLimit.
func relayGasLimit(ctx context.Context, chain thirdweb.ChainBackend, tx *thirdweb.GaslessTransaction) (uint64, error) {
	if tx.Overrides.GasLimit > 0 {
		return tx.Overrides.GasLimit, nil
	}

	estimate, err := chain.EstimateGas(ctx, ethereum.CallMsg{
		From: tx.From,
		To:   &tx.To,
		Data: tx.Data,
	})
	if err != nil {
		return 0, thirdweb.NewEstimationError("gas estimation failed", err)
	}

	if estimate < unreliableGasEstimateThreshold {
		return fallbackRelayGasLimit, nil
	}
	return estimate * gasEstimateMultiplier, nil
}
