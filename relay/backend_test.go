package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	thirdweb "github.com/slide-web3/thirdweb-go-sdk"
)

const testTxHash = "0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"

// estimatingChain implements thirdweb.ChainBackend for relay tests;
// only gas estimation is expected to be called.
type estimatingChain struct {
	estimate uint64
	err      error
}

func (c *estimatingChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return c.estimate, c.err
}

func (c *estimatingChain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, errors.New("not supported")
}

func (c *estimatingChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return nil, errors.New("not supported")
}

func (c *estimatingChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return nil, errors.New("not supported")
}

func (c *estimatingChain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return nil, errors.New("not supported")
}

func (c *estimatingChain) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errors.New("not supported")
}

func (c *estimatingChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 0, errors.New("not supported")
}

func (c *estimatingChain) SendTransaction(context.Context, *types.Transaction) error {
	return errors.New("not supported")
}

func (c *estimatingChain) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, errors.New("not supported")
}

func TestForwarderBackendRelaySuccess(t *testing.T) {
	var body struct {
		Request   ForwardRequest `json:"request"`
		Signature string         `json:"signature"`
		Type      string         `json:"type"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("failed to decode submission: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":{"txHash":"` + testTxHash + `","queueId":"q-1"}}`))
	}))
	defer server.Close()

	backend := NewForwarderBackend(
		&estimatingChain{estimate: 100_000},
		newStubSigner(),
		ForwarderConfig{RelayerURL: server.URL, ForwarderAddress: testForwarder},
	)

	hash, err := backend.Relay(context.Background(), gaslessTx("transfer"))
	if err != nil {
		t.Fatalf("Relay failed: %v", err)
	}
	if hash != common.HexToHash(testTxHash) {
		t.Errorf("hash = %s, want %s", hash.Hex(), testTxHash)
	}

	if body.Type != PayloadTypeForward {
		t.Errorf("type = %q, want %q", body.Type, PayloadTypeForward)
	}
	// Doubled estimate.
	if body.Request.Gas != "200000" {
		t.Errorf("gas = %q, want 200000", body.Request.Gas)
	}
	if body.Signature == "" {
		t.Error("signature missing from submission")
	}
}

func TestForwarderBackendLowEstimateUsesFallbackGas(t *testing.T) {
	var gotGas string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Request ForwardRequest `json:"request"`
		}
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		gotGas = body.Request.Gas
		w.Write([]byte(`{"result":{"txHash":"` + testTxHash + `"}}`))
	}))
	defer server.Close()

	backend := NewForwarderBackend(
		&estimatingChain{estimate: 20_000},
		newStubSigner(),
		ForwarderConfig{RelayerURL: server.URL, ForwarderAddress: testForwarder},
	)

	if _, err := backend.Relay(context.Background(), gaslessTx("mint")); err != nil {
		t.Fatalf("Relay failed: %v", err)
	}
	if gotGas != "500000" {
		t.Errorf("gas = %q, want fallback 500000", gotGas)
	}
}

func TestForwarderBackendRejectsEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	backend := NewForwarderBackend(
		&estimatingChain{estimate: 100_000},
		newStubSigner(),
		ForwarderConfig{RelayerURL: server.URL, ForwarderAddress: testForwarder},
	)

	_, err := backend.Relay(context.Background(), gaslessTx("transfer"))
	if thirdweb.ErrorCode(err) != thirdweb.ErrCodeRelayRejected {
		t.Fatalf("expected %s, got %v", thirdweb.ErrCodeRelayRejected, err)
	}
}

func TestForwarderBackendRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"relayer out of funds"}`))
	}))
	defer server.Close()

	backend := NewForwarderBackend(
		&estimatingChain{estimate: 100_000},
		newStubSigner(),
		ForwarderConfig{RelayerURL: server.URL, ForwarderAddress: testForwarder},
	)

	_, err := backend.Relay(context.Background(), gaslessTx("transfer"))
	if thirdweb.ErrorCode(err) != thirdweb.ErrCodeRelayRejected {
		t.Fatalf("expected %s, got %v", thirdweb.ErrCodeRelayRejected, err)
	}
}

func TestForwarderBackendEstimationFailure(t *testing.T) {
	backend := NewForwarderBackend(
		&estimatingChain{err: errors.New("execution reverted")},
		newStubSigner(),
		ForwarderConfig{RelayerURL: "http://localhost:0", ForwarderAddress: testForwarder},
	)

	_, err := backend.Relay(context.Background(), gaslessTx("transfer"))
	if thirdweb.ErrorCode(err) != thirdweb.ErrCodeEstimationFailed {
		t.Fatalf("expected %s, got %v", thirdweb.ErrCodeEstimationFailed, err)
	}
}

func TestForwarderBackendGasLimitOverrideSkipsEstimation(t *testing.T) {
	var gotGas string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Request ForwardRequest `json:"request"`
		}
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		gotGas = body.Request.Gas
		w.Write([]byte(`{"result":{"txHash":"` + testTxHash + `"}}`))
	}))
	defer server.Close()

	backend := NewForwarderBackend(
		&estimatingChain{err: errors.New("estimation must not be called")},
		newStubSigner(),
		ForwarderConfig{RelayerURL: server.URL, ForwarderAddress: testForwarder},
	)

	tx := gaslessTx("transfer")
	tx.Overrides.GasLimit = 321_000
	if _, err := backend.Relay(context.Background(), tx); err != nil {
		t.Fatalf("Relay failed: %v", err)
	}
	if gotGas != "321000" {
		t.Errorf("gas = %q, want explicit 321000", gotGas)
	}
}

func TestBiconomyBackendRelaySuccess(t *testing.T) {
	var (
		apiKey string
		body   struct {
			From     string            `json:"from"`
			APIID    string            `json:"apiId"`
			Params   []json.RawMessage `json:"params"`
			To       string            `json:"to"`
			GasLimit uint64            `json:"gasLimit"`
		}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get(BiconomyAPIKeyHeader)
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("failed to decode submission: %v", err)
		}
		w.Write([]byte(`{"txHash":"` + testTxHash + `","log":"meta transaction sent"}`))
	}))
	defer server.Close()

	backend := NewBiconomyBackend(
		&estimatingChain{estimate: 100_000},
		newStubSigner(),
		BiconomyConfig{APIID: "api-1", APIKey: "key-1"},
		WithEndpoint(server.URL),
	)

	hash, err := backend.Relay(context.Background(), gaslessTx("transfer"))
	if err != nil {
		t.Fatalf("Relay failed: %v", err)
	}
	if hash != common.HexToHash(testTxHash) {
		t.Errorf("hash = %s, want %s", hash.Hex(), testTxHash)
	}

	if apiKey != "key-1" {
		t.Errorf("api key header = %q, want key-1", apiKey)
	}
	if body.APIID != "api-1" {
		t.Errorf("apiId = %q, want api-1", body.APIID)
	}
	if body.GasLimit != 200_000 {
		t.Errorf("gasLimit = %d, want 200000", body.GasLimit)
	}
	if len(body.Params) != 2 {
		t.Fatalf("params length = %d, want 2 (request, signature)", len(body.Params))
	}
	var request BiconomyForwardRequest
	if err := json.Unmarshal(body.Params[0], &request); err != nil {
		t.Fatalf("params[0] is not a request tuple: %v", err)
	}
	if request.BatchNonce != "7" {
		t.Errorf("batchNonce = %q, want 7", request.BatchNonce)
	}
}

func TestBiconomyBackendRejectsMissingTxHash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"log":"internal error","flag":417}`))
	}))
	defer server.Close()

	backend := NewBiconomyBackend(
		&estimatingChain{estimate: 100_000},
		newStubSigner(),
		BiconomyConfig{APIID: "api-1", APIKey: "key-1"},
		WithEndpoint(server.URL),
	)

	_, err := backend.Relay(context.Background(), gaslessTx("transfer"))
	if thirdweb.ErrorCode(err) != thirdweb.ErrCodeRelayRejected {
		t.Fatalf("expected %s, got %v", thirdweb.ErrCodeRelayRejected, err)
	}
}
