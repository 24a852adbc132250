package relay

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	thirdweb "github.com/slide-web3/thirdweb-go-sdk"
)

var (
	testSender    = common.HexToAddress("0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa")
	testTarget    = common.HexToAddress("0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")
	testForwarder = common.HexToAddress("0xcCcCCCcCCCCcCCCcCcCcCCCcccCcCcCcccCcCCCC")
)

// stubSigner implements thirdweb.Signer with canned contract reads and
// deterministic fake signatures, recording every call.
type stubSigner struct {
	reads       []string
	signedTyped []string
	signedMsgs  [][]byte
	nonce       *big.Int
	permitNonce *big.Int
	tokenName   string
}

func newStubSigner() *stubSigner {
	return &stubSigner{
		nonce:       big.NewInt(7),
		permitNonce: big.NewInt(3),
		tokenName:   "Wrapped Test Token",
	}
}

func (s *stubSigner) Address() common.Address { return testSender }

func (s *stubSigner) SignTypedData(
	_ context.Context,
	domain thirdweb.TypedDataDomain,
	fieldTypes map[string][]thirdweb.TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	if _, err := thirdweb.HashTypedData(domain, fieldTypes, primaryType, message); err != nil {
		return nil, err
	}
	s.signedTyped = append(s.signedTyped, primaryType)
	sig := make([]byte, 65)
	sig[0] = 0x11
	sig[32] = 0x22
	sig[64] = 28
	return sig, nil
}

func (s *stubSigner) SignMessage(_ context.Context, message []byte) ([]byte, error) {
	s.signedMsgs = append(s.signedMsgs, message)
	sig := make([]byte, 65)
	sig[64] = 27
	return sig, nil
}

func (s *stubSigner) SignTx(tx *types.Transaction, _ *big.Int) (*types.Transaction, error) {
	return tx, nil
}

func (s *stubSigner) ReadContract(
	_ context.Context,
	_ common.Address,
	_ []byte,
	method string,
	args ...interface{},
) (interface{}, error) {
	s.reads = append(s.reads, method)
	switch method {
	case "getNonce":
		return new(big.Int).Set(s.nonce), nil
	case "nonces":
		return new(big.Int).Set(s.permitNonce), nil
	case "name":
		return s.tokenName, nil
	}
	return nil, nil
}

func gaslessTx(functionName string, args ...interface{}) *thirdweb.GaslessTransaction {
	return &thirdweb.GaslessTransaction{
		From:         testSender,
		To:           testTarget,
		Data:         []byte{0xa9, 0x05, 0x9c, 0xbb, 0x01},
		ChainID:      big.NewInt(137),
		FunctionName: functionName,
		FunctionArgs: args,
	}
}

func TestBuildForwarderPayloadRejectsValueBeforeAnyCall(t *testing.T) {
	signer := newStubSigner()
	builder := NewPayloadBuilder(signer, nil)

	tx := gaslessTx("transfer")
	tx.Overrides.Value = big.NewInt(100)

	_, err := builder.BuildForwarderPayload(context.Background(), tx, testForwarder, 100_000)
	if thirdweb.ErrorCode(err) != thirdweb.ErrCodeValueTransfer {
		t.Fatalf("expected %s, got %v", thirdweb.ErrCodeValueTransfer, err)
	}
	if len(signer.reads) != 0 || len(signer.signedTyped) != 0 {
		t.Error("value rejection must happen before any read or signature")
	}
}

func TestBuildForwarderPayloadForwardRequest(t *testing.T) {
	signer := newStubSigner()
	events := thirdweb.NewEventBus()
	var sigEvents []thirdweb.SignatureEvent
	events.OnSignature(func(ev thirdweb.SignatureEvent) { sigEvents = append(sigEvents, ev) })

	builder := NewPayloadBuilder(signer, events)

	tx := gaslessTx("transfer", testTarget.Hex(), big.NewInt(1))
	payload, err := builder.BuildForwarderPayload(context.Background(), tx, testForwarder, 200_000)
	if err != nil {
		t.Fatalf("BuildForwarderPayload failed: %v", err)
	}

	if payload.Type() != PayloadTypeForward {
		t.Errorf("payload type = %q, want %q", payload.Type(), PayloadTypeForward)
	}
	if payload.Forward == nil {
		t.Fatal("forward request missing")
	}
	if payload.Forward.Value != "0" {
		t.Errorf("value = %q, want 0", payload.Forward.Value)
	}
	if payload.Forward.Nonce != "7" {
		t.Errorf("nonce = %q, want 7", payload.Forward.Nonce)
	}
	if payload.Forward.Gas != "200000" {
		t.Errorf("gas = %q, want 200000", payload.Forward.Gas)
	}
	if payload.Forward.Data != hexutil.Encode(tx.Data) {
		t.Errorf("data = %q, want %q", payload.Forward.Data, hexutil.Encode(tx.Data))
	}
	if len(payload.Signature) != 65 {
		t.Errorf("signature length = %d, want 65", len(payload.Signature))
	}
	if len(signer.signedTyped) != 1 || signer.signedTyped[0] != "ForwardRequest" {
		t.Errorf("signed types = %v, want [ForwardRequest]", signer.signedTyped)
	}

	if len(sigEvents) != 2 {
		t.Fatalf("expected 2 signature events, got %d", len(sigEvents))
	}
	if sigEvents[0].Status != thirdweb.StatusSubmitted || sigEvents[1].Status != thirdweb.StatusCompleted {
		t.Errorf("unexpected event statuses: %+v", sigEvents)
	}
	if len(sigEvents[0].Message) != 32 {
		t.Errorf("submitted event must carry the 32-byte digest, got %d bytes", len(sigEvents[0].Message))
	}
	if sigEvents[1].Signature == nil {
		t.Error("completed event must carry the signature")
	}
}

func TestBuildForwarderPayloadPermitSubstitution(t *testing.T) {
	signer := newStubSigner()
	builder := NewPayloadBuilder(signer, nil)

	spender := common.HexToAddress("0xdDdDddDdDdddDDddDDddDDDDdDdDDdDDdDDDDDDd")
	tx := gaslessTx("approve", spender, big.NewInt(1_000_000))

	payload, err := builder.BuildForwarderPayload(context.Background(), tx, testForwarder, 100_000)
	if err != nil {
		t.Fatalf("BuildForwarderPayload failed: %v", err)
	}

	if payload.Type() != PayloadTypePermit {
		t.Errorf("payload type = %q, want %q", payload.Type(), PayloadTypePermit)
	}
	if payload.Forward != nil {
		t.Error("permit payload must not carry a forward request")
	}
	permit := payload.Permit
	if permit == nil {
		t.Fatal("permit request missing")
	}
	if permit.Owner != testSender.Hex() {
		t.Errorf("owner = %q, want %q", permit.Owner, testSender.Hex())
	}
	if permit.Spender != spender.Hex() {
		t.Errorf("spender = %q, want %q", permit.Spender, spender.Hex())
	}
	if permit.Value != "1000000" {
		t.Errorf("value = %q, want 1000000", permit.Value)
	}
	if permit.Nonce != "3" {
		t.Errorf("nonce = %q, want 3", permit.Nonce)
	}
	if permit.Deadline != MaxUint256.String() {
		t.Errorf("deadline = %q, want max uint256", permit.Deadline)
	}
	if permit.V != 28 {
		t.Errorf("v = %d, want 28", permit.V)
	}

	if len(signer.signedTyped) != 1 || signer.signedTyped[0] != "Permit" {
		t.Errorf("signed types = %v, want [Permit]", signer.signedTyped)
	}
	// Permit domain needs the token name and nonce, not the forwarder nonce.
	wantReads := []string{"name", "nonces"}
	if len(signer.reads) != 2 || signer.reads[0] != wantReads[0] || signer.reads[1] != wantReads[1] {
		t.Errorf("contract reads = %v, want %v", signer.reads, wantReads)
	}
}

func TestBuildForwarderPayloadApproveWithThreeArgsIsForwarded(t *testing.T) {
	signer := newStubSigner()
	builder := NewPayloadBuilder(signer, nil)

	tx := gaslessTx("approve", testTarget.Hex(), big.NewInt(1), big.NewInt(2))
	payload, err := builder.BuildForwarderPayload(context.Background(), tx, testForwarder, 100_000)
	if err != nil {
		t.Fatalf("BuildForwarderPayload failed: %v", err)
	}
	if payload.Type() != PayloadTypeForward {
		t.Errorf("payload type = %q, want %q", payload.Type(), PayloadTypeForward)
	}
}

func TestBuildBiconomyRequest(t *testing.T) {
	signer := newStubSigner()
	builder := NewPayloadBuilder(signer, nil)

	tx := gaslessTx("transfer")
	before := time.Now().Unix()
	request, signature, err := builder.BuildBiconomyRequest(context.Background(), tx, 150_000, 600)
	if err != nil {
		t.Fatalf("BuildBiconomyRequest failed: %v", err)
	}

	if request.From != testSender.Hex() || request.To != testTarget.Hex() {
		t.Errorf("unexpected addresses: %+v", request)
	}
	if request.Token != (common.Address{}).Hex() {
		t.Errorf("token = %q, want zero address", request.Token)
	}
	if request.TxGas != 150_000 {
		t.Errorf("txGas = %d, want 150000", request.TxGas)
	}
	if request.TokenGasPrice != "0" || request.BatchID != 0 {
		t.Errorf("unexpected batch fields: %+v", request)
	}
	if request.BatchNonce != "7" {
		t.Errorf("batchNonce = %q, want 7", request.BatchNonce)
	}

	deadline := int64(request.Deadline)
	if deadline < before+600 || deadline > time.Now().Unix()+600 {
		t.Errorf("deadline %d not within expected window", deadline)
	}

	if len(signature) != 65 {
		t.Errorf("signature length = %d, want 65", len(signature))
	}
	if len(signer.signedMsgs) != 1 || len(signer.signedMsgs[0]) != 32 {
		t.Fatalf("expected one 32-byte personal-sign message, got %v", signer.signedMsgs)
	}
}

func TestBuildBiconomyRequestRejectsValue(t *testing.T) {
	builder := NewPayloadBuilder(newStubSigner(), nil)

	tx := gaslessTx("transfer")
	tx.Overrides.Value = big.NewInt(1)

	_, _, err := builder.BuildBiconomyRequest(context.Background(), tx, 100_000, 600)
	if thirdweb.ErrorCode(err) != thirdweb.ErrCodeValueTransfer {
		t.Fatalf("expected %s, got %v", thirdweb.ErrCodeValueTransfer, err)
	}
}
