// Package relayer is a reference implementation of the HTTP service
// the forwarder relay backend talks to. It validates submissions,
// verifies forward-request signatures off-chain, and broadcasts the
// wrapped transaction from a funded relayer account.
package relayer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	thirdweb "github.com/slide-web3/thirdweb-go-sdk"
	"github.com/slide-web3/thirdweb-go-sdk/relay"
)

// Broadcaster submits verified relay payloads on-chain.
type Broadcaster interface {
	// ExecuteForward submits a forwarder execute call wrapping the
	// signed request.
	ExecuteForward(ctx context.Context, request *relay.ForwardRequest, signature []byte) (common.Hash, error)

	// ExecutePermit submits a token permit call carrying the split
	// signature. The token verifies the signature on-chain.
	ExecutePermit(ctx context.Context, request *relay.PermitRequest) (common.Hash, error)
}

// Result is the canonical success payload.
type Result struct {
	TxHash string `json:"txHash"`
}

// ErrorDetail describes a rejected submission. The id correlates the
// response with server logs.
type ErrorDetail struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Response is the canonical response envelope: exactly one of Result
// or Error is set.
type Response struct {
	Result *Result      `json:"result,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

type submission struct {
	Request   json.RawMessage `json:"request"`
	Signature string          `json:"signature"`
	Type      string          `json:"type"`
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server is the framework-agnostic core: adapters for specific HTTP
// frameworks feed it raw request bodies and write back its responses.
type Server struct {
	broadcaster Broadcaster
	forwarder   common.Address
	chainID     *big.Int
	logger      *zap.Logger
}

// NewServer creates a relayer core verifying forward requests against
// the given forwarder's EIP-712 domain.
func NewServer(broadcaster Broadcaster, forwarder common.Address, chainID *big.Int, opts ...ServerOption) *Server {
	s := &Server{
		broadcaster: broadcaster,
		forwarder:   forwarder,
		chainID:     chainID,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle processes one submission body and returns the HTTP status and
// response envelope to write back.
func (s *Server) Handle(ctx context.Context, body []byte) (int, *Response) {
	requestID := uuid.NewString()
	logger := s.logger.With(zap.String("requestId", requestID))

	if err := ValidateSubmission(body); err != nil {
		logger.Info("rejected malformed submission", zap.Error(err))
		return http.StatusBadRequest, errorResponse(requestID, err.Error())
	}

	var sub submission
	if err := json.Unmarshal(body, &sub); err != nil {
		logger.Info("rejected undecodable submission", zap.Error(err))
		return http.StatusBadRequest, errorResponse(requestID, "invalid JSON body")
	}

	signature, err := hexutil.Decode(sub.Signature)
	if err != nil || len(signature) != 65 {
		logger.Info("rejected submission with bad signature encoding")
		return http.StatusBadRequest, errorResponse(requestID, "signature must be 65 bytes of 0x-prefixed hex")
	}

	switch sub.Type {
	case relay.PayloadTypeForward:
		return s.handleForward(ctx, logger, requestID, sub.Request, signature)
	case relay.PayloadTypePermit:
		return s.handlePermit(ctx, logger, requestID, sub.Request)
	default:
		return http.StatusBadRequest, errorResponse(requestID, fmt.Sprintf("unknown payload type %q", sub.Type))
	}
}

func (s *Server) handleForward(ctx context.Context, logger *zap.Logger, requestID string, raw json.RawMessage, signature []byte) (int, *Response) {
	var request relay.ForwardRequest
	if err := json.Unmarshal(raw, &request); err != nil {
		return http.StatusBadRequest, errorResponse(requestID, "invalid forward request")
	}

	if err := s.verifyForwardSignature(&request, signature); err != nil {
		logger.Info("rejected forward request", zap.String("from", request.From), zap.Error(err))
		return http.StatusUnauthorized, errorResponse(requestID, err.Error())
	}

	hash, err := s.broadcaster.ExecuteForward(ctx, &request, signature)
	if err != nil {
		logger.Error("forward broadcast failed", zap.Error(err))
		return http.StatusInternalServerError, errorResponse(requestID, "broadcast failed")
	}

	logger.Info("forwarded transaction",
		zap.String("from", request.From),
		zap.String("to", request.To),
		zap.String("txHash", hash.Hex()),
	)
	return http.StatusOK, &Response{Result: &Result{TxHash: hash.Hex()}}
}

// handlePermit broadcasts without off-chain verification: the token's
// permit function recovers and checks the signer on-chain, so a bad
// signature costs the relayer one reverted transaction at most.
func (s *Server) handlePermit(ctx context.Context, logger *zap.Logger, requestID string, raw json.RawMessage) (int, *Response) {
	var request relay.PermitRequest
	if err := json.Unmarshal(raw, &request); err != nil {
		return http.StatusBadRequest, errorResponse(requestID, "invalid permit request")
	}

	hash, err := s.broadcaster.ExecutePermit(ctx, &request)
	if err != nil {
		logger.Error("permit broadcast failed", zap.Error(err))
		return http.StatusInternalServerError, errorResponse(requestID, "broadcast failed")
	}

	logger.Info("submitted permit",
		zap.String("owner", request.Owner),
		zap.String("spender", request.Spender),
		zap.String("txHash", hash.Hex()),
	)
	return http.StatusOK, &Response{Result: &Result{TxHash: hash.Hex()}}
}

// verifyForwardSignature recovers the EIP-712 signer of the forward
// request and requires it to match the claimed sender.
func (s *Server) verifyForwardSignature(request *relay.ForwardRequest, signature []byte) error {
	value, ok := new(big.Int).SetString(request.Value, 10)
	if !ok {
		return fmt.Errorf("invalid value %q", request.Value)
	}
	gas, ok := new(big.Int).SetString(request.Gas, 10)
	if !ok {
		return fmt.Errorf("invalid gas %q", request.Gas)
	}
	nonce, ok := new(big.Int).SetString(request.Nonce, 10)
	if !ok {
		return fmt.Errorf("invalid nonce %q", request.Nonce)
	}
	data, err := hexutil.Decode(request.Data)
	if err != nil {
		return fmt.Errorf("invalid data: %w", err)
	}
	if !common.IsHexAddress(request.From) || !common.IsHexAddress(request.To) {
		return fmt.Errorf("invalid from or to address")
	}

	domain := thirdweb.TypedDataDomain{
		Name:              relay.ForwarderDomainName,
		Version:           relay.ForwarderDomainVersion,
		ChainID:           s.chainID,
		VerifyingContract: s.forwarder.Hex(),
	}
	message := map[string]interface{}{
		"from":  request.From,
		"to":    request.To,
		"value": value,
		"gas":   gas,
		"nonce": nonce,
		"data":  data,
	}

	digest, err := thirdweb.HashTypedData(domain, relay.ForwardRequestTypes(), "ForwardRequest", message)
	if err != nil {
		return fmt.Errorf("failed to hash request: %w", err)
	}

	recoverable := make([]byte, 65)
	copy(recoverable, signature)
	if recoverable[64] >= 27 {
		recoverable[64] -= 27
	}
	pubKey, err := crypto.SigToPub(digest, recoverable)
	if err != nil {
		return fmt.Errorf("failed to recover signer: %w", err)
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	if recovered != common.HexToAddress(request.From) {
		return fmt.Errorf("signature does not match sender %s", request.From)
	}
	return nil
}

func errorResponse(requestID, message string) *Response {
	return &Response{Error: &ErrorDetail{ID: requestID, Message: message}}
}
