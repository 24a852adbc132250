package relayer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	thirdweb "github.com/slide-web3/thirdweb-go-sdk"
	"github.com/slide-web3/thirdweb-go-sdk/relay"
	"github.com/slide-web3/thirdweb-go-sdk/signers"
)

// broadcastChain captures the transaction an EthBroadcaster sends.
type broadcastChain struct {
	sent *types.Transaction
}

func (c *broadcastChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 180_000, nil
}

func (c *broadcastChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 12, nil
}

func (c *broadcastChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.sent = tx
	return nil
}

func (c *broadcastChain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, nil
}

func (c *broadcastChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return nil, nil
}

func (c *broadcastChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (c *broadcastChain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return nil, nil
}

func (c *broadcastChain) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, nil
}

func (c *broadcastChain) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, nil
}

type fixedFees struct {
	overrides thirdweb.CallOverrides
}

func (f *fixedFees) ResolveOverrides(context.Context, thirdweb.SpeedTier) (thirdweb.CallOverrides, error) {
	return f.overrides, nil
}

func TestEthBroadcasterExecuteForward(t *testing.T) {
	chain := &broadcastChain{}
	signer, err := signers.NewPrivateKeySigner(testKey)
	require.NoError(t, err)

	fees := &fixedFees{overrides: thirdweb.CallOverrides{
		MaxFeePerGas:         big.NewInt(22_500_000_000),
		MaxPriorityFeePerGas: big.NewInt(2_500_000_000),
	}}
	token := common.HexToAddress("0xeEeEEEeeEEEEeEEeEEeEeeeEEeEeeeEeEeEEEEee")

	broadcaster, err := NewEthBroadcaster(chain, signer, fees, testChainID, testForwarder, token)
	require.NoError(t, err)

	request := &relay.ForwardRequest{
		From:  signer.Address().Hex(),
		To:    "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB",
		Value: "0",
		Gas:   "200000",
		Nonce: "7",
		Data:  "0xa9059cbb",
	}
	signature := make([]byte, 65)
	signature[64] = 27

	hash, err := broadcaster.ExecuteForward(context.Background(), request, signature)
	require.NoError(t, err)
	require.NotNil(t, chain.sent)
	require.Equal(t, chain.sent.Hash(), hash)

	require.Equal(t, testForwarder, *chain.sent.To())
	require.Equal(t, uint64(12), chain.sent.Nonce())
	require.Equal(t, types.DynamicFeeTxType, int(chain.sent.Type()))
	// execute((address,address,uint256,uint256,uint256,bytes),bytes)
	require.GreaterOrEqual(t, len(chain.sent.Data()), 4)
}

func TestEthBroadcasterExecutePermit(t *testing.T) {
	chain := &broadcastChain{}
	signer, err := signers.NewPrivateKeySigner(testKey)
	require.NoError(t, err)

	fees := &fixedFees{overrides: thirdweb.CallOverrides{GasPrice: big.NewInt(2_000_000_001)}}
	token := common.HexToAddress("0xeEeEEEeeEEEEeEEeEEeEeeeEEeEeeeEeEeEEEEee")

	broadcaster, err := NewEthBroadcaster(chain, signer, fees, testChainID, testForwarder, token)
	require.NoError(t, err)

	request := &relay.PermitRequest{
		Owner:    signer.Address().Hex(),
		Spender:  "0xdDdDddDdDdddDDddDDddDDDDdDdDDdDDdDDDDDDd",
		Value:    "1000000",
		Nonce:    "3",
		Deadline: "1893456000",
		V:        28,
		R:        "0x" + zeros(64),
		S:        "0x" + zeros(64),
	}

	_, err = broadcaster.ExecutePermit(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, chain.sent)
	require.Equal(t, token, *chain.sent.To())
	require.Equal(t, types.LegacyTxType, int(chain.sent.Type()))
	require.Equal(t, big.NewInt(2_000_000_001), chain.sent.GasPrice())
}

func TestEthBroadcasterRejectsMalformedPermitWords(t *testing.T) {
	chain := &broadcastChain{}
	signer, err := signers.NewPrivateKeySigner(testKey)
	require.NoError(t, err)

	broadcaster, err := NewEthBroadcaster(chain, signer,
		&fixedFees{}, testChainID, testForwarder, common.Address{})
	require.NoError(t, err)

	request := &relay.PermitRequest{
		Owner:    signer.Address().Hex(),
		Spender:  signer.Address().Hex(),
		Value:    "1",
		Nonce:    "0",
		Deadline: "1",
		V:        27,
		R:        "0xabcd",
		S:        "0x" + zeros(64),
	}

	_, err = broadcaster.ExecutePermit(context.Background(), request)
	require.Error(t, err)
	require.Nil(t, chain.sent)
}
