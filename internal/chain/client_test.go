package chain

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	chainErr  error
	balance   *big.Int
	calls     atomic.Int32
	nonce     *big.Int
	tokenBal  *big.Int
	decimals  uint8
	failFirst atomic.Bool
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	if f.failFirst.CompareAndSwap(true, false) {
		return nil, errors.New("temporary")
	}
	if f.chainErr != nil {
		return nil, f.chainErr
	}
	return big.NewInt(137), nil
}

func (f *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls.Add(1)
	method, err := parsedABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "nonces":
		return method.Outputs.Pack(f.nonce)
	case "balanceOf":
		return method.Outputs.Pack(f.tokenBal)
	case "decimals":
		return method.Outputs.Pack(f.decimals)
	}
	return nil, errors.New("unexpected method")
}

func TestNativeBalanceAndChainID(t *testing.T) {
	fb := &fakeBackend{balance: big.NewInt(1500000000000000000)}
	c := NewWithBackend(fb, Options{})

	id, err := c.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(137), id.Int64())

	bal, err := c.NativeBalance(context.Background(), common.Address{})
	require.NoError(t, err)
	assert.Equal(t, "1.5", FormatEther(bal))
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	fb := &fakeBackend{}
	fb.failFirst.Store(true)
	c := NewWithBackend(fb, Options{Retries: 1})

	_, err := c.ChainID(context.Background())
	assert.NoError(t, err)
}

func TestNoRetryReturnsError(t *testing.T) {
	fb := &fakeBackend{chainErr: errors.New("down")}
	c := NewWithBackend(fb, Options{Retries: 0})

	_, err := c.ChainID(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}

func TestTokenBalance(t *testing.T) {
	fb := &fakeBackend{tokenBal: big.NewInt(12_345_678), decimals: 6}
	c := NewWithBackend(fb, Options{})

	bal, dec, err := c.TokenBalance(context.Background(), common.HexToAddress("0x01"), common.HexToAddress("0x02"))
	require.NoError(t, err)
	assert.Equal(t, uint8(6), dec)
	assert.Equal(t, "12.345678", FormatUnits(bal, int32(dec)))
}

func TestExchangeNonceIsCachedUntilInvalidated(t *testing.T) {
	fb := &fakeBackend{nonce: big.NewInt(7)}
	c := NewWithBackend(fb, Options{NonceCacheTTL: time.Minute})
	addr := common.HexToAddress("0xabc")

	n, err := c.ExchangeNonce(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n.Int64())

	fb.nonce = big.NewInt(8)
	n, err = c.ExchangeNonce(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n.Int64())
	assert.Equal(t, int32(1), fb.calls.Load())

	c.InvalidateExchangeNonce(addr)
	n, err = c.ExchangeNonce(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n.Int64())
}

func TestMissingRPCURL(t *testing.T) {
	c := NewClient(Options{})
	_, err := c.ChainID(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc url not configured")
}
