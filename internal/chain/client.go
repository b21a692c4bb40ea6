package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// CTF Exchange on Polygon; nonces(address) is what order.nonce must equal.
const ExchangeAddress = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"

const contractABI = `[
{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"","type":"address"}],"name":"nonces","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var parsedABI = mustParseABI(contractABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("chain: bad abi: %v", err))
	}
	return parsed
}

// Backend is the subset of ethclient.Client used here.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type DialFunc func(ctx context.Context, rpcURL string) (Backend, error)

func dialEth(ctx context.Context, rpcURL string) (Backend, error) {
	return ethclient.DialContext(ctx, rpcURL)
}

type Options struct {
	RPCURL        string
	Timeout       time.Duration
	Retries       int
	NonceCacheTTL time.Duration
	Dial          DialFunc
}

// Client is a lazily dialed, shared JSON-RPC client with bounded retries.
type Client struct {
	rpcURL   string
	timeout  time.Duration
	retries  int
	nonceTTL time.Duration
	dial     DialFunc

	mu      sync.Mutex
	backend Backend

	nonceMu sync.Mutex
	nonces  map[common.Address]cachedNonce
}

type cachedNonce struct {
	value   *big.Int
	expires time.Time
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.NonceCacheTTL <= 0 {
		opts.NonceCacheTTL = 60 * time.Second
	}
	if opts.Dial == nil {
		opts.Dial = dialEth
	}
	return &Client{
		rpcURL:   strings.TrimSpace(opts.RPCURL),
		timeout:  opts.Timeout,
		retries:  opts.Retries,
		nonceTTL: opts.NonceCacheTTL,
		dial:     opts.Dial,
		nonces:   make(map[common.Address]cachedNonce),
	}
}

// NewWithBackend wraps an existing backend; used by tests and simulated chains.
func NewWithBackend(b Backend, opts Options) *Client {
	c := NewClient(opts)
	c.backend = b
	return c
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := c.do(ctx, func(ctx context.Context, b Backend) error {
		id, err := b.ChainID(ctx)
		out = id
		return err
	})
	return out, err
}

// NativeBalance returns the latest balance of addr in wei.
func (c *Client) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var out *big.Int
	err := c.do(ctx, func(ctx context.Context, b Backend) error {
		bal, err := b.BalanceAt(ctx, addr, nil)
		out = bal
		return err
	})
	return out, err
}

// TokenBalance returns the ERC-20 balance of holder and the token's decimals.
func (c *Client) TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, uint8, error) {
	raw, err := c.call(ctx, token, "balanceOf", holder)
	if err != nil {
		return nil, 0, err
	}
	balance, ok := raw[0].(*big.Int)
	if !ok {
		return nil, 0, fmt.Errorf("unexpected balanceOf result %T", raw[0])
	}

	raw, err = c.call(ctx, token, "decimals")
	if err != nil {
		return nil, 0, err
	}
	decimals, ok := raw[0].(uint8)
	if !ok {
		return nil, 0, fmt.Errorf("unexpected decimals result %T", raw[0])
	}
	return balance, decimals, nil
}

// ExchangeNonce returns the cached CTF exchange nonce for addr, syncing from
// the contract when absent or expired.
func (c *Client) ExchangeNonce(ctx context.Context, addr common.Address) (*big.Int, error) {
	c.nonceMu.Lock()
	cached, ok := c.nonces[addr]
	c.nonceMu.Unlock()
	if ok && time.Now().Before(cached.expires) {
		return new(big.Int).Set(cached.value), nil
	}
	return c.SyncExchangeNonce(ctx, addr)
}

func (c *Client) SyncExchangeNonce(ctx context.Context, addr common.Address) (*big.Int, error) {
	raw, err := c.call(ctx, common.HexToAddress(ExchangeAddress), "nonces", addr)
	if err != nil {
		return nil, err
	}
	nonce, ok := raw[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected nonces result %T", raw[0])
	}

	c.nonceMu.Lock()
	c.nonces[addr] = cachedNonce{value: nonce, expires: time.Now().Add(c.nonceTTL)}
	c.nonceMu.Unlock()
	return new(big.Int).Set(nonce), nil
}

// InvalidateExchangeNonce drops the cached nonce, e.g. after a cancel-all.
func (c *Client) InvalidateExchangeNonce(addr common.Address) {
	c.nonceMu.Lock()
	delete(c.nonces, addr)
	c.nonceMu.Unlock()
}

func (c *Client) call(ctx context.Context, to common.Address, method string, args ...any) ([]any, error) {
	data, err := parsedABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	var output []byte
	err = c.do(ctx, func(ctx context.Context, b Backend) error {
		out, err := b.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		output = out
		return err
	})
	if err != nil {
		return nil, err
	}
	values, err := parsedABI.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	return values, nil
}

func (c *Client) do(ctx context.Context, fn func(context.Context, Backend) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		backend, err := c.getBackend(attemptCtx)
		if err == nil {
			err = fn(attemptCtx, backend)
		}
		cancel()
		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("rpc call failed: %w", err)
		if !shouldRetry(ctx, attempt, c.retries) {
			break
		}
	}
	return lastErr
}

func (c *Client) getBackend(ctx context.Context) (Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend != nil {
		return c.backend, nil
	}
	if c.rpcURL == "" {
		return nil, fmt.Errorf("rpc url not configured")
	}
	backend, err := c.dial(ctx, c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect rpc: %w", err)
	}
	c.backend = backend
	return c.backend, nil
}

func shouldRetry(ctx context.Context, attempt, max int) bool {
	if attempt >= max {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(time.Duration(attempt+1) * 200 * time.Millisecond):
		return true
	}
}
