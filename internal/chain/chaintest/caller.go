// Package chaintest provides an in-memory contract backend for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrReverted is returned for calls nobody stubbed.
var ErrReverted = errors.New("execution reverted")

// Caller answers eth_call requests from stubbed responses keyed by target and calldata.
type Caller struct {
	mu        sync.Mutex
	responses map[string][]byte
	block     uint64
	failures  int
	calls     int
	blocks    []*big.Int
}

func NewCaller(block uint64) *Caller {
	return &Caller{responses: make(map[string][]byte), block: block}
}

// Stub registers outputs for method(args...) on to.
func (c *Caller) Stub(to common.Address, parsed abi.ABI, method string, args []interface{}, outputs ...interface{}) error {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}
	m, ok := parsed.Methods[method]
	if !ok {
		return fmt.Errorf("unknown method %s", method)
	}
	resp, err := m.Outputs.Pack(outputs...)
	if err != nil {
		return fmt.Errorf("pack %s outputs: %w", method, err)
	}
	c.mu.Lock()
	c.responses[key(to, data)] = resp
	c.mu.Unlock()
	return nil
}

// FailNext makes the next n calls fail with a transient error.
func (c *Caller) FailNext(n int) {
	c.mu.Lock()
	c.failures = n
	c.mu.Unlock()
}

// SetBlock moves the reported chain head.
func (c *Caller) SetBlock(block uint64) {
	c.mu.Lock()
	c.block = block
	c.mu.Unlock()
}

// Calls returns how many eth_call requests were served or failed.
func (c *Caller) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Blocks returns the block argument of every call, in order.
func (c *Caller) Blocks() []*big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*big.Int(nil), c.blocks...)
}

func (c *Caller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg.To == nil {
		return nil, fmt.Errorf("call without target")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.blocks = append(c.blocks, blockNumber)
	if c.failures > 0 {
		c.failures--
		return nil, fmt.Errorf("temporary rpc failure")
	}
	resp, ok := c.responses[key(*msg.To, msg.Data)]
	if !ok {
		return nil, ErrReverted
	}
	return resp, nil
}

func (c *Caller) LatestBlockNumber(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block, nil
}

func (c *Caller) GetChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), ctx.Err()
}

func key(to common.Address, data []byte) string {
	return to.Hex() + ":" + hexutil.Encode(data)
}
