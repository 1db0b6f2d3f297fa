package helpers

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FakeEthClient is a hand-rolled pkg/rpc.EthClient stand-in backed by an
// in-memory chain of headers and logs, for tests that need deterministic
// RPC responses without a live node.
type FakeEthClient struct {
	mu sync.Mutex

	Headers   map[uint64]*types.Header
	Logs      []types.Log
	Latest    uint64
	Finalized uint64
	Safe      uint64

	// GetLogsErr, when set, is returned by GetLogs instead of matching logs.
	GetLogsErr error

	// CallResult, when set, is returned by CallContract regardless of msg.
	CallResult []byte
	CallErr    error
}

func NewFakeEthClient() *FakeEthClient {
	return &FakeEthClient{Headers: make(map[uint64]*types.Header)}
}

func (f *FakeEthClient) Close() {}

func (f *FakeEthClient) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.GetLogsErr != nil {
		return nil, f.GetLogsErr
	}

	from := uint64(0)
	if query.FromBlock != nil {
		from = query.FromBlock.Uint64()
	}
	to := ^uint64(0)
	if query.ToBlock != nil {
		to = query.ToBlock.Uint64()
	}

	var out []types.Log
	for _, l := range f.Logs {
		if l.BlockNumber < from || l.BlockNumber > to {
			continue
		}
		if !matchesAddress(query.Addresses, l.Address) {
			continue
		}
		if !matchesTopics(query.Topics, l.Topics) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *FakeEthClient) GetBlockHeader(ctx context.Context, blockNum uint64) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.Headers[blockNum]
	if !ok {
		return nil, fmt.Errorf("fake eth client: no header for block %d", blockNum)
	}
	return h, nil
}

func (f *FakeEthClient) GetLatestBlockHeader(ctx context.Context) (*types.Header, error) {
	return f.GetBlockHeader(ctx, f.Latest)
}

func (f *FakeEthClient) GetFinalizedBlockHeader(ctx context.Context) (*types.Header, error) {
	return f.GetBlockHeader(ctx, f.Finalized)
}

func (f *FakeEthClient) GetSafeBlockHeader(ctx context.Context) (*types.Header, error) {
	return f.GetBlockHeader(ctx, f.Safe)
}

func (f *FakeEthClient) BatchGetLogs(ctx context.Context, queries []ethereum.FilterQuery) ([][]types.Log, error) {
	out := make([][]types.Log, len(queries))
	for i, q := range queries {
		logs, err := f.GetLogs(ctx, q)
		if err != nil {
			return nil, err
		}
		out[i] = logs
	}
	return out, nil
}

func (f *FakeEthClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CallErr != nil {
		return nil, f.CallErr
	}
	return f.CallResult, nil
}

func (f *FakeEthClient) BatchGetBlockHeaders(ctx context.Context, blockNums []uint64) ([]*types.Header, error) {
	out := make([]*types.Header, len(blockNums))
	for i, n := range blockNums {
		h, err := f.GetBlockHeader(ctx, n)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

func matchesAddress(want []common.Address, got common.Address) bool {
	if len(want) == 0 {
		return true
	}
	for _, a := range want {
		if a == got {
			return true
		}
	}
	return false
}

func matchesTopics(want [][]common.Hash, got []common.Hash) bool {
	for i, set := range want {
		if len(set) == 0 {
			continue
		}
		if i >= len(got) {
			return false
		}
		found := false
		for _, t := range set {
			if t == got[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
