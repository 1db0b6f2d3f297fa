// Package rpcgateway is the RPC Gateway: one bounded-concurrency, retrying
// JSON-RPC client per network, with transport fallback and a classified
// error return (transport exhaustion vs. provider application errors).
package rpcgateway

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/riftline/evmsync/internal/errkind"
	pkgconfig "github.com/riftline/evmsync/pkg/config"
	pkgrpc "github.com/riftline/evmsync/pkg/rpc"
)

var _ pkgrpc.EthClient = (*Gateway)(nil)

const defaultMaxBatch = 100

// Gateway is the single entry point for outbound JSON-RPC calls on one
// network. A buffered channel of size maxConcurrency acts as the
// concurrency pool: every call acquires a slot before dialing out and
// releases it on return, so no more than maxConcurrency requests are ever
// in flight regardless of how many callers (historical fetcher, live
// follower, source resolver) share the gateway.
type Gateway struct {
	network string

	eth *ethclient.Client
	rpc *gethrpc.Client

	retryConfig *pkgconfig.RetryConfig
	callTimeout time.Duration

	pool chan struct{}
}

// Dial connects to the network's primary transport, falling back through
// FallbackTransports in order on transport-level dial failure only.
func Dial(ctx context.Context, network string, cfg pkgconfig.NetworkConfig, retryConfig *pkgconfig.RetryConfig) (*Gateway, error) {
	endpoints := append([]string{cfg.Transport}, cfg.FallbackTransports...)

	var lastErr error
	for _, endpoint := range endpoints {
		rpcClient, err := gethrpc.DialContext(ctx, endpoint)
		if err != nil {
			lastErr = err
			continue
		}

		concurrency := cfg.MaxHistoricalTaskConcurrency
		if concurrency <= 0 {
			concurrency = 1
		}

		return &Gateway{
			network:     network,
			eth:         ethclient.NewClient(rpcClient),
			rpc:         rpcClient,
			retryConfig: retryConfig,
			callTimeout: retryConfig.CallTimeout.Duration,
			pool:        make(chan struct{}, concurrency),
		}, nil
	}

	return nil, fmt.Errorf("rpc gateway %q: all transports failed, last error: %w", network, lastErr)
}

func (g *Gateway) Close() {
	g.eth.Close()
}

// acquire blocks until a concurrency slot is free, and returns a release
// function plus a context bounded by the per-call timeout.
func (g *Gateway) acquire(ctx context.Context) (context.Context, context.CancelFunc, func()) {
	g.pool <- struct{}{}
	gatewayInFlightSet(g.network, len(g.pool))
	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	release := func() {
		<-g.pool
		gatewayInFlightSet(g.network, len(g.pool))
	}
	return callCtx, cancel, release
}

// classify wraps a final (post-retry) error into the errkind taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if isToo, errData := isTooManyResultsError(err); isToo {
		from, to, ok := parseSuggestedBlockRange(errData)
		return errkind.NewApplicationError(err, from, to, ok)
	}
	if transportRetryableError(err) {
		return errkind.New(errkind.RpcUnavailable, err)
	}
	return errkind.New(errkind.RpcApplication, err)
}

func (g *Gateway) call(ctx context.Context, method string, fn func(callCtx context.Context) error) error {
	callCtx, cancel, release := g.acquire(ctx)
	defer cancel()
	defer release()

	start := time.Now()
	gatewayRequestInc(g.network, method)

	err := retryWithBackoff(callCtx, g.retryConfig, method, func() error {
		return fn(callCtx)
	})

	gatewayDurationObserve(g.network, method, time.Since(start))

	if err != nil {
		wrapped := classify(err)
		if e, ok := wrapped.(*errkind.Error); ok {
			gatewayErrorInc(g.network, method, e.Kind.String())
		}
		return wrapped
	}
	return nil
}

func (g *Gateway) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := g.call(ctx, "eth_getLogs", func(callCtx context.Context) error {
		var fetchErr error
		logs, fetchErr = g.eth.FilterLogs(callCtx, query)
		return fetchErr
	})
	return logs, err
}

func (g *Gateway) GetBlockHeader(ctx context.Context, blockNum uint64) (*types.Header, error) {
	var header *types.Header
	err := g.call(ctx, "eth_getBlockByNumber", func(callCtx context.Context) error {
		var fetchErr error
		header, fetchErr = g.eth.HeaderByNumber(callCtx, big.NewInt(int64(blockNum)))
		return fetchErr
	})
	return header, err
}

func (g *Gateway) GetLatestBlockHeader(ctx context.Context) (*types.Header, error) {
	var header *types.Header
	err := g.call(ctx, "eth_getBlockByNumber", func(callCtx context.Context) error {
		var fetchErr error
		header, fetchErr = g.eth.HeaderByNumber(callCtx, nil)
		return fetchErr
	})
	return header, err
}

func (g *Gateway) GetFinalizedBlockHeader(ctx context.Context) (*types.Header, error) {
	var header *types.Header
	err := g.call(ctx, "eth_getBlockByNumber", func(callCtx context.Context) error {
		var fetchErr error
		header, fetchErr = g.eth.HeaderByNumber(callCtx, big.NewInt(int64(gethrpc.FinalizedBlockNumber)))
		return fetchErr
	})
	return header, err
}

func (g *Gateway) GetSafeBlockHeader(ctx context.Context) (*types.Header, error) {
	var header *types.Header
	err := g.call(ctx, "eth_getBlockByNumber", func(callCtx context.Context) error {
		var fetchErr error
		header, fetchErr = g.eth.HeaderByNumber(callCtx, big.NewInt(int64(gethrpc.SafeBlockNumber)))
		return fetchErr
	})
	return header, err
}

// CallContract performs an eth_call, the read path the chain-call cache in
// internal/cachestore (Store.ReadContract) reads through on a miss.
func (g *Gateway) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var result []byte
	err := g.call(ctx, "eth_call", func(callCtx context.Context) error {
		var fetchErr error
		result, fetchErr = g.eth.CallContract(callCtx, msg, blockNumber)
		return fetchErr
	})
	return result, err
}

func (g *Gateway) BatchGetLogs(ctx context.Context, queries []ethereum.FilterQuery) ([][]types.Log, error) {
	var results [][]types.Log
	err := g.call(ctx, "eth_getLogs_batch", func(callCtx context.Context) error {
		batch := make([]gethrpc.BatchElem, len(queries))
		results = make([][]types.Log, len(queries))

		for i, query := range queries {
			batch[i] = gethrpc.BatchElem{
				Method: "eth_getLogs",
				Args:   []any{toFilterArg(query)},
				Result: &results[i],
			}
		}

		if err := g.rpc.BatchCallContext(callCtx, batch); err != nil {
			return err
		}
		for _, elem := range batch {
			if elem.Error != nil {
				return elem.Error
			}
		}
		return nil
	})
	return results, err
}

func (g *Gateway) BatchGetBlockHeaders(ctx context.Context, blockNums []uint64) ([]*types.Header, error) {
	var allResults []*types.Header

	for i := 0; i < len(blockNums); i += defaultMaxBatch {
		end := min(i+defaultMaxBatch, len(blockNums))
		chunk := blockNums[i:end]

		var chunkResults []*types.Header
		err := g.call(ctx, "eth_getBlockByNumber_batch", func(callCtx context.Context) error {
			batch := make([]gethrpc.BatchElem, len(chunk))
			chunkResults = make([]*types.Header, len(chunk))

			for j, blockNum := range chunk {
				batch[j] = gethrpc.BatchElem{
					Method: "eth_getBlockByNumber",
					Args:   []any{toBlockNumArg(blockNum), false},
					Result: &chunkResults[j],
				}
			}

			if err := g.rpc.BatchCallContext(callCtx, batch); err != nil {
				return err
			}
			for _, elem := range batch {
				if elem.Error != nil {
					return elem.Error
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		allResults = append(allResults, chunkResults...)
	}

	return allResults, nil
}

func toFilterArg(q ethereum.FilterQuery) any {
	arg := map[string]any{
		"topics": q.Topics,
	}

	if q.BlockHash != nil {
		arg["blockHash"] = *q.BlockHash
	} else {
		if q.FromBlock != nil {
			arg["fromBlock"] = toBlockNumArg(q.FromBlock.Uint64())
		}
		if q.ToBlock != nil {
			arg["toBlock"] = toBlockNumArg(q.ToBlock.Uint64())
		}
	}

	if len(q.Addresses) > 0 {
		if len(q.Addresses) == 1 {
			arg["address"] = q.Addresses[0]
		} else {
			arg["address"] = q.Addresses
		}
	}

	return arg
}

func toBlockNumArg(blockNum uint64) string {
	return fmt.Sprintf("0x%x", blockNum)
}
