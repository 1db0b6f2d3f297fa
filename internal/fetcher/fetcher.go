// Package fetcher is the Historical Fetcher: it walks a source's
// configured start block up to the network's finalized tip, pulling only
// the ranges the Cache Store doesn't already hold, in bounded parallel.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/riftline/evmsync/internal/cachestore"
	"github.com/riftline/evmsync/internal/errkind"
	"github.com/riftline/evmsync/internal/logger"
	"github.com/riftline/evmsync/internal/metrics"
	"github.com/riftline/evmsync/internal/resolver"
	pkgrpc "github.com/riftline/evmsync/pkg/rpc"
	"github.com/riftline/evmsync/pkg/source"
	"golang.org/x/sync/errgroup"
)

// minChunk is the smallest range a "range too large" halving will ever
// produce; below this we give up rather than spin forever on a single block.
const minChunk = 1

// Fetcher backfills one network's sources against the Cache Store.
type Fetcher struct {
	network source.Network
	rpc     pkgrpc.EthClient
	cache   *cachestore.Store
	log     *logger.Logger

	// resolver is set after construction by the Orchestrator, once the
	// Resolver exists with this Fetcher's EnsureSynced wired as its
	// EnsureSyncedFunc. Nil-safe: SetResolver must be called before
	// SyncSource is used on a factory source.
	resolver *resolver.Resolver
}

func New(network source.Network, rpc pkgrpc.EthClient, cache *cachestore.Store, log *logger.Logger) *Fetcher {
	return &Fetcher{
		network: network,
		rpc:     rpc,
		cache:   cache,
		log:     log.WithComponent("historical-fetcher"),
	}
}

// SetResolver wires the Source Resolver this fetcher resolves factory
// sources through. Call once, before SyncSource is used on any factory
// source.
func (f *Fetcher) SetResolver(r *resolver.Resolver) {
	f.resolver = r
}

// EnsureSynced backfills parentSource (always a static source) up to the
// finalized tip. It satisfies resolver.EnsureSyncedFunc, letting the
// Resolver recurse into the fetcher for a factory's parent contract
// without the two packages importing each other.
func (f *Fetcher) EnsureSynced(ctx context.Context, parentSource source.Source) error {
	return f.SyncSource(ctx, parentSource)
}

// SyncSource backfills src from its configured start block up to the
// network's finalized tip (or src.EndBlock, if set), fetching only the
// ranges the cache doesn't already hold.
func (f *Fetcher) SyncSource(ctx context.Context, src source.Source) error {
	filter, err := f.resolve(ctx, src)
	if err != nil {
		return fmt.Errorf("historical fetcher: resolving %q: %w", src.Name, err)
	}

	to, err := f.upperBound(ctx, src)
	if err != nil {
		return fmt.Errorf("historical fetcher: determining sync target for %q: %w", src.Name, err)
	}
	if src.StartBlock > to {
		return nil
	}

	gaps, err := f.cache.RequiredRanges(ctx, f.network.ChainID, filter.Fingerprint, src.StartBlock, to)
	if err != nil {
		return fmt.Errorf("historical fetcher: computing required ranges for %q: %w", src.Name, err)
	}
	if len(gaps) == 0 {
		return nil
	}

	chunkSize := src.EffectiveMaxBlockRange(f.network)
	concurrency := f.network.MaxHistoricalTaskConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, gap := range gaps {
		cursor := gap.FromBlock
		for cursor <= gap.ToBlock {
			rangeFrom := cursor
			rangeTo := rangeFrom + chunkSize - 1
			if rangeTo > gap.ToBlock {
				rangeTo = gap.ToBlock
			}
			g.Go(func() error {
				return f.fetchChunk(gctx, filter.Fingerprint, filter.Addresses, filter.Topics, rangeFrom, rangeTo)
			})
			cursor = rangeTo + 1
		}
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("historical fetcher: syncing %q: %w", src.Name, err)
	}
	return nil
}

func (f *Fetcher) resolve(ctx context.Context, src source.Source) (resolver.ResolvedFilter, error) {
	if !src.IsFactory() {
		return resolver.ResolvedFilter{
			Addresses:   src.Addresses,
			Topics:      src.Topics,
			Fingerprint: src.Fingerprint(),
		}, nil
	}
	if f.resolver == nil {
		return resolver.ResolvedFilter{}, fmt.Errorf("factory source %q resolved before a resolver was wired", src.Name)
	}
	return f.resolver.Resolve(ctx, f.network.ChainID, src)
}

func (f *Fetcher) upperBound(ctx context.Context, src source.Source) (uint64, error) {
	if src.EndBlock != nil {
		return *src.EndBlock, nil
	}
	head, err := f.rpc.GetLatestBlockHeader(ctx)
	if err != nil {
		return 0, err
	}
	return f.network.FinalizedBlock(head.Number.Uint64()), nil
}

// fetchChunk fetches and caches one block range, halving and retrying on a
// provider "range too large" error instead of failing the whole sync.
func (f *Fetcher) fetchChunk(ctx context.Context, fingerprint string, addresses []common.Address, topics [][]common.Hash, from, to uint64) error {
	headers, logs, err := f.fetchRaw(ctx, addresses, topics, from, to)
	if err != nil {
		var kindErr *errkind.Error
		if errors.As(err, &kindErr) && kindErr.Kind == errkind.RpcApplication {
			return f.fetchHalved(ctx, fingerprint, addresses, topics, from, to, kindErr)
		}
		return err
	}

	if err := verifyContinuity(headers); err != nil {
		return errkind.New(errkind.DeepReorg, fmt.Errorf("historical range [%d,%d]: %w", from, to, err))
	}

	return f.commit(ctx, fingerprint, headers, logs, from, to)
}

// fetchHalved retries a "range too large" chunk using the provider's
// suggested narrower range when present, or a plain bisection otherwise.
func (f *Fetcher) fetchHalved(ctx context.Context, fingerprint string, addresses []common.Address, topics [][]common.Hash, from, to uint64, cause *errkind.Error) error {
	if to-from+1 <= minChunk {
		return fmt.Errorf("range [%d,%d] rejected by provider and cannot be split further: %w", from, to, cause)
	}

	if cause.HasSuggestedRange && cause.SuggestedToBlock >= cause.SuggestedFromBlock && cause.SuggestedFromBlock >= from {
		if err := f.fetchChunk(ctx, fingerprint, addresses, topics, cause.SuggestedFromBlock, cause.SuggestedToBlock); err != nil {
			return err
		}
		if cause.SuggestedToBlock >= to {
			return nil
		}
		return f.fetchChunk(ctx, fingerprint, addresses, topics, cause.SuggestedToBlock+1, to)
	}

	mid := from + (to-from)/2
	if err := f.fetchChunk(ctx, fingerprint, addresses, topics, from, mid); err != nil {
		return err
	}
	return f.fetchChunk(ctx, fingerprint, addresses, topics, mid+1, to)
}

func (f *Fetcher) fetchRaw(ctx context.Context, addresses []common.Address, topics [][]common.Hash, from, to uint64) ([]*types.Header, []types.Log, error) {
	blockNumbers := make([]uint64, 0, to-from+1)
	for n := from; n <= to; n++ {
		blockNumbers = append(blockNumbers, n)
	}

	headers, err := f.rpc.BatchGetBlockHeaders(ctx, blockNumbers)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching headers [%d,%d]: %w", from, to, err)
	}

	var logs []types.Log
	if len(addresses) > 0 {
		query := ethereum.FilterQuery{
			FromBlock: big.NewInt(int64(from)),
			ToBlock:   big.NewInt(int64(to)),
			Addresses: addresses,
			Topics:    topics,
		}
		logs, err = f.rpc.GetLogs(ctx, query)
		if err != nil {
			return nil, nil, fmt.Errorf("fetching logs [%d,%d]: %w", from, to, err)
		}
	}

	return headers, logs, nil
}

// verifyContinuity checks that consecutive headers form an unbroken
// parent-hash chain. A break this deep into a historical, supposedly
// finalized range indicates a reorg beyond what the network's finality
// window should allow.
func verifyContinuity(headers []*types.Header) error {
	byNumber := make(map[uint64]*types.Header, len(headers))
	for _, h := range headers {
		byNumber[h.Number.Uint64()] = h
	}
	for _, h := range headers {
		prev, ok := byNumber[h.Number.Uint64()-1]
		if !ok {
			continue
		}
		if prev.Hash() != h.ParentHash {
			return fmt.Errorf("block %d parent hash %s does not match block %d hash %s",
				h.Number.Uint64(), h.ParentHash, prev.Number.Uint64(), prev.Hash())
		}
	}
	return nil
}

func (f *Fetcher) commit(ctx context.Context, fingerprint string, headers []*types.Header, logs []types.Log, from, to uint64) error {
	if err := f.cache.InsertBlocks(ctx, f.network.ChainID, headers); err != nil {
		return err
	}
	if err := f.cache.InsertLogs(ctx, f.network.ChainID, logs); err != nil {
		return err
	}
	if err := f.cache.InsertTransactions(ctx, f.network.ChainID, logs); err != nil {
		return err
	}
	if err := f.cache.RecordInterval(ctx, f.network.ChainID, fingerprint, from, to); err != nil {
		return err
	}

	metrics.BlocksFetchedInc(f.network.Name, uint64(len(headers)))
	f.log.Debugw("fetched range",
		"network", f.network.Name,
		"from_block", from,
		"to_block", to,
		"logs", len(logs),
	)
	return nil
}
