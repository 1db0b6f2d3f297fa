package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/riftline/evmsync/internal/cachestore"
	"github.com/riftline/evmsync/internal/logger"
	"github.com/riftline/evmsync/internal/resolver"
	"github.com/riftline/evmsync/pkg/events"
	"github.com/riftline/evmsync/pkg/source"
)

// defaultCachePollInterval is how often every CacheFeed checks the cache
// for newly synced coverage; the network's own polling interval is not
// used here.
const defaultCachePollInterval = 2 * time.Second

// CacheFeed is a Feed that reads one source's already-cached logs in
// order, resuming from a checkpoint and advancing as the Historical
// Fetcher and Live Follower record new coverage.
type CacheFeed struct {
	network  source.Network
	src      source.Source
	resolver *resolver.Resolver
	cache    *cachestore.Store
	log      *logger.Logger

	// start is the dispatcher's last-completed checkpoint for this source;
	// the feed resumes strictly after it.
	start events.Checkpoint
}

func NewCacheFeed(network source.Network, src source.Source, res *resolver.Resolver, cache *cachestore.Store, start events.Checkpoint, log *logger.Logger) *CacheFeed {
	return &CacheFeed{
		network:  network,
		src:      src,
		resolver: res,
		cache:    cache,
		start:    start,
		log:      log.WithComponent("cache-feed"),
	}
}

func (f *CacheFeed) Name() string {
	return f.src.Name
}

func (f *CacheFeed) Run(ctx context.Context, out chan<- events.Event) error {
	cursor := f.start
	ticker := time.NewTicker(defaultCachePollInterval)
	defer ticker.Stop()

	for {
		next, err := f.drainOnce(ctx, cursor, out)
		if err != nil {
			return fmt.Errorf("cache feed %q: %w", f.src.Name, err)
		}
		cursor = next

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drainOnce emits every cached log in the interval covering cursor+1, if
// one exists, and returns the cursor advanced past it.
func (f *CacheFeed) drainOnce(ctx context.Context, cursor events.Checkpoint, out chan<- events.Event) (events.Checkpoint, error) {
	filter, err := f.resolve(ctx)
	if err != nil {
		return cursor, err
	}

	intervals, err := f.cache.GetCachedIntervals(ctx, f.network.ChainID, filter.Fingerprint)
	if err != nil {
		return cursor, err
	}

	nextBlock := cursor.LastCompletedBlockNum + 1
	var upper uint64
	found := false
	for _, iv := range intervals {
		if iv.FromBlock <= nextBlock && iv.ToBlock >= nextBlock {
			upper = iv.ToBlock
			found = true
			break
		}
	}
	if !found {
		return cursor, nil
	}

	logs, err := f.cache.GetLogs(ctx, f.network.ChainID, filter.Addresses, nextBlock, upper)
	if err != nil {
		return cursor, err
	}

	blocks, err := f.cache.GetBlocks(ctx, f.network.ChainID, nextBlock, upper)
	if err != nil {
		return cursor, err
	}
	timestamps := make(map[uint64]uint64, len(blocks))
	for _, b := range blocks {
		timestamps[b.Number] = b.Timestamp
	}

	advanced := cursor
	for _, l := range logs {
		e := f.toEvent(l, timestamps[l.BlockNumber])
		select {
		case <-ctx.Done():
			return advanced, ctx.Err()
		case out <- e:
		}
		advanced = advanced.Advance(e)
	}

	if len(logs) == 0 || advanced.LastCompletedBlockNum < upper {
		advanced = events.Checkpoint{
			ChainID:               f.network.ChainID,
			SourceName:            f.src.Name,
			LastCompletedBlockNum: upper,
			LastCompletedLogIndex: 0,
		}
	}
	return advanced, nil
}

func (f *CacheFeed) resolve(ctx context.Context) (resolver.ResolvedFilter, error) {
	if !f.src.IsFactory() {
		return resolver.ResolvedFilter{
			Addresses:   f.src.Addresses,
			Topics:      f.src.Topics,
			Fingerprint: f.src.Fingerprint(),
		}, nil
	}
	return f.resolver.Resolve(ctx, f.network.ChainID, f.src)
}

func (f *CacheFeed) toEvent(l types.Log, timestamp uint64) events.Event {
	eventName := ""
	if len(l.Topics) > 0 {
		if ev, err := f.src.ABI.EventByID(l.Topics[0]); err == nil && ev != nil {
			eventName = ev.Name
		}
	}

	return events.Event{
		SourceName: f.src.Name,
		EventName:  eventName,
		ChainID:    f.network.ChainID,
		Log: events.LogRef{
			Index:   l.Index,
			Address: l.Address,
			Topics:  l.Topics,
			Data:    l.Data,
		},
		Block: events.BlockRef{
			Number:    l.BlockNumber,
			Hash:      l.BlockHash,
			Timestamp: timestamp,
		},
		Transaction: events.TxRef{
			Hash:  l.TxHash,
			Index: l.TxIndex,
		},
	}
}
