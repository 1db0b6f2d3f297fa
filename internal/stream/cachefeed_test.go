package stream

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/riftline/evmsync/internal/cachestore"
	cachemigrations "github.com/riftline/evmsync/internal/cachestore/migrations"
	"github.com/riftline/evmsync/pkg/events"
	"github.com/riftline/evmsync/pkg/source"
	"github.com/riftline/evmsync/tests/helpers"
	"github.com/stretchr/testify/require"
)

func newTestCacheFeed(t *testing.T, src source.Source) (*CacheFeed, *cachestore.Store) {
	t.Helper()
	db := helpers.NewInMemoryDB(t)
	log := helpers.TestLogger(t)
	require.NoError(t, cachemigrations.RunMigrationsDB(log, db))
	cache := cachestore.New(db, log)
	network := source.Network{Name: "mainnet", ChainID: 1}
	return NewCacheFeed(network, src, nil, cache, events.Checkpoint{SourceName: src.Name}, log), cache
}

func TestDrainOnceEmitsCachedLogsInOrder(t *testing.T) {
	addr := common.HexToAddress("0xaaaa000000000000000000000000000000000a")
	src := source.Source{Name: "transfers", Network: "mainnet", Addresses: []common.Address{addr}}
	f, cache := newTestCacheFeed(t, src)
	ctx := context.Background()

	require.NoError(t, cache.InsertBlocks(ctx, 1, []*types.Header{
		{Number: big.NewInt(1), Time: 100},
		{Number: big.NewInt(2), Time: 200},
	}))
	require.NoError(t, cache.InsertLogs(ctx, 1, []types.Log{
		{Address: addr, BlockNumber: 1, Index: 0, BlockHash: common.HexToHash("0xb1"), TxHash: common.HexToHash("0x1")},
		{Address: addr, BlockNumber: 2, Index: 0, BlockHash: common.HexToHash("0xb2"), TxHash: common.HexToHash("0x2")},
	}))
	require.NoError(t, cache.RecordInterval(ctx, 1, src.Fingerprint(), 1, 2))

	out := make(chan events.Event, 10)
	next, err := f.drainOnce(ctx, events.Checkpoint{SourceName: src.Name}, out)
	require.NoError(t, err)
	close(out)

	var got []events.Event
	for e := range out {
		got = append(got, e)
	}
	require.Len(t, got, 2)
	require.Equal(t, uint64(100), got[0].Block.Timestamp)
	require.Equal(t, uint64(200), got[1].Block.Timestamp)
	require.Equal(t, uint64(2), next.LastCompletedBlockNum)
}

func TestDrainOnceNoOpWhenNoCoveredInterval(t *testing.T) {
	addr := common.HexToAddress("0xbbbb000000000000000000000000000000000b")
	src := source.Source{Name: "transfers", Network: "mainnet", Addresses: []common.Address{addr}}
	f, _ := newTestCacheFeed(t, src)

	out := make(chan events.Event, 10)
	start := events.Checkpoint{SourceName: src.Name}
	next, err := f.drainOnce(context.Background(), start, out)
	require.NoError(t, err)
	close(out)
	require.Equal(t, start, next)
	require.Empty(t, out)
}
