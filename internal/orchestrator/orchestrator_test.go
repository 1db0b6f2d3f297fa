package orchestrator

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/riftline/evmsync/internal/cachestore"
	cachemigrations "github.com/riftline/evmsync/internal/cachestore/migrations"
	"github.com/riftline/evmsync/internal/fetcher"
	"github.com/riftline/evmsync/internal/live"
	"github.com/riftline/evmsync/pkg/source"
	"github.com/riftline/evmsync/tests/helpers"
	"github.com/stretchr/testify/require"
)

func buildChain(from, to uint64) map[uint64]*types.Header {
	headers := make(map[uint64]*types.Header, to-from+1)
	var parent common.Hash
	for n := from; n <= to; n++ {
		h := &types.Header{Number: big.NewInt(int64(n)), Time: n, ParentHash: parent}
		headers[n] = h
		parent = h.Hash()
	}
	return headers
}

// newTestOrchestrator builds just enough of an Orchestrator to exercise
// onTip against a real Fetcher and Cache Store, bypassing New()'s network
// dial and config parsing.
func newTestOrchestrator(t *testing.T, rpc *helpers.FakeEthClient, network source.Network, src source.Source) (*Orchestrator, *cachestore.Store, *perNetwork) {
	t.Helper()
	db := helpers.NewInMemoryDB(t)
	log := helpers.TestLogger(t)
	require.NoError(t, cachemigrations.RunMigrationsDB(log, db))
	cache := cachestore.New(db, log)

	f := fetcher.New(network, rpc, cache, log)
	pn := &perNetwork{network: network, fetcher: f}

	o := &Orchestrator{
		log:      log,
		cache:    cache,
		networks: map[string]*perNetwork{network.Name: pn},
		sources:  map[string]source.Source{src.Name: src},
	}
	return o, cache, pn
}

func TestOnTipWithoutReorgSyncsNewlyProducedBlocks(t *testing.T) {
	addr := common.HexToAddress("0xaaaa000000000000000000000000000000000a")
	network := source.Network{Name: "mainnet", ChainID: 1, MaxBlockRange: 1000, MaxHistoricalTaskConcurrency: 1}
	src := source.Source{Name: "transfers", Network: "mainnet", Addresses: []common.Address{addr}, StartBlock: 0}

	rpc := helpers.NewFakeEthClient()
	rpc.Headers = buildChain(0, 10)
	rpc.Latest = 10
	rpc.Finalized = 10
	rpc.Logs = []types.Log{
		{Address: addr, BlockNumber: 7, Index: 0, BlockHash: rpc.Headers[7].Hash(), TxHash: common.HexToHash("0x1")},
	}

	o, cache, pn := newTestOrchestrator(t, rpc, network, src)
	ctx := context.Background()

	// Nothing has been fetched yet; a plain tip advance with no reorg must
	// still pull the newly produced blocks into the cache, not just set a
	// health gauge and return.
	o.onTip(ctx, pn, live.TipEvent{Head: rpc.Headers[10]})

	blocks, err := cache.GetBlocks(ctx, network.ChainID, 0, 10)
	require.NoError(t, err)
	require.Len(t, blocks, 11, "onTip must sync new chain activity even without a reorg")

	logs, err := cache.GetLogs(ctx, network.ChainID, []common.Address{addr}, 0, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	gaps, err := cache.RequiredRanges(ctx, network.ChainID, src.Fingerprint(), 0, 10)
	require.NoError(t, err)
	require.Empty(t, gaps)
}

func TestOnTipIsIdempotentAcrossRepeatedTipAdvances(t *testing.T) {
	addr := common.HexToAddress("0xbbbb000000000000000000000000000000000b")
	network := source.Network{Name: "mainnet", ChainID: 1, MaxBlockRange: 1000, MaxHistoricalTaskConcurrency: 1}
	src := source.Source{Name: "transfers", Network: "mainnet", Addresses: []common.Address{addr}, StartBlock: 0}

	rpc := helpers.NewFakeEthClient()
	rpc.Headers = buildChain(0, 5)
	rpc.Latest = 5
	rpc.Finalized = 5

	o, cache, pn := newTestOrchestrator(t, rpc, network, src)
	ctx := context.Background()

	o.onTip(ctx, pn, live.TipEvent{Head: rpc.Headers[5]})
	o.onTip(ctx, pn, live.TipEvent{Head: rpc.Headers[5]})

	blocks, err := cache.GetBlocks(ctx, network.ChainID, 0, 5)
	require.NoError(t, err)
	require.Len(t, blocks, 6, "repeated tip advances over already-cached blocks must not duplicate rows")
}
