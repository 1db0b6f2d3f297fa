package cachestore

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// dbBlock is the meddler row for cached_blocks.
type dbBlock struct {
	ChainID    uint64      `meddler:"chain_id"`
	Number     uint64      `meddler:"number"`
	Hash       common.Hash `meddler:"hash,hash"`
	ParentHash common.Hash `meddler:"parent_hash,hash"`
	Timestamp  uint64      `meddler:"timestamp"`
}

// dbLog is the meddler row for cached_logs.
type dbLog struct {
	ChainID     uint64         `meddler:"chain_id"`
	BlockHash   common.Hash    `meddler:"block_hash,hash"`
	LogIndex    uint           `meddler:"log_index"`
	BlockNumber uint64         `meddler:"block_number"`
	Address     common.Address `meddler:"address,address"`
	Topic0      *common.Hash   `meddler:"topic0,hash"`
	Topic1      *common.Hash   `meddler:"topic1,hash"`
	Topic2      *common.Hash   `meddler:"topic2,hash"`
	Topic3      *common.Hash   `meddler:"topic3,hash"`
	Data        []byte         `meddler:"data"`
	TxHash      common.Hash    `meddler:"tx_hash,hash"`
	TxIndex     uint           `meddler:"tx_index"`
}

// dbTransaction is the meddler row for cached_transactions.
type dbTransaction struct {
	ChainID     uint64      `meddler:"chain_id"`
	Hash        common.Hash `meddler:"hash,hash"`
	BlockHash   common.Hash `meddler:"block_hash,hash"`
	BlockNumber uint64      `meddler:"block_number"`
	TxIndex     uint        `meddler:"tx_index"`
}

// dbChainCall is the meddler row for cached_calls, keyed by the call's
// full identity: which chain, which contract, which input, at which block.
type dbChainCall struct {
	ChainID     uint64         `meddler:"chain_id"`
	Address     common.Address `meddler:"address,address"`
	CallData    []byte         `meddler:"call_data"`
	BlockNumber uint64         `meddler:"block_number"`
	Result      []byte         `meddler:"result"`
}

// dbInterval is the meddler row for synced_intervals.
type dbInterval struct {
	ID                int64  `meddler:"id,pk"`
	ChainID           uint64 `meddler:"chain_id"`
	SourceFingerprint string `meddler:"source_fingerprint"`
	FromBlock         uint64 `meddler:"from_block"`
	ToBlock           uint64 `meddler:"to_block"`
}

// Interval is a closed inclusive block range, [FromBlock, ToBlock].
type Interval struct {
	FromBlock uint64
	ToBlock   uint64
}

// Block is a cached block header, returned as its own stored fields
// rather than a reconstructed *types.Header — recomputing types.Header.Hash()
// from a partial struct wouldn't reproduce the hash that was actually
// verified and stored.
type Block struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Timestamp  uint64
}

func rowToBlock(row *dbBlock) Block {
	return Block{
		Number:     row.Number,
		Hash:       row.Hash,
		ParentHash: row.ParentHash,
		Timestamp:  row.Timestamp,
	}
}

func logToRow(chainID uint64, l types.Log) *dbLog {
	row := &dbLog{
		ChainID:     chainID,
		BlockHash:   l.BlockHash,
		LogIndex:    l.Index,
		BlockNumber: l.BlockNumber,
		Address:     l.Address,
		Data:        l.Data,
		TxHash:      l.TxHash,
		TxIndex:     l.TxIndex,
	}
	if len(l.Topics) > 0 {
		t := l.Topics[0]
		row.Topic0 = &t
	}
	if len(l.Topics) > 1 {
		t := l.Topics[1]
		row.Topic1 = &t
	}
	if len(l.Topics) > 2 {
		t := l.Topics[2]
		row.Topic2 = &t
	}
	if len(l.Topics) > 3 {
		t := l.Topics[3]
		row.Topic3 = &t
	}
	return row
}

func rowToLog(row *dbLog) types.Log {
	l := types.Log{
		Address:     row.Address,
		BlockNumber: row.BlockNumber,
		BlockHash:   row.BlockHash,
		TxHash:      row.TxHash,
		TxIndex:     row.TxIndex,
		Index:       row.LogIndex,
		Data:        row.Data,
	}
	for _, t := range []*common.Hash{row.Topic0, row.Topic1, row.Topic2, row.Topic3} {
		if t != nil {
			l.Topics = append(l.Topics, *t)
		}
	}
	return l
}

func headerToRow(chainID uint64, h *types.Header) *dbBlock {
	return &dbBlock{
		ChainID:    chainID,
		Number:     h.Number.Uint64(),
		Hash:       h.Hash(),
		ParentHash: h.ParentHash,
		Timestamp:  h.Time,
	}
}
