// Package events defines the decoded event record that flows from the
// Event Stream to the Dispatcher, its total order, and the dispatcher's
// persisted per-source cursor.
package events

import (
	"github.com/ethereum/go-ethereum/common"
)

// BlockRef is the minimal block context attached to every event.
type BlockRef struct {
	Number    uint64
	Hash      common.Hash
	Timestamp uint64
}

// TxRef is the minimal transaction context attached to every event.
type TxRef struct {
	Hash  common.Hash
	Index uint
}

// LogRef carries the raw log position an event was decoded from.
type LogRef struct {
	Index   uint
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// Event is one decoded log, ready for handler dispatch.
type Event struct {
	SourceName string
	EventName  string
	Args       map[string]any

	Log         LogRef
	Block       BlockRef
	Transaction TxRef
	ChainID     uint64
}

// Less implements the total order over events:
// (block.timestamp, chainId, block.number, transaction.index, log.index).
// Ties are only possible between events on different chains at the exact
// same wall-clock timestamp, which the chainId term breaks deterministically.
func Less(a, b Event) bool {
	if a.Block.Timestamp != b.Block.Timestamp {
		return a.Block.Timestamp < b.Block.Timestamp
	}
	if a.ChainID != b.ChainID {
		return a.ChainID < b.ChainID
	}
	if a.Block.Number != b.Block.Number {
		return a.Block.Number < b.Block.Number
	}
	if a.Transaction.Index != b.Transaction.Index {
		return a.Transaction.Index < b.Transaction.Index
	}
	return a.Log.Index < b.Log.Index
}

// Checkpoint is the dispatcher's persisted per-source cursor, committed
// transactionally alongside the handler's store mutation.
type Checkpoint struct {
	ChainID                 uint64 `meddler:"chain_id"`
	SourceName              string `meddler:"source_name,pk"`
	LastCompletedBlockNum   uint64 `meddler:"last_completed_block_number"`
	LastCompletedLogIndex   uint   `meddler:"last_completed_log_index"`
}

// After reports whether the event e is strictly after this checkpoint's
// cursor, i.e. still needs to be dispatched.
func (c Checkpoint) After(e Event) bool {
	if e.Block.Number != c.LastCompletedBlockNum {
		return e.Block.Number > c.LastCompletedBlockNum
	}
	return e.Log.Index > c.LastCompletedLogIndex
}

// Advance returns the checkpoint value after successfully dispatching e.
func (c Checkpoint) Advance(e Event) Checkpoint {
	return Checkpoint{
		ChainID:               e.ChainID,
		SourceName:            c.SourceName,
		LastCompletedBlockNum: e.Block.Number,
		LastCompletedLogIndex: e.Log.Index,
	}
}
