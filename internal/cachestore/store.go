// Package cachestore is the Cache Store: the persistent record of cached
// blocks, logs, transactions, and the disjoint synced-interval set that
// lets the Historical Fetcher skip ranges it has already downloaded.
package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/riftline/evmsync/internal/errkind"
	"github.com/riftline/evmsync/internal/logger"
	"github.com/riftline/evmsync/internal/metrics"
	"github.com/russross/meddler"
)

// Store is the Cache Store. It holds no schema knowledge of user tables;
// its tables are exclusively its own (cached_blocks, cached_logs,
// cached_transactions, cached_calls, synced_intervals).
type Store struct {
	db  *sql.DB
	log *logger.Logger
}

func New(db *sql.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log.WithComponent("cache-store")}
}

func (s *Store) observe(operation string, start time.Time, err error) {
	metrics.CacheQueryInc(operation)
	metrics.CacheQueryDuration(operation, time.Since(start))
	if err != nil {
		metrics.CacheErrorInc(operation)
	}
}

// InsertBlocks idempotently stores block headers, keyed by (chainId, number).
func (s *Store) InsertBlocks(ctx context.Context, chainID uint64, headers []*types.Header) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapCacheErr("insert_blocks", err)
	}
	defer rollback(s.log, tx)

	for _, h := range headers {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cached_blocks WHERE chain_id = ? AND number = ?`, chainID, h.Number.Uint64()); err != nil {
			err = wrapCacheErr("insert_blocks", err)
			s.observe("insert_blocks", start, err)
			return err
		}
		if err := meddler.Save(tx, "cached_blocks", headerToRow(chainID, h)); err != nil {
			err = wrapCacheErr("insert_blocks", err)
			s.observe("insert_blocks", start, err)
			return err
		}
	}

	err = tx.Commit()
	s.observe("insert_blocks", start, err)
	if err != nil {
		return wrapCacheErr("insert_blocks", err)
	}
	return nil
}

// InsertLogs idempotently stores logs, keyed by (chainId, blockHash, logIndex).
func (s *Store) InsertLogs(ctx context.Context, chainID uint64, logs []types.Log) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapCacheErr("insert_logs", err)
	}
	defer rollback(s.log, tx)

	for _, l := range logs {
		row := logToRow(chainID, l)
		if _, err := tx.ExecContext(ctx, `DELETE FROM cached_logs WHERE chain_id = ? AND block_hash = ? AND log_index = ?`, chainID, l.BlockHash.Hex(), l.Index); err != nil {
			err = wrapCacheErr("insert_logs", err)
			s.observe("insert_logs", start, err)
			return err
		}
		if err := meddler.Save(tx, "cached_logs", row); err != nil {
			err = wrapCacheErr("insert_logs", err)
			s.observe("insert_logs", start, err)
			return err
		}
	}

	err = tx.Commit()
	s.observe("insert_logs", start, err)
	if err != nil {
		return wrapCacheErr("insert_logs", err)
	}
	return nil
}

// InsertTransactions idempotently stores the minimal transaction context
// for transactions referenced by at least one retained log.
func (s *Store) InsertTransactions(ctx context.Context, chainID uint64, logs []types.Log) error {
	if len(logs) == 0 {
		return nil
	}

	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapCacheErr("insert_transactions", err)
	}
	defer rollback(s.log, tx)

	seen := make(map[common.Hash]struct{}, len(logs))
	for _, l := range logs {
		if _, ok := seen[l.TxHash]; ok {
			continue
		}
		seen[l.TxHash] = struct{}{}

		row := &dbTransaction{
			ChainID:     chainID,
			Hash:        l.TxHash,
			BlockHash:   l.BlockHash,
			BlockNumber: l.BlockNumber,
			TxIndex:     l.TxIndex,
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cached_transactions WHERE chain_id = ? AND hash = ?`, chainID, l.TxHash.Hex()); err != nil {
			err = wrapCacheErr("insert_transactions", err)
			s.observe("insert_transactions", start, err)
			return err
		}
		if err := meddler.Save(tx, "cached_transactions", row); err != nil {
			err = wrapCacheErr("insert_transactions", err)
			s.observe("insert_transactions", start, err)
			return err
		}
	}

	err = tx.Commit()
	s.observe("insert_transactions", start, err)
	if err != nil {
		return wrapCacheErr("insert_transactions", err)
	}
	return nil
}

// RecordInterval atomically merges [fromBlock, toBlock] into the existing
// disjoint synced-interval set for (chainId, sourceFingerprint).
func (s *Store) RecordInterval(ctx context.Context, chainID uint64, sourceFingerprint string, fromBlock, toBlock uint64) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapCacheErr("record_interval", err)
	}
	defer rollback(s.log, tx)

	var rows []*dbInterval
	err = meddler.QueryAll(tx, &rows,
		`SELECT * FROM synced_intervals WHERE chain_id = ? AND source_fingerprint = ?`,
		chainID, sourceFingerprint)
	if err != nil {
		err = wrapCacheErr("record_interval", err)
		s.observe("record_interval", start, err)
		return err
	}

	existing := make([]Interval, len(rows))
	for i, r := range rows {
		existing[i] = Interval{FromBlock: r.FromBlock, ToBlock: r.ToBlock}
	}
	merged := mergeIntervals(append(existing, Interval{FromBlock: fromBlock, ToBlock: toBlock}))

	if _, err := tx.Exec(`DELETE FROM synced_intervals WHERE chain_id = ? AND source_fingerprint = ?`,
		chainID, sourceFingerprint); err != nil {
		err = wrapCacheErr("record_interval", err)
		s.observe("record_interval", start, err)
		return err
	}

	for _, iv := range merged {
		row := &dbInterval{ChainID: chainID, SourceFingerprint: sourceFingerprint, FromBlock: iv.FromBlock, ToBlock: iv.ToBlock}
		if err := meddler.Insert(tx, "synced_intervals", row); err != nil {
			err = wrapCacheErr("record_interval", err)
			s.observe("record_interval", start, err)
			return err
		}
	}

	err = tx.Commit()
	s.observe("record_interval", start, err)
	if err != nil {
		return wrapCacheErr("record_interval", err)
	}
	return nil
}

// GetCachedIntervals returns the disjoint synced-interval set for a source.
func (s *Store) GetCachedIntervals(ctx context.Context, chainID uint64, sourceFingerprint string) ([]Interval, error) {
	start := time.Now()
	var rows []*dbInterval
	err := meddler.QueryAll(s.db, &rows,
		`SELECT * FROM synced_intervals WHERE chain_id = ? AND source_fingerprint = ? ORDER BY from_block ASC`,
		chainID, sourceFingerprint)
	s.observe("get_cached_intervals", start, err)
	if err != nil {
		return nil, wrapCacheErr("get_cached_intervals", err)
	}

	intervals := make([]Interval, len(rows))
	for i, r := range rows {
		intervals[i] = Interval{FromBlock: r.FromBlock, ToBlock: r.ToBlock}
	}
	return intervals, nil
}

// CarryForwardIntervals copies fromFingerprint's synced-interval coverage
// into toFingerprint, truncated so no copied interval extends at or past
// truncateAtBlock. Used when a factory source's address set grows: the
// new child-set fingerprint starts with no coverage of its own, but every
// block before the new child's discovery was already correctly synced
// under the old (smaller) address set, so that coverage carries over
// instead of forcing a full re-fetch of the source's entire range.
func (s *Store) CarryForwardIntervals(ctx context.Context, chainID uint64, fromFingerprint, toFingerprint string, truncateAtBlock uint64) error {
	covered, err := s.GetCachedIntervals(ctx, chainID, fromFingerprint)
	if err != nil {
		return err
	}
	if truncateAtBlock == 0 {
		return nil
	}

	start := time.Now()
	for _, iv := range covered {
		if iv.FromBlock >= truncateAtBlock {
			continue
		}
		toBlock := iv.ToBlock
		if toBlock >= truncateAtBlock {
			toBlock = truncateAtBlock - 1
		}
		if err := s.RecordInterval(ctx, chainID, toFingerprint, iv.FromBlock, toBlock); err != nil {
			s.observe("carry_forward_intervals", start, err)
			return wrapCacheErr("carry_forward_intervals", err)
		}
	}
	s.observe("carry_forward_intervals", start, nil)
	return nil
}

// RequiredRanges returns the minimal set of ranges in [from,to] not yet
// covered by the source's cached intervals.
func (s *Store) RequiredRanges(ctx context.Context, chainID uint64, sourceFingerprint string, from, to uint64) ([]Interval, error) {
	covered, err := s.GetCachedIntervals(ctx, chainID, sourceFingerprint)
	if err != nil {
		return nil, err
	}
	return requiredRanges(from, to, covered), nil
}

// GetLogs returns cached logs for a source's address set in [from,to],
// ordered by (blockNumber, logIndex).
func (s *Store) GetLogs(ctx context.Context, chainID uint64, addresses []common.Address, from, to uint64) ([]types.Log, error) {
	start := time.Now()

	placeholders := make([]any, 0, len(addresses)+3)
	placeholders = append(placeholders, chainID)

	query := `SELECT * FROM cached_logs WHERE chain_id = ? AND block_number >= ? AND block_number <= ?`
	placeholders = append(placeholders, from, to)

	if len(addresses) > 0 {
		query += " AND address IN ("
		for i, a := range addresses {
			if i > 0 {
				query += ","
			}
			query += "?"
			placeholders = append(placeholders, a.Hex())
		}
		query += ")"
	}
	query += " ORDER BY block_number ASC, log_index ASC"

	var rows []*dbLog
	err := meddler.QueryAll(s.db, &rows, query, placeholders...)
	s.observe("get_logs", start, err)
	if err != nil {
		return nil, wrapCacheErr("get_logs", err)
	}

	logs := make([]types.Log, len(rows))
	for i, r := range rows {
		logs[i] = rowToLog(r)
	}
	return logs, nil
}

// GetBlocks returns cached block headers in [from,to], ordered by number.
func (s *Store) GetBlocks(ctx context.Context, chainID uint64, from, to uint64) ([]Block, error) {
	start := time.Now()
	var rows []*dbBlock
	err := meddler.QueryAll(s.db, &rows,
		`SELECT * FROM cached_blocks WHERE chain_id = ? AND number >= ? AND number <= ? ORDER BY number ASC`,
		chainID, from, to)
	s.observe("get_blocks", start, err)
	if err != nil {
		return nil, wrapCacheErr("get_blocks", err)
	}

	blocks := make([]Block, len(rows))
	for i, r := range rows {
		blocks[i] = rowToBlock(r)
	}
	return blocks, nil
}

// DeleteFromBlock purges cached blocks, logs, and transactions at or above
// blockNumber, and truncates every synced interval with toBlock >=
// blockNumber down to blockNumber-1 (dropping intervals that start at or
// after blockNumber entirely). Used on reorg rollback: unlike the teacher's
// soft-delete ("removed" flag), this hard-deletes so the cache stops
// claiming coverage it no longer holds.
func (s *Store) DeleteFromBlock(ctx context.Context, chainID uint64, blockNumber uint64) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapCacheErr("delete_from_block", err)
	}
	defer rollback(s.log, tx)

	if _, err := tx.Exec(`DELETE FROM cached_logs WHERE chain_id = ? AND block_number >= ?`, chainID, blockNumber); err != nil {
		err = wrapCacheErr("delete_from_block", err)
		s.observe("delete_from_block", start, err)
		return err
	}
	if _, err := tx.Exec(`DELETE FROM cached_transactions WHERE chain_id = ? AND block_number >= ?`, chainID, blockNumber); err != nil {
		err = wrapCacheErr("delete_from_block", err)
		s.observe("delete_from_block", start, err)
		return err
	}
	if _, err := tx.Exec(`DELETE FROM cached_blocks WHERE chain_id = ? AND number >= ?`, chainID, blockNumber); err != nil {
		err = wrapCacheErr("delete_from_block", err)
		s.observe("delete_from_block", start, err)
		return err
	}
	if _, err := tx.Exec(`DELETE FROM synced_intervals WHERE chain_id = ? AND from_block >= ?`, chainID, blockNumber); err != nil {
		err = wrapCacheErr("delete_from_block", err)
		s.observe("delete_from_block", start, err)
		return err
	}
	if blockNumber > 0 {
		if _, err := tx.Exec(`UPDATE synced_intervals SET to_block = ? WHERE chain_id = ? AND to_block >= ?`,
			blockNumber-1, chainID, blockNumber); err != nil {
			err = wrapCacheErr("delete_from_block", err)
			s.observe("delete_from_block", start, err)
			return err
		}
	}

	err = tx.Commit()
	s.observe("delete_from_block", start, err)
	if err != nil {
		return wrapCacheErr("delete_from_block", err)
	}
	return nil
}

func rollback(log *logger.Logger, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Errorf("cache store: failed to rollback transaction: %v", err)
	}
}

func wrapCacheErr(op string, err error) error {
	return errkind.New(errkind.CacheWrite, fmt.Errorf("cache store %s: %w", op, err))
}
