// Package dispatcher is the Dispatcher: it drains the Event Stream one
// event at a time, decodes each log against its source ABI, runs the
// registered handler inside a transaction on the user record store, and
// commits that transaction together with the source's persisted
// checkpoint. Exactly one handler runs at a time: Run dispatches events
// one by one from a single loop.
package dispatcher

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/riftline/evmsync/internal/abi"
	"github.com/riftline/evmsync/internal/errkind"
	"github.com/riftline/evmsync/internal/logger"
	"github.com/riftline/evmsync/internal/metrics"
	"github.com/riftline/evmsync/pkg/events"
	"github.com/riftline/evmsync/pkg/source"
	"github.com/riftline/evmsync/pkg/store"
	"github.com/russross/meddler"
)

// Handler processes one decoded event inside tx. Returning an error aborts
// tx; by default that's fatal for the whole dispatcher (see HandlerSpec).
type Handler func(ctx context.Context, tx *sql.Tx, event events.Event) error

// SetupHandler runs once per source, in its own transaction, before that
// source's first real event. It advances no checkpoint.
type SetupHandler func(ctx context.Context, tx *sql.Tx) error

// HandlerSpec binds a source's handler to its retry policy.
type HandlerSpec struct {
	Handler Handler
	Setup   SetupHandler
	// MaxAttempts bounds how many times the same event is redelivered to
	// Handler after an error. 0 or 1 means no retry: the first failure is
	// fatal.
	MaxAttempts int
}

// Dispatcher owns the per-source checkpoint rows and the single-threaded
// dispatch loop. checkpointDB must point at the same SQLite file the user
// store's transactions run against (its migrations just add two more
// tables, checkpoints and checkpoint_block_progress) — the checkpoint write has to land in the exact same
// transaction as the handler's mutations for the "checkpoint row and user
// mutations commit together" guarantee to mean anything; a second database
// connection could never give that guarantee no matter how quickly it
// followed the first commit.
type Dispatcher struct {
	checkpointDB *sql.DB
	userStore    store.Store
	sources      map[string]source.Source
	handlers     map[string]HandlerSpec
	log          *logger.Logger

	setupDone map[string]bool
}

func New(checkpointDB *sql.DB, userStore store.Store, sources map[string]source.Source, handlers map[string]HandlerSpec, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		checkpointDB: checkpointDB,
		userStore:    userStore,
		sources:      sources,
		handlers:     handlers,
		log:          log.WithComponent("dispatcher"),
		setupDone:    make(map[string]bool),
	}
}

// Run drains in until ctx is canceled or in closes, dispatching each event
// in arrival order (the Event Stream already guarantees the total order).
func (d *Dispatcher) Run(ctx context.Context, in <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-in:
			if !ok {
				return nil
			}
			if err := d.dispatch(ctx, e); err != nil {
				return err
			}
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, e events.Event) error {
	if err := d.ensureSetup(ctx, e.SourceName); err != nil {
		return err
	}

	checkpoint, err := d.getCheckpoint(ctx, e.ChainID, e.SourceName)
	if err != nil {
		return err
	}
	if !checkpoint.After(e) {
		// Already dispatched past this event (e.g. a re-delivered event after
		// a restart); skip rather than double-apply it.
		return nil
	}

	spec, ok := d.handlers[e.SourceName]
	if !ok {
		return fmt.Errorf("dispatcher: no handler registered for source %q", e.SourceName)
	}

	src, ok := d.sources[e.SourceName]
	if !ok {
		return fmt.Errorf("dispatcher: no source configured with name %q", e.SourceName)
	}

	decoded, err := d.decode(src, e)
	if err != nil {
		return errkind.New(errkind.HandlerError, err)
	}
	e.Args = decoded

	start := time.Now()
	attempts := spec.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = d.runOnce(ctx, spec.Handler, e, checkpoint.Advance(e))
		if lastErr == nil {
			break
		}
		d.log.Warnw("handler failed", "source", e.SourceName, "block", e.Block.Number, "attempt", attempt, "error", lastErr)
	}

	metrics.DispatchDurationLog(e.SourceName, time.Since(start))
	if lastErr != nil {
		metrics.ErrorsInc("dispatcher", "fatal")
		return errkind.New(errkind.HandlerError, fmt.Errorf("dispatcher: handler for source %q failed after %d attempt(s): %w", e.SourceName, attempts, lastErr))
	}

	metrics.EventsDispatchedInc(src.Network, e.SourceName, 1)
	metrics.LastDispatchedBlockSet(src.Network, e.SourceName, e.Block.Number)
	return nil
}

// runOnce opens one transaction on the user store, invokes handler, writes
// the advanced checkpoint row in that same transaction, and commits both
// together — the exactly-once guarantee the checkpoint boundary promises
// depends on this being a single commit, not two.
func (d *Dispatcher) runOnce(ctx context.Context, handler Handler, e events.Event, next events.Checkpoint) error {
	tx, err := d.userStore.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin store tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			d.log.Errorf("dispatcher: failed to rollback store tx: %v", err)
		}
	}()

	if err := handler(ctx, tx, e); err != nil {
		return fmt.Errorf("handler: %w", err)
	}
	if err := d.saveCheckpoint(ctx, tx, next); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit store tx: %w", err)
	}
	return nil
}

func (d *Dispatcher) ensureSetup(ctx context.Context, sourceName string) error {
	if d.setupDone[sourceName] {
		return nil
	}
	spec, ok := d.handlers[sourceName]
	if !ok || spec.Setup == nil {
		d.setupDone[sourceName] = true
		return nil
	}

	tx, err := d.userStore.Begin(ctx)
	if err != nil {
		return fmt.Errorf("dispatcher setup: begin: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			d.log.Errorf("dispatcher: failed to rollback setup tx: %v", err)
		}
	}()

	if err := spec.Setup(ctx, tx); err != nil {
		return errkind.New(errkind.HandlerError, fmt.Errorf("dispatcher setup for %q: %w", sourceName, err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dispatcher setup: commit: %w", err)
	}

	d.setupDone[sourceName] = true
	return nil
}

func (d *Dispatcher) decode(src source.Source, e events.Event) (map[string]any, error) {
	if e.EventName == "" {
		return nil, nil
	}
	return abi.Decode(src.ABI, e.EventName, e.Log)
}

// Checkpoint returns a source's last-completed checkpoint, or a zero
// checkpoint if it has never been dispatched. Exported so the Orchestrator
// can resume a CacheFeed from exactly where the Dispatcher left off.
func (d *Dispatcher) Checkpoint(ctx context.Context, chainID uint64, sourceName string) (events.Checkpoint, error) {
	return d.getCheckpoint(ctx, chainID, sourceName)
}

func (d *Dispatcher) getCheckpoint(ctx context.Context, chainID uint64, sourceName string) (events.Checkpoint, error) {
	var cp events.Checkpoint
	err := meddler.QueryRow(d.checkpointDB, &cp, `SELECT * FROM checkpoints WHERE source_name = ?`, sourceName)
	if errors.Is(err, sql.ErrNoRows) {
		return events.Checkpoint{ChainID: chainID, SourceName: sourceName}, nil
	}
	if err != nil {
		return events.Checkpoint{}, fmt.Errorf("dispatcher: load checkpoint for %q: %w", sourceName, err)
	}
	return cp, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx, so saveCheckpoint can
// run inside the handler's transaction (the hot path, for the
// exactly-once guarantee) or standalone (Rollback's recovery path).
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// saveCheckpoint upserts by source_name: the first write for a newly
// registered source has no existing row, so plain meddler.Update (which
// assumes the row already exists) doesn't fit; ON CONFLICT DO UPDATE
// covers both the first write and every later one.
//
// It also records the dispatched log index under checkpoint_block_progress,
// keyed by (source_name, block_number): Rollback needs to know, for any
// block it's rewinding to, the greatest log index that was actually
// dispatched there, and the checkpoint row alone only remembers the single
// most recent (block, logIndex) pair, not per-block history.
func (d *Dispatcher) saveCheckpoint(ctx context.Context, ex execer, cp events.Checkpoint) error {
	const upsert = `
		INSERT INTO checkpoints (chain_id, source_name, last_completed_block_number, last_completed_log_index)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_name) DO UPDATE SET
			chain_id = excluded.chain_id,
			last_completed_block_number = excluded.last_completed_block_number,
			last_completed_log_index = excluded.last_completed_log_index
	`
	if _, err := ex.ExecContext(ctx, upsert, cp.ChainID, cp.SourceName, cp.LastCompletedBlockNum, cp.LastCompletedLogIndex); err != nil {
		return fmt.Errorf("save checkpoint row: %w", err)
	}

	const progressUpsert = `
		INSERT INTO checkpoint_block_progress (source_name, block_number, max_log_index)
		VALUES (?, ?, ?)
		ON CONFLICT(source_name, block_number) DO UPDATE SET
			max_log_index = MAX(max_log_index, excluded.max_log_index)
	`
	if _, err := ex.ExecContext(ctx, progressUpsert, cp.SourceName, cp.LastCompletedBlockNum, cp.LastCompletedLogIndex); err != nil {
		return fmt.Errorf("save checkpoint block progress row: %w", err)
	}
	return nil
}

// Rollback handles a ReorgEvent whose first invalidated block is R (the
// common ancestor plus one): it resets every affected source's checkpoint
// to the greatest (block, logIndex) strictly before R, and rewinds the user
// store to the same point (see store.Store.Rollback), per source. The
// retained log index at block R-1 comes from checkpoint_block_progress
// rather than being zeroed outright: zeroing unconditionally would replay
// every log already dispatched and committed at R-1 beyond index 0,
// breaking exactly-once dispatch for any block with more than one log.
func (d *Dispatcher) Rollback(ctx context.Context, chainID uint64, fromBlock uint64) error {
	if err := d.userStore.Rollback(ctx, fromBlock); err != nil {
		return fmt.Errorf("dispatcher rollback: user store: %w", err)
	}

	rows, err := d.checkpointRows(ctx, chainID)
	if err != nil {
		return fmt.Errorf("dispatcher rollback: load checkpoints: %w", err)
	}

	for _, cp := range rows {
		if cp.LastCompletedBlockNum < fromBlock {
			continue
		}

		var retainedBlock uint64
		var retainedLogIndex uint
		if fromBlock > 0 {
			retainedBlock = fromBlock - 1
			retainedLogIndex, err = d.maxLogIndexAtBlock(ctx, cp.SourceName, retainedBlock)
			if err != nil {
				return fmt.Errorf("dispatcher rollback: max log index for %q at block %d: %w", cp.SourceName, retainedBlock, err)
			}
		}
		cp.LastCompletedBlockNum = retainedBlock
		cp.LastCompletedLogIndex = retainedLogIndex
		if err := d.saveCheckpoint(ctx, d.checkpointDB, cp); err != nil {
			return fmt.Errorf("dispatcher rollback: reset checkpoint for %q: %w", cp.SourceName, err)
		}
		if err := d.pruneBlockProgress(ctx, cp.SourceName, fromBlock); err != nil {
			return fmt.Errorf("dispatcher rollback: prune block progress for %q: %w", cp.SourceName, err)
		}
	}

	d.log.Warnw("dispatcher rolled back", "chain_id", chainID, "from_block", fromBlock)
	return nil
}

// maxLogIndexAtBlock returns the greatest log index successfully dispatched
// for sourceName at blockNumber, or 0 if nothing was ever dispatched there
// (an empty block, or one never reached).
func (d *Dispatcher) maxLogIndexAtBlock(ctx context.Context, sourceName string, blockNumber uint64) (uint, error) {
	var idx uint
	err := d.checkpointDB.QueryRowContext(ctx,
		`SELECT max_log_index FROM checkpoint_block_progress WHERE source_name = ? AND block_number = ?`,
		sourceName, blockNumber,
	).Scan(&idx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return idx, nil
}

// pruneBlockProgress drops progress rows at or past fromBlock: those blocks
// were just invalidated by the reorg, so their recorded log indices no
// longer describe anything real.
func (d *Dispatcher) pruneBlockProgress(ctx context.Context, sourceName string, fromBlock uint64) error {
	_, err := d.checkpointDB.ExecContext(ctx,
		`DELETE FROM checkpoint_block_progress WHERE source_name = ? AND block_number >= ?`,
		sourceName, fromBlock,
	)
	return err
}

func (d *Dispatcher) checkpointRows(ctx context.Context, chainID uint64) ([]events.Checkpoint, error) {
	var rows []*events.Checkpoint
	if err := meddler.QueryAll(d.checkpointDB, &rows, `SELECT * FROM checkpoints WHERE chain_id = ?`, chainID); err != nil {
		return nil, err
	}
	out := make([]events.Checkpoint, len(rows))
	for i, r := range rows {
		out[i] = *r
	}
	return out, nil
}
