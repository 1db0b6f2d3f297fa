// Package live is the Live Follower: it tails a network's chain head as an
// in-memory confirmed suffix, detecting reorgs by walking back through
// historical headers rather than re-verifying a database on every poll.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/riftline/evmsync/internal/errkind"
	"github.com/riftline/evmsync/internal/logger"
	"github.com/riftline/evmsync/internal/metrics"
	pkgrpc "github.com/riftline/evmsync/pkg/rpc"
	"github.com/riftline/evmsync/pkg/source"
)

// ringSlack is how many headers beyond the finality window the follower
// keeps, so a reorg whose depth is close to (but within) the finality
// window still has a walk-back target in the ring.
const ringSlack = 32

// ReorgEvent reports that the chain head diverged from what the follower
// last observed. CommonAncestor is the highest block number both the old
// and new chain agree on; everything above it must be rolled back.
type ReorgEvent struct {
	ChainID        uint64
	CommonAncestor uint64
	PreviousTip    uint64
	NewTip         uint64
}

// TipEvent is delivered on every successful poll.
type TipEvent struct {
	Head  *types.Header
	Reorg *ReorgEvent // non-nil if this poll observed a reorg
}

// Follower tails one network's chain head.
type Follower struct {
	network source.Network
	rpc     pkgrpc.EthClient
	log     *logger.Logger

	mu      sync.Mutex
	ring    []*types.Header // ascending by number, bounded to finality window + slack
	maxSize int
}

func New(network source.Network, rpc pkgrpc.EthClient, log *logger.Logger) *Follower {
	maxSize := int(network.FinalityBlockCount) + ringSlack
	if maxSize < ringSlack {
		maxSize = ringSlack
	}
	return &Follower{
		network: network,
		rpc:     rpc,
		log:     log.WithComponent("live-follower"),
		maxSize: maxSize,
	}
}

// Run polls at the network's configured interval until ctx is canceled,
// invoking onTip for every observed head (including reorgs). A poll failure
// is only retried on the next tick if it's transient; errkind.DeepReorg (a
// reorg beyond the finality window, which the pipeline can't safely repair
// on its own) and errkind.RpcUnavailable (transport retries already
// exhausted inside the Gateway) are fatal and stop the loop, returning the
// error so the Orchestrator can shut down instead of polling forever
// against a chain it can no longer make sense of.
func (f *Follower) Run(ctx context.Context, onTip func(TipEvent)) error {
	ticker := time.NewTicker(f.network.PollingInterval.Duration)
	defer ticker.Stop()

	for {
		event, err := f.Poll(ctx)
		if err != nil {
			metrics.ErrorsInc("live-follower", "poll")
			f.log.Errorw("poll failed", "network", f.network.Name, "error", err)
			if fatalErr(err) {
				return fmt.Errorf("live follower: %s: %w", f.network.Name, err)
			}
		} else {
			onTip(event)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// fatalErr reports whether err should stop the follower loop rather than
// be retried on the next poll.
func fatalErr(err error) bool {
	var kindErr *errkind.Error
	if !errors.As(err, &kindErr) {
		return false
	}
	switch kindErr.Kind {
	case errkind.DeepReorg, errkind.RpcUnavailable:
		return true
	default:
		return false
	}
}

// Poll fetches the current chain head and reconciles it against the
// confirmed suffix, returning a ReorgEvent if the head diverged.
func (f *Follower) Poll(ctx context.Context) (TipEvent, error) {
	head, err := f.rpc.GetLatestBlockHeader(ctx)
	if err != nil {
		return TipEvent{}, fmt.Errorf("live follower: fetching head: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.ring) == 0 {
		if err := f.seed(ctx, head); err != nil {
			return TipEvent{}, err
		}
		return TipEvent{Head: head}, nil
	}

	tip := f.ring[len(f.ring)-1]
	if head.Hash() == tip.Hash() {
		return TipEvent{Head: head}, nil
	}

	if head.ParentHash == tip.Hash() {
		f.append(head)
		return TipEvent{Head: head}, nil
	}

	ancestor, err := f.walkBack(ctx, head)
	if err != nil {
		return TipEvent{}, err
	}

	previousTip := tip.Number.Uint64()
	f.truncateTo(ancestor)
	if err := f.fillTo(ctx, head); err != nil {
		return TipEvent{}, err
	}

	event := TipEvent{
		Head: head,
		Reorg: &ReorgEvent{
			ChainID:        f.network.ChainID,
			CommonAncestor: ancestor,
			PreviousTip:    previousTip,
			NewTip:         head.Number.Uint64(),
		},
	}
	f.log.Warnw("reorg detected",
		"network", f.network.Name,
		"common_ancestor", ancestor,
		"previous_tip", previousTip,
		"new_tip", head.Number.Uint64(),
	)
	return event, nil
}

// seed fills the ring backward from head for up to maxSize blocks.
func (f *Follower) seed(ctx context.Context, head *types.Header) error {
	headNum := head.Number.Uint64()
	start := uint64(0)
	if headNum+1 > uint64(f.maxSize) {
		start = headNum + 1 - uint64(f.maxSize)
	}

	nums := make([]uint64, 0, headNum-start+1)
	for n := start; n < headNum; n++ {
		nums = append(nums, n)
	}

	headers, err := f.rpc.BatchGetBlockHeaders(ctx, nums)
	if err != nil {
		return fmt.Errorf("live follower: seeding: %w", err)
	}
	headers = append(headers, head)

	f.ring = headers
	return nil
}

// walkBack fetches the current canonical header at each ring position,
// from the tip downward, until one's hash matches what's in the ring —
// that position is the common ancestor. newHead is unused directly but
// documents that the walk targets the chain newHead belongs to.
func (f *Follower) walkBack(ctx context.Context, newHead *types.Header) (uint64, error) {
	for i := len(f.ring) - 1; i >= 0; i-- {
		entry := f.ring[i]
		current, err := f.rpc.GetBlockHeader(ctx, entry.Number.Uint64())
		if err != nil {
			return 0, fmt.Errorf("live follower: walking back at block %d: %w", entry.Number.Uint64(), err)
		}
		if current.Hash() == entry.Hash() {
			return entry.Number.Uint64(), nil
		}
	}

	oldest := f.ring[0]
	return 0, errkind.New(errkind.DeepReorg, fmt.Errorf(
		"live follower: no common ancestor found within tracked window [%d,%d]",
		oldest.Number.Uint64(), f.ring[len(f.ring)-1].Number.Uint64()))
}

// truncateTo drops every ring entry above ancestor.
func (f *Follower) truncateTo(ancestor uint64) {
	cut := len(f.ring)
	for i, h := range f.ring {
		if h.Number.Uint64() > ancestor {
			cut = i
			break
		}
	}
	f.ring = f.ring[:cut]
}

// fillTo fetches the canonical chain from the ring's current tip (the
// ancestor after truncation) up to head and appends it.
func (f *Follower) fillTo(ctx context.Context, head *types.Header) error {
	var from uint64
	if len(f.ring) > 0 {
		from = f.ring[len(f.ring)-1].Number.Uint64() + 1
	}
	to := head.Number.Uint64()
	if from > to {
		return nil
	}

	nums := make([]uint64, 0, to-from+1)
	for n := from; n < to; n++ {
		nums = append(nums, n)
	}
	headers, err := f.rpc.BatchGetBlockHeaders(ctx, nums)
	if err != nil {
		return fmt.Errorf("live follower: filling [%d,%d]: %w", from, to, err)
	}
	headers = append(headers, head)

	for _, h := range headers {
		f.append(h)
	}
	return nil
}

func (f *Follower) append(h *types.Header) {
	f.ring = append(f.ring, h)
	if len(f.ring) > f.maxSize {
		f.ring = f.ring[len(f.ring)-f.maxSize:]
	}
}

// FinalizedTip returns the highest block number in the confirmed suffix
// considered immutable, or false if the follower hasn't polled yet.
func (f *Follower) FinalizedTip() (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ring) == 0 {
		return 0, false
	}
	tip := f.ring[len(f.ring)-1].Number.Uint64()
	return f.network.FinalizedBlock(tip), true
}
