// Package resolver is the Source Resolver: it turns a configured source
// into the effective address/topic filter the Historical Fetcher and the
// Event Stream's cache feeds query with, materializing factory child addresses from cached
// parent logs as they're discovered.
package resolver

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/riftline/evmsync/internal/cachestore"
	"github.com/riftline/evmsync/internal/logger"
	"github.com/riftline/evmsync/pkg/source"
)

// EnsureSyncedFunc ensures a synthetic static source (the factory's parent
// contract, scoped to its creation event) is synced up to the current
// finalized tip. The Historical Fetcher implements this; it's injected
// rather than imported directly to avoid a resolver<->fetcher import cycle,
// since the fetcher in turn calls the resolver to get addresses to fetch.
type EnsureSyncedFunc func(ctx context.Context, parentSource source.Source) error

// ResolvedFilter is what the fetcher/follower actually query with.
type ResolvedFilter struct {
	Addresses   []common.Address
	Topics      [][]common.Hash
	Fingerprint string
}

// Resolver resolves configured sources to effective filters, tracking
// factory child-address discovery.
type Resolver struct {
	cache        *cachestore.Store
	ensureSynced EnsureSyncedFunc
	log          *logger.Logger

	mu        sync.RWMutex
	childSets map[string]*childSetState // keyed by source name
}

type childSetState struct {
	version   int
	addresses map[common.Address]struct{}
	// discoveredAt records the parent block at which each child address was
	// first observed. On every version bump, materializeChildren uses the
	// earliest discoveredAt among that round's new children to carry
	// forward cache coverage recorded under the prior version: blocks
	// before that point stay covered, only blocks at or after it are
	// treated as missing for the new (grown) address set.
	discoveredAt map[common.Address]uint64
}

func New(cache *cachestore.Store, ensureSynced EnsureSyncedFunc, log *logger.Logger) *Resolver {
	return &Resolver{
		cache:        cache,
		ensureSynced: ensureSynced,
		log:          log.WithComponent("resolver"),
		childSets:    make(map[string]*childSetState),
	}
}

// Resolve produces the effective filter for src. For static sources this
// is immediate; for factory sources it first ensures the parent's
// creation-event range is synced, then rescans cached parent logs to grow
// the child address set before returning.
func (r *Resolver) Resolve(ctx context.Context, chainID uint64, src source.Source) (ResolvedFilter, error) {
	if !src.IsFactory() {
		return ResolvedFilter{
			Addresses:   src.Addresses,
			Topics:      src.Topics,
			Fingerprint: src.Fingerprint(),
		}, nil
	}

	parent := syntheticParentSource(src)

	if err := r.ensureSynced(ctx, parent); err != nil {
		return ResolvedFilter{}, fmt.Errorf("resolver: syncing factory parent for %q: %w", src.Name, err)
	}

	addresses, version, err := r.materializeChildren(ctx, chainID, src, parent)
	if err != nil {
		return ResolvedFilter{}, fmt.Errorf("resolver: materializing children for %q: %w", src.Name, err)
	}

	base := src.Fingerprint()
	return ResolvedFilter{
		Addresses:   addresses,
		Topics:      src.Topics,
		Fingerprint: source.FingerprintWithChildren(base, version),
	}, nil
}

// syntheticParentSource builds the static source the fetcher uses to sync
// the factory's parent creation-event log range.
func syntheticParentSource(src source.Source) source.Source {
	return source.Source{
		Name:       src.Name + "/parent",
		Network:    src.Network,
		ABI:        src.ABI,
		Addresses:  []common.Address{src.Factory.ParentAddress},
		StartBlock: src.StartBlock,
	}
}

// materializeChildren scans every cached parent log for this source's
// fingerprint and extracts a child address from each, per the configured
// ChildLocation. Child addresses accumulate monotonically; a source never
// loses a previously discovered child.
func (r *Resolver) materializeChildren(ctx context.Context, chainID uint64, src source.Source, parent source.Source) ([]common.Address, int, error) {
	r.mu.Lock()
	state, ok := r.childSets[src.Name]
	if !ok {
		state = &childSetState{
			addresses:    make(map[common.Address]struct{}),
			discoveredAt: make(map[common.Address]uint64),
		}
		r.childSets[src.Name] = state
	}
	r.mu.Unlock()

	intervals, err := r.cache.GetCachedIntervals(ctx, chainID, parent.Fingerprint())
	if err != nil {
		return nil, 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(state.addresses)
	var earliestNewChild uint64
	haveEarliest := false
	for _, iv := range intervals {
		logs, err := r.cache.GetLogs(ctx, chainID, parent.Addresses, iv.FromBlock, iv.ToBlock)
		if err != nil {
			return nil, 0, err
		}
		for _, l := range logs {
			child, ok := extractChildAddress(l, src.Factory.ChildLocation)
			if !ok {
				continue
			}
			if _, seen := state.addresses[child]; !seen {
				state.addresses[child] = struct{}{}
				state.discoveredAt[child] = l.BlockNumber
				if !haveEarliest || l.BlockNumber < earliestNewChild {
					earliestNewChild = l.BlockNumber
					haveEarliest = true
				}
				r.log.Debugf("resolver: discovered factory child %s for source %q at block %d",
					child.Hex(), src.Name, l.BlockNumber)
			}
		}
	}

	if len(state.addresses) != before {
		oldFingerprint := source.FingerprintWithChildren(src.Fingerprint(), state.version)
		state.version++
		newFingerprint := source.FingerprintWithChildren(src.Fingerprint(), state.version)
		// Coverage recorded under the old (smaller) address set is still
		// valid for every block before the earliest newly discovered
		// child — only blocks from that child's discovery block forward
		// need to be re-fetched under the grown address set.
		if err := r.cache.CarryForwardIntervals(ctx, chainID, oldFingerprint, newFingerprint, earliestNewChild); err != nil {
			return nil, 0, fmt.Errorf("resolver: carrying forward cache coverage for %q: %w", src.Name, err)
		}
	}

	addresses := make([]common.Address, 0, len(state.addresses))
	for a := range state.addresses {
		addresses = append(addresses, a)
	}
	return addresses, state.version, nil
}

// extractChildAddress reads a child contract address out of a factory
// creation log at the configured location: the last 20 bytes of an
// indexed topic, or a 20-byte slice of non-indexed data at a fixed offset.
func extractChildAddress(l types.Log, loc source.ChildLocation) (common.Address, bool) {
	if loc.Kind == source.ChildInTopic {
		if loc.TopicIndex >= len(l.Topics) {
			return common.Address{}, false
		}
		return common.BytesToAddress(l.Topics[loc.TopicIndex].Bytes()), true
	}

	const addressSize = 20
	if loc.DataOffset+addressSize > len(l.Data) {
		return common.Address{}, false
	}
	return common.BytesToAddress(l.Data[loc.DataOffset : loc.DataOffset+addressSize]), true
}
