// Package source models the configured networks and event sources that the
// pipeline resolves, fetches and dispatches against.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	evcommon "github.com/riftline/evmsync/internal/common"
	pkgconfig "github.com/riftline/evmsync/pkg/config"
)

// Network is an immutable, named chain the pipeline follows.
type Network struct {
	Name                         string
	ChainID                      uint64
	Transport                    string
	FallbackTransports           []string
	PollingInterval              evcommon.Duration
	MaxBlockRange                uint64
	MaxHistoricalTaskConcurrency int
	FinalityBlockCount           uint64
}

// NewNetwork constructs a Network from its configuration entry.
func NewNetwork(name string, cfg pkgconfig.NetworkConfig) Network {
	return Network{
		Name:                         name,
		ChainID:                      cfg.ChainID,
		Transport:                    cfg.Transport,
		FallbackTransports:           cfg.FallbackTransports,
		PollingInterval:              cfg.PollingInterval,
		MaxBlockRange:                cfg.MaxBlockRange,
		MaxHistoricalTaskConcurrency: cfg.MaxHistoricalTaskConcurrency,
		FinalityBlockCount:           cfg.FinalityBlockCount,
	}
}

// FinalizedBlock returns the highest block number considered immutable
// given the current chain tip.
func (n Network) FinalizedBlock(tip uint64) uint64 {
	if tip < n.FinalityBlockCount {
		return 0
	}
	return tip - n.FinalityBlockCount
}

// ChildLocationKind selects where a factory event carries its child address.
type ChildLocationKind int

const (
	// ChildInTopic means the child address is the last 20 bytes of an
	// indexed topic (index 1, 2 or 3).
	ChildInTopic ChildLocationKind = iota
	// ChildInData means the child address is a 20-byte slice of the
	// non-indexed data at a fixed byte offset.
	ChildInData
)

// ChildLocation describes exactly where to read a child address from a
// factory creation log.
type ChildLocation struct {
	Kind       ChildLocationKind
	TopicIndex int // 1-3, used when Kind == ChildInTopic
	DataOffset int // used when Kind == ChildInData
}

// Factory describes a dynamic event source whose addresses are discovered
// by scanning a parent contract's creation events.
type Factory struct {
	ParentAddress  common.Address
	CreationEvent  string // event signature, e.g. "PoolCreated(address,address,uint24,int24,address)"
	ChildLocation  ChildLocation
}

// Source is one configured, network-bound event source. Exactly one of
// Addresses or Factory is set.
type Source struct {
	Name    string
	Network string

	ABI       abi.ABI
	Addresses []common.Address // static sources
	Factory   *Factory         // factory sources

	Topics     [][]common.Hash // optional topic filter, outer index = topic position
	StartBlock uint64
	EndBlock   *uint64

	// MaxBlockRange overrides the network default when set.
	MaxBlockRange *uint64
}

// IsFactory reports whether this is a factory-derived source.
func (s Source) IsFactory() bool {
	return s.Factory != nil
}

// EffectiveMaxBlockRange returns the source's override or the network default.
func (s Source) EffectiveMaxBlockRange(network Network) uint64 {
	if s.MaxBlockRange != nil && *s.MaxBlockRange > 0 {
		return *s.MaxBlockRange
	}
	return network.MaxBlockRange
}

// Fingerprint returns a stable hash of this source's identity: for static
// sources, the sorted address set plus topics plus ABI event selectors; for
// factory sources, the parent/creation-event/child-location triple plus ABI
// event selectors. It intentionally excludes the materialized child set —
// callers append the child-set version via FingerprintWithChildren.
func (s Source) Fingerprint() string {
	h := sha256.New()

	eventSigs := make([]string, 0, len(s.ABI.Events))
	for _, ev := range s.ABI.Events {
		eventSigs = append(eventSigs, ev.ID.Hex())
	}
	sort.Strings(eventSigs)
	fmt.Fprintf(h, "events:%s|", strings.Join(eventSigs, ","))

	for _, topicSet := range s.Topics {
		hexes := make([]string, len(topicSet))
		for i, t := range topicSet {
			hexes[i] = t.Hex()
		}
		sort.Strings(hexes)
		fmt.Fprintf(h, "topics:%s|", strings.Join(hexes, ","))
	}

	if s.IsFactory() {
		fmt.Fprintf(h, "factory:%s:%s:%d:%d|",
			strings.ToLower(s.Factory.ParentAddress.Hex()),
			s.Factory.CreationEvent,
			s.Factory.ChildLocation.Kind,
			childLocationValue(s.Factory.ChildLocation),
		)
	} else {
		addrs := make([]string, len(s.Addresses))
		for i, a := range s.Addresses {
			addrs[i] = strings.ToLower(a.Hex())
		}
		sort.Strings(addrs)
		fmt.Fprintf(h, "addresses:%s|", strings.Join(addrs, ","))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// FingerprintWithChildren appends the materialized child-set version to the
// base fingerprint, so a newly discovered child invalidates only cache
// intervals recorded after this version.
func FingerprintWithChildren(base string, childSetVersion int) string {
	return fmt.Sprintf("%s:v%d", base, childSetVersion)
}

func childLocationValue(loc ChildLocation) int {
	if loc.Kind == ChildInTopic {
		return loc.TopicIndex
	}
	return loc.DataOffset
}

// Validate checks the structural invariants the data model requires beyond
// what config.Validate already enforces (config works on strings; Source
// works on decoded go-ethereum types).
func (s Source) Validate() error {
	if s.StartBlock == 0 && s.EndBlock != nil && *s.EndBlock == 0 {
		return fmt.Errorf("source %q: start_block and end_block cannot both be 0 with an empty range", s.Name)
	}
	if s.EndBlock != nil && *s.EndBlock < s.StartBlock {
		return fmt.Errorf("source %q: end_block must be >= start_block", s.Name)
	}
	if s.IsFactory() == (len(s.Addresses) > 0) {
		return fmt.Errorf("source %q: exactly one of addresses or factory must be set", s.Name)
	}
	if s.IsFactory() {
		loc := s.Factory.ChildLocation
		if loc.Kind == ChildInTopic && (loc.TopicIndex < 1 || loc.TopicIndex > 3) {
			return fmt.Errorf("source %q: factory topic index must be 1-3, got %d", s.Name, loc.TopicIndex)
		}
	}
	return nil
}
