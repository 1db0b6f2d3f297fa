package orchestrator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	pkgconfig "github.com/riftline/evmsync/pkg/config"
	"github.com/riftline/evmsync/pkg/source"
)

// buildNetworks converts the configured networks to their runtime form.
func buildNetworks(cfg *pkgconfig.Config) map[string]source.Network {
	networks := make(map[string]source.Network, len(cfg.Networks))
	for name, n := range cfg.Networks {
		networks[name] = source.NewNetwork(name, n)
	}
	return networks
}

// buildSources parses every configured source's ABI, addresses and
// (for factory sources) child-location parameter into its runtime form.
func buildSources(cfg *pkgconfig.Config) (map[string]source.Source, error) {
	sources := make(map[string]source.Source, len(cfg.Sources))
	for name, sc := range cfg.Sources {
		src, err := buildSource(name, sc)
		if err != nil {
			return nil, fmt.Errorf("building source %q: %w", name, err)
		}
		if err := src.Validate(); err != nil {
			return nil, err
		}
		sources[name] = src
	}
	return sources, nil
}

func buildSource(name string, sc pkgconfig.SourceConfig) (source.Source, error) {
	parsedABI, err := abi.JSON(strings.NewReader(sc.ABI))
	if err != nil {
		return source.Source{}, fmt.Errorf("parsing abi: %w", err)
	}

	topics, err := buildTopics(sc.Filter)
	if err != nil {
		return source.Source{}, fmt.Errorf("parsing filter: %w", err)
	}

	src := source.Source{
		Name:          name,
		Network:       sc.Network,
		ABI:           parsedABI,
		Topics:        topics,
		StartBlock:    sc.StartBlock,
		EndBlock:      sc.EndBlock,
		MaxBlockRange: sc.MaxBlockRange,
	}

	if sc.IsFactory() {
		loc, err := parseChildLocation(sc.Factory.Parameter)
		if err != nil {
			return source.Source{}, fmt.Errorf("factory parameter: %w", err)
		}
		src.Factory = &source.Factory{
			ParentAddress: common.HexToAddress(sc.Factory.Address),
			CreationEvent: sc.Factory.Event,
			ChildLocation: loc,
		}
		return src, nil
	}

	addrs := make([]common.Address, len(sc.Address))
	for i, a := range sc.Address {
		addrs[i] = common.HexToAddress(a)
	}
	src.Addresses = addrs
	return src, nil
}

// parseChildLocation parses the factory's "parameter" field: "topic:N" for
// an indexed argument (N in 1-3) or "data:N" for a byte offset into the
// non-indexed data.
func parseChildLocation(parameter string) (source.ChildLocation, error) {
	kind, value, ok := strings.Cut(parameter, ":")
	if !ok {
		return source.ChildLocation{}, fmt.Errorf("expected \"topic:N\" or \"data:N\", got %q", parameter)
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return source.ChildLocation{}, fmt.Errorf("parsing offset in %q: %w", parameter, err)
	}

	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "topic":
		return source.ChildLocation{Kind: source.ChildInTopic, TopicIndex: n}, nil
	case "data":
		return source.ChildLocation{Kind: source.ChildInData, DataOffset: n}, nil
	default:
		return source.ChildLocation{}, fmt.Errorf("unknown child location kind %q", kind)
	}
}

// buildTopics turns the configured filter map (keyed by topic position,
// "1"-"3") into the outer-position/inner-OR topic matrix go-ethereum's
// FilterQuery expects. A position's value is either one hex hash or a list
// of them, matched as an OR at that position.
func buildTopics(filter map[string]any) ([][]common.Hash, error) {
	if len(filter) == 0 {
		return nil, nil
	}

	maxPos := 0
	positions := make(map[int][]common.Hash, len(filter))
	for key, raw := range filter {
		pos, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || pos < 1 || pos > 3 {
			return nil, fmt.Errorf("filter key %q must be a topic position 1-3", key)
		}
		hashes, err := toHashes(raw)
		if err != nil {
			return nil, fmt.Errorf("filter position %d: %w", pos, err)
		}
		positions[pos] = hashes
		if pos > maxPos {
			maxPos = pos
		}
	}

	topics := make([][]common.Hash, maxPos+1)
	for pos, hashes := range positions {
		topics[pos] = hashes
	}
	return topics, nil
}

func toHashes(raw any) ([]common.Hash, error) {
	switch v := raw.(type) {
	case string:
		return []common.Hash{common.HexToHash(v)}, nil
	case []any:
		hashes := make([]common.Hash, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected a hex string, got %T", item)
			}
			hashes = append(hashes, common.HexToHash(s))
		}
		sort.Slice(hashes, func(i, j int) bool { return hashes[i].Hex() < hashes[j].Hex() })
		return hashes, nil
	default:
		return nil, fmt.Errorf("expected a string or list of strings, got %T", raw)
	}
}
