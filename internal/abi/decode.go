// Package abi decodes a log's indexed and non-indexed arguments against a
// source's ABI, the way examples/indexers/erc20 hand-decodes Transfer and
// Approval manually, generalized to any event signature via go-ethereum's
// accounts/abi package instead of one struct per event.
package abi

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/riftline/evmsync/pkg/events"
)

// Decode unpacks a log's arguments into a name-keyed map using the event
// definition named eventName in contractABI. Non-indexed arguments come
// from l.Data; indexed arguments come from l.Topics[1:] (topic0 is the
// event signature hash and carries no argument value).
func Decode(contractABI abi.ABI, eventName string, l events.LogRef) (map[string]any, error) {
	ev, ok := contractABI.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("abi decode: unknown event %q", eventName)
	}

	out := make(map[string]any, len(ev.Inputs))

	if len(l.Data) > 0 {
		if err := contractABI.UnpackIntoMap(out, eventName, l.Data); err != nil {
			return nil, fmt.Errorf("abi decode: unpack %q data: %w", eventName, err)
		}
	}

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) > 0 {
		if len(l.Topics) <= 1 {
			return nil, fmt.Errorf("abi decode: event %q expects %d indexed topics, log has %d", eventName, len(indexed), len(l.Topics)-1)
		}
		if err := abi.ParseTopicsIntoMap(out, indexed, l.Topics[1:]); err != nil {
			return nil, fmt.Errorf("abi decode: parse %q topics: %w", eventName, err)
		}
	}

	return out, nil
}
