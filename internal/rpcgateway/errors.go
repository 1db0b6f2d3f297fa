package rpcgateway

import (
	"errors"
	"fmt"
	"regexp"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/riftline/evmsync/internal/common"
)

var tooManyResultsPattern = regexp.MustCompile(`Query returned more than \d+ results`)

// isTooManyResultsError reports whether err is a provider "too many
// results" application error (a DataError whose ErrorData carries the
// message), as opposed to a transport failure.
func isTooManyResultsError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	var dataErr gethrpc.DataError
	if errors.As(err, &dataErr) {
		errData := fmt.Sprintf("%v", dataErr.ErrorData())
		return tooManyResultsPattern.MatchString(errData), errData
	}

	return false, ""
}

var suggestedRangePattern = regexp.MustCompile(`\[(0x[0-9a-fA-F]+),\s*(0x[0-9a-fA-F]+)\]`)

// parseSuggestedBlockRange extracts a provider-suggested narrower block
// range from an error message of the form:
//
//	"Query returned more than 20000 results. Try with this block range [0x7dfd25, 0x7e0fcc]."
func parseSuggestedBlockRange(errData string) (fromBlock, toBlock uint64, ok bool) {
	if errData == "" {
		return 0, 0, false
	}

	matches := suggestedRangePattern.FindStringSubmatch(errData)
	const expectedMatches = 3
	if len(matches) != expectedMatches {
		return 0, 0, false
	}

	from, err1 := common.ParseUint64orHex(&matches[1])
	to, err2 := common.ParseUint64orHex(&matches[2])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}

	return from, to, true
}
