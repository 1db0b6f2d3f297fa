package rpcgateway

import (
	"errors"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/riftline/evmsync/internal/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, classify(nil))
}

func TestClassifyTooManyResults(t *testing.T) {
	err := &fakeDataError{
		msg:  "range error",
		data: "Query returned more than 20000 results. Try with this block range [0x10, 0x20].",
	}
	classified := classify(err)

	var e *errkind.Error
	require.True(t, errors.As(classified, &e))
	assert.Equal(t, errkind.RpcApplication, e.Kind)
	assert.Equal(t, uint64(0x10), e.SuggestedFromBlock)
	assert.Equal(t, uint64(0x20), e.SuggestedToBlock)
}

func TestClassifyTransportError(t *testing.T) {
	classified := classify(errors.New("connection refused"))

	var e *errkind.Error
	require.True(t, errors.As(classified, &e))
	assert.Equal(t, errkind.RpcUnavailable, e.Kind)
}

func TestClassifyApplicationError(t *testing.T) {
	classified := classify(errors.New("invalid argument"))

	var e *errkind.Error
	require.True(t, errors.As(classified, &e))
	assert.Equal(t, errkind.RpcApplication, e.Kind)
}

func TestToBlockNumArg(t *testing.T) {
	assert.Equal(t, "0xa", toBlockNumArg(10))
	assert.Equal(t, "0x0", toBlockNumArg(0))
}

func TestToFilterArgSingleAddress(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	q := ethereum.FilterQuery{
		Addresses: []common.Address{addr},
		FromBlock: big.NewInt(1),
		ToBlock:   big.NewInt(2),
	}
	arg := toFilterArg(q)
	assert.Equal(t, addr, arg["address"])
	assert.Equal(t, "0x1", arg["fromBlock"])
	assert.Equal(t, "0x2", arg["toBlock"])
}

func TestToFilterArgMultipleAddresses(t *testing.T) {
	a1 := common.HexToAddress("0x1111111111111111111111111111111111111111")
	a2 := common.HexToAddress("0x2222222222222222222222222222222222222222")
	q := ethereum.FilterQuery{Addresses: []common.Address{a1, a2}}
	arg := toFilterArg(q)
	assert.ElementsMatch(t, []common.Address{a1, a2}, arg["address"])
}

func TestToFilterArgBlockHashTakesPrecedence(t *testing.T) {
	h := common.HexToHash("0xab")
	q := ethereum.FilterQuery{
		BlockHash: &h,
		FromBlock: big.NewInt(1),
		ToBlock:   big.NewInt(2),
	}
	arg := toFilterArg(q)
	assert.Equal(t, h, arg["blockHash"])
	_, hasFrom := arg["fromBlock"]
	assert.False(t, hasFrom)
}
