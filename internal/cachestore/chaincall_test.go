package cachestore

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/riftline/evmsync/tests/helpers"
	"github.com/stretchr/testify/require"
)

func TestGetCallMissReturnsFalse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addr := common.HexToAddress("0xaaaa000000000000000000000000000000000a")
	result, ok, err := s.GetCall(ctx, chainID, addr, []byte{0x01}, 100)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, result)
}

func TestPutCallThenGetCallHits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addr := common.HexToAddress("0xaaaa000000000000000000000000000000000a")
	callData := []byte{0xde, 0xad, 0xbe, 0xef}
	result := []byte{0x01, 0x02, 0x03}

	require.NoError(t, s.PutCall(ctx, chainID, addr, callData, 100, result))

	got, ok, err := s.GetCall(ctx, chainID, addr, callData, 100)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, result, got)
}

func TestGetCallIsKeyedByBlockNumber(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addr := common.HexToAddress("0xaaaa000000000000000000000000000000000a")
	callData := []byte{0xaa}
	require.NoError(t, s.PutCall(ctx, chainID, addr, callData, 100, []byte{0x01}))

	_, ok, err := s.GetCall(ctx, chainID, addr, callData, 101)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReadContractCachesOnMiss(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addr := common.HexToAddress("0xaaaa000000000000000000000000000000000a")
	client := helpers.NewFakeEthClient()
	client.CallResult = []byte{0x42}

	msg := ethereum.CallMsg{To: &addr, Data: []byte{0x01}}

	result, err := s.ReadContract(ctx, client, chainID, msg, 100)
	require.NoError(t, err)
	require.Equal(t, []byte{0x42}, result)

	cached, ok, err := s.GetCall(ctx, chainID, addr, msg.Data, 100)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{0x42}, cached)
}

func TestReadContractServesFromCacheWithoutCallingClient(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addr := common.HexToAddress("0xaaaa000000000000000000000000000000000a")
	require.NoError(t, s.PutCall(ctx, chainID, addr, []byte{0x01}, 100, []byte{0x99}))

	client := helpers.NewFakeEthClient()
	client.CallErr = errors.New("should not be called")

	msg := ethereum.CallMsg{To: &addr, Data: []byte{0x01}}
	result, err := s.ReadContract(ctx, client, chainID, msg, 100)
	require.NoError(t, err)
	require.Equal(t, []byte{0x99}, result)
}

func TestReadContractPropagatesClientError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addr := common.HexToAddress("0xaaaa000000000000000000000000000000000a")
	client := helpers.NewFakeEthClient()
	client.CallErr = errors.New("rpc unavailable")

	msg := ethereum.CallMsg{To: &addr, Data: []byte{0x01}}
	_, err := s.ReadContract(ctx, client, chainID, msg, 100)
	require.Error(t, err)
}
