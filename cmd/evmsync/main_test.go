package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/riftline/evmsync/internal/errkind"
	"github.com/stretchr/testify/require"
)

func TestExitCodeForRpcUnavailableIsTwo(t *testing.T) {
	err := fmt.Errorf("orchestrator stopped: %w", errkind.New(errkind.RpcUnavailable, errors.New("dial failed")))
	require.Equal(t, 2, exitCode(err))
}

func TestExitCodeForOtherFailuresIsOne(t *testing.T) {
	require.Equal(t, 1, exitCode(errors.New("config error")))
	require.Equal(t, 1, exitCode(errkind.New(errkind.HandlerError, errors.New("handler panicked"))))
}
