package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPeerNotFoundError_Message(t *testing.T) {
	err := &PeerNotFoundError{SearchedPaths: []string{"/opt/peer/bin/peer", "$PATH"}}
	require.Contains(t, err.Error(), "/opt/peer/bin/peer")
	require.Contains(t, err.Error(), "not found")
	require.True(t, err.IsToolbridgeError())
}

func TestConnectionError_Unwrap(t *testing.T) {
	inner := errors.New("stdin pipe: broken")
	err := &ConnectionError{Err: inner}

	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "stdin pipe: broken")
}

func TestProcessError_Message(t *testing.T) {
	t.Run("with wrapped error", func(t *testing.T) {
		inner := errors.New("signal: killed")
		err := &ProcessError{ExitCode: -1, Err: inner}
		require.Contains(t, err.Error(), "exit -1")
		require.ErrorIs(t, err, inner)
	})

	t.Run("with stderr only", func(t *testing.T) {
		err := &ProcessError{ExitCode: 2, Stderr: "missing credentials"}
		require.Contains(t, err.Error(), "exit 2")
		require.Contains(t, err.Error(), "missing credentials")
	})
}

func TestJSONDecodeError_PreservesRawData(t *testing.T) {
	inner := errors.New("invalid character 'x'")
	err := &JSONDecodeError{RawData: "x not json", Err: inner}

	require.Equal(t, "x not json", err.RawData)
	require.ErrorIs(t, err, inner)
}

func TestSentinels_WrapAndMatch(t *testing.T) {
	wrapped := fmt.Errorf("%w after 30s", ErrCallTimeout)
	require.ErrorIs(t, wrapped, ErrCallTimeout)

	require.NotErrorIs(t, ErrPeerExited, ErrDisconnected)
}
