package subprocess

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studioflow/toolbridge/internal/errors"
)

// writeFakePeer writes an executable shell script to act as the peer binary.
func writeFakePeer(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "toolbridge-peer")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755)
	require.NoError(t, err)

	return path
}

func TestFindPeerBinary_ExplicitPathMissing(t *testing.T) {
	_, err := FindPeerBinary(slog.Default(), "/nonexistent/toolbridge-peer")
	require.Error(t, err)

	notFound, ok := stderrors.AsType[*errors.PeerNotFoundError](err)
	require.True(t, ok)
	require.Equal(t, []string{"/nonexistent/toolbridge-peer"}, notFound.SearchedPaths)
}

func TestFindPeerBinary_ExplicitPathFound(t *testing.T) {
	peer := writeFakePeer(t, "exit 0")

	path, err := FindPeerBinary(slog.Default(), peer)
	require.NoError(t, err)
	require.Equal(t, peer, path)
}

func TestPeerTransport_StartMissingBinaryIsSoftFailure(t *testing.T) {
	transport := NewPeerTransport(slog.Default(), &Config{
		PeerPath: "/nonexistent/toolbridge-peer",
	})

	err := transport.Start(context.Background())
	require.Error(t, err)

	_, ok := stderrors.AsType[*errors.PeerNotFoundError](err)
	require.True(t, ok)
	require.False(t, transport.IsReady())
}

func TestPeerTransport_ReadMessages(t *testing.T) {
	peer := writeFakePeer(t, `echo '{"jsonrpc":"2.0","id":1,"result":{"ok":true}}'`)
	transport := NewPeerTransport(slog.Default(), &Config{PeerPath: peer})

	ctx := context.Background()
	require.NoError(t, transport.Start(ctx))
	require.True(t, transport.IsReady())

	messages, errs := transport.ReadMessages(ctx)

	msg, ok := <-messages
	require.True(t, ok)
	require.Equal(t, float64(1), msg["id"])

	// Clean exit: channels close with no error reported.
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestPeerTransport_AbnormalExitReportsProcessError(t *testing.T) {
	peer := writeFakePeer(t, "echo 'missing credentials' >&2\nexit 3")
	transport := NewPeerTransport(slog.Default(), &Config{PeerPath: peer})

	ctx := context.Background()
	require.NoError(t, transport.Start(ctx))

	messages, errs := transport.ReadMessages(ctx)

	for range messages {
	}

	var procErr *errors.ProcessError

	for err := range errs {
		if pe, ok := stderrors.AsType[*errors.ProcessError](err); ok {
			procErr = pe
		}
	}

	require.NotNil(t, procErr)
	require.Equal(t, 3, procErr.ExitCode)
	require.Contains(t, procErr.Stderr, "missing credentials")
}

func TestPeerTransport_SendMessageAppendsNewline(t *testing.T) {
	// cat echoes each stdin line back to stdout.
	peer := writeFakePeer(t, "exec cat")
	transport := NewPeerTransport(slog.Default(), &Config{PeerPath: peer})

	ctx := context.Background()
	require.NoError(t, transport.Start(ctx))

	messages, _ := transport.ReadMessages(ctx)

	err := transport.SendMessage(ctx, []byte(`{"jsonrpc":"2.0","id":5,"method":"ping"}`))
	require.NoError(t, err)

	select {
	case msg := <-messages:
		require.Equal(t, float64(5), msg["id"])
		require.Equal(t, "ping", msg["method"])
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echoed message")
	}

	require.NoError(t, transport.Close())
}

func TestPeerTransport_SendBeforeStart(t *testing.T) {
	transport := NewPeerTransport(slog.Default(), &Config{})

	err := transport.SendMessage(context.Background(), []byte("{}"))
	require.ErrorIs(t, err, errors.ErrNotConnected)
}

func TestPeerTransport_CloseIdempotent(t *testing.T) {
	peer := writeFakePeer(t, "exec cat")
	transport := NewPeerTransport(slog.Default(), &Config{PeerPath: peer})

	ctx := context.Background()
	require.NoError(t, transport.Start(ctx))

	messages, _ := transport.ReadMessages(ctx)

	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())
	require.False(t, transport.IsReady())

	// Send after close reports closed stdin.
	err := transport.SendMessage(ctx, []byte("{}"))
	require.ErrorIs(t, err, errors.ErrStdinClosed)

	for range messages {
	}
}

func TestPeerTransport_StderrCallback(t *testing.T) {
	peer := writeFakePeer(t, "echo 'diag line one' >&2\necho 'diag line two' >&2")

	var mu sync.Mutex

	var lines []string

	transport := NewPeerTransport(slog.Default(), &Config{
		PeerPath: peer,
		StderrCallback: func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		},
	})

	ctx := context.Background()
	require.NoError(t, transport.Start(ctx))

	messages, errs := transport.ReadMessages(ctx)

	for range messages {
	}

	for range errs {
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"diag line one", "diag line two"}, lines)
}

func TestBuildEnvironment(t *testing.T) {
	transport := NewPeerTransport(slog.Default(), &Config{
		ProjectID:   "proj-42",
		FullToolset: true,
		Env:         map[string]string{"PEER_LOG_LEVEL": "debug"},
	})

	env := transport.buildEnvironment()

	require.Contains(t, env, "TOOLBRIDGE_PROJECT_ID=proj-42")
	require.Contains(t, env, "TOOLBRIDGE_FULL_TOOLSET=1")
	require.Contains(t, env, "PEER_LOG_LEVEL=debug")
}
