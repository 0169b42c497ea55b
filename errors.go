package toolbridge

import "github.com/studioflow/toolbridge/internal/errors"

// Re-export error types from internal package

// PeerNotFoundError indicates the peer binary was not found.
type PeerNotFoundError = errors.PeerNotFoundError

// ConnectionError indicates failure to connect to the peer.
type ConnectionError = errors.ConnectionError

// ProcessError indicates the peer process failed.
type ProcessError = errors.ProcessError

// JSONDecodeError indicates JSON parsing failed for peer output.
type JSONDecodeError = errors.JSONDecodeError

// ToolbridgeError is the base interface for all toolbridge errors.
type ToolbridgeError = errors.ToolbridgeError

// Re-export sentinel errors from internal package.
var (
	// ErrNotConnected indicates the transport is not connected.
	ErrNotConnected = errors.ErrNotConnected

	// ErrCallTimeout indicates a peer call timed out.
	ErrCallTimeout = errors.ErrCallTimeout

	// ErrPeerExited indicates the peer process exited with calls in flight.
	ErrPeerExited = errors.ErrPeerExited

	// ErrDisconnected indicates the session was closed by the host.
	ErrDisconnected = errors.ErrDisconnected

	// ErrSessionClosed indicates the session is closed and cannot be reused.
	ErrSessionClosed = errors.ErrSessionClosed

	// ErrStdinClosed indicates the peer's stdin has been closed.
	ErrStdinClosed = errors.ErrStdinClosed
)
