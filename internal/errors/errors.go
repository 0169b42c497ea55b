package errors

import (
	"errors"
	"fmt"
)

// ToolbridgeError is the base interface for all toolbridge errors.
type ToolbridgeError interface {
	error
	IsToolbridgeError() bool
}

// Compile-time verification that all error types implement ToolbridgeError.
var (
	_ ToolbridgeError = (*PeerNotFoundError)(nil)
	_ ToolbridgeError = (*ConnectionError)(nil)
	_ ToolbridgeError = (*ProcessError)(nil)
	_ ToolbridgeError = (*JSONDecodeError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrNotConnected indicates the transport has no live peer process.
	// This is an expected, recoverable state: the peer binary may simply
	// not be installed on the host.
	ErrNotConnected = errors.New("peer not connected")

	// ErrCallTimeout indicates an RPC call was not answered within its deadline.
	ErrCallTimeout = errors.New("call timeout")

	// ErrPeerExited indicates the peer process exited while calls were in flight.
	ErrPeerExited = errors.New("peer exited")

	// ErrDisconnected indicates the session was closed while calls were in flight.
	ErrDisconnected = errors.New("session disconnected")

	// ErrSessionClosed indicates a call was attempted on a closed session.
	ErrSessionClosed = errors.New("session closed")

	// ErrStdinClosed indicates stdin was closed due to context cancellation.
	ErrStdinClosed = errors.New("stdin closed")
)

// PeerNotFoundError indicates the peer binary was not found.
type PeerNotFoundError struct {
	SearchedPaths []string
}

func (e *PeerNotFoundError) Error() string {
	return fmt.Sprintf("peer binary not found in: %v", e.SearchedPaths)
}

// IsToolbridgeError implements ToolbridgeError.
func (e *PeerNotFoundError) IsToolbridgeError() bool { return true }

// ConnectionError indicates failure to spawn or connect to the peer.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to peer: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsToolbridgeError implements ToolbridgeError.
func (e *ConnectionError) IsToolbridgeError() bool { return true }

// ProcessError indicates the peer process failed.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("peer process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("peer process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsToolbridgeError implements ToolbridgeError.
func (e *ProcessError) IsToolbridgeError() bool { return true }

// JSONDecodeError indicates JSON parsing failed for a peer output line.
// This error preserves the original raw data that failed to parse.
type JSONDecodeError struct {
	RawData string
	Err     error
}

func (e *JSONDecodeError) Error() string {
	return fmt.Sprintf("failed to decode JSON from peer: %v", e.Err)
}

func (e *JSONDecodeError) Unwrap() error {
	return e.Err
}

// IsToolbridgeError implements ToolbridgeError.
func (e *JSONDecodeError) IsToolbridgeError() bool { return true }
