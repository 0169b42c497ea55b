// Package peersource implements the process-backed capability source.
//
// The client spawns the peer subprocess, handshakes, discovers the peer's
// capability table, and adapts the peer's RPC result shape into the
// registry's uniform result contract. The peer is strictly optional: every
// failure mode here degrades to an empty capability set instead of an
// error.
package peersource
