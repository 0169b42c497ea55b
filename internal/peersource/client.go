package peersource

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/studioflow/toolbridge/internal/capability"
	"github.com/studioflow/toolbridge/internal/rpc"
	"github.com/studioflow/toolbridge/internal/subprocess"
)

// RPC methods understood by the peer.
const (
	methodInitialize = "initialize"
	methodListTools  = "tools/list"
	methodCallTool   = "tools/call"
)

// protocolVersion is sent during the handshake.
const protocolVersion = "2025-06-18"

// State is the connection state of the peer source.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateReady        State = "ready"
)

// Transport is the byte-stream transport the client drives. Satisfied by
// subprocess.PeerTransport; tests substitute channel-driven fakes.
type Transport interface {
	Start(ctx context.Context) error
	ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error)
	SendMessage(ctx context.Context, data []byte) error
	Close() error
}

// Config holds configuration for the peer source client.
type Config struct {
	// Spawn configures the peer subprocess. Ignored when NewTransport is set.
	Spawn *subprocess.Config

	// CallTimeout is the per-call deadline; zero means rpc.DefaultCallTimeout.
	CallTimeout time.Duration

	// NewTransport overrides transport construction, for testing.
	NewTransport func() Transport
}

// Client is the process-backed capability source.
//
// It owns the peer transport and RPC session, performs discovery, and
// adapts the peer's RPC result shape into the uniform capability result.
// Peer-backed capabilities are an optional enhancement: a missing binary or
// failed handshake leaves the client in a usable-but-empty state and is
// never fatal to callers.
type Client struct {
	log          *slog.Logger
	newTransport func() Transport
	timeout      time.Duration

	mu        sync.Mutex
	state     State
	transport Transport
	session   *rpc.Session
	caps      map[string]*capability.Capability
}

// NewClient creates a peer source client. The client starts Disconnected;
// call Connect to spawn the peer.
func NewClient(log *slog.Logger, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}

	childLog := log.With("component", "peer_source")

	newTransport := cfg.NewTransport
	if newTransport == nil {
		spawn := cfg.Spawn
		newTransport = func() Transport {
			return subprocess.NewPeerTransport(childLog, spawn)
		}
	}

	return &Client{
		log:          childLog,
		newTransport: newTransport,
		timeout:      cfg.CallTimeout,
		state:        StateDisconnected,
		caps:         map[string]*capability.Capability{},
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Connected reports whether the peer session is usable.
func (c *Client) Connected() bool {
	return c.State() == StateReady
}

// Connect spawns the peer, performs the handshake, and discovers
// capabilities.
//
// A missing peer binary returns the typed PeerNotFoundError and leaves the
// client Disconnected; callers treat this as "no peer-backed capabilities",
// not as a failure. A failed handshake or discovery leaves the client Ready
// with an empty capability table. Connect after Disconnect spawns a fresh
// process and a fresh session.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()

	if c.state == StateReady {
		c.mu.Unlock()

		return nil
	}

	c.state = StateConnecting
	transport := c.newTransport()

	c.mu.Unlock()

	if err := transport.Start(ctx); err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()

		return err
	}

	session := rpc.NewSession(c.log, transport, c.timeout)
	session.Start(ctx)

	c.mu.Lock()
	c.transport = transport
	c.session = session
	c.state = StateReady
	c.mu.Unlock()

	if _, err := session.Call(ctx, methodInitialize, handshakeParams()); err != nil {
		c.log.Warn("Peer handshake failed, continuing with empty capability set", "error", err)

		return nil
	}

	count := c.Discover(ctx)
	c.log.Info("Peer source ready", "capabilities", count)

	return nil
}

// handshakeParams builds the initialize request payload.
func handshakeParams() map[string]any {
	return map[string]any{
		"protocolVersion": protocolVersion,
		"clientInfo": map[string]any{
			"name":    "toolbridge",
			"version": "1.0.0",
		},
		"capabilities": map[string]any{},
	}
}

// Discover refreshes the capability table from the peer and returns the
// number of capabilities found.
//
// On any failure, including "not connected", the table is left empty and
// zero is returned: peer capabilities are an optional enhancement and
// discovery failures never propagate.
func (c *Client) Discover(ctx context.Context) int {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return 0
	}

	result, err := session.Call(ctx, methodListTools, map[string]any{})
	if err != nil {
		c.log.Warn("Capability discovery failed", "error", err)

		c.mu.Lock()
		c.caps = map[string]*capability.Capability{}
		c.mu.Unlock()

		return 0
	}

	toolsVal, _ := result["tools"].([]any)
	caps := make(map[string]*capability.Capability, len(toolsVal))

	for _, tv := range toolsVal {
		tm, ok := tv.(map[string]any)
		if !ok {
			continue
		}

		name, _ := tm["name"].(string)
		if name == "" {
			continue
		}

		description, _ := tm["description"].(string)
		schema, _ := tm["inputSchema"].(map[string]any)

		caps[name] = &capability.Capability{
			Name:        name,
			Description: description,
			InputSchema: schema,
			Source:      capability.SourcePeer,
		}
	}

	c.mu.Lock()
	c.caps = caps
	c.mu.Unlock()

	return len(caps)
}

// Capabilities returns the discovered capability table.
func (c *Client) Capabilities() []*capability.Capability {
	c.mu.Lock()
	defer c.mu.Unlock()

	caps := make([]*capability.Capability, 0, len(c.caps))
	for _, def := range c.caps {
		caps = append(caps, def)
	}

	return caps
}

// Get looks up a discovered capability by name.
func (c *Client) Get(name string) (*capability.Capability, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	def, ok := c.caps[name]

	return def, ok
}

// Invoke calls a peer capability and normalizes its result.
//
// Transport failures (timeout, peer exit, not connected) surface as failed
// Results, never as panics or propagated errors.
func (c *Client) Invoke(ctx context.Context, name string, args map[string]any) capability.Result {
	c.mu.Lock()
	session := c.session
	state := c.state
	c.mu.Unlock()

	if state != StateReady || session == nil {
		return capability.Errorf("peer not connected")
	}

	result, err := session.Call(ctx, methodCallTool, map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return capability.Errorf(err.Error())
	}

	return normalizeCallResult(result)
}

// Disconnect terminates the peer process and clears the capability table.
// Outstanding calls settle immediately with a disconnected error.
func (c *Client) Disconnect() {
	c.mu.Lock()
	session := c.session
	transport := c.transport
	c.session = nil
	c.transport = nil
	c.caps = map[string]*capability.Capability{}
	c.state = StateDisconnected
	c.mu.Unlock()

	if session != nil {
		session.Close()
	}

	if transport != nil {
		_ = transport.Close()
	}

	c.log.Info("Peer source disconnected")
}

// normalizeCallResult adapts the peer's tools/call result envelope into
// the uniform Result via the shared content-list normalization.
func normalizeCallResult(result map[string]any) capability.Result {
	content, _ := result["content"].([]any)
	isError, _ := result["isError"].(bool)

	return capability.NormalizeContentResult(content, isError)
}
