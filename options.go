package toolbridge

import (
	"log/slog"
	"time"

	"github.com/studioflow/toolbridge/internal/peersource"
)

// Option configures a Registry using the functional options pattern.
type Option func(*registryOptions)

type registryOptions struct {
	logger           *slog.Logger
	localTools       []LocalTool
	callTimeout      time.Duration
	peerPath         string
	projectID        string
	fullToolset      bool
	peerEnv          map[string]string
	cwd              string
	stderrCallback   func(string)
	newPeerTransport func() peersource.Transport
}

// applyOptions applies functional options and fills in defaults.
func applyOptions(opts []Option) *registryOptions {
	options := &registryOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.logger == nil {
		options.logger = NopLogger()
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *registryOptions) {
		o.logger = logger
	}
}

// WithLocalTools registers in-process tools with the registry.
// Tools are validated at construction; an invalid tool fails NewRegistry.
func WithLocalTools(tools ...LocalTool) Option {
	return func(o *registryOptions) {
		o.localTools = append(o.localTools, tools...)
	}
}

// WithCallTimeout sets the per-call deadline for peer RPC calls.
// The default is 30 seconds.
func WithCallTimeout(timeout time.Duration) Option {
	return func(o *registryOptions) {
		o.callTimeout = timeout
	}
}

// WithPeerPath sets an explicit path to the peer binary, bypassing
// PATH and well-known location probing.
func WithPeerPath(path string) Option {
	return func(o *registryOptions) {
		o.peerPath = path
	}
}

// WithProjectID sets the project the peer process is scoped to.
func WithProjectID(projectID string) Option {
	return func(o *registryOptions) {
		o.projectID = projectID
	}
}

// WithFullToolset asks the peer to expose its complete tool catalog
// instead of the default curated subset.
func WithFullToolset(full bool) Option {
	return func(o *registryOptions) {
		o.fullToolset = full
	}
}

// WithPeerEnv adds environment variables to the peer process.
func WithPeerEnv(env map[string]string) Option {
	return func(o *registryOptions) {
		o.peerEnv = env
	}
}

// WithCwd sets the working directory for the peer process.
func WithCwd(cwd string) Option {
	return func(o *registryOptions) {
		o.cwd = cwd
	}
}

// WithStderrCallback registers a callback invoked for each line the peer
// writes to stderr. Useful for surfacing peer diagnostics in host logs.
func WithStderrCallback(callback func(string)) Option {
	return func(o *registryOptions) {
		o.stderrCallback = callback
	}
}

// WithPeerTransport overrides peer transport construction.
// Intended for tests that substitute an in-memory peer.
func WithPeerTransport(newTransport func() PeerTransport) Option {
	return func(o *registryOptions) {
		o.newPeerTransport = newTransport
	}
}
