package toolbridge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	"github.com/studioflow/toolbridge/internal/capability"
	"github.com/studioflow/toolbridge/internal/localsource"
	"github.com/studioflow/toolbridge/internal/peersource"
	"github.com/studioflow/toolbridge/internal/schema"
	"github.com/studioflow/toolbridge/internal/subprocess"
)

// Registry composes the peer-backed and in-process capability sources into
// one namespace and provides a single execution entry point with uniform
// results.
//
// A Registry is an explicitly constructed instance: build one with
// NewRegistry at the composition root and pass it down. Name collisions
// between sources resolve in favor of the peer source. The merged table is
// built once during Initialize and is read-only afterwards, so concurrent
// Execute calls share it without locking on the common path.
type Registry struct {
	log   *slog.Logger
	peer  *peersource.Client
	local *localsource.Source

	initGroup   singleflight.Group
	initialized atomic.Bool

	mu   sync.RWMutex
	caps map[string]*capability.Capability
}

// NewRegistry creates a registry from the given options.
//
// The in-process tool table is registered eagerly; a tool with an
// unresolvable schema is a construction error. The peer subprocess is not
// spawned until Initialize (or the first Execute).
func NewRegistry(opts ...Option) (*Registry, error) {
	options := applyOptions(opts)

	log := options.logger
	local := localsource.NewSource(log)

	for _, tool := range options.localTools {
		if err := local.Add(tool.Tool, tool.Handler); err != nil {
			return nil, fmt.Errorf("register local tool: %w", err)
		}
	}

	peerCfg := &peersource.Config{
		CallTimeout:  options.callTimeout,
		NewTransport: options.newPeerTransport,
		Spawn: &subprocess.Config{
			PeerPath:       options.peerPath,
			ProjectID:      options.projectID,
			FullToolset:    options.fullToolset,
			Env:            options.peerEnv,
			Cwd:            options.cwd,
			StderrCallback: options.stderrCallback,
		},
	}

	return &Registry{
		log:   log.With("component", "registry"),
		peer:  peersource.NewClient(log, peerCfg),
		local: local,
		caps:  map[string]*capability.Capability{},
	}, nil
}

// Initialize connects the peer source, discovers its capabilities, and
// merges in the in-process table.
//
// Initialize is idempotent and safe to call concurrently: callers that
// arrive while an initialization is in flight await that same attempt
// rather than spawning a second subprocess. Peer failures (missing binary,
// handshake failure, discovery failure) are logged and swallowed; the
// registry always comes up usable, possibly with zero peer-backed
// capabilities.
func (r *Registry) Initialize(ctx context.Context) {
	if r.initialized.Load() {
		return
	}

	_, _, _ = r.initGroup.Do("initialize", func() (any, error) {
		if r.initialized.Load() {
			return nil, nil
		}

		r.doInitialize(ctx)
		r.initialized.Store(true)

		return nil, nil
	})
}

func (r *Registry) doInitialize(ctx context.Context) {
	if err := r.peer.Connect(ctx); err != nil {
		// Expected when the peer binary is not installed; the registry
		// serves in-process capabilities only.
		r.log.Info("Peer source unavailable", "error", err)
	}

	merged := map[string]*capability.Capability{}

	for _, def := range r.peer.Capabilities() {
		merged[def.Name] = def
	}

	for _, def := range r.local.Capabilities() {
		if _, taken := merged[def.Name]; taken {
			r.log.Debug("Skipping local capability shadowed by peer", "name", def.Name)

			continue
		}

		merged[def.Name] = def
	}

	r.mu.Lock()
	r.caps = merged
	r.mu.Unlock()

	r.log.Info("Registry initialized",
		"capabilities", len(merged),
		"peer_connected", r.peer.Connected(),
	)
}

// Execute invokes a capability by name.
//
// The registry initializes itself lazily on first use. An unknown name
// returns a structured "not found" result; every other failure mode,
// whether transport, validation, or execution, likewise folds into the
// returned Result. Execute never panics and never propagates an error.
//
// Arguments are enriched from ictx before dispatch, but only with fields
// the capability's schema declares; context never leaks into capabilities
// that do not expect it. Caller-supplied argument values are not
// overwritten.
func (r *Registry) Execute(
	ctx context.Context,
	name string,
	args map[string]any,
	ictx InvocationContext,
) Result {
	if !r.initialized.Load() {
		r.Initialize(ctx)
	}

	r.mu.RLock()
	def, ok := r.caps[name]
	r.mu.RUnlock()

	if !ok {
		return capability.Errorf(fmt.Sprintf("capability not found: %s", name))
	}

	args = enrichArguments(def, args, ictx)

	invocationID := ulid.Make().String()
	r.log.Debug("Executing capability",
		"invocation_id", invocationID,
		"name", name,
		"source", def.Source,
	)

	var result Result

	switch def.Source {
	case SourcePeer:
		result = r.peer.Invoke(ctx, name, args)
	case SourceLocal:
		result = r.local.Invoke(ctx, name, args)
	default:
		result = capability.Errorf(fmt.Sprintf("unknown capability source: %s", def.Source))
	}

	if result.Success {
		r.log.Debug("Capability execution succeeded", "invocation_id", invocationID, "name", name)
	} else {
		r.log.Debug("Capability execution failed",
			"invocation_id", invocationID,
			"name", name,
			"error", result.Error,
		)
	}

	return result
}

// enrichArguments merges context fields into a copy of args for every
// field the capability's schema declares. Fields already present in args
// are left alone.
func enrichArguments(
	def *capability.Capability,
	args map[string]any,
	ictx InvocationContext,
) map[string]any {
	fields := ictx.Fields()

	enriched := make(map[string]any, len(args)+len(fields))
	for k, v := range args {
		enriched[k] = v
	}

	for field, value := range fields {
		if !def.DeclaresParam(field) {
			continue
		}

		if _, present := enriched[field]; present {
			continue
		}

		enriched[field] = value
	}

	return enriched
}

// Has reports whether a capability with the given name exists.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.caps[name]

	return ok
}

// Get looks up a capability by name.
func (r *Registry) Get(name string) (*Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.caps[name]

	return def, ok
}

// Len returns the number of capabilities in the merged namespace.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.caps)
}

// All returns every capability in the merged namespace, sorted by name.
func (r *Registry) All() []*Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]*Capability, 0, len(r.caps))
	for _, def := range r.caps {
		caps = append(caps, def)
	}

	sort.Slice(caps, func(i, j int) bool { return caps[i].Name < caps[j].Name })

	return caps
}

// ByCategory returns capabilities whose inferred category matches.
// Categories come from the best-effort name classifier; see Categorize.
func (r *Registry) ByCategory(cat Category) []*Capability {
	var caps []*Capability

	for _, def := range r.All() {
		if capability.Categorize(def.Name) == cat {
			caps = append(caps, def)
		}
	}

	return caps
}

// BySource returns capabilities owned by the given source.
func (r *Registry) BySource(src Source) []*Capability {
	var caps []*Capability

	for _, def := range r.All() {
		if def.Source == src {
			caps = append(caps, def)
		}
	}

	return caps
}

// PeerConnected reports whether the peer source has a live session.
func (r *Registry) PeerConnected() bool {
	return r.peer.Connected()
}

// ToolSchemaFor exports one capability's schema in the given wire format.
func (r *Registry) ToolSchemaFor(name string, format SchemaFormat) (map[string]any, error) {
	def, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("capability not found: %s", name)
	}

	return schema.Export(def.Name, def.Description, def.InputSchema, format)
}

// ToolSchemasFor exports every capability's schema in the given wire
// format, sorted by name.
func (r *Registry) ToolSchemasFor(format SchemaFormat) ([]map[string]any, error) {
	all := r.All()
	schemas := make([]map[string]any, 0, len(all))

	for _, def := range all {
		exported, err := schema.Export(def.Name, def.Description, def.InputSchema, format)
		if err != nil {
			return nil, err
		}

		schemas = append(schemas, exported)
	}

	return schemas, nil
}

// Shutdown disconnects the peer source and clears the merged table.
//
// The registry can be re-initialized afterwards; a subsequent Initialize
// spawns a fresh peer process.
func (r *Registry) Shutdown() {
	r.peer.Disconnect()

	r.mu.Lock()
	r.caps = map[string]*capability.Capability{}
	r.mu.Unlock()

	r.initialized.Store(false)
	r.log.Info("Registry shut down")
}
