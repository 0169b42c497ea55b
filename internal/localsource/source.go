package localsource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/studioflow/toolbridge/internal/capability"
)

// Source is the in-process capability source.
//
// It holds a fixed table of statically linked tools, each an mcp.Tool
// definition paired with a directly executed handler. Unlike the peer's
// largely untyped structural schemas, every local schema is resolved into
// a strict validator at registration time and arguments are validated
// before the handler runs.
type Source struct {
	log   *slog.Logger
	mu    sync.RWMutex
	tools map[string]*entry
}

// entry holds one registered tool with its resolved validator and the
// uniform structural view of its schema.
type entry struct {
	tool      *mcp.Tool
	handler   mcp.ToolHandler
	resolved  *jsonschema.Resolved
	schemaMap map[string]any
}

// NewSource creates an empty in-process source.
func NewSource(log *slog.Logger) *Source {
	return &Source{
		log:   log.With("component", "local_source"),
		tools: make(map[string]*entry, 8),
	}
}

// Add registers a tool with the source.
//
// The tool's input schema is resolved into a validator now; an unresolvable
// schema is a programming error in the tool table and is reported rather
// than deferred to invocation time.
func (s *Source) Add(tool *mcp.Tool, handler mcp.ToolHandler) error {
	if tool == nil || tool.Name == "" {
		return fmt.Errorf("tool must have a name")
	}

	if handler == nil {
		return fmt.Errorf("tool %q must have a handler", tool.Name)
	}

	e := &entry{tool: tool, handler: handler}

	if tool.InputSchema != nil {
		schema, ok := tool.InputSchema.(*jsonschema.Schema)
		if !ok {
			return fmt.Errorf("resolve schema for tool %q: input schema is %T, not *jsonschema.Schema", tool.Name, tool.InputSchema)
		}

		if schema != nil {
			resolved, err := schema.Resolve(nil)
			if err != nil {
				return fmt.Errorf("resolve schema for tool %q: %w", tool.Name, err)
			}

			e.resolved = resolved
			e.schemaMap = schemaToMap(schema)
		}
	}

	s.mu.Lock()
	s.tools[tool.Name] = e
	s.mu.Unlock()

	s.log.Debug("Registered local tool", "name", tool.Name)

	return nil
}

// Capabilities returns the registered capability table.
func (s *Source) Capabilities() []*capability.Capability {
	s.mu.RLock()
	defer s.mu.RUnlock()

	caps := make([]*capability.Capability, 0, len(s.tools))
	for _, e := range s.tools {
		caps = append(caps, e.asCapability())
	}

	return caps
}

// Get looks up a registered capability by name.
func (s *Source) Get(name string) (*capability.Capability, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.tools[name]
	if !ok {
		return nil, false
	}

	return e.asCapability(), true
}

func (e *entry) asCapability() *capability.Capability {
	return &capability.Capability{
		Name:        e.tool.Name,
		Description: e.tool.Description,
		InputSchema: e.schemaMap,
		Source:      capability.SourceLocal,
	}
}

// Invoke validates arguments against the tool's schema and executes its
// handler directly.
//
// Validation failure is reported as a structured error result; execution
// is never attempted with invalid arguments. Handler errors are likewise
// folded into the result rather than propagated.
func (s *Source) Invoke(ctx context.Context, name string, args map[string]any) capability.Result {
	s.mu.RLock()
	e, ok := s.tools[name]
	s.mu.RUnlock()

	if !ok {
		return capability.Errorf("capability not found: " + name)
	}

	if args == nil {
		args = map[string]any{}
	}

	if e.resolved != nil {
		if err := e.resolved.Validate(args); err != nil {
			s.log.Debug("Local tool arguments failed validation", "name", name, "error", err)

			return capability.Errorf(fmt.Sprintf("invalid arguments for %s: %v", name, err))
		}
	}

	argBytes, err := json.Marshal(args)
	if err != nil {
		return capability.Errorf("marshal arguments: " + err.Error())
	}

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      name,
			Arguments: argBytes,
		},
	}

	result, err := e.handler(ctx, req)
	if err != nil {
		s.log.Debug("Local tool execution failed", "name", name, "error", err)

		return capability.Errorf(fmt.Sprintf("execution failed for %s: %v", name, err))
	}

	return normalizeToolResult(result)
}

// normalizeToolResult converts an mcp.CallToolResult into the uniform
// result shape via the shared content-list normalization.
func normalizeToolResult(result *mcp.CallToolResult) capability.Result {
	if result == nil {
		return capability.NormalizeContentResult(nil, false)
	}

	content := make([]any, 0, len(result.Content))

	for _, c := range result.Content {
		switch v := c.(type) {
		case *mcp.TextContent:
			content = append(content, map[string]any{
				"type": "text",
				"text": v.Text,
			})
		case *mcp.ImageContent:
			content = append(content, map[string]any{
				"type":     "image",
				"data":     v.Data,
				"mimeType": v.MIMEType,
			})
		case *mcp.AudioContent:
			content = append(content, map[string]any{
				"type":     "audio",
				"data":     v.Data,
				"mimeType": v.MIMEType,
			})
		case *mcp.ResourceLink:
			content = append(content, map[string]any{
				"type": "resource_link",
				"uri":  v.URI,
				"name": v.Name,
			})
		}
	}

	return capability.NormalizeContentResult(content, result.IsError)
}

// schemaToMap converts a typed schema into the uniform structural view
// used for enrichment checks and schema export.
func schemaToMap(schema *jsonschema.Schema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}

	return m
}
