package toolbridge

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/studioflow/toolbridge/internal/capability"
	"github.com/studioflow/toolbridge/internal/peersource"
	"github.com/studioflow/toolbridge/internal/schema"
)

// Capability describes one callable capability in the merged namespace.
type Capability = capability.Capability

// Result is the uniform outcome of a capability invocation.
type Result = capability.Result

// InvocationContext carries caller identity for argument enrichment.
// Empty fields are never injected.
type InvocationContext = capability.Context

// Source identifies which backend owns a capability.
type Source = capability.Source

// Capability sources.
const (
	SourcePeer  = capability.SourcePeer
	SourceLocal = capability.SourceLocal
)

// Category is the coarse classification inferred from a capability name.
type Category = capability.Category

// Capability categories.
const (
	CategoryQuery   = capability.CategoryQuery
	CategoryAction  = capability.CategoryAction
	CategoryNotify  = capability.CategoryNotify
	CategoryGeneral = capability.CategoryGeneral
)

// Categorize infers a category from a capability name.
func Categorize(name string) Category {
	return capability.Categorize(name)
}

// SchemaFormat selects the LLM provider wire format for schema export.
type SchemaFormat = schema.Format

// Schema export formats.
const (
	FormatAnthropic = schema.FormatAnthropic
	FormatOpenAI    = schema.FormatOpenAI
	FormatGemini    = schema.FormatGemini
)

// Tool is the definition of an in-process tool.
type Tool = mcp.Tool

// ToolHandler executes an in-process tool invocation.
type ToolHandler = mcp.ToolHandler

// Schema is a JSON Schema used to describe tool inputs.
type Schema = jsonschema.Schema

// PeerTransport is the transport the peer source runs over.
// Production code uses the built-in subprocess transport; tests may
// substitute an in-memory implementation via WithPeerTransport.
type PeerTransport = peersource.Transport
