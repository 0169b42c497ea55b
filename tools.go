package toolbridge

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/studioflow/toolbridge/internal/localsource"
)

// LocalTool pairs an in-process tool definition with its handler.
type LocalTool struct {
	Tool    *Tool
	Handler ToolHandler
}

// NewTool creates a tool definition with the given name, description,
// and input schema.
func NewTool(name, description string, inputSchema *Schema) *Tool {
	return localsource.NewTool(name, description, inputSchema)
}

// SimpleSchema creates a Schema from a simple type map.
//
// Input format: {"shotId": "string", "frames": "int"}
// All listed properties are required.
func SimpleSchema(props map[string]string) *Schema {
	return localsource.SimpleSchema(props)
}

// TextResult creates a tool result with text content.
func TextResult(text string) *mcp.CallToolResult {
	return localsource.TextResult(text)
}

// JSONResult creates a tool result whose text content is the JSON
// encoding of v, so invocation normalizes it back into structured data.
func JSONResult(v any) *mcp.CallToolResult {
	return localsource.JSONResult(v)
}

// ErrorResult creates a tool result indicating an error.
func ErrorResult(message string) *mcp.CallToolResult {
	return localsource.ErrorResult(message)
}

// ParseArguments unmarshals tool request arguments into a map.
func ParseArguments(req *mcp.CallToolRequest) (map[string]any, error) {
	return localsource.ParseArguments(req)
}
