// Package toolbridge provides a capability execution layer that merges
// tools served by an external peer process with tools registered
// in-process, behind one registry with a uniform result shape.
//
// The peer is a companion binary spoken to over stdin/stdout using
// newline-delimited JSON-RPC. It is optional: when the binary is missing
// or fails its handshake, the registry still comes up and serves the
// in-process tools.
//
// # Basic Usage
//
// Build a registry, initialize it, and execute capabilities by name:
//
//	registry, err := toolbridge.NewRegistry(
//	    toolbridge.WithLogger(slog.Default()),
//	    toolbridge.WithProjectID("proj_8842"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer registry.Shutdown()
//
//	ctx := context.Background()
//	registry.Initialize(ctx)
//
//	result := registry.Execute(ctx, "list_projects", nil, toolbridge.InvocationContext{
//	    UserID:    "user_17",
//	    ProjectID: "proj_8842",
//	})
//	if !result.Success {
//	    log.Fatal(result.Error)
//	}
//
// Initialize is optional; the first Execute initializes lazily. Concurrent
// initialization attempts share one underlying connection, so at most one
// peer process is ever spawned.
//
// # In-Process Tools
//
// Register local tools at construction:
//
//	echo := toolbridge.LocalTool{
//	    Tool: toolbridge.NewTool("echo_text", "Echo the input text",
//	        toolbridge.SimpleSchema(map[string]string{"text": "string"})),
//	    Handler: func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
//	        args, err := toolbridge.ParseArguments(req)
//	        if err != nil {
//	            return nil, err
//	        }
//	        return toolbridge.TextResult(args["text"].(string)), nil
//	    },
//	}
//
//	registry, err := toolbridge.NewRegistry(toolbridge.WithLocalTools(echo))
//
// Arguments are validated against the tool's schema before the handler
// runs. When a peer-served capability and a local tool share a name, the
// peer-served one wins.
//
// # Schema Export
//
// Capability schemas export to LLM provider formats for tool-use prompts:
//
//	schemas, err := registry.ToolSchemasFor(toolbridge.FormatAnthropic)
package toolbridge
