// Package localsource implements the in-process capability source.
//
// Tools are statically linked: each entry pairs an MCP tool definition
// with a handler executed by direct function call, no process boundary
// involved. Arguments are validated against the tool's resolved JSON
// Schema before execution.
package localsource
