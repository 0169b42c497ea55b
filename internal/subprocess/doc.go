// Package subprocess spawns and owns the peer process.
//
// The transport deals only in bytes and lines: newline-terminated JSON out
// via stdin, line-delimited JSON in via stdout, diagnostics via stderr.
// Request/response correlation is layered on top by the rpc package.
package subprocess
