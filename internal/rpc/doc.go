// Package rpc implements JSON-RPC request/response correlation over a
// byte-stream transport.
//
// The protocol is newline-delimited JSON with integer request ids:
//
//	→ {"jsonrpc":"2.0","id":1,"method":"tools/list","params":{...}}
//	← {"jsonrpc":"2.0","id":1,"result":{...}}
//	← {"jsonrpc":"2.0","id":2,"error":{"message":"..."}}
//
// There is no streaming and no peer-initiated requests: the session sends
// requests and matches responses by id. Envelopes with unknown ids are
// dropped, and every pending call settles exactly once.
package rpc
