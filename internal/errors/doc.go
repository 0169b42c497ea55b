// Package errors defines the error types used throughout toolbridge.
//
// The public API re-exports these types so callers never import this
// package directly.
package errors
