// Package schema converts capability input schemas into provider-specific
// tool declaration formats.
package schema
