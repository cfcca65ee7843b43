// Package source provides built-in configuration source implementations.
//
// Configuration sources supply the live subscription configuration of one
// registration and notify the client whenever it changes.
// The package includes:
//
//   - Static: An in-memory value, changed explicitly with Update
//
// Custom sources can be implemented by satisfying the types.ConfigSource interface.
package source
