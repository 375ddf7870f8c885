// Package configstore defines the central configuration store port
// (interface). The store supplies environment-specific settings resolved
// at deploy time.
package configstore

import "context"

// Store is the port interface for the central key-value configuration
// source.
type Store interface {
	// Snapshot returns all keys under the store's configured prefix,
	// with the prefix stripped.
	Snapshot(ctx context.Context) (map[string]string, error)
}
