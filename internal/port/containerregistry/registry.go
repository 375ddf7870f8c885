// Package containerregistry defines the container registry port
// (interface).
package containerregistry

import (
	"context"

	"github.com/agentplane/agentplane/internal/domain/registry"
)

// Repository is the registry service's view of a repository, mapped into
// domain terms by the adapter.
type Repository struct {
	Name       string
	URL        string
	ARN        string
	RegistryID string
}

// Client is the port interface for the managed container registry.
type Client interface {
	// EnsureRepository creates the repository when absent and returns its
	// descriptor either way. Duplicate creation is not an error.
	EnsureRepository(ctx context.Context, spec registry.Spec) (*Repository, error)

	// LookupRepository resolves an existing repository by name. Returns
	// domain.ErrNotFound when the registry has no such repository.
	LookupRepository(ctx context.Context, name string) (*Repository, error)

	// LatestImageDigest returns the digest currently behind the latest
	// tag, or domain.ErrNotFound when no image has been pushed.
	LatestImageDigest(ctx context.Context, repositoryName string) (string, error)

	// DeleteRepository removes the repository. force removes it even when
	// it still contains images.
	DeleteRepository(ctx context.Context, name string, force bool) error
}
