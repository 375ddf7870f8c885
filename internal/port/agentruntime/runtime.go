// Package agentruntime defines the managed agent runtime port (interface).
package agentruntime

import (
	"context"

	"github.com/agentplane/agentplane/internal/domain/runtime"
)

// MemoryResource is the runtime service's view of a memory store.
type MemoryResource struct {
	ID     string
	ARN    string
	Name   string
	Status string
}

// RuntimeResource is the runtime service's view of a provisioned runtime.
type RuntimeResource struct {
	ID     string
	ARN    string
	Name   string
	Status string
}

// EndpointResource is an invocation endpoint pointing at a runtime.
type EndpointResource struct {
	ARN  string
	Name string
}

// CreateRuntimeInput carries everything the runtime service needs. The
// image URI is already resolved; env already carries platform defaults.
type CreateRuntimeInput struct {
	Name        string
	Description string
	ImageURI    string
	NetworkMode string
	Env         map[string]string
	RoleARN     string
	Authorizer  *runtime.AuthorizerConfig
}

// Client is the port interface for the managed runtime service.
type Client interface {
	// CreateMemory provisions a memory store with the given name and
	// event expiry. Creation of an already-existing memory returns the
	// existing resource.
	CreateMemory(ctx context.Context, name string, expiryDays int) (*MemoryResource, error)

	// GetMemory returns the memory's current state by ID.
	GetMemory(ctx context.Context, memoryID string) (*MemoryResource, error)

	// CreateRuntime provisions a runtime. The memory the runtime uses
	// must already be ACTIVE; callers enforce that ordering.
	CreateRuntime(ctx context.Context, in CreateRuntimeInput) (*RuntimeResource, error)

	// CreateEndpoint provisions an invocation endpoint for a runtime.
	CreateEndpoint(ctx context.Context, runtimeID, name string) (*EndpointResource, error)

	// DeleteRuntime removes a runtime. The memory it used is left alone;
	// memory lifetime is independent.
	DeleteRuntime(ctx context.Context, runtimeID string) error
}
