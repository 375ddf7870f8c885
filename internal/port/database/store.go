// Package database defines the persistence port (interface).
package database

import (
	"context"

	"github.com/agentplane/agentplane/internal/domain/agent"
	"github.com/agentplane/agentplane/internal/domain/memory"
	"github.com/agentplane/agentplane/internal/domain/pipeline"
	"github.com/agentplane/agentplane/internal/domain/registry"
	"github.com/agentplane/agentplane/internal/domain/runtime"
)

// Store is the persistence port for agents, provisioned resource records
// and pipelines. Implementations must return domain.ErrNotFound when a
// row does not exist and domain.ErrConflict on unique violations.
type Store interface {
	AgentStore
	ProvisionStore
	PipelineStore

	// Ping verifies connectivity to the backing database.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close()
}

// AgentStore persists agent entities.
type AgentStore interface {
	CreateAgent(ctx context.Context, a *agent.Agent) error
	GetAgent(ctx context.Context, id string) (*agent.Agent, error)
	GetAgentByName(ctx context.Context, name string) (*agent.Agent, error)
	ListAgents(ctx context.Context) ([]agent.Agent, error)
	UpdateAgent(ctx context.Context, a *agent.Agent) error
	DeleteAgent(ctx context.Context, id string) error
}

// ProvisionStore persists records of cloud resources provisioned for an
// agent. Records are upserted: re-provisioning an agent overwrites the
// previous record for the same agent.
type ProvisionStore interface {
	UpsertRegistryRecord(ctx context.Context, r *registry.Record) error
	GetRegistryRecord(ctx context.Context, agentID string) (*registry.Record, error)

	UpsertMemoryRecord(ctx context.Context, m *memory.Record) error
	GetMemoryRecord(ctx context.Context, agentID string) (*memory.Record, error)

	UpsertRuntimeRecord(ctx context.Context, r *runtime.Record) error
	GetRuntimeRecord(ctx context.Context, agentID string) (*runtime.Record, error)
}

// PipelineStore persists pipelines and their stages.
type PipelineStore interface {
	CreatePipeline(ctx context.Context, p *pipeline.Pipeline) error
	GetPipeline(ctx context.Context, id string) (*pipeline.Pipeline, error)
	ListPipelines(ctx context.Context, agentID string) ([]pipeline.Pipeline, error)
	UpdatePipelineStatus(ctx context.Context, id string, status pipeline.Status) error

	// ClaimStage atomically moves a pending stage to running. It returns
	// false when the stage was already claimed, so a job delivered to two
	// workers executes once.
	ClaimStage(ctx context.Context, pipelineID, stage string) (bool, error)

	// UpdateStageStatus transitions a stage and records its error message
	// and timestamps. Terminal transitions set finished_at; a stage that
	// already reached a terminal status is not updatable and the call
	// fails with domain.ErrConflict.
	UpdateStageStatus(ctx context.Context, pipelineID, stage string, status pipeline.StageStatus, errMsg string) error
	GetStages(ctx context.Context, pipelineID string) ([]pipeline.Stage, error)
}
