package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentplane/agentplane/internal/domain"
	"github.com/agentplane/agentplane/internal/domain/agent"
	"github.com/agentplane/agentplane/internal/domain/memory"
	"github.com/agentplane/agentplane/internal/domain/registry"
	"github.com/agentplane/agentplane/internal/domain/runtime"
	"github.com/agentplane/agentplane/internal/port/agentruntime"
	"github.com/agentplane/agentplane/internal/port/containerregistry"
	"github.com/agentplane/agentplane/internal/port/database"
)

// RuntimeService provisions memories, runtimes and invocation endpoints.
type RuntimeService struct {
	store        database.Store
	rt           agentruntime.Client
	reg          containerregistry.Client
	accountID    string
	pollInterval time.Duration
	pollTimeout  time.Duration
	log          *slog.Logger
}

// NewRuntimeService creates a RuntimeService.
func NewRuntimeService(store database.Store, rt agentruntime.Client, reg containerregistry.Client, accountID string, pollInterval, pollTimeout time.Duration, log *slog.Logger) *RuntimeService {
	return &RuntimeService{
		store:        store,
		rt:           rt,
		reg:          reg,
		accountID:    accountID,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		log:          log,
	}
}

// ProvisionMemory provisions the agent's memory store and waits for it to
// become ACTIVE. Creation is idempotent: an existing memory with the
// derived name is adopted.
func (s *RuntimeService) ProvisionMemory(ctx context.Context, agentID string, spec memory.Spec) (*memory.Record, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	name := spec.Name()
	res, err := s.rt.CreateMemory(ctx, name, memory.EventExpiryDays)
	if err != nil {
		return nil, fmt.Errorf("provision memory %s: %w", name, err)
	}

	res, err = s.waitMemoryActive(ctx, res)
	if err != nil {
		return nil, err
	}

	rec := &memory.Record{
		AgentID:    agentID,
		Name:       name,
		ARN:        res.ARN,
		MemoryID:   res.ID,
		Status:     res.Status,
		ExpiryDays: memory.EventExpiryDays,
	}
	if err := s.store.UpsertMemoryRecord(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Info("memory active", "agent_id", agentID, "memory", name, "memory_id", rec.MemoryID)
	return rec, nil
}

// ProvisionRuntime provisions the agent's runtime, and its endpoint when
// requested. The memory for the agent must already be ACTIVE; Provision
// enforces the ordering end to end.
func (s *RuntimeService) ProvisionRuntime(ctx context.Context, agentID string, spec runtime.Spec) (*runtime.Record, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	mem, err := s.store.GetMemoryRecord(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("runtime requires a provisioned memory: %w", err)
	}
	if mem.Status != memory.StatusActive {
		return nil, fmt.Errorf("%w: memory %s is %s, not %s", domain.ErrValidation, mem.Name, mem.Status, memory.StatusActive)
	}

	imageURI, err := s.resolveImageURI(ctx, agentID, spec)
	if err != nil {
		return nil, err
	}

	sanitized := agent.Sanitize(spec.AgentName)
	name := runtime.Name(sanitized)

	res, err := s.rt.CreateRuntime(ctx, agentruntime.CreateRuntimeInput{
		Name:        name,
		Description: spec.Description,
		ImageURI:    imageURI,
		NetworkMode: spec.EffectiveNetworkMode(),
		Env:         spec.EffectiveEnv(),
		RoleARN:     spec.ExecutionRoleARN(s.accountID),
		Authorizer:  spec.Authorizer,
	})
	if err != nil {
		return nil, fmt.Errorf("provision runtime %s: %w", name, err)
	}

	rec := &runtime.Record{
		AgentID:     agentID,
		Name:        name,
		RuntimeID:   res.ID,
		ARN:         res.ARN,
		ImageURI:    imageURI,
		NetworkMode: spec.EffectiveNetworkMode(),
		Env:         spec.EffectiveEnv(),
		RoleARN:     spec.ExecutionRoleARN(s.accountID),
		MemoryName:  mem.Name,
		Status:      runtime.StatusReady,
	}

	if spec.CreateEndpoint {
		ep, epErr := s.rt.CreateEndpoint(ctx, res.ID, runtime.EndpointName(sanitized))
		if epErr != nil {
			return nil, fmt.Errorf("provision endpoint: %w", epErr)
		}
		rec.EndpointARN = ep.ARN
	}

	if err := s.store.UpsertRuntimeRecord(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Info("runtime provisioned",
		"agent_id", agentID,
		"runtime", name,
		"image", imageURI,
		"endpoint", spec.CreateEndpoint,
	)
	return rec, nil
}

// ProvisionEndpoint creates the invocation endpoint for an already
// provisioned runtime and records its ARN.
func (s *RuntimeService) ProvisionEndpoint(ctx context.Context, agentID, agentName string) (*runtime.Record, error) {
	rec, err := s.store.GetRuntimeRecord(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("endpoint requires a provisioned runtime: %w", err)
	}

	ep, err := s.rt.CreateEndpoint(ctx, rec.RuntimeID, runtime.EndpointName(agent.Sanitize(agentName)))
	if err != nil {
		return nil, fmt.Errorf("provision endpoint: %w", err)
	}
	rec.EndpointARN = ep.ARN

	if err := s.store.UpsertRuntimeRecord(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Info("endpoint provisioned", "agent_id", agentID, "runtime", rec.Name, "endpoint_arn", ep.ARN)
	return rec, nil
}

// Provision runs the full memory-then-runtime sequence for an agent.
func (s *RuntimeService) Provision(ctx context.Context, agentID string, spec runtime.Spec) (*runtime.Record, error) {
	memSpec := memory.Spec{AgentName: spec.AgentName, NameSuffix: spec.MemoryNameSuffix}
	if _, err := s.ProvisionMemory(ctx, agentID, memSpec); err != nil {
		return nil, err
	}
	return s.ProvisionRuntime(ctx, agentID, spec)
}

// Get returns the runtime record for an agent.
func (s *RuntimeService) Get(ctx context.Context, agentID string) (*runtime.Record, error) {
	return s.store.GetRuntimeRecord(ctx, agentID)
}

// Deprovision deletes the agent's runtime. The memory is left alone;
// memory lifetime is independent of the runtime.
func (s *RuntimeService) Deprovision(ctx context.Context, agentID string) error {
	rec, err := s.store.GetRuntimeRecord(ctx, agentID)
	if err != nil {
		return err
	}

	if err := s.rt.DeleteRuntime(ctx, rec.RuntimeID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete runtime %s: %w", rec.Name, err)
	}

	rec.Status = runtime.StatusDeleting
	return s.store.UpsertRuntimeRecord(ctx, rec)
}

// resolveImageURI resolves the container image for the runtime. An
// explicit URI wins. Otherwise the local registry record is consumed
// directly, preferring the pinned digest reference. When no record exists,
// the repository is re-resolved by its conventional name.
func (s *RuntimeService) resolveImageURI(ctx context.Context, agentID string, spec runtime.Spec) (string, error) {
	if spec.ImageURI != "" {
		return spec.ImageURI, nil
	}

	rec, err := s.store.GetRegistryRecord(ctx, agentID)
	if err == nil {
		return rec.ImageURI(), nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	repoName := registry.RepositoryName(spec.AgentName)
	repo, err := s.reg.LookupRepository(ctx, repoName)
	if err != nil {
		return "", fmt.Errorf("resolve image for %s: %w", spec.AgentName, err)
	}

	if digest, dErr := s.reg.LatestImageDigest(ctx, repoName); dErr == nil {
		return repo.URL + "@" + digest, nil
	}
	return repo.URL + ":" + registry.LatestTag, nil
}

// waitMemoryActive polls the memory until it reports ACTIVE or the poll
// deadline passes. A FAILED memory is terminal.
func (s *RuntimeService) waitMemoryActive(ctx context.Context, res *agentruntime.MemoryResource) (*agentruntime.MemoryResource, error) {
	if res.Status == memory.StatusActive {
		return res, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("memory %s not active: %w", res.Name, ctx.Err())
		case <-ticker.C:
			cur, err := s.rt.GetMemory(ctx, res.ID)
			if err != nil {
				return nil, err
			}
			switch cur.Status {
			case memory.StatusActive:
				return cur, nil
			case memory.StatusFailed:
				return nil, fmt.Errorf("memory %s entered %s", res.Name, cur.Status)
			}
		}
	}
}
