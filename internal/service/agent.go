package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentplane/agentplane/internal/domain"
	"github.com/agentplane/agentplane/internal/domain/agent"
	"github.com/agentplane/agentplane/internal/port/database"
)

// AgentService handles agent registration.
type AgentService struct {
	store database.Store
}

// NewAgentService creates an AgentService.
func NewAgentService(store database.Store) *AgentService {
	return &AgentService{store: store}
}

// List returns all agents.
func (s *AgentService) List(ctx context.Context) ([]agent.Agent, error) {
	return s.store.ListAgents(ctx)
}

// Get returns an agent by ID.
func (s *AgentService) Get(ctx context.Context, id string) (*agent.Agent, error) {
	return s.store.GetAgent(ctx, id)
}

// Create registers a new agent after validating the request. The name is
// validated once here; every derived resource name is valid by construction.
func (s *AgentService) Create(ctx context.Context, req *agent.CreateRequest) (*agent.Agent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.store.GetAgentByName(ctx, req.Name); err == nil {
		return nil, fmt.Errorf("agent %s: %w", req.Name, domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	a := &agent.Agent{
		Name:        req.Name,
		Description: req.Description,
		Region:      req.Region,
	}
	if err := s.store.CreateAgent(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Update applies partial updates to an agent. The name is immutable.
func (s *AgentService) Update(ctx context.Context, id string, req agent.UpdateRequest) (*agent.Agent, error) {
	a, err := s.store.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		a.Description = *req.Description
	}
	if req.Region != nil {
		a.Region = *req.Region
	}

	if err := s.store.UpdateAgent(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes an agent and its provisioning records. Cloud resources
// are not touched; deprovision the runtime and registry first.
func (s *AgentService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteAgent(ctx, id)
}
