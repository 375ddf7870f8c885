package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentplane/agentplane/internal/adapter/helmvalues"
	"github.com/agentplane/agentplane/internal/domain"
	"github.com/agentplane/agentplane/internal/domain/deployment"
	"github.com/agentplane/agentplane/internal/port/cache"
	"github.com/agentplane/agentplane/internal/port/configstore"
)

const configSnapshotKey = "configstore:snapshot"

// DeploymentService resolves deployment values against the central
// configuration store and renders them for Helm.
type DeploymentService struct {
	cfg      configstore.Store
	cache    cache.Cache
	cacheTTL time.Duration
	log      *slog.Logger
}

// NewDeploymentService creates a DeploymentService. cache may be nil to
// disable snapshot caching.
func NewDeploymentService(cfg configstore.Store, c cache.Cache, cacheTTL time.Duration, log *slog.Logger) *DeploymentService {
	return &DeploymentService{cfg: cfg, cache: c, cacheTTL: cacheTTL, log: log}
}

// Presets returns the built-in deployment values for all platform services.
func (s *DeploymentService) Presets() []deployment.Values {
	return deployment.BuiltinValues()
}

// RenderedService is one service's rendered values document.
type RenderedService struct {
	ServiceName string `json:"service_name"`
	Values      string `json:"values"`
}

// Render resolves and renders the values for one service.
func (s *DeploymentService) Render(ctx context.Context, serviceName string) (*RenderedService, error) {
	v, ok := deployment.ValuesFor(serviceName)
	if !ok {
		return nil, fmt.Errorf("deployment preset %s: %w", serviceName, domain.ErrNotFound)
	}

	store, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	data, err := helmvalues.Render(&v, store)
	if err != nil {
		return nil, err
	}
	return &RenderedService{ServiceName: serviceName, Values: string(data)}, nil
}

// RenderAll resolves and renders the values for every platform service.
// A single store snapshot serves all of them.
func (s *DeploymentService) RenderAll(ctx context.Context) ([]RenderedService, error) {
	store, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	presets := deployment.BuiltinValues()
	out := make([]RenderedService, 0, len(presets))
	for i := range presets {
		data, err := helmvalues.Render(&presets[i], store)
		if err != nil {
			return nil, err
		}
		out = append(out, RenderedService{ServiceName: presets[i].ServiceName, Values: string(data)})
	}
	return out, nil
}

// snapshot returns the central store's key/value map, served from cache
// when fresh.
func (s *DeploymentService) snapshot(ctx context.Context) (map[string]string, error) {
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, configSnapshotKey); err == nil && ok {
			var m map[string]string
			if err := json.Unmarshal(data, &m); err == nil {
				return m, nil
			}
		}
	}

	m, err := s.cfg.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("config store snapshot: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(m); err == nil {
			if err := s.cache.Set(ctx, configSnapshotKey, data, s.cacheTTL); err != nil {
				s.log.Debug("snapshot cache set failed", "error", err)
			}
		}
	}
	return m, nil
}
