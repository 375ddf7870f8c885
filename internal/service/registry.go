// Package service implements business logic on top of ports.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agentplane/agentplane/internal/domain"
	"github.com/agentplane/agentplane/internal/domain/registry"
	"github.com/agentplane/agentplane/internal/port/containerregistry"
	"github.com/agentplane/agentplane/internal/port/database"
	"github.com/agentplane/agentplane/internal/port/imagebuilder"
)

// RegistryService ensures container repositories for agents and records
// the result.
type RegistryService struct {
	store   database.Store
	reg     containerregistry.Client
	builder imagebuilder.Builder
	log     *slog.Logger
}

// NewRegistryService creates a RegistryService. builder may be nil when
// image builds are not available on this host.
func NewRegistryService(store database.Store, reg containerregistry.Client, builder imagebuilder.Builder, log *slog.Logger) *RegistryService {
	return &RegistryService{store: store, reg: reg, builder: builder, log: log}
}

// Ensure makes sure the agent's repository exists and upserts the registry
// record. When the spec requests a build, the image is built and pushed and
// the record carries the pushed digest.
func (s *RegistryService) Ensure(ctx context.Context, agentID string, spec registry.Spec) (*registry.Record, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	repo, err := s.reg.EnsureRepository(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("ensure repository: %w", err)
	}

	rec := &registry.Record{
		AgentID:        agentID,
		RepositoryName: repo.Name,
		RepositoryURL:  repo.URL,
		RepositoryARN:  repo.ARN,
		RegistryID:     repo.RegistryID,
		TagMutability:  spec.TagMutability,
		ScanOnPush:     spec.ScanOnPush,
	}
	if rec.TagMutability == "" {
		rec.TagMutability = registry.TagMutabilityMutable
	}

	if spec.TriggerBuild {
		digest, buildErr := s.build(ctx, rec, spec)
		if buildErr != nil {
			return nil, buildErr
		}
		rec.ImageDigest = digest
	} else {
		// Pick up a digest from a previously pushed image when one exists,
		// so downstream stages can pin instead of chasing the latest tag.
		digest, digErr := s.reg.LatestImageDigest(ctx, rec.RepositoryName)
		if digErr == nil {
			rec.ImageDigest = digest
		} else if !errors.Is(digErr, domain.ErrNotFound) {
			s.log.Warn("digest lookup failed", "repository", rec.RepositoryName, "error", digErr)
		}
	}

	if err := s.store.UpsertRegistryRecord(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Info("registry ensured",
		"agent_id", agentID,
		"repository", rec.RepositoryName,
		"digest", rec.ImageDigest,
	)
	return rec, nil
}

// Build builds and pushes the agent's image against an existing registry
// record and pins the pushed digest on the record.
func (s *RegistryService) Build(ctx context.Context, agentID string, spec registry.Spec) (*registry.Record, error) {
	rec, err := s.store.GetRegistryRecord(ctx, agentID)
	if err != nil {
		return nil, err
	}

	digest, err := s.build(ctx, rec, spec)
	if err != nil {
		return nil, err
	}
	rec.ImageDigest = digest

	if err := s.store.UpsertRegistryRecord(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Info("image built", "agent_id", agentID, "repository", rec.RepositoryName, "digest", digest)
	return rec, nil
}

// Get returns the registry record for an agent.
func (s *RegistryService) Get(ctx context.Context, agentID string) (*registry.Record, error) {
	return s.store.GetRegistryRecord(ctx, agentID)
}

// Delete removes the agent's repository and its record. force deletes the
// repository even when it still holds images.
func (s *RegistryService) Delete(ctx context.Context, agentID string, force bool) error {
	rec, err := s.store.GetRegistryRecord(ctx, agentID)
	if err != nil {
		return err
	}
	if err := s.reg.DeleteRepository(ctx, rec.RepositoryName, force); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

func (s *RegistryService) build(ctx context.Context, rec *registry.Record, spec registry.Spec) (string, error) {
	if s.builder == nil {
		return "", fmt.Errorf("%w: image builds not configured", domain.ErrValidation)
	}

	digest, err := s.builder.BuildAndPush(ctx, imagebuilder.BuildRequest{
		ContextDir: spec.BuildContext,
		Dockerfile: spec.BuildDirectory,
		ImageURI:   rec.LatestImageURI(),
	})
	if err != nil {
		return "", fmt.Errorf("build image: %w", err)
	}
	return digest, nil
}
