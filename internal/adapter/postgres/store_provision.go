package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/agentplane/agentplane/internal/domain"
	"github.com/agentplane/agentplane/internal/domain/memory"
	"github.com/agentplane/agentplane/internal/domain/registry"
	"github.com/agentplane/agentplane/internal/domain/runtime"
)

// --- Registry records ---

func (s *Store) UpsertRegistryRecord(ctx context.Context, r *registry.Record) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO registry_records (agent_id, repository_name, repository_url, repository_arn, registry_id, tag_mutability, scan_on_push, image_digest)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (agent_id) DO UPDATE SET
		   repository_name = EXCLUDED.repository_name,
		   repository_url  = EXCLUDED.repository_url,
		   repository_arn  = EXCLUDED.repository_arn,
		   registry_id     = EXCLUDED.registry_id,
		   tag_mutability  = EXCLUDED.tag_mutability,
		   scan_on_push    = EXCLUDED.scan_on_push,
		   image_digest    = EXCLUDED.image_digest,
		   updated_at      = now()
		 RETURNING created_at, updated_at`,
		r.AgentID, r.RepositoryName, r.RepositoryURL, r.RepositoryARN, r.RegistryID, r.TagMutability, r.ScanOnPush, r.ImageDigest,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert registry record: %w", err)
	}
	return nil
}

func (s *Store) GetRegistryRecord(ctx context.Context, agentID string) (*registry.Record, error) {
	var r registry.Record
	err := s.pool.QueryRow(ctx,
		`SELECT agent_id, repository_name, repository_url, repository_arn, registry_id, tag_mutability, scan_on_push, image_digest, created_at, updated_at
		 FROM registry_records WHERE agent_id = $1`, agentID,
	).Scan(&r.AgentID, &r.RepositoryName, &r.RepositoryURL, &r.RepositoryARN, &r.RegistryID, &r.TagMutability, &r.ScanOnPush, &r.ImageDigest, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("registry record for agent %s: %w", agentID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get registry record: %w", err)
	}
	return &r, nil
}

// --- Memory records ---

func (s *Store) UpsertMemoryRecord(ctx context.Context, m *memory.Record) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO memory_records (agent_id, name, arn, memory_id, status, expiry_days)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (agent_id) DO UPDATE SET
		   name       = EXCLUDED.name,
		   arn        = EXCLUDED.arn,
		   memory_id  = EXCLUDED.memory_id,
		   status     = EXCLUDED.status,
		   expiry_days = EXCLUDED.expiry_days,
		   updated_at = now()
		 RETURNING created_at, updated_at`,
		m.AgentID, m.Name, m.ARN, m.MemoryID, m.Status, m.ExpiryDays,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert memory record: %w", err)
	}
	return nil
}

func (s *Store) GetMemoryRecord(ctx context.Context, agentID string) (*memory.Record, error) {
	var m memory.Record
	err := s.pool.QueryRow(ctx,
		`SELECT agent_id, name, arn, memory_id, status, expiry_days, created_at, updated_at
		 FROM memory_records WHERE agent_id = $1`, agentID,
	).Scan(&m.AgentID, &m.Name, &m.ARN, &m.MemoryID, &m.Status, &m.ExpiryDays, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("memory record for agent %s: %w", agentID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get memory record: %w", err)
	}
	return &m, nil
}

// --- Runtime records ---

func (s *Store) UpsertRuntimeRecord(ctx context.Context, r *runtime.Record) error {
	envJSON, err := json.Marshal(r.Env)
	if err != nil {
		return fmt.Errorf("marshal env: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO runtime_records (agent_id, name, runtime_id, arn, image_uri, network_mode, env, role_arn, memory_name, endpoint_arn, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (agent_id) DO UPDATE SET
		   name         = EXCLUDED.name,
		   runtime_id   = EXCLUDED.runtime_id,
		   arn          = EXCLUDED.arn,
		   image_uri    = EXCLUDED.image_uri,
		   network_mode = EXCLUDED.network_mode,
		   env          = EXCLUDED.env,
		   role_arn     = EXCLUDED.role_arn,
		   memory_name  = EXCLUDED.memory_name,
		   endpoint_arn = EXCLUDED.endpoint_arn,
		   status       = EXCLUDED.status,
		   updated_at   = now()
		 RETURNING created_at, updated_at`,
		r.AgentID, r.Name, r.RuntimeID, r.ARN, r.ImageURI, r.NetworkMode, envJSON, r.RoleARN, r.MemoryName, r.EndpointARN, r.Status,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert runtime record: %w", err)
	}
	return nil
}

func (s *Store) GetRuntimeRecord(ctx context.Context, agentID string) (*runtime.Record, error) {
	var r runtime.Record
	var envJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT agent_id, name, runtime_id, arn, image_uri, network_mode, env, role_arn, memory_name, endpoint_arn, status, created_at, updated_at
		 FROM runtime_records WHERE agent_id = $1`, agentID,
	).Scan(&r.AgentID, &r.Name, &r.RuntimeID, &r.ARN, &r.ImageURI, &r.NetworkMode, &envJSON, &r.RoleARN, &r.MemoryName, &r.EndpointARN, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("runtime record for agent %s: %w", agentID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get runtime record: %w", err)
	}
	if envJSON != nil {
		if err := json.Unmarshal(envJSON, &r.Env); err != nil {
			return nil, fmt.Errorf("unmarshal env: %w", err)
		}
	}
	return &r, nil
}
