package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/agentplane/agentplane/internal/domain"
	"github.com/agentplane/agentplane/internal/domain/pipeline"
)

// CreatePipeline inserts a pipeline and its stages in a transaction.
func (s *Store) CreatePipeline(ctx context.Context, p *pipeline.Pipeline) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	err = tx.QueryRow(ctx,
		`INSERT INTO pipelines (agent_id, status) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		p.AgentID, string(p.Status),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert pipeline: %w", err)
	}

	for i := range p.Stages {
		st := &p.Stages[i]
		st.PipelineID = p.ID
		err = tx.QueryRow(ctx,
			`INSERT INTO pipeline_stages (pipeline_id, position, name, depends_on, status)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			st.PipelineID, i, st.Name, st.DependsOn, string(st.Status),
		).Scan(&st.ID)
		if err != nil {
			return fmt.Errorf("insert stage %s: %w", st.Name, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) GetPipeline(ctx context.Context, id string) (*pipeline.Pipeline, error) {
	var p pipeline.Pipeline
	err := s.pool.QueryRow(ctx,
		`SELECT id, agent_id, status, created_at, updated_at
		 FROM pipelines WHERE id = $1`, id,
	).Scan(&p.ID, &p.AgentID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get pipeline %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get pipeline %s: %w", id, err)
	}

	stages, err := s.GetStages(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Stages = stages
	return &p, nil
}

func (s *Store) ListPipelines(ctx context.Context, agentID string) ([]pipeline.Pipeline, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, agent_id, status, created_at, updated_at
		 FROM pipelines WHERE agent_id = $1 ORDER BY created_at DESC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []pipeline.Pipeline
	for rows.Next() {
		var p pipeline.Pipeline
		if err := rows.Scan(&p.ID, &p.AgentID, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, rows.Err()
}

func (s *Store) UpdatePipelineStatus(ctx context.Context, id string, status pipeline.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pipelines SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("update pipeline status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update pipeline status %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ClaimStage moves a pending stage to running. The status predicate makes
// the claim atomic across processes; zero rows means another worker got
// there first.
func (s *Store) ClaimStage(ctx context.Context, pipelineID, stage string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_stages SET status = 'running', started_at = now()
		 WHERE pipeline_id = $1 AND name = $2 AND status = 'pending'`,
		pipelineID, stage)
	if err != nil {
		return false, fmt.Errorf("claim stage %s/%s: %w", pipelineID, stage, err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateStageStatus transitions a stage. Moving to running sets started_at;
// any terminal status sets finished_at. Terminal stages are immutable, the
// status predicate rejects a second transition.
func (s *Store) UpdateStageStatus(ctx context.Context, pipelineID, stage string, status pipeline.StageStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_stages SET
		   status = $3,
		   error = $4,
		   started_at = CASE WHEN $3 = 'running' THEN now() ELSE started_at END,
		   finished_at = CASE WHEN $3 IN ('completed', 'failed', 'skipped') THEN now() ELSE finished_at END
		 WHERE pipeline_id = $1 AND name = $2 AND status IN ('pending', 'running')`,
		pipelineID, stage, string(status), errMsg)
	if err != nil {
		return fmt.Errorf("update stage %s/%s: %w", pipelineID, stage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update stage %s/%s: %w", pipelineID, stage, domain.ErrConflict)
	}
	return nil
}

func (s *Store) GetStages(ctx context.Context, pipelineID string) ([]pipeline.Stage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, pipeline_id, name, depends_on, status, error, started_at, finished_at
		 FROM pipeline_stages WHERE pipeline_id = $1 ORDER BY position`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("get stages: %w", err)
	}
	defer rows.Close()

	var stages []pipeline.Stage
	for rows.Next() {
		var st pipeline.Stage
		if err := rows.Scan(&st.ID, &st.PipelineID, &st.Name, &st.DependsOn, &st.Status, &st.Error, &st.StartedAt, &st.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stages = append(stages, st)
	}
	return stages, rows.Err()
}
