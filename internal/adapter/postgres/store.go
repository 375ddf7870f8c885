package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentplane/agentplane/internal/domain"
	"github.com/agentplane/agentplane/internal/domain/agent"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping verifies connectivity to the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// --- Agents ---

func (s *Store) CreateAgent(ctx context.Context, a *agent.Agent) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO agents (name, description, region)
		 VALUES ($1, $2, $3)
		 RETURNING id, version, created_at, updated_at`,
		a.Name, a.Description, a.Region,
	).Scan(&a.ID, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create agent %s: %w", a.Name, domain.ErrConflict)
		}
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, description, region, version, created_at, updated_at
		 FROM agents WHERE id = $1`, id)

	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get agent %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get agent %s: %w", id, err)
	}
	return &a, nil
}

func (s *Store) GetAgentByName(ctx context.Context, name string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, description, region, version, created_at, updated_at
		 FROM agents WHERE name = $1`, name)

	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get agent by name %s: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get agent by name %s: %w", name, err)
	}
	return &a, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]agent.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, region, version, created_at, updated_at
		 FROM agents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []agent.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *Store) UpdateAgent(ctx context.Context, a *agent.Agent) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agents SET description = $2, region = $3, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $4`,
		a.ID, a.Description, a.Region, a.Version)
	if err != nil {
		return fmt.Errorf("update agent %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update agent %s: %w", a.ID, domain.ErrConflict)
	}
	a.Version++
	return nil
}

func (s *Store) DeleteAgent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete agent %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete agent %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// --- Scanners ---

type scannable interface {
	Scan(dest ...any) error
}

func scanAgent(row scannable) (agent.Agent, error) {
	var a agent.Agent
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Region, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// isUniqueViolation reports whether err is a Postgres unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
