package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentplane/agentplane/internal/domain"
	"github.com/agentplane/agentplane/internal/domain/agent"
	"github.com/agentplane/agentplane/internal/domain/memory"
	"github.com/agentplane/agentplane/internal/domain/pipeline"
	"github.com/agentplane/agentplane/internal/domain/registry"
	"github.com/agentplane/agentplane/internal/domain/runtime"
	"github.com/agentplane/agentplane/internal/port/agentruntime"
	"github.com/agentplane/agentplane/internal/port/containerregistry"
	"github.com/agentplane/agentplane/internal/port/imagebuilder"
	"github.com/agentplane/agentplane/internal/port/messagequeue"
)

// mockStore is an in-memory database.Store.
type mockStore struct {
	mu        sync.Mutex
	agents    map[string]agent.Agent
	regs      map[string]registry.Record
	mems      map[string]memory.Record
	runtimes  map[string]runtime.Record
	pipelines map[string]pipeline.Pipeline
	nextID    int
}

func newMockStore() *mockStore {
	return &mockStore{
		agents:    make(map[string]agent.Agent),
		regs:      make(map[string]registry.Record),
		mems:      make(map[string]memory.Record),
		runtimes:  make(map[string]runtime.Record),
		pipelines: make(map[string]pipeline.Pipeline),
	}
}

func (s *mockStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *mockStore) CreateAgent(_ context.Context, a *agent.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.agents {
		if cur.Name == a.Name {
			return fmt.Errorf("agent %s: %w", a.Name, domain.ErrConflict)
		}
	}
	a.ID = s.id("agent")
	a.Version = 1
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	s.agents[a.ID] = *a
	return nil
}

func (s *mockStore) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	return &a, nil
}

func (s *mockStore) GetAgentByName(_ context.Context, name string) (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.agents {
		if a.Name == name {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("agent %s: %w", name, domain.ErrNotFound)
}

func (s *mockStore) ListAgents(_ context.Context) ([]agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]agent.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a)
	}
	return out, nil
}

func (s *mockStore) UpdateAgent(_ context.Context, a *agent.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.agents[a.ID]
	if !ok {
		return fmt.Errorf("agent %s: %w", a.ID, domain.ErrNotFound)
	}
	if cur.Version != a.Version {
		return fmt.Errorf("agent %s: %w", a.ID, domain.ErrConflict)
	}
	a.Version++
	a.UpdatedAt = time.Now()
	s.agents[a.ID] = *a
	return nil
}

func (s *mockStore) DeleteAgent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[id]; !ok {
		return fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	delete(s.agents, id)
	return nil
}

func (s *mockStore) UpsertRegistryRecord(_ context.Context, r *registry.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[r.AgentID] = *r
	return nil
}

func (s *mockStore) GetRegistryRecord(_ context.Context, agentID string) (*registry.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[agentID]
	if !ok {
		return nil, fmt.Errorf("registry record %s: %w", agentID, domain.ErrNotFound)
	}
	return &r, nil
}

func (s *mockStore) UpsertMemoryRecord(_ context.Context, m *memory.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mems[m.AgentID] = *m
	return nil
}

func (s *mockStore) GetMemoryRecord(_ context.Context, agentID string) (*memory.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mems[agentID]
	if !ok {
		return nil, fmt.Errorf("memory record %s: %w", agentID, domain.ErrNotFound)
	}
	return &m, nil
}

func (s *mockStore) UpsertRuntimeRecord(_ context.Context, r *runtime.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runtimes[r.AgentID] = *r
	return nil
}

func (s *mockStore) GetRuntimeRecord(_ context.Context, agentID string) (*runtime.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runtimes[agentID]
	if !ok {
		return nil, fmt.Errorf("runtime record %s: %w", agentID, domain.ErrNotFound)
	}
	return &r, nil
}

func (s *mockStore) CreatePipeline(_ context.Context, p *pipeline.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id("pipe")
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	for i := range p.Stages {
		p.Stages[i].ID = s.id("stage")
		p.Stages[i].PipelineID = p.ID
	}
	s.pipelines[p.ID] = clonePipeline(*p)
	return nil
}

func (s *mockStore) GetPipeline(_ context.Context, id string) (*pipeline.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pipelines[id]
	if !ok {
		return nil, fmt.Errorf("pipeline %s: %w", id, domain.ErrNotFound)
	}
	p = clonePipeline(p)
	return &p, nil
}

func (s *mockStore) ListPipelines(_ context.Context, agentID string) ([]pipeline.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []pipeline.Pipeline
	for _, p := range s.pipelines {
		if p.AgentID == agentID {
			out = append(out, clonePipeline(p))
		}
	}
	return out, nil
}

func (s *mockStore) UpdatePipelineStatus(_ context.Context, id string, status pipeline.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pipelines[id]
	if !ok {
		return fmt.Errorf("pipeline %s: %w", id, domain.ErrNotFound)
	}
	p.Status = status
	s.pipelines[id] = p
	return nil
}

func (s *mockStore) ClaimStage(_ context.Context, pipelineID, stage string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pipelines[pipelineID]
	if !ok {
		return false, fmt.Errorf("pipeline %s: %w", pipelineID, domain.ErrNotFound)
	}
	for i := range p.Stages {
		if p.Stages[i].Name == stage {
			if p.Stages[i].Status != pipeline.StageStatusPending {
				return false, nil
			}
			p.Stages[i].Status = pipeline.StageStatusRunning
			s.pipelines[pipelineID] = p
			return true, nil
		}
	}
	return false, fmt.Errorf("stage %s: %w", stage, domain.ErrNotFound)
}

func (s *mockStore) UpdateStageStatus(_ context.Context, pipelineID, stage string, status pipeline.StageStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pipelines[pipelineID]
	if !ok {
		return fmt.Errorf("pipeline %s: %w", pipelineID, domain.ErrNotFound)
	}
	for i := range p.Stages {
		if p.Stages[i].Name == stage {
			if p.Stages[i].Status.IsTerminal() {
				return fmt.Errorf("stage %s: %w", stage, domain.ErrConflict)
			}
			p.Stages[i].Status = status
			p.Stages[i].Error = errMsg
			s.pipelines[pipelineID] = p
			return nil
		}
	}
	return fmt.Errorf("stage %s: %w", stage, domain.ErrNotFound)
}

func (s *mockStore) GetStages(_ context.Context, pipelineID string) ([]pipeline.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pipelines[pipelineID]
	if !ok {
		return nil, fmt.Errorf("pipeline %s: %w", pipelineID, domain.ErrNotFound)
	}
	return clonePipeline(p).Stages, nil
}

func (s *mockStore) Ping(context.Context) error { return nil }
func (s *mockStore) Close()                     {}

func clonePipeline(p pipeline.Pipeline) pipeline.Pipeline {
	stages := make([]pipeline.Stage, len(p.Stages))
	copy(stages, p.Stages)
	p.Stages = stages
	return p
}

// mockRegistryClient is an in-memory containerregistry.Client.
type mockRegistryClient struct {
	mu      sync.Mutex
	repos   map[string]containerregistry.Repository
	digests map[string]string
	deleted []string
}

func newMockRegistryClient() *mockRegistryClient {
	return &mockRegistryClient{
		repos:   make(map[string]containerregistry.Repository),
		digests: make(map[string]string),
	}
}

func (c *mockRegistryClient) EnsureRepository(_ context.Context, spec registry.Spec) (*containerregistry.Repository, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := registry.RepositoryName(spec.AgentName)
	repo, ok := c.repos[name]
	if !ok {
		repo = containerregistry.Repository{
			Name:       name,
			URL:        "123456789012.dkr.ecr.us-west-2.amazonaws.com/" + name,
			ARN:        "arn:aws:ecr:us-west-2:123456789012:repository/" + name,
			RegistryID: "123456789012",
		}
		c.repos[name] = repo
	}
	return &repo, nil
}

func (c *mockRegistryClient) LookupRepository(_ context.Context, name string) (*containerregistry.Repository, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	repo, ok := c.repos[name]
	if !ok {
		return nil, fmt.Errorf("repository %s: %w", name, domain.ErrNotFound)
	}
	return &repo, nil
}

func (c *mockRegistryClient) LatestImageDigest(_ context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.digests[name]
	if !ok {
		return "", fmt.Errorf("image in %s: %w", name, domain.ErrNotFound)
	}
	return d, nil
}

func (c *mockRegistryClient) DeleteRepository(_ context.Context, name string, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.repos[name]; !ok {
		return fmt.Errorf("repository %s: %w", name, domain.ErrNotFound)
	}
	delete(c.repos, name)
	c.deleted = append(c.deleted, name)
	return nil
}

// mockRuntimeClient is an in-memory agentruntime.Client. pendingPolls
// makes GetMemory report CREATING that many times before ACTIVE.
type mockRuntimeClient struct {
	mu           sync.Mutex
	pendingPolls int
	memoryErr    error
	runtimeErr   error

	memories  map[string]*agentruntime.MemoryResource
	runtimes  map[string]*agentruntime.RuntimeResource
	endpoints []string
	deleted   []string
	calls     []string
}

func newMockRuntimeClient() *mockRuntimeClient {
	return &mockRuntimeClient{
		memories: make(map[string]*agentruntime.MemoryResource),
		runtimes: make(map[string]*agentruntime.RuntimeResource),
	}
}

func (c *mockRuntimeClient) CreateMemory(_ context.Context, name string, _ int) (*agentruntime.MemoryResource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.memoryErr != nil {
		return nil, c.memoryErr
	}
	c.calls = append(c.calls, "CreateMemory")
	status := memory.StatusActive
	if c.pendingPolls > 0 {
		status = memory.StatusCreating
	}
	res := &agentruntime.MemoryResource{
		ID:     "mem-" + name,
		ARN:    "arn:aws:bedrock-agentcore:us-west-2:123456789012:memory/" + name,
		Name:   name,
		Status: status,
	}
	c.memories[res.ID] = res
	return res, nil
}

func (c *mockRuntimeClient) GetMemory(_ context.Context, memoryID string) (*agentruntime.MemoryResource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.memories[memoryID]
	if !ok {
		return nil, fmt.Errorf("memory %s: %w", memoryID, domain.ErrNotFound)
	}
	c.calls = append(c.calls, "GetMemory")
	if c.pendingPolls > 0 {
		c.pendingPolls--
		if c.pendingPolls == 0 {
			res.Status = memory.StatusActive
		}
	}
	return res, nil
}

func (c *mockRuntimeClient) CreateRuntime(_ context.Context, in agentruntime.CreateRuntimeInput) (*agentruntime.RuntimeResource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runtimeErr != nil {
		return nil, c.runtimeErr
	}
	c.calls = append(c.calls, "CreateRuntime")
	res := &agentruntime.RuntimeResource{
		ID:     "rt-" + in.Name,
		ARN:    "arn:aws:bedrock-agentcore:us-west-2:123456789012:runtime/" + in.Name,
		Name:   in.Name,
		Status: runtime.StatusReady,
	}
	c.runtimes[res.ID] = res
	return res, nil
}

func (c *mockRuntimeClient) CreateEndpoint(_ context.Context, runtimeID, name string) (*agentruntime.EndpointResource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.runtimes[runtimeID]; !ok {
		return nil, fmt.Errorf("runtime %s: %w", runtimeID, domain.ErrNotFound)
	}
	c.calls = append(c.calls, "CreateEndpoint")
	c.endpoints = append(c.endpoints, name)
	return &agentruntime.EndpointResource{
		ARN:  "arn:aws:bedrock-agentcore:us-west-2:123456789012:runtime-endpoint/" + name,
		Name: name,
	}, nil
}

func (c *mockRuntimeClient) DeleteRuntime(_ context.Context, runtimeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.runtimes[runtimeID]; !ok {
		return fmt.Errorf("runtime %s: %w", runtimeID, domain.ErrNotFound)
	}
	delete(c.runtimes, runtimeID)
	c.deleted = append(c.deleted, runtimeID)
	return nil
}

// mockBuilder records build requests and returns a fixed digest.
type mockBuilder struct {
	mu       sync.Mutex
	requests []imagebuilder.BuildRequest
	digest   string
	err      error
}

func (b *mockBuilder) BuildAndPush(_ context.Context, req imagebuilder.BuildRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	b.requests = append(b.requests, req)
	return b.digest, nil
}

// mockConfigStore returns a fixed snapshot.
type mockConfigStore struct {
	values map[string]string
	calls  int
	err    error
}

func (s *mockConfigStore) Snapshot(context.Context) (map[string]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.values, nil
}

// mockCache is a TTL-less in-memory cache.Cache.
type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// mockQueue records publishes. When dispatch is set, stage-ready
// messages are delivered inline to the subscribed handler, so a whole
// pipeline run cascades from a single Start call.
type mockQueue struct {
	mu        sync.Mutex
	dispatch  bool
	handlers  map[string]messagequeue.Handler
	published map[string][][]byte
}

func newMockQueue(dispatch bool) *mockQueue {
	return &mockQueue{
		dispatch:  dispatch,
		handlers:  make(map[string]messagequeue.Handler),
		published: make(map[string][][]byte),
	}
}

func (q *mockQueue) Publish(ctx context.Context, subject string, data []byte) error {
	q.mu.Lock()
	q.published[subject] = append(q.published[subject], data)
	h := q.handlers[subject]
	q.mu.Unlock()
	if q.dispatch && h != nil {
		return h(ctx, subject, data)
	}
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[subject] = handler
	return func() {}, nil
}

func (q *mockQueue) Drain() error { return nil }
func (q *mockQueue) Close() error { return nil }

func (q *mockQueue) count(subject string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.published[subject])
}

// mockBroadcaster records broadcast event types.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *mockBroadcaster) BroadcastEvent(_ context.Context, eventType string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
}
