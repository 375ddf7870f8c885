package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/agentplane/agentplane/internal/adapter/otel"
	"github.com/agentplane/agentplane/internal/adapter/ws"
	"github.com/agentplane/agentplane/internal/config"
	"github.com/agentplane/agentplane/internal/domain/memory"
	"github.com/agentplane/agentplane/internal/domain/pipeline"
	"github.com/agentplane/agentplane/internal/port/broadcast"
	"github.com/agentplane/agentplane/internal/port/database"
	"github.com/agentplane/agentplane/internal/port/messagequeue"
)

// PipelineService runs provisioning pipelines. The API side plans the
// stage DAG, persists it and enqueues the initially-ready stages; the
// worker side consumes stage jobs, executes them and enqueues whatever
// became ready.
type PipelineService struct {
	store    database.Store
	queue    messagequeue.Queue
	registry *RegistryService
	runtime  *RuntimeService
	deploy   *DeploymentService
	hub      broadcast.Broadcaster
	metrics  *otel.Metrics
	cfg      config.Pipeline
	log      *slog.Logger

	group errgroup.Group
}

// NewPipelineService creates a PipelineService. metrics may be nil when
// telemetry is disabled.
func NewPipelineService(
	store database.Store,
	queue messagequeue.Queue,
	registry *RegistryService,
	runtime *RuntimeService,
	deploy *DeploymentService,
	hub broadcast.Broadcaster,
	metrics *otel.Metrics,
	cfg config.Pipeline,
	log *slog.Logger,
) *PipelineService {
	s := &PipelineService{
		store:    store,
		queue:    queue,
		registry: registry,
		runtime:  runtime,
		deploy:   deploy,
		hub:      hub,
		metrics:  metrics,
		cfg:      cfg,
		log:      log,
	}
	s.group.SetLimit(cfg.MaxParallel)
	return s
}

// Start plans and persists a new provisioning pipeline for the agent and
// enqueues its initially-ready stages.
func (s *PipelineService) Start(ctx context.Context, agentID string, req pipeline.Request) (*pipeline.Pipeline, error) {
	ag, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if req.Registry.AgentName == "" && req.Runtime.AgentName == "" {
		req.Registry.AgentName = ag.Name
		req.Runtime.AgentName = ag.Name
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	stages := pipeline.Plan(req.Options)
	if err := pipeline.ValidateStages(stages); err != nil {
		return nil, err
	}

	p := &pipeline.Pipeline{
		AgentID: agentID,
		Status:  pipeline.StatusPending,
		Stages:  stages,
	}
	if err := s.store.CreatePipeline(ctx, p); err != nil {
		return nil, err
	}

	ctx, span := otel.StartPipelineSpan(ctx, p.ID, agentID)
	defer span.End()

	if err := s.store.UpdatePipelineStatus(ctx, p.ID, pipeline.StatusRunning); err != nil {
		return nil, err
	}
	p.Status = pipeline.StatusRunning

	if s.metrics != nil {
		s.metrics.PipelinesStarted.Add(ctx, 1)
	}
	s.hub.BroadcastEvent(ctx, ws.EventPipelineStatus, ws.PipelineStatusEvent{
		PipelineID: p.ID,
		AgentID:    agentID,
		Status:     string(p.Status),
	})

	for _, name := range pipeline.ReadyStages(p.Stages) {
		if err := s.publishStage(ctx, p.ID, agentID, name, req); err != nil {
			return nil, err
		}
	}

	s.log.Info("pipeline started", "pipeline_id", p.ID, "agent_id", agentID, "stages", len(stages))
	return p, nil
}

// Get returns a pipeline with its stages.
func (s *PipelineService) Get(ctx context.Context, pipelineID string) (*pipeline.Pipeline, error) {
	return s.store.GetPipeline(ctx, pipelineID)
}

// List returns an agent's pipelines, newest first.
func (s *PipelineService) List(ctx context.Context, agentID string) ([]pipeline.Pipeline, error) {
	return s.store.ListPipelines(ctx, agentID)
}

// StartWorker subscribes to the stage-ready subject and executes incoming
// stage jobs. Jobs are scheduled onto a bounded group; scheduling acks
// the message, and stage outcomes are persisted so an interrupted run is
// visible in the pipeline record. The returned stop function cancels the
// subscription and waits for in-flight stages.
func (s *PipelineService) StartWorker(ctx context.Context) (stop func(), err error) {
	cancel, err := s.queue.Subscribe(ctx, messagequeue.SubjectStageReady, func(ctx context.Context, _ string, data []byte) error {
		var job messagequeue.StageJob
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("decode stage job: %w", err)
		}
		s.group.Go(func() error {
			s.executeStage(ctx, job)
			return nil
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return func() {
		cancel()
		_ = s.group.Wait()
	}, nil
}

func (s *PipelineService) publishStage(ctx context.Context, pipelineID, agentID, stage string, req pipeline.Request) error {
	data, err := json.Marshal(messagequeue.StageJob{
		PipelineID: pipelineID,
		AgentID:    agentID,
		Stage:      stage,
		Request:    req,
	})
	if err != nil {
		return fmt.Errorf("marshal stage job: %w", err)
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectStageReady, data); err != nil {
		return fmt.Errorf("publish stage %s: %w", stage, err)
	}
	return nil
}

func (s *PipelineService) executeStage(ctx context.Context, job messagequeue.StageJob) {
	if !s.claimStage(ctx, job) {
		return
	}

	ctx, span := otel.StartStageSpan(ctx, job.PipelineID, job.Stage)
	defer span.End()

	start := time.Now()
	runErr := s.runStage(ctx, job)
	if s.metrics != nil {
		s.metrics.StageDuration.Record(ctx, time.Since(start).Seconds())
	}

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		s.failStage(ctx, job, runErr)
		return
	}
	s.completeStage(ctx, job)
}

// claimStage marks the stage running if it is still pending. A stage job
// is delivered more than once when two parents finish close together or
// the queue redelivers; the store's conditional transition makes sure
// the stage runs once, across processes.
func (s *PipelineService) claimStage(ctx context.Context, job messagequeue.StageJob) bool {
	claimed, err := s.store.ClaimStage(ctx, job.PipelineID, job.Stage)
	if err != nil {
		s.log.Error("claim stage", "pipeline_id", job.PipelineID, "stage", job.Stage, "error", err)
		return false
	}
	if !claimed {
		return false
	}

	s.hub.BroadcastEvent(ctx, ws.EventStageStatus, ws.StageStatusEvent{
		PipelineID: job.PipelineID,
		AgentID:    job.AgentID,
		Stage:      job.Stage,
		Status:     string(pipeline.StageStatusRunning),
	})
	return true
}

// runStage dispatches one stage to the service that owns it. The stage
// timeout bounds every cloud interaction inside.
func (s *PipelineService) runStage(ctx context.Context, job messagequeue.StageJob) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
	defer cancel()

	req := job.Request
	switch job.Stage {
	case pipeline.StageRegistry:
		spec := req.Registry
		spec.TriggerBuild = false // the build stage owns builds
		_, err := s.registry.Ensure(ctx, job.AgentID, spec)
		return err
	case pipeline.StageBuild:
		_, err := s.registry.Build(ctx, job.AgentID, req.Registry)
		return err
	case pipeline.StageMemory:
		_, err := s.runtime.ProvisionMemory(ctx, job.AgentID, memory.Spec{
			AgentName:  req.Runtime.AgentName,
			NameSuffix: req.Runtime.MemoryNameSuffix,
		})
		return err
	case pipeline.StageRuntime:
		spec := req.Runtime
		spec.CreateEndpoint = false // the endpoint stage owns endpoints
		_, err := s.runtime.ProvisionRuntime(ctx, job.AgentID, spec)
		return err
	case pipeline.StageEndpoint:
		_, err := s.runtime.ProvisionEndpoint(ctx, job.AgentID, req.Runtime.AgentName)
		return err
	case pipeline.StageDeploy:
		_, err := s.deploy.RenderAll(ctx)
		return err
	default:
		return fmt.Errorf("unknown stage %q", job.Stage)
	}
}

func (s *PipelineService) completeStage(ctx context.Context, job messagequeue.StageJob) {
	if err := s.transitionStage(ctx, job, pipeline.StageStatusCompleted, ""); err != nil {
		s.log.Error("mark stage completed", "pipeline_id", job.PipelineID, "stage", job.Stage, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.StagesCompleted.Add(ctx, 1)
	}
	s.publishResult(ctx, job, pipeline.StageStatusCompleted, "")
	s.log.Info("stage completed", "pipeline_id", job.PipelineID, "stage", job.Stage)

	stages, err := s.store.GetStages(ctx, job.PipelineID)
	if err != nil {
		s.log.Error("load stages", "pipeline_id", job.PipelineID, "error", err)
		return
	}

	for _, name := range pipeline.ReadyStages(stages) {
		if err := s.publishStage(ctx, job.PipelineID, job.AgentID, name, job.Request); err != nil {
			s.log.Error("enqueue stage", "pipeline_id", job.PipelineID, "stage", name, "error", err)
		}
	}

	if pipeline.AllTerminal(stages) && !pipeline.AnyFailed(stages) {
		s.finishPipeline(ctx, job, pipeline.StatusCompleted)
	}
}

func (s *PipelineService) failStage(ctx context.Context, job messagequeue.StageJob, runErr error) {
	s.log.Error("stage failed", "pipeline_id", job.PipelineID, "stage", job.Stage, "error", runErr)

	if err := s.transitionStage(ctx, job, pipeline.StageStatusFailed, runErr.Error()); err != nil {
		s.log.Error("mark stage failed", "pipeline_id", job.PipelineID, "stage", job.Stage, "error", err)
	}
	if s.metrics != nil {
		s.metrics.StagesFailed.Add(ctx, 1)
	}
	s.publishResult(ctx, job, pipeline.StageStatusFailed, runErr.Error())

	stages, err := s.store.GetStages(ctx, job.PipelineID)
	if err != nil {
		s.log.Error("load stages", "pipeline_id", job.PipelineID, "error", err)
		return
	}

	// Everything downstream of the failure can never run.
	for _, name := range pipeline.Downstream(stages, job.Stage) {
		skipped := job
		skipped.Stage = name
		if err := s.transitionStage(ctx, skipped, pipeline.StageStatusSkipped, ""); err != nil {
			s.log.Error("mark stage skipped", "pipeline_id", job.PipelineID, "stage", name, "error", err)
		}
	}

	s.finishPipeline(ctx, job, pipeline.StatusFailed)
}

func (s *PipelineService) finishPipeline(ctx context.Context, job messagequeue.StageJob, status pipeline.Status) {
	if err := s.store.UpdatePipelineStatus(ctx, job.PipelineID, status); err != nil {
		s.log.Error("update pipeline status", "pipeline_id", job.PipelineID, "error", err)
		return
	}
	if s.metrics != nil {
		switch status {
		case pipeline.StatusCompleted:
			s.metrics.PipelinesCompleted.Add(ctx, 1)
		case pipeline.StatusFailed:
			s.metrics.PipelinesFailed.Add(ctx, 1)
		}
	}
	s.hub.BroadcastEvent(ctx, ws.EventPipelineStatus, ws.PipelineStatusEvent{
		PipelineID: job.PipelineID,
		AgentID:    job.AgentID,
		Status:     string(status),
	})
	s.log.Info("pipeline finished", "pipeline_id", job.PipelineID, "status", status)
}

// transitionStage persists a stage transition and broadcasts it.
func (s *PipelineService) transitionStage(ctx context.Context, job messagequeue.StageJob, status pipeline.StageStatus, errMsg string) error {
	if err := s.store.UpdateStageStatus(ctx, job.PipelineID, job.Stage, status, errMsg); err != nil {
		return err
	}
	s.hub.BroadcastEvent(ctx, ws.EventStageStatus, ws.StageStatusEvent{
		PipelineID: job.PipelineID,
		AgentID:    job.AgentID,
		Stage:      job.Stage,
		Status:     string(status),
		Error:      errMsg,
	})
	return nil
}

func (s *PipelineService) publishResult(ctx context.Context, job messagequeue.StageJob, status pipeline.StageStatus, errMsg string) {
	data, err := json.Marshal(messagequeue.StageResult{
		PipelineID: job.PipelineID,
		AgentID:    job.AgentID,
		Stage:      job.Stage,
		Status:     string(status),
		Error:      errMsg,
	})
	if err != nil {
		s.log.Error("marshal stage result", "stage", job.Stage, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectStageDone, data); err != nil {
		s.log.Error("publish stage result", "stage", job.Stage, "error", err)
	}
}

