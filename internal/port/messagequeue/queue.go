// Package messagequeue defines the message queue port (interface).
package messagequeue

import (
	"context"

	"github.com/agentplane/agentplane/internal/domain/pipeline"
)

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error
}

// Subject constants for provisioning pipeline messages.
const (
	// SubjectStageReady carries a StageJob for a stage whose dependencies
	// have completed.
	SubjectStageReady = "provision.stage.ready"

	// SubjectStageDone carries a StageResult after a stage finishes.
	SubjectStageDone = "provision.stage.done"
)

// StageJob is the payload enqueued for each ready stage. It carries the
// full provisioning request so a consumer can execute the stage without
// any state from the process that enqueued it.
type StageJob struct {
	PipelineID string           `json:"pipeline_id"`
	AgentID    string           `json:"agent_id"`
	Stage      string           `json:"stage"`
	Request    pipeline.Request `json:"request"`
}

// StageResult is the payload published when a stage finishes.
type StageResult struct {
	PipelineID string `json:"pipeline_id"`
	AgentID    string `json:"agent_id"`
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}
