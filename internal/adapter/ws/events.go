package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventPipelineStatus = "pipeline.status"
	EventStageStatus    = "pipeline.stage"
)

// PipelineStatusEvent is broadcast when a pipeline's overall status changes.
type PipelineStatusEvent struct {
	PipelineID string `json:"pipeline_id"`
	AgentID    string `json:"agent_id"`
	Status     string `json:"status"`
}

// StageStatusEvent is broadcast when a stage transitions.
type StageStatusEvent struct {
	PipelineID string `json:"pipeline_id"`
	AgentID    string `json:"agent_id"`
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
