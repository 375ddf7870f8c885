package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "agentplane"

// Metrics holds all agentplane metric instruments.
type Metrics struct {
	PipelinesStarted   metric.Int64Counter
	PipelinesCompleted metric.Int64Counter
	PipelinesFailed    metric.Int64Counter
	StagesCompleted    metric.Int64Counter
	StagesFailed       metric.Int64Counter
	StageDuration      metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.PipelinesStarted, err = meter.Int64Counter("agentplane.pipelines.started",
		metric.WithDescription("Number of provisioning pipelines started"))
	if err != nil {
		return nil, err
	}

	m.PipelinesCompleted, err = meter.Int64Counter("agentplane.pipelines.completed",
		metric.WithDescription("Number of provisioning pipelines completed"))
	if err != nil {
		return nil, err
	}

	m.PipelinesFailed, err = meter.Int64Counter("agentplane.pipelines.failed",
		metric.WithDescription("Number of provisioning pipelines failed"))
	if err != nil {
		return nil, err
	}

	m.StagesCompleted, err = meter.Int64Counter("agentplane.stages.completed",
		metric.WithDescription("Number of pipeline stages completed"))
	if err != nil {
		return nil, err
	}

	m.StagesFailed, err = meter.Int64Counter("agentplane.stages.failed",
		metric.WithDescription("Number of pipeline stages failed"))
	if err != nil {
		return nil, err
	}

	m.StageDuration, err = meter.Float64Histogram("agentplane.stage.duration_seconds",
		metric.WithDescription("Stage duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
