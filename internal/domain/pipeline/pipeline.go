// Package pipeline defines the provisioning pipeline: the ordered stages
// that take an agent from nothing to a deployed, callable runtime.
package pipeline

import "time"

// Stage names. A pipeline is a DAG over a subset of these.
const (
	StageRegistry = "registry"
	StageBuild    = "build"
	StageMemory   = "memory"
	StageRuntime  = "runtime"
	StageEndpoint = "endpoint"
	StageDeploy   = "deploy"
)

// StageStatus is the lifecycle state of a single stage.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// IsTerminal reports whether the stage has finished, one way or another.
func (s StageStatus) IsTerminal() bool {
	switch s {
	case StageStatusCompleted, StageStatusFailed, StageStatusSkipped:
		return true
	}
	return false
}

// Status is the lifecycle state of the pipeline as a whole.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Stage is one unit of provisioning work.
type Stage struct {
	ID         string      `json:"id"`
	PipelineID string      `json:"pipeline_id"`
	Name       string      `json:"name"`
	DependsOn  []string    `json:"depends_on,omitempty"`
	Status     StageStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// Pipeline is one provisioning run for an agent.
type Pipeline struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Status    Status    `json:"status"`
	Stages    []Stage   `json:"stages,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Options selects the optional stages of a provisioning run.
type Options struct {
	Build    bool `json:"build"`    // build & push an image after ensuring the registry
	Endpoint bool `json:"endpoint"` // create an invocation endpoint for the runtime
	Deploy   bool `json:"deploy"`   // render deployment values once the runtime is up
}

// Plan returns the stages for the given options with their dependency
// edges. The runtime stage waits on the memory stage by construction;
// that ordering is the contract the runtime service requires.
func Plan(opts Options) []Stage {
	stages := []Stage{
		{Name: StageRegistry, Status: StageStatusPending},
		{Name: StageMemory, Status: StageStatusPending},
	}

	imageStage := StageRegistry
	if opts.Build {
		stages = append(stages, Stage{
			Name:      StageBuild,
			Status:    StageStatusPending,
			DependsOn: []string{StageRegistry},
		})
		imageStage = StageBuild
	}

	stages = append(stages, Stage{
		Name:      StageRuntime,
		Status:    StageStatusPending,
		DependsOn: []string{StageMemory, imageStage},
	})

	if opts.Endpoint {
		stages = append(stages, Stage{
			Name:      StageEndpoint,
			Status:    StageStatusPending,
			DependsOn: []string{StageRuntime},
		})
	}
	if opts.Deploy {
		stages = append(stages, Stage{
			Name:      StageDeploy,
			Status:    StageStatusPending,
			DependsOn: []string{StageRuntime},
		})
	}
	return stages
}

// ReadyStages returns the names of pending stages whose dependencies have
// all completed.
func ReadyStages(stages []Stage) []string {
	completed := make(map[string]bool, len(stages))
	for i := range stages {
		if stages[i].Status == StageStatusCompleted {
			completed[stages[i].Name] = true
		}
	}

	var ready []string
	for i := range stages {
		if stages[i].Status != StageStatusPending {
			continue
		}
		ok := true
		for _, dep := range stages[i].DependsOn {
			if !completed[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, stages[i].Name)
		}
	}
	return ready
}

// AllTerminal reports whether every stage has finished.
func AllTerminal(stages []Stage) bool {
	for i := range stages {
		if !stages[i].Status.IsTerminal() {
			return false
		}
	}
	return true
}

// AnyFailed reports whether at least one stage failed.
func AnyFailed(stages []Stage) bool {
	for i := range stages {
		if stages[i].Status == StageStatusFailed {
			return true
		}
	}
	return false
}

// Downstream returns the names of all stages transitively depending on
// the named stage. Used to mark the remainder of a pipeline skipped once
// a stage fails.
func Downstream(stages []Stage, name string) []string {
	dependents := make(map[string][]string, len(stages))
	for i := range stages {
		for _, dep := range stages[i].DependsOn {
			dependents[dep] = append(dependents[dep], stages[i].Name)
		}
	}

	seen := map[string]bool{}
	var out []string
	queue := append([]string(nil), dependents[name]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		queue = append(queue, dependents[next]...)
	}
	return out
}
