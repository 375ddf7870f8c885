package pipeline

import (
	"fmt"

	"github.com/agentplane/agentplane/internal/domain"
	"github.com/agentplane/agentplane/internal/domain/registry"
	"github.com/agentplane/agentplane/internal/domain/runtime"
)

// Request is everything a provisioning run needs to execute its stages.
// It travels with every stage job so the worker never depends on
// in-process state from the run that enqueued it.
type Request struct {
	Options  Options       `json:"options"`
	Registry registry.Spec `json:"registry"`
	Runtime  runtime.Spec  `json:"runtime"`
}

// Validate checks the request and normalizes the specs against each
// other: both specs must target the same agent, so the runtime spec's
// agent name fills an empty registry spec name and vice versa.
func (r *Request) Validate() error {
	if r.Registry.AgentName == "" {
		r.Registry.AgentName = r.Runtime.AgentName
	}
	if r.Runtime.AgentName == "" {
		r.Runtime.AgentName = r.Registry.AgentName
	}
	if r.Options.Build && r.Registry.BuildContext == "" {
		return fmt.Errorf("%w: build_context is required when the build stage is requested", domain.ErrValidation)
	}
	if err := r.Registry.Validate(); err != nil {
		return err
	}
	return r.Runtime.Validate()
}
