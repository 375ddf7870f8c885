// Package memory defines the runtime memory store record and its
// collision-avoiding naming scheme.
package memory

import (
	"fmt"
	"time"

	"github.com/agentplane/agentplane/internal/domain"
	"github.com/agentplane/agentplane/internal/domain/agent"
)

// EventExpiryDays is the fixed retention for memory events.
const EventExpiryDays = 7

// Memory resource lifecycle states as reported by the runtime service.
const (
	StatusCreating = "CREATING"
	StatusActive   = "ACTIVE"
	StatusFailed   = "FAILED"
	StatusDeleting = "DELETING"
)

// DeriveName builds the memory name from a sanitized agent name and an
// optional suffix. The suffix disambiguates memories across parallel
// environments provisioned for the same agent.
func DeriveName(sanitizedAgentName, suffix string) string {
	if suffix == "" {
		return sanitizedAgentName + "_memory"
	}
	return sanitizedAgentName + "_memory_" + suffix
}

// Spec holds the caller-controlled settings for provisioning a memory.
type Spec struct {
	AgentName  string `json:"agent_name"`
	NameSuffix string `json:"name_suffix,omitempty"`
}

// Validate checks a Spec. The suffix shares the agent-name alphabet after
// sanitization, so it is held to the same shape.
func (s *Spec) Validate() error {
	if err := agent.ValidateName(s.AgentName); err != nil {
		return err
	}
	if s.NameSuffix != "" {
		if err := agent.ValidateName(s.NameSuffix); err != nil {
			return fmt.Errorf("%w: invalid name_suffix", domain.ErrValidation)
		}
	}
	return nil
}

// Name returns the derived memory name for this spec.
func (s *Spec) Name() string {
	return DeriveName(agent.Sanitize(s.AgentName), agent.Sanitize(s.NameSuffix))
}

// Record is a provisioned memory store. Its lifetime is independent of the
// runtime that uses it: the record is keyed by derived name, not by a
// reference back to the runtime.
type Record struct {
	AgentID    string    `json:"agent_id"`
	Name       string    `json:"name"`
	ARN        string    `json:"arn"`
	MemoryID   string    `json:"memory_id"`
	Status     string    `json:"status"`
	ExpiryDays int       `json:"event_expiry_days"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
