// Package agent defines the Agent domain entity and its naming rules.
//
// Agent names feed two downstream naming schemes with different alphabets:
// ECR repository names (lowercase DNS-label shape, hyphens allowed) and
// AgentCore resource identifiers (underscores only, must start with a
// letter). Names are validated once at create time so every derived name is
// valid by construction.
package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentplane/agentplane/internal/domain"
)

// MaxNameLength bounds agent names so derived resource names stay within
// the limits of every downstream service.
const MaxNameLength = 63

// Agent represents an agent managed by the platform: one container
// repository, one runtime, one memory store.
type Agent struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Region      string    `json:"region"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateRequest holds the fields needed to register a new agent.
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Region      string `json:"region"`
}

// UpdateRequest holds optional fields for a partial agent update.
// The name is immutable: every provisioned resource derives from it.
type UpdateRequest struct {
	Description *string `json:"description,omitempty"`
	Region      *string `json:"region,omitempty"`
}

// Sanitize converts an agent name into an identifier fragment accepted by
// the runtime service: hyphens become underscores. The result starts with
// a letter for any name that passed ValidateName.
func Sanitize(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// ValidateName checks that a name is a lowercase DNS-label: letters,
// digits and hyphens, starting with a letter, not ending with a hyphen.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", domain.ErrValidation, MaxNameLength)
	}
	if name[0] < 'a' || name[0] > 'z' {
		return fmt.Errorf("%w: name must start with a lowercase letter", domain.ErrValidation)
	}
	if name[len(name)-1] == '-' {
		return fmt.Errorf("%w: name must not end with a hyphen", domain.ErrValidation)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return fmt.Errorf("%w: name contains invalid character %q", domain.ErrValidation, r)
		}
	}
	return nil
}

// Validate checks a CreateRequest.
func (r *CreateRequest) Validate() error {
	if err := ValidateName(r.Name); err != nil {
		return err
	}
	if r.Region == "" {
		return fmt.Errorf("%w: region is required", domain.ErrValidation)
	}
	return nil
}
