// Package runtime defines the managed agent runtime record: the execution
// environment that runs a published container image as a callable agent.
package runtime

import (
	"fmt"
	"time"

	"github.com/agentplane/agentplane/internal/domain"
	"github.com/agentplane/agentplane/internal/domain/agent"
)

// Network modes accepted by the runtime service.
const (
	NetworkModePublic = "PUBLIC"
	NetworkModeVPC    = "VPC"
)

// Default environment entries injected into every runtime unless the
// caller sets them explicitly.
const (
	EnvLogLevel        = "LOG_LEVEL"
	EnvEnvironment     = "ENV"
	DefaultLogLevel    = "INFO"
	DefaultEnvironment = "production"
)

// Runtime lifecycle states as reported by the runtime service.
const (
	StatusCreating = "CREATING"
	StatusReady    = "READY"
	StatusFailed   = "FAILED"
	StatusDeleting = "DELETING"
)

// Name returns the runtime identifier for a sanitized agent name. The
// prefix guarantees the final identifier starts with a letter no matter
// what the agent name starts with.
func Name(sanitizedAgentName string) string {
	return "agent_runtime_" + sanitizedAgentName
}

// EndpointName returns the invocation endpoint identifier for a sanitized
// agent name.
func EndpointName(sanitizedAgentName string) string {
	return sanitizedAgentName + "_endpoint"
}

// AuthorizerConfig configures inbound JWT authorization for a runtime.
// A nil AuthorizerConfig means the runtime accepts unauthenticated calls.
type AuthorizerConfig struct {
	DiscoveryURL     string   `json:"discovery_url"`
	AllowedClients   []string `json:"allowed_clients,omitempty"`
	AllowedAudiences []string `json:"allowed_audiences,omitempty"`
}

// Spec holds the caller-controlled settings for provisioning a runtime.
type Spec struct {
	AgentName        string            `json:"agent_name"`
	Description      string            `json:"description,omitempty"`
	ImageURI         string            `json:"image_uri,omitempty"`
	NetworkMode      string            `json:"network_mode,omitempty"`
	Env              map[string]string `json:"env,omitempty"`
	Authorizer       *AuthorizerConfig `json:"authorizer,omitempty"`
	RoleARN          string            `json:"role_arn,omitempty"`
	MemoryNameSuffix string            `json:"memory_name_suffix,omitempty"`
	CreateEndpoint   bool              `json:"create_endpoint"`
}

// Validate checks a Spec before provisioning.
func (s *Spec) Validate() error {
	if err := agent.ValidateName(s.AgentName); err != nil {
		return err
	}
	switch s.NetworkMode {
	case "", NetworkModePublic, NetworkModeVPC:
	default:
		return fmt.Errorf("%w: network_mode must be PUBLIC or VPC", domain.ErrValidation)
	}
	if s.Authorizer != nil && s.Authorizer.DiscoveryURL == "" {
		return fmt.Errorf("%w: authorizer discovery_url is required", domain.ErrValidation)
	}
	return nil
}

// EffectiveEnv returns the environment map with platform defaults applied.
// Caller-provided values win; the input map is not modified.
func (s *Spec) EffectiveEnv() map[string]string {
	env := make(map[string]string, len(s.Env)+2)
	for k, v := range s.Env {
		env[k] = v
	}
	if _, ok := env[EnvLogLevel]; !ok {
		env[EnvLogLevel] = DefaultLogLevel
	}
	if _, ok := env[EnvEnvironment]; !ok {
		env[EnvEnvironment] = DefaultEnvironment
	}
	return env
}

// EffectiveNetworkMode returns the network mode with the default applied.
func (s *Spec) EffectiveNetworkMode() string {
	if s.NetworkMode == "" {
		return NetworkModePublic
	}
	return s.NetworkMode
}

// ExecutionRoleARN returns the explicit role when set, or the conventional
// execution role for the account and agent otherwise.
func (s *Spec) ExecutionRoleARN(accountID string) string {
	if s.RoleARN != "" {
		return s.RoleARN
	}
	return fmt.Sprintf("arn:aws:iam::%s:role/agentic-platform-%s-runtime-role", accountID, s.AgentName)
}

// Record is a provisioned runtime.
type Record struct {
	AgentID     string            `json:"agent_id"`
	Name        string            `json:"name"`
	RuntimeID   string            `json:"runtime_id"`
	ARN         string            `json:"arn"`
	ImageURI    string            `json:"image_uri"`
	NetworkMode string            `json:"network_mode"`
	Env         map[string]string `json:"env"`
	RoleARN     string            `json:"role_arn"`
	MemoryName  string            `json:"memory_name"`
	EndpointARN string            `json:"endpoint_arn,omitempty"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
