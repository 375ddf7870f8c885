// Package registry defines the container registry record and its naming
// convention.
package registry

import (
	"fmt"
	"time"

	"github.com/agentplane/agentplane/internal/domain"
	"github.com/agentplane/agentplane/internal/domain/agent"
)

// NamePrefix is the fixed prefix for every repository the platform owns.
// The runtime provisioner relies on the same derivation when it has to
// resolve a repository it did not create itself, so the convention lives
// here and nowhere else.
const NamePrefix = "agentic-platform-"

// LatestTag is the mutable convenience tag the build stage pushes.
const LatestTag = "latest"

// Tag mutability settings, mirroring the registry service's own vocabulary.
const (
	TagMutabilityMutable   = "MUTABLE"
	TagMutabilityImmutable = "IMMUTABLE"
)

// RepositoryName derives the conventional repository name for an agent.
func RepositoryName(agentName string) string {
	return NamePrefix + agentName
}

// Spec holds the caller-controlled settings for ensuring a repository.
type Spec struct {
	AgentName      string `json:"agent_name"`
	Region         string `json:"region"`
	TagMutability  string `json:"image_tag_mutability"`
	ScanOnPush     bool   `json:"scan_on_push"`
	ForceDelete    bool   `json:"force_delete"`
	TriggerBuild   bool   `json:"trigger_build"`
	BuildContext   string `json:"build_context,omitempty"`
	BuildDirectory string `json:"build_directory,omitempty"`
}

// Validate checks a Spec before provisioning.
func (s *Spec) Validate() error {
	if err := agent.ValidateName(s.AgentName); err != nil {
		return err
	}
	switch s.TagMutability {
	case "", TagMutabilityMutable, TagMutabilityImmutable:
	default:
		return fmt.Errorf("%w: image_tag_mutability must be MUTABLE or IMMUTABLE", domain.ErrValidation)
	}
	if s.TriggerBuild && s.BuildContext == "" {
		return fmt.Errorf("%w: build_context is required when trigger_build is set", domain.ErrValidation)
	}
	return nil
}

// Record is the provisioned repository. All fields are immutable after
// creation except ImageDigest, which is updated when a build pushes a new
// image.
type Record struct {
	AgentID        string    `json:"agent_id"`
	RepositoryName string    `json:"repository_name"`
	RepositoryURL  string    `json:"repository_url"`
	RepositoryARN  string    `json:"repository_arn"`
	RegistryID     string    `json:"registry_id"`
	TagMutability  string    `json:"image_tag_mutability"`
	ScanOnPush     bool      `json:"scan_on_push"`
	ImageDigest    string    `json:"image_digest,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LatestImageURI returns the mutable tag reference for the repository.
// It is always exactly the repository URL plus ":latest".
func (r *Record) LatestImageURI() string {
	return r.RepositoryURL + ":" + LatestTag
}

// PinnedImageURI returns the digest-pinned reference when a digest is
// known, and the empty string otherwise. Digest references are immutable,
// so downstream stages prefer them over the latest tag.
func (r *Record) PinnedImageURI() string {
	if r.ImageDigest == "" {
		return ""
	}
	return r.RepositoryURL + "@" + r.ImageDigest
}

// ImageURI returns the reference downstream stages should deploy: the
// pinned digest when available, the latest tag otherwise.
func (r *Record) ImageURI() string {
	if uri := r.PinnedImageURI(); uri != "" {
		return uri
	}
	return r.LatestImageURI()
}
