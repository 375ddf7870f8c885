// Package deployment defines per-service Kubernetes deployment values and
// the rules binding them to the central configuration store.
package deployment

import (
	"fmt"

	"github.com/agentplane/agentplane/internal/domain"
)

// DefaultImageTag is the tag used when a service does not pin one.
const DefaultImageTag = "latest"

// Image identifies the container image for a service.
type Image struct {
	Repository string `json:"repository" yaml:"repository"`
	Tag        string `json:"tag" yaml:"tag"`
	PullPolicy string `json:"pullPolicy" yaml:"pullPolicy"`
}

// Service describes the in-cluster service exposure.
type Service struct {
	Type       string `json:"type" yaml:"type"`
	Port       int    `json:"port" yaml:"port"`
	TargetPort int    `json:"targetPort" yaml:"targetPort"`
}

// EnvVar is a literal environment variable set on the deployment.
type EnvVar struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// ResourceList holds cpu/memory quantities.
type ResourceList struct {
	CPU    string `json:"cpu" yaml:"cpu"`
	Memory string `json:"memory" yaml:"memory"`
}

// Resources holds requests and limits.
type Resources struct {
	Requests ResourceList `json:"requests" yaml:"requests"`
	Limits   ResourceList `json:"limits" yaml:"limits"`
}

// Ingress describes the service's ingress exposure. Paths are distinct
// per service.
type Ingress struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// ServiceAccount describes the dedicated service account and its optional
// IAM role binding (IRSA).
type ServiceAccount struct {
	Name         string `json:"name" yaml:"name"`
	Create       bool   `json:"create" yaml:"create"`
	IRSARoleName string `json:"irsaRoleName,omitempty" yaml:"irsaRoleName,omitempty"`
}

// Values is the full deployment configuration for one service. ConfigKeys
// is the allow-list of keys fetched from the central configuration store
// at deploy time; ConfigDefaults supplies inline fallbacks for keys the
// store may not carry.
type Values struct {
	ServiceName    string            `json:"serviceName" yaml:"serviceName"`
	Namespace      string            `json:"namespace" yaml:"namespace"`
	ReplicaCount   int               `json:"replicaCount" yaml:"replicaCount"`
	Image          Image             `json:"image" yaml:"image"`
	Service        Service           `json:"service" yaml:"service"`
	Env            []EnvVar          `json:"env,omitempty" yaml:"env,omitempty"`
	Resources      Resources         `json:"resources" yaml:"resources"`
	Ingress        Ingress           `json:"ingress" yaml:"ingress"`
	ServiceAccount ServiceAccount    `json:"serviceAccount" yaml:"serviceAccount"`
	ConfigKeys     []string          `json:"configKeys,omitempty" yaml:"configKeys,omitempty"`
	ConfigDefaults map[string]string `json:"configDefaults,omitempty" yaml:"configDefaults,omitempty"`
}

// IRSARoleName derives the conventional IAM role name for a service.
func IRSARoleName(serviceName string) string {
	return serviceName + "-role"
}

// Validate checks structural correctness of the values.
func (v *Values) Validate() error {
	if v.ServiceName == "" {
		return fmt.Errorf("%w: serviceName is required", domain.ErrValidation)
	}
	if v.Namespace == "" {
		return fmt.Errorf("%w: namespace is required", domain.ErrValidation)
	}
	if v.ReplicaCount < 1 {
		return fmt.Errorf("%w: replicaCount must be >= 1", domain.ErrValidation)
	}
	if v.Image.Repository == "" {
		return fmt.Errorf("%w: image.repository is required", domain.ErrValidation)
	}
	if v.Ingress.Enabled && v.Ingress.Path == "" {
		return fmt.Errorf("%w: ingress.path is required when ingress is enabled", domain.ErrValidation)
	}
	return nil
}

// MissingKeys returns the config keys not resolvable from the given store
// snapshot and not covered by ConfigDefaults, in declaration order.
func (v *Values) MissingKeys(store map[string]string) []string {
	var missing []string
	for _, key := range v.ConfigKeys {
		if _, ok := store[key]; ok {
			continue
		}
		if _, ok := v.ConfigDefaults[key]; ok {
			continue
		}
		missing = append(missing, key)
	}
	return missing
}

// ResolveConfig resolves the allow-listed keys against a store snapshot,
// falling back to ConfigDefaults. Store values win over defaults. It
// fails, naming the offending keys, when any key is covered by neither.
func (v *Values) ResolveConfig(store map[string]string) (map[string]string, error) {
	if missing := v.MissingKeys(store); len(missing) > 0 {
		return nil, fmt.Errorf("%w: unresolvable config keys for %s: %v", domain.ErrValidation, v.ServiceName, missing)
	}
	resolved := make(map[string]string, len(v.ConfigKeys))
	for _, key := range v.ConfigKeys {
		if val, ok := store[key]; ok {
			resolved[key] = val
			continue
		}
		resolved[key] = v.ConfigDefaults[key]
	}
	return resolved, nil
}
