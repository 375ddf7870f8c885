// Package helmvalues renders deployment values into Helm-compatible
// values.yaml documents.
package helmvalues

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/agentplane/agentplane/internal/domain/deployment"
)

// rendered is the on-disk shape of a values.yaml file. The config keys and
// defaults are already resolved into literal env entries, so the chart
// never needs to reach the central store itself.
type rendered struct {
	ServiceName    string                    `yaml:"serviceName"`
	Namespace      string                    `yaml:"namespace"`
	ReplicaCount   int                       `yaml:"replicaCount"`
	Image          deployment.Image          `yaml:"image"`
	Service        deployment.Service        `yaml:"service"`
	Env            []deployment.EnvVar       `yaml:"env,omitempty"`
	Resources      deployment.Resources      `yaml:"resources"`
	Ingress        deployment.Ingress        `yaml:"ingress"`
	ServiceAccount deployment.ServiceAccount `yaml:"serviceAccount"`
}

// Render produces a values.yaml document for the service with its config
// keys resolved against the given store snapshot. Resolved keys are
// appended to env in sorted key order after any literal env vars.
func Render(v *deployment.Values, store map[string]string) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	resolved, err := v.ResolveConfig(store)
	if err != nil {
		return nil, err
	}

	env := make([]deployment.EnvVar, 0, len(v.Env)+len(resolved))
	env = append(env, v.Env...)

	keys := make([]string, 0, len(resolved))
	for k := range resolved {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, deployment.EnvVar{Name: k, Value: resolved[k]})
	}

	out := rendered{
		ServiceName:    v.ServiceName,
		Namespace:      v.Namespace,
		ReplicaCount:   v.ReplicaCount,
		Image:          v.Image,
		Service:        v.Service,
		Env:            env,
		Resources:      v.Resources,
		Ingress:        v.Ingress,
		ServiceAccount: v.ServiceAccount,
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("marshal values for %s: %w", v.ServiceName, err)
	}
	return data, nil
}
