package helmvalues

import (
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/agentplane/agentplane/internal/domain"
	"github.com/agentplane/agentplane/internal/domain/deployment"
)

func TestRenderResolvesConfigKeys(t *testing.T) {
	v, ok := deployment.ValuesFor("llm-gateway")
	if !ok {
		t.Fatal("missing llm-gateway preset")
	}

	store := map[string]string{
		"REDIS_HOST":                 "redis.internal",
		"REDIS_PORT":                 "6379",
		"REDIS_PASSWORD_SECRET_ARN":  "arn:aws:secretsmanager:us-west-2:1:secret:redis",
		"DYNAMODB_USAGE_PLANS_TABLE": "usage-plans",
		"DYNAMODB_USAGE_LOGS_TABLE":  "usage-logs",
		"COGNITO_USER_POOL_ID":       "us-west-2_abc",
		"COGNITO_USER_CLIENT_ID":     "client1",
		"COGNITO_M2M_CLIENT_ID":      "client2",
	}

	data, err := Render(&v, store)
	if err != nil {
		t.Fatal(err)
	}

	var parsed struct {
		ServiceName string              `yaml:"serviceName"`
		Namespace   string              `yaml:"namespace"`
		Env         []deployment.EnvVar `yaml:"env"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}

	if parsed.ServiceName != "llm-gateway" {
		t.Errorf("expected serviceName llm-gateway, got %s", parsed.ServiceName)
	}
	if parsed.Namespace != deployment.DefaultNamespace {
		t.Errorf("expected namespace %s, got %s", deployment.DefaultNamespace, parsed.Namespace)
	}

	envMap := make(map[string]string, len(parsed.Env))
	for _, e := range parsed.Env {
		envMap[e.Name] = e.Value
	}
	if envMap["REDIS_HOST"] != "redis.internal" {
		t.Errorf("expected REDIS_HOST from store, got %q", envMap["REDIS_HOST"])
	}
	for _, key := range v.ConfigKeys {
		if _, ok := envMap[key]; !ok {
			t.Errorf("config key %s missing from rendered env", key)
		}
	}
}

func TestRenderStoreWinsOverDefaults(t *testing.T) {
	v := &deployment.Values{
		ServiceName:  "svc",
		Namespace:    "ns",
		ReplicaCount: 1,
		Image:        deployment.Image{Repository: "repo", Tag: "latest"},
		ConfigKeys:   []string{"LLM_GATEWAY_ENDPOINT"},
		ConfigDefaults: map[string]string{
			"LLM_GATEWAY_ENDPOINT": "http://llm-gateway.ns.svc.cluster.local",
		},
	}

	data, err := Render(v, map[string]string{"LLM_GATEWAY_ENDPOINT": "http://override"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "http://override") {
		t.Error("expected store value to win over default")
	}
}

func TestRenderMissingKeyFails(t *testing.T) {
	v := &deployment.Values{
		ServiceName:  "svc",
		Namespace:    "ns",
		ReplicaCount: 1,
		Image:        deployment.Image{Repository: "repo", Tag: "latest"},
		ConfigKeys:   []string{"KNOWLEDGE_BASE_ID"},
	}

	_, err := Render(v, map[string]string{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "KNOWLEDGE_BASE_ID") {
		t.Errorf("error should name the missing key, got %v", err)
	}
}
