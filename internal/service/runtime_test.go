package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/agentplane/agentplane/internal/domain"
	"github.com/agentplane/agentplane/internal/domain/memory"
	"github.com/agentplane/agentplane/internal/domain/registry"
	"github.com/agentplane/agentplane/internal/domain/runtime"
	"github.com/agentplane/agentplane/internal/service"
)

const testAccountID = "123456789012"

func newRuntimeTestEnv() (*service.RuntimeService, *mockStore, *mockRuntimeClient, *mockRegistryClient) {
	store := newMockStore()
	rt := newMockRuntimeClient()
	reg := newMockRegistryClient()
	svc := service.NewRuntimeService(store, rt, reg, testAccountID, time.Millisecond, time.Second, discardLogger())
	return svc, store, rt, reg
}

func TestRuntimeService_ProvisionMemory(t *testing.T) {
	svc, store, rt, _ := newRuntimeTestEnv()

	rec, err := svc.ProvisionMemory(context.Background(), "agent-1", memory.Spec{AgentName: "data-analyst"})
	if err != nil {
		t.Fatalf("ProvisionMemory failed: %v", err)
	}

	if rec.Name != "data_analyst_memory" {
		t.Errorf("expected derived memory name, got %s", rec.Name)
	}
	if rec.Status != memory.StatusActive {
		t.Errorf("expected ACTIVE memory, got %s", rec.Status)
	}
	if rec.ExpiryDays != memory.EventExpiryDays {
		t.Errorf("expected %d day expiry, got %d", memory.EventExpiryDays, rec.ExpiryDays)
	}
	if len(rt.calls) == 0 || rt.calls[0] != "CreateMemory" {
		t.Errorf("expected CreateMemory call, got %v", rt.calls)
	}
	if _, err := store.GetMemoryRecord(context.Background(), "agent-1"); err != nil {
		t.Errorf("memory record not persisted: %v", err)
	}
}

func TestRuntimeService_ProvisionMemoryPollsUntilActive(t *testing.T) {
	svc, _, rt, _ := newRuntimeTestEnv()
	rt.pendingPolls = 3

	rec, err := svc.ProvisionMemory(context.Background(), "agent-1", memory.Spec{
		AgentName:  "data-analyst",
		NameSuffix: "sessions",
	})
	if err != nil {
		t.Fatalf("ProvisionMemory failed: %v", err)
	}

	if rec.Name != "data_analyst_memory_sessions" {
		t.Errorf("expected suffixed memory name, got %s", rec.Name)
	}
	if rec.Status != memory.StatusActive {
		t.Errorf("expected ACTIVE after polling, got %s", rec.Status)
	}

	polls := 0
	for _, c := range rt.calls {
		if c == "GetMemory" {
			polls++
		}
	}
	if polls < 3 {
		t.Errorf("expected at least 3 polls, got %d", polls)
	}
}

func TestRuntimeService_ProvisionRuntimeRequiresActiveMemory(t *testing.T) {
	svc, store, _, _ := newRuntimeTestEnv()
	ctx := context.Background()
	spec := runtime.Spec{AgentName: "data-analyst", ImageURI: "example.com/img:1"}

	if _, err := svc.ProvisionRuntime(ctx, "agent-1", spec); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found without a memory record, got %v", err)
	}

	if err := store.UpsertMemoryRecord(ctx, &memory.Record{
		AgentID: "agent-1",
		Name:    "data_analyst_memory",
		Status:  memory.StatusCreating,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ProvisionRuntime(ctx, "agent-1", spec); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for non-active memory, got %v", err)
	}
}

func TestRuntimeService_ProvisionRuntime(t *testing.T) {
	svc, store, rt, _ := newRuntimeTestEnv()
	ctx := context.Background()

	if _, err := svc.ProvisionMemory(ctx, "agent-1", memory.Spec{AgentName: "data-analyst"}); err != nil {
		t.Fatal(err)
	}

	rec, err := svc.ProvisionRuntime(ctx, "agent-1", runtime.Spec{
		AgentName: "data-analyst",
		ImageURI:  "example.com/img:1",
	})
	if err != nil {
		t.Fatalf("ProvisionRuntime failed: %v", err)
	}

	if rec.Name != "agent_runtime_data_analyst" {
		t.Errorf("expected derived runtime name, got %s", rec.Name)
	}
	if rec.RoleARN != "arn:aws:iam::123456789012:role/agentic-platform-data-analyst-runtime-role" {
		t.Errorf("unexpected execution role ARN %s", rec.RoleARN)
	}
	if rec.NetworkMode != runtime.NetworkModePublic {
		t.Errorf("expected PUBLIC default network mode, got %s", rec.NetworkMode)
	}
	if rec.MemoryName != "data_analyst_memory" {
		t.Errorf("expected memory name on record, got %s", rec.MemoryName)
	}
	if rec.EndpointARN != "" {
		t.Errorf("expected no endpoint without the flag, got %s", rec.EndpointARN)
	}
	if len(rt.endpoints) != 0 {
		t.Errorf("expected no endpoint created, got %v", rt.endpoints)
	}
	if _, err := store.GetRuntimeRecord(ctx, "agent-1"); err != nil {
		t.Errorf("runtime record not persisted: %v", err)
	}
}

func TestRuntimeService_ProvisionRuntimeWithEndpoint(t *testing.T) {
	svc, _, rt, _ := newRuntimeTestEnv()
	ctx := context.Background()

	if _, err := svc.ProvisionMemory(ctx, "agent-1", memory.Spec{AgentName: "data-analyst"}); err != nil {
		t.Fatal(err)
	}

	rec, err := svc.ProvisionRuntime(ctx, "agent-1", runtime.Spec{
		AgentName:      "data-analyst",
		ImageURI:       "example.com/img:1",
		CreateEndpoint: true,
	})
	if err != nil {
		t.Fatalf("ProvisionRuntime failed: %v", err)
	}

	if rec.EndpointARN == "" {
		t.Error("expected endpoint ARN on record")
	}
	if len(rt.endpoints) != 1 || rt.endpoints[0] != "data_analyst_endpoint" {
		t.Errorf("expected derived endpoint name, got %v", rt.endpoints)
	}
}

func TestRuntimeService_ResolveImagePrefersRegistryRecord(t *testing.T) {
	svc, store, _, _ := newRuntimeTestEnv()
	ctx := context.Background()

	if _, err := svc.ProvisionMemory(ctx, "agent-1", memory.Spec{AgentName: "data-analyst"}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertRegistryRecord(ctx, &registry.Record{
		AgentID:        "agent-1",
		RepositoryName: "agentic-platform-data-analyst",
		RepositoryURL:  "123456789012.dkr.ecr.us-west-2.amazonaws.com/agentic-platform-data-analyst",
		ImageDigest:    testDigest,
	}); err != nil {
		t.Fatal(err)
	}

	rec, err := svc.ProvisionRuntime(ctx, "agent-1", runtime.Spec{AgentName: "data-analyst"})
	if err != nil {
		t.Fatalf("ProvisionRuntime failed: %v", err)
	}
	if !strings.HasSuffix(rec.ImageURI, "@"+testDigest) {
		t.Errorf("expected digest-pinned image from registry record, got %s", rec.ImageURI)
	}
}

func TestRuntimeService_ResolveImageFallsBackToLookup(t *testing.T) {
	svc, _, _, reg := newRuntimeTestEnv()
	ctx := context.Background()

	// The repository exists in the registry but was never recorded
	// locally, as after a manual push.
	if _, err := reg.EnsureRepository(ctx, registry.Spec{AgentName: "data-analyst"}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ProvisionMemory(ctx, "agent-1", memory.Spec{AgentName: "data-analyst"}); err != nil {
		t.Fatal(err)
	}

	rec, err := svc.ProvisionRuntime(ctx, "agent-1", runtime.Spec{AgentName: "data-analyst"})
	if err != nil {
		t.Fatalf("ProvisionRuntime failed: %v", err)
	}
	if !strings.HasSuffix(rec.ImageURI, ":latest") {
		t.Errorf("expected latest tag without a pushed digest, got %s", rec.ImageURI)
	}

	reg.digests["agentic-platform-data-analyst"] = testDigest
	rec, err = svc.ProvisionRuntime(ctx, "agent-1", runtime.Spec{AgentName: "data-analyst"})
	if err != nil {
		t.Fatalf("ProvisionRuntime failed: %v", err)
	}
	if !strings.HasSuffix(rec.ImageURI, "@"+testDigest) {
		t.Errorf("expected digest pin after a push, got %s", rec.ImageURI)
	}
}

func TestRuntimeService_ProvisionEndpoint(t *testing.T) {
	svc, _, rt, _ := newRuntimeTestEnv()
	ctx := context.Background()

	if _, err := svc.Provision(ctx, "agent-1", runtime.Spec{
		AgentName: "data-analyst",
		ImageURI:  "example.com/img:1",
	}); err != nil {
		t.Fatal(err)
	}

	rec, err := svc.ProvisionEndpoint(ctx, "agent-1", "data-analyst")
	if err != nil {
		t.Fatalf("ProvisionEndpoint failed: %v", err)
	}
	if rec.EndpointARN == "" {
		t.Error("expected endpoint ARN on record")
	}
	if len(rt.endpoints) != 1 || rt.endpoints[0] != "data_analyst_endpoint" {
		t.Errorf("expected derived endpoint name, got %v", rt.endpoints)
	}
}

func TestRuntimeService_Deprovision(t *testing.T) {
	svc, store, rt, _ := newRuntimeTestEnv()
	ctx := context.Background()

	if _, err := svc.Provision(ctx, "agent-1", runtime.Spec{
		AgentName: "data-analyst",
		ImageURI:  "example.com/img:1",
	}); err != nil {
		t.Fatal(err)
	}

	if err := svc.Deprovision(ctx, "agent-1"); err != nil {
		t.Fatalf("Deprovision failed: %v", err)
	}
	if len(rt.deleted) != 1 {
		t.Errorf("expected one runtime deleted, got %v", rt.deleted)
	}

	rec, err := store.GetRuntimeRecord(ctx, "agent-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != runtime.StatusDeleting {
		t.Errorf("expected DELETING status, got %s", rec.Status)
	}

	// The memory outlives the runtime.
	if _, err := store.GetMemoryRecord(ctx, "agent-1"); err != nil {
		t.Errorf("expected memory record untouched: %v", err)
	}
}
