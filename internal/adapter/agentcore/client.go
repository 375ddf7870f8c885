// Package agentcore implements the agent runtime port using the Bedrock
// AgentCore control plane API.
package agentcore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	control "github.com/aws/aws-sdk-go-v2/service/bedrockagentcorecontrol"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcorecontrol/types"

	"github.com/agentplane/agentplane/internal/port/agentruntime"
	"github.com/agentplane/agentplane/internal/resilience"
)

// Client implements agentruntime.Client against AgentCore.
type Client struct {
	api     *control.Client
	breaker *resilience.Breaker
	log     *slog.Logger
}

// New creates an AgentCore-backed runtime client.
func New(api *control.Client, breaker *resilience.Breaker, log *slog.Logger) *Client {
	return &Client{api: api, breaker: breaker, log: log}
}

// CreateMemory provisions a memory store. Event expiry is expressed in days.
func (c *Client) CreateMemory(ctx context.Context, name string, expiryDays int) (*agentruntime.MemoryResource, error) {
	var res *agentruntime.MemoryResource
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		out, err := c.api.CreateMemory(ctx, &control.CreateMemoryInput{
			Name:                aws.String(name),
			EventExpiryDuration: aws.Int32(int32(expiryDays)),
		})
		if err != nil {
			return fmt.Errorf("create memory %s: %w", name, err)
		}
		res = mapMemory(out.Memory)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("memory created", "memory", name, "id", res.ID, "status", res.Status)
	return res, nil
}

// GetMemory returns the memory's current state by ID.
func (c *Client) GetMemory(ctx context.Context, memoryID string) (*agentruntime.MemoryResource, error) {
	var res *agentruntime.MemoryResource
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		out, err := c.api.GetMemory(ctx, &control.GetMemoryInput{
			MemoryId: aws.String(memoryID),
		})
		if err != nil {
			return fmt.Errorf("get memory %s: %w", memoryID, err)
		}
		res = mapMemory(out.Memory)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CreateRuntime provisions a containerized agent runtime.
func (c *Client) CreateRuntime(ctx context.Context, in agentruntime.CreateRuntimeInput) (*agentruntime.RuntimeResource, error) {
	input := &control.CreateAgentRuntimeInput{
		AgentRuntimeName: aws.String(in.Name),
		Description:      aws.String(in.Description),
		RoleArn:          aws.String(in.RoleARN),
		AgentRuntimeArtifact: &types.AgentArtifactMemberContainerConfiguration{
			Value: types.ContainerConfiguration{
				ContainerUri: aws.String(in.ImageURI),
			},
		},
		NetworkConfiguration: &types.NetworkConfiguration{
			NetworkMode: types.NetworkMode(in.NetworkMode),
		},
		EnvironmentVariables: in.Env,
	}

	if in.Authorizer != nil {
		input.AuthorizerConfiguration = &types.AuthorizerConfigurationMemberCustomJWTAuthorizer{
			Value: types.CustomJWTAuthorizerConfiguration{
				DiscoveryUrl:    aws.String(in.Authorizer.DiscoveryURL),
				AllowedClients:  in.Authorizer.AllowedClients,
				AllowedAudience: in.Authorizer.AllowedAudiences,
			},
		}
	}

	var res *agentruntime.RuntimeResource
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		out, err := c.api.CreateAgentRuntime(ctx, input)
		if err != nil {
			return fmt.Errorf("create runtime %s: %w", in.Name, err)
		}
		res = &agentruntime.RuntimeResource{
			ID:     aws.ToString(out.AgentRuntimeId),
			ARN:    aws.ToString(out.AgentRuntimeArn),
			Name:   in.Name,
			Status: string(out.Status),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("runtime created", "runtime", in.Name, "id", res.ID, "status", res.Status)
	return res, nil
}

// CreateEndpoint provisions an invocation endpoint for a runtime.
func (c *Client) CreateEndpoint(ctx context.Context, runtimeID, name string) (*agentruntime.EndpointResource, error) {
	var res *agentruntime.EndpointResource
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		out, err := c.api.CreateAgentRuntimeEndpoint(ctx, &control.CreateAgentRuntimeEndpointInput{
			AgentRuntimeId: aws.String(runtimeID),
			Name:           aws.String(name),
		})
		if err != nil {
			return fmt.Errorf("create endpoint %s: %w", name, err)
		}
		res = &agentruntime.EndpointResource{
			ARN:  aws.ToString(out.AgentRuntimeEndpointArn),
			Name: name,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("endpoint created", "endpoint", name, "runtime_id", runtimeID)
	return res, nil
}

// DeleteRuntime removes a runtime. Memory is left alone.
func (c *Client) DeleteRuntime(ctx context.Context, runtimeID string) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := c.api.DeleteAgentRuntime(ctx, &control.DeleteAgentRuntimeInput{
			AgentRuntimeId: aws.String(runtimeID),
		})
		if err != nil {
			return fmt.Errorf("delete runtime %s: %w", runtimeID, err)
		}
		c.log.Info("runtime deleted", "runtime_id", runtimeID)
		return nil
	})
}

func mapMemory(m *types.Memory) *agentruntime.MemoryResource {
	if m == nil {
		return &agentruntime.MemoryResource{}
	}
	return &agentruntime.MemoryResource{
		ID:     aws.ToString(m.Id),
		ARN:    aws.ToString(m.Arn),
		Name:   aws.ToString(m.Name),
		Status: string(m.Status),
	}
}
