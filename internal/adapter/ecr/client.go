// Package ecr implements the container registry port using Amazon ECR.
package ecr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsecr "github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"

	"github.com/agentplane/agentplane/internal/domain"
	"github.com/agentplane/agentplane/internal/domain/registry"
	"github.com/agentplane/agentplane/internal/port/containerregistry"
	"github.com/agentplane/agentplane/internal/resilience"
)

// Client implements containerregistry.Client using the ECR API.
// All calls go through a circuit breaker so a struggling region does not
// pile up provisioning work.
type Client struct {
	api     *awsecr.Client
	breaker *resilience.Breaker
	log     *slog.Logger
}

// New creates an ECR-backed registry client.
func New(api *awsecr.Client, breaker *resilience.Breaker, log *slog.Logger) *Client {
	return &Client{api: api, breaker: breaker, log: log}
}

// EnsureRepository creates the repository when absent and returns its
// descriptor. An already-existing repository is resolved, not an error.
func (c *Client) EnsureRepository(ctx context.Context, spec registry.Spec) (*containerregistry.Repository, error) {
	name := registry.RepositoryName(spec.AgentName)

	var repo *containerregistry.Repository
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		out, err := c.api.CreateRepository(ctx, &awsecr.CreateRepositoryInput{
			RepositoryName:     aws.String(name),
			ImageTagMutability: tagMutability(spec.TagMutability),
			ImageScanningConfiguration: &types.ImageScanningConfiguration{
				ScanOnPush: spec.ScanOnPush,
			},
		})
		if err != nil {
			var exists *types.RepositoryAlreadyExistsException
			if errors.As(err, &exists) {
				return nil
			}
			return fmt.Errorf("create repository %s: %w", name, err)
		}
		repo = mapRepository(out.Repository)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if repo == nil {
		// Repository existed already; resolve its descriptor.
		c.log.Debug("repository already exists", "repository", name)
		return c.LookupRepository(ctx, name)
	}

	c.log.Info("repository created", "repository", name, "url", repo.URL)
	return repo, nil
}

// LookupRepository resolves an existing repository by name.
func (c *Client) LookupRepository(ctx context.Context, name string) (*containerregistry.Repository, error) {
	var repo *containerregistry.Repository
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		out, err := c.api.DescribeRepositories(ctx, &awsecr.DescribeRepositoriesInput{
			RepositoryNames: []string{name},
		})
		if err != nil {
			var notFound *types.RepositoryNotFoundException
			if errors.As(err, &notFound) {
				return fmt.Errorf("repository %s: %w", name, domain.ErrNotFound)
			}
			return fmt.Errorf("describe repository %s: %w", name, err)
		}
		if len(out.Repositories) == 0 {
			return fmt.Errorf("repository %s: %w", name, domain.ErrNotFound)
		}
		repo = mapRepository(&out.Repositories[0])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// LatestImageDigest returns the digest behind the latest tag.
func (c *Client) LatestImageDigest(ctx context.Context, repositoryName string) (string, error) {
	var digest string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		out, err := c.api.DescribeImages(ctx, &awsecr.DescribeImagesInput{
			RepositoryName: aws.String(repositoryName),
			ImageIds: []types.ImageIdentifier{
				{ImageTag: aws.String(registry.LatestTag)},
			},
		})
		if err != nil {
			var notFound *types.ImageNotFoundException
			if errors.As(err, &notFound) {
				return fmt.Errorf("latest image in %s: %w", repositoryName, domain.ErrNotFound)
			}
			return fmt.Errorf("describe images %s: %w", repositoryName, err)
		}
		if len(out.ImageDetails) == 0 || out.ImageDetails[0].ImageDigest == nil {
			return fmt.Errorf("latest image in %s: %w", repositoryName, domain.ErrNotFound)
		}
		digest = *out.ImageDetails[0].ImageDigest
		return nil
	})
	if err != nil {
		return "", err
	}
	return digest, nil
}

// DeleteRepository removes the repository.
func (c *Client) DeleteRepository(ctx context.Context, name string, force bool) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := c.api.DeleteRepository(ctx, &awsecr.DeleteRepositoryInput{
			RepositoryName: aws.String(name),
			Force:          force,
		})
		if err != nil {
			var notFound *types.RepositoryNotFoundException
			if errors.As(err, &notFound) {
				return fmt.Errorf("repository %s: %w", name, domain.ErrNotFound)
			}
			return fmt.Errorf("delete repository %s: %w", name, err)
		}
		c.log.Info("repository deleted", "repository", name, "force", force)
		return nil
	})
}

func tagMutability(m string) types.ImageTagMutability {
	if m == registry.TagMutabilityImmutable {
		return types.ImageTagMutabilityImmutable
	}
	return types.ImageTagMutabilityMutable
}

func mapRepository(r *types.Repository) *containerregistry.Repository {
	return &containerregistry.Repository{
		Name:       aws.ToString(r.RepositoryName),
		URL:        aws.ToString(r.RepositoryUri),
		ARN:        aws.ToString(r.RepositoryArn),
		RegistryID: aws.ToString(r.RegistryId),
	}
}
