// Package ssm implements the central config store port using AWS Systems
// Manager Parameter Store.
package ssm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/agentplane/agentplane/internal/resilience"
)

// Store reads platform configuration from a parameter path prefix.
// Parameter names below the prefix map 1:1 to config keys: the value of
// /agentic-platform/prod/REDIS_HOST becomes the REDIS_HOST key.
type Store struct {
	api     *awsssm.Client
	prefix  string
	breaker *resilience.Breaker
	log     *slog.Logger
}

// NewStore creates a Parameter Store-backed config store rooted at prefix.
func NewStore(api *awsssm.Client, prefix string, breaker *resilience.Breaker, log *slog.Logger) *Store {
	return &Store{api: api, prefix: strings.TrimSuffix(prefix, "/"), breaker: breaker, log: log}
}

// Snapshot returns all parameters under the prefix as a flat key/value map.
// SecureString values are decrypted.
func (s *Store) Snapshot(ctx context.Context) (map[string]string, error) {
	values := make(map[string]string)

	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		paginator := awsssm.NewGetParametersByPathPaginator(s.api, &awsssm.GetParametersByPathInput{
			Path:           aws.String(s.prefix + "/"),
			Recursive:      aws.Bool(true),
			WithDecryption: aws.Bool(true),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return fmt.Errorf("get parameters under %s: %w", s.prefix, err)
			}
			for _, p := range page.Parameters {
				name := aws.ToString(p.Name)
				key := strings.TrimPrefix(name, s.prefix+"/")
				values[key] = aws.ToString(p.Value)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("config snapshot loaded", "prefix", s.prefix, "keys", len(values))
	return values, nil
}
