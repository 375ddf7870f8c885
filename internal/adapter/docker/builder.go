// Package docker implements the image builder port using the local
// container CLI.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/agentplane/agentplane/internal/port/imagebuilder"
)

// digestRe matches the digest line the CLI prints after a successful push.
var digestRe = regexp.MustCompile(`digest:\s*(sha256:[0-9a-f]{64})`)

// Builder shells out to a docker-compatible CLI to build and push images.
type Builder struct {
	command string
	timeout time.Duration
	log     *slog.Logger
}

// NewBuilder creates a Builder using the given CLI command ("docker",
// "podman", "nerdctl").
func NewBuilder(command string, timeout time.Duration, log *slog.Logger) *Builder {
	return &Builder{command: command, timeout: timeout, log: log}
}

// BuildAndPush builds the image from the request's context directory, pushes
// it, and returns the pushed image digest.
func (b *Builder) BuildAndPush(ctx context.Context, req imagebuilder.BuildRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	buildArgs := []string{"build", "-t", req.ImageURI}
	if req.Dockerfile != "" {
		buildArgs = append(buildArgs, "-f", req.Dockerfile)
	}
	buildArgs = append(buildArgs, req.ContextDir)

	b.log.Info("building image", "image", req.ImageURI, "context", req.ContextDir)
	if _, err := b.run(ctx, buildArgs...); err != nil {
		return "", fmt.Errorf("build %s: %w", req.ImageURI, err)
	}

	b.log.Info("pushing image", "image", req.ImageURI)
	out, err := b.run(ctx, "push", req.ImageURI)
	if err != nil {
		return "", fmt.Errorf("push %s: %w", req.ImageURI, err)
	}

	digest, err := parseDigest(out)
	if err != nil {
		return "", fmt.Errorf("push %s: %w", req.ImageURI, err)
	}

	b.log.Info("image pushed", "image", req.ImageURI, "digest", digest)
	return digest, nil
}

func (b *Builder) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, b.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}

// parseDigest extracts the sha256 digest from push output.
func parseDigest(out string) (string, error) {
	m := digestRe.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("no digest in push output")
	}
	return m[1], nil
}
