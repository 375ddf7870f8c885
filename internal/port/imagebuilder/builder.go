// Package imagebuilder defines the image build & push port (interface).
package imagebuilder

import "context"

// BuildRequest describes one image build.
type BuildRequest struct {
	ContextDir string // build context directory
	Dockerfile string // optional; relative to ContextDir
	ImageURI   string // full tag reference to push, e.g. <url>:latest
}

// Builder is the port interface for building and pushing container
// images.
type Builder interface {
	// BuildAndPush builds the image and pushes it, returning the pushed
	// image digest ("sha256:...").
	BuildAndPush(ctx context.Context, req BuildRequest) (digest string, err error)
}
