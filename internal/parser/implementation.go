package parser

import (
	"context"

	"hopper/internal/pricing"
)

// Request carries the resolved paths for one parser run. The workflow computes
// OutputPath from the parser's configured output extension before dispatch.
type Request struct {
	InputPath  string
	OutputPath string
}

// Implementation describes an executable parsing capability. Deployments bind
// implementations to names through parser configurations; the accessor methods
// supply the defaults used when no stored configuration exists yet.
type Implementation interface {
	// Name is the registry key and the default parser name.
	Name() string

	// AcceptedExtensions lists the input extensions the implementation
	// handles by default, lowercase with leading dots.
	AcceptedExtensions() []string

	// OutputSuffix is the extension appended to the input path to form the
	// default output path (for example ".transcript.txt").
	OutputSuffix() string

	// DependsOn names parsers whose outputs must exist before this one runs.
	DependsOn() []string

	// Run executes the transformation and returns the path of the produced
	// output, normally req.OutputPath.
	Run(ctx context.Context, req Request) (string, error)

	// EstimateCost predicts the dollar cost of running against the given
	// input. Implementations with no metered backend return a zero estimate.
	EstimateCost(path string) (pricing.Estimate, error)

	// HealthCheck reports whether the implementation's external dependencies
	// (binaries, API keys) are available.
	HealthCheck(ctx context.Context) Health
}
