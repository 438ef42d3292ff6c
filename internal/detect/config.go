package detect

import (
	"fmt"
	"time"
)

// Config holds the immutable inputs of one detection run. It is constructed
// once from validated flags and read-only thereafter.
type Config struct {
	// ExpectedDeploymentID is the CI run identifier expected to appear in the
	// deployment-id annotation once the GitOps controller has applied the
	// change. Empty when not configured.
	ExpectedDeploymentID string

	// ExpectedVersion is the application version expected to appear in the
	// version label. Empty when not configured.
	ExpectedVersion string

	// OverallTimeout bounds the whole run, detection and rollout combined.
	OverallTimeout time.Duration

	// FallbackTimeout bounds how long the change-driven strategies wait for a
	// visible change before assuming the sync predates this run.
	FallbackTimeout time.Duration

	// PollInterval is how often cluster state is re-read.
	PollInterval time.Duration
}

// Validate checks the time-budget arithmetic up front. Violations are fatal
// before any polling begins.
func (c Config) Validate() error {
	if c.OverallTimeout <= 0 {
		return fmt.Errorf("overall timeout must be positive, got %s", c.OverallTimeout)
	}
	if c.FallbackTimeout <= 0 {
		return fmt.Errorf("fallback timeout must be positive, got %s", c.FallbackTimeout)
	}
	if c.FallbackTimeout > c.OverallTimeout {
		return fmt.Errorf("fallback timeout %s exceeds overall timeout %s", c.FallbackTimeout, c.OverallTimeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}
