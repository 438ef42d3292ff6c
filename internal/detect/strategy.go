package detect

import (
	"github.com/syncgate-sh/syncgate/internal/model"
)

// Strategy names one of the four mutually exclusive sync detection methods.
// Exactly one is active per run.
type Strategy string

const (
	// StrategyExactDeploymentID waits for every workload's deployment-id
	// annotation to equal the expected value.
	StrategyExactDeploymentID Strategy = "exact-deployment-id"

	// StrategyExactVersion waits for every workload's version label to equal
	// the expected value.
	StrategyExactVersion Strategy = "exact-version"

	// StrategyChangeDetection waits for any spec change relative to the
	// baseline. Used when the expected version already matches the cluster,
	// so no label change will ever become visible.
	StrategyChangeDetection Strategy = "change-detection"

	// StrategyFallback is change detection without any expected marker.
	StrategyFallback Strategy = "fallback"
)

// SelectStrategy maps the configured expectations and the baseline snapshots
// to a strategy. The table is exhaustive and order-sensitive: the
// deployment-id is the more reliable signal, so it wins when both markers are
// configured.
func SelectStrategy(cfg Config, baseline []model.WorkloadSnapshot) Strategy {
	if cfg.ExpectedDeploymentID != "" {
		return StrategyExactDeploymentID
	}
	if cfg.ExpectedVersion != "" {
		if versionDiffersAnywhere(cfg.ExpectedVersion, baseline) {
			return StrategyExactVersion
		}
		// The expected version is already on every workload: a label change
		// will never become visible, so fall back to watching for any change.
		return StrategyChangeDetection
	}
	return StrategyFallback
}

func versionDiffersAnywhere(expected string, baseline []model.WorkloadSnapshot) bool {
	for _, snap := range baseline {
		if snap.Version != expected {
			return true
		}
	}
	return false
}

// Matched evaluates the strategy's match predicate over the full snapshot set.
// The predicate is a conjunction across workloads: a partial match keeps the
// detector polling, since a GitOps sync is expected to land atomically across
// the workload set sharing the selector.
func (s Strategy) Matched(cfg Config, baseline map[model.WorkloadRef]model.WorkloadSnapshot, current []model.WorkloadSnapshot) bool {
	if len(current) == 0 {
		return false
	}

	switch s {
	case StrategyExactDeploymentID:
		for _, snap := range current {
			if snap.DeploymentID != cfg.ExpectedDeploymentID {
				return false
			}
		}
		return true

	case StrategyExactVersion:
		// Requiring at least one snapshot to differ from its baseline guards
		// against a stale read reporting a match that predates this run.
		anyChanged := false
		for _, snap := range current {
			if snap.Version != cfg.ExpectedVersion {
				return false
			}
			if base, ok := baseline[snap.Ref]; !ok || !snap.Equal(base) {
				anyChanged = true
			}
		}
		return anyChanged

	case StrategyChangeDetection, StrategyFallback:
		for _, snap := range current {
			base, ok := baseline[snap.Ref]
			if !ok {
				// A workload that appeared after the baseline is itself a change.
				continue
			}
			if !snap.Changed(base) {
				return false
			}
		}
		return true

	default:
		return false
	}
}

// Method returns the detection method reported when the strategy's predicate
// matched.
func (s Strategy) Method() model.DetectionMethod {
	switch s {
	case StrategyExactDeploymentID, StrategyExactVersion:
		return model.MethodExpectedMatch
	default:
		return model.MethodChangeDetected
	}
}

// UsesFallbackWindow reports whether the strategy applies the already-synced
// heuristic after the fallback timeout: with no expected marker change to wait
// for, a quiet cluster whose rollouts are all complete is assumed to have
// synced before this run started polling.
func (s Strategy) UsesFallbackWindow() bool {
	return s == StrategyChangeDetection || s == StrategyFallback
}
