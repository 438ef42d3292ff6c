package model

import (
	"time"
)

type DetectionMethod string

const (
	MethodExpectedMatch  DetectionMethod = "expected_match"
	MethodChangeDetected DetectionMethod = "change_detected"
	MethodAlreadySynced  DetectionMethod = "already_synced"
	MethodTimeout        DetectionMethod = "timeout"
)

// DetectionResult is the terminal outcome of the sync detection phase.
type DetectionResult struct {
	Matched bool
	Method  DetectionMethod
	Elapsed time.Duration

	// LastObserved holds the snapshots from the final poll tick, kept for
	// diagnostics and for the expected-value comparison in the report.
	LastObserved []WorkloadSnapshot
}

// RolloutOutcome is the terminal (or timed-out) state of one workload's
// rollout. Ready and Failed are mutually exclusive; both false means the time
// budget ran out while the rollout was still in progress.
type RolloutOutcome struct {
	Ref    WorkloadRef `json:"workload"`
	Ready  bool        `json:"ready"`
	Failed bool        `json:"failed"`
	Reason string      `json:"reason,omitempty"`
}

// MatchState is the tri-state result of comparing an expected marker against
// the cluster: skipped when the marker was not configured.
type MatchState string

const (
	MatchTrue    MatchState = "true"
	MatchFalse   MatchState = "false"
	MatchSkipped MatchState = "skipped"
)

type Status string

const (
	StatusReady       Status = "Ready"
	StatusFailed      Status = "Failed"
	StatusTimeout     Status = "Timeout"
	StatusNoWorkloads Status = "NoWorkloads"
)

// ExitCode returns the process exit code contract for a status: success for
// Ready and NoWorkloads, non-zero otherwise.
func (s Status) ExitCode() int {
	switch s {
	case StatusReady, StatusNoWorkloads:
		return 0
	case StatusTimeout:
		return 2
	default:
		return 1
	}
}

// FinalReport is the machine-readable result of one gate run, consumed by the
// output publishers. Field names are part of the external contract.
type FinalReport struct {
	CheckID             string           `json:"check_id"`
	ClusterID           string           `json:"cluster_id,omitempty"`
	WorkloadsFound      int              `json:"workloads_found"`
	WorkloadsReady      int              `json:"workloads_ready"`
	VersionMatched      MatchState       `json:"version_matched"`
	DeploymentIDMatched MatchState       `json:"deployment_id_matched"`
	DetectionMethod     DetectionMethod  `json:"sync_detection_method"`
	Status              Status           `json:"status"`
	Message             string           `json:"message"`
	FailedWorkloads     []RolloutOutcome `json:"failed_workloads,omitempty"`
	Elapsed             time.Duration    `json:"elapsed"`
}
