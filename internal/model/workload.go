package model

import (
	"fmt"
	"strings"
)

type WorkloadKind string

const (
	WorkloadKindDeployment  WorkloadKind = "Deployment"
	WorkloadKindStatefulSet WorkloadKind = "StatefulSet"
	WorkloadKindDaemonSet   WorkloadKind = "DaemonSet"
)

// ParseWorkloadKind maps a user-supplied kind name to a WorkloadKind.
func ParseWorkloadKind(kind string) (WorkloadKind, error) {
	switch strings.ToLower(kind) {
	case "deployment", "deployments":
		return WorkloadKindDeployment, nil
	case "statefulset", "statefulsets":
		return WorkloadKindStatefulSet, nil
	case "daemonset", "daemonsets":
		return WorkloadKindDaemonSet, nil
	default:
		return "", fmt.Errorf("unsupported workload kind %q (supported: deployment, statefulset, daemonset)", kind)
	}
}

// WorkloadRef identifies a single workload in the cluster.
type WorkloadRef struct {
	Kind      WorkloadKind `json:"kind"`
	Namespace string       `json:"namespace"`
	Name      string       `json:"name"`
}

func (r WorkloadRef) String() string {
	return fmt.Sprintf("%s/%s/%s", strings.ToLower(string(r.Kind)), r.Namespace, r.Name)
}

// WorkloadSnapshot is an immutable capture of the sync-relevant fields of one
// workload at a point in time. A fresh snapshot is taken on every poll and
// compared against the baseline captured at run start; snapshots are never
// mutated in place.
type WorkloadSnapshot struct {
	Ref                WorkloadRef
	DeploymentID       string // from the deployment-id annotation, empty when absent
	Version            string // from the version label, empty when absent
	Generation         int64
	ObservedGeneration int64
	RolloutComplete    bool
	Labels             map[string]string
}

// Changed reports whether the workload spec has visibly changed since the
// baseline was taken. Only the deployment-id annotation and the generation
// counter signal a spec change; the version label alone does not (a GitOps
// controller may re-apply identical manifests without bumping it).
func (s WorkloadSnapshot) Changed(baseline WorkloadSnapshot) bool {
	return s.DeploymentID != baseline.DeploymentID || s.Generation != baseline.Generation
}

// Equal reports whether two snapshots of the same workload carry identical
// sync markers.
func (s WorkloadSnapshot) Equal(other WorkloadSnapshot) bool {
	return s.DeploymentID == other.DeploymentID &&
		s.Version == other.Version &&
		s.Generation == other.Generation
}

// DescribeSnapshots renders the sync markers of a snapshot set for log lines
// and timeout diagnostics.
func DescribeSnapshots(snapshots []WorkloadSnapshot) string {
	if len(snapshots) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(snapshots))
	for _, snap := range snapshots {
		parts = append(parts, fmt.Sprintf("%s deploymentID=%q version=%q generation=%d",
			snap.Ref, snap.DeploymentID, snap.Version, snap.Generation))
	}
	return strings.Join(parts, "; ")
}
