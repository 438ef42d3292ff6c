package report

import (
	"fmt"

	"github.com/syncgate-sh/syncgate/internal/model"
)

// Input collects everything the aggregator needs to derive the final report.
type Input struct {
	CheckID              string
	ClusterID            string
	Strategy             string
	ExpectedDeploymentID string
	ExpectedVersion      string
	WorkloadsFound       int
	Detection            model.DetectionResult
	Outcomes             []model.RolloutOutcome
	FinalSnapshots       []model.WorkloadSnapshot
}

// Aggregate derives the terminal status and the machine-readable report from
// the detection outcome and the per-workload rollout outcomes. It is a pure
// function: all polling is done by the time it runs.
func Aggregate(in Input) model.FinalReport {
	rep := model.FinalReport{
		CheckID:             in.CheckID,
		ClusterID:           in.ClusterID,
		WorkloadsFound:      in.WorkloadsFound,
		WorkloadsReady:      countReady(in.Outcomes),
		VersionMatched:      matchState(in.ExpectedVersion, versionsMatch(in.ExpectedVersion, in.FinalSnapshots)),
		DeploymentIDMatched: matchState(in.ExpectedDeploymentID, deploymentIDsMatch(in.ExpectedDeploymentID, in.FinalSnapshots)),
		DetectionMethod:     in.Detection.Method,
		FailedWorkloads:     failedOutcomes(in.Outcomes),
		Elapsed:             in.Detection.Elapsed,
	}

	rep.Status = deriveStatus(in)
	rep.Message = buildMessage(in, rep)
	return rep
}

// deriveStatus applies the precedence NoWorkloads > Failed > Timeout > Ready.
// A detection that never matched is always a Timeout, never a Failed.
func deriveStatus(in Input) model.Status {
	if in.WorkloadsFound == 0 {
		return model.StatusNoWorkloads
	}
	for _, outcome := range in.Outcomes {
		if outcome.Failed {
			return model.StatusFailed
		}
	}
	if !in.Detection.Matched {
		return model.StatusTimeout
	}
	for _, outcome := range in.Outcomes {
		if !outcome.Ready {
			return model.StatusTimeout
		}
	}
	return model.StatusReady
}

func buildMessage(in Input, rep model.FinalReport) string {
	switch rep.Status {
	case model.StatusNoWorkloads:
		return "no workloads matched the selector; nothing to roll out"

	case model.StatusFailed:
		return fmt.Sprintf("%d of %d workloads failed to roll out", len(rep.FailedWorkloads), in.WorkloadsFound)

	case model.StatusTimeout:
		if !in.Detection.Matched {
			return fmt.Sprintf("sync not detected before timeout (strategy %s); last observed: %s",
				in.Strategy, model.DescribeSnapshots(in.Detection.LastObserved))
		}
		return fmt.Sprintf("sync detected (%s) but %d of %d workloads did not finish rolling out in time",
			rep.DetectionMethod, in.WorkloadsFound-rep.WorkloadsReady, in.WorkloadsFound)

	default:
		if rep.DetectionMethod == model.MethodAlreadySynced {
			return fmt.Sprintf("all %d workloads ready; no change observed, assumed already synced (heuristic)", in.WorkloadsFound)
		}
		return fmt.Sprintf("all %d workloads ready (sync detected via %s)", in.WorkloadsFound, rep.DetectionMethod)
	}
}

func countReady(outcomes []model.RolloutOutcome) int {
	ready := 0
	for _, outcome := range outcomes {
		if outcome.Ready {
			ready++
		}
	}
	return ready
}

func failedOutcomes(outcomes []model.RolloutOutcome) []model.RolloutOutcome {
	var failed []model.RolloutOutcome
	for _, outcome := range outcomes {
		if outcome.Failed {
			failed = append(failed, outcome)
		}
	}
	return failed
}

func matchState(expected string, matched bool) model.MatchState {
	if expected == "" {
		return model.MatchSkipped
	}
	if matched {
		return model.MatchTrue
	}
	return model.MatchFalse
}

func versionsMatch(expected string, snapshots []model.WorkloadSnapshot) bool {
	if len(snapshots) == 0 {
		return false
	}
	for _, snap := range snapshots {
		if snap.Version != expected {
			return false
		}
	}
	return true
}

func deploymentIDsMatch(expected string, snapshots []model.WorkloadSnapshot) bool {
	if len(snapshots) == 0 {
		return false
	}
	for _, snap := range snapshots {
		if snap.DeploymentID != expected {
			return false
		}
	}
	return true
}
