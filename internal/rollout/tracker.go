package rollout

import (
	"context"
	"sync"
	"time"

	"github.com/syncgate-sh/syncgate/internal/model"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// StatusReader reports the current rollout state of one workload. Implemented
// by the cluster reader.
type StatusReader interface {
	RolloutStatus(ctx context.Context, ref model.WorkloadRef) (model.RolloutOutcome, error)
}

// Tracker polls each workload's rollout status until it reaches a terminal
// state or the deadline passes. Workloads are polled concurrently since the
// checks are independent read-only queries; one workload failing does not
// stop the others.
type Tracker struct {
	reader   StatusReader
	interval time.Duration
}

func NewTracker(reader StatusReader, interval time.Duration) *Tracker {
	return &Tracker{reader: reader, interval: interval}
}

// Track waits for every workload to become ready, fail, or run out of budget,
// and returns one outcome per workload in the input order. Outcomes with
// neither Ready nor Failed set mean the deadline passed mid-rollout.
func (t *Tracker) Track(ctx context.Context, refs []model.WorkloadRef, deadline time.Time) []model.RolloutOutcome {
	logger := log.FromContext(ctx).WithName("rollout-tracker")

	logger.Info("Tracking rollouts",
		"workloads", len(refs),
		"deadline", deadline.Format(time.RFC3339),
	)

	outcomes := make([]model.RolloutOutcome, len(refs))
	var wg sync.WaitGroup

	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref model.WorkloadRef) {
			defer wg.Done()
			outcomes[i] = t.trackOne(ctx, ref, deadline)
		}(i, ref)
	}

	wg.Wait()
	return outcomes
}

// trackOne polls a single workload. Ready and Failed are terminal: once
// observed, polling stops and the outcome never regresses.
func (t *Tracker) trackOne(ctx context.Context, ref model.WorkloadRef, deadline time.Time) model.RolloutOutcome {
	logger := log.FromContext(ctx).WithName("rollout-tracker")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	last := model.RolloutOutcome{Ref: ref, Reason: "rollout status never observed"}

	for {
		if time.Now().After(deadline) {
			logger.Info("Rollout tracking timed out", "workload", ref, "lastReason", last.Reason)
			return timeoutOutcome(ref, last)
		}

		outcome, err := t.reader.RolloutStatus(ctx, ref)
		if err != nil {
			// Transient read error: keep the previous observation and retry.
			logger.Error(err, "Failed to read rollout status, will retry", "workload", ref)
		} else {
			last = outcome
			if outcome.Ready {
				logger.Info("Workload rollout complete", "workload", ref)
				return outcome
			}
			if outcome.Failed {
				logger.Info("Workload rollout failed", "workload", ref, "reason", outcome.Reason)
				return outcome
			}
		}

		select {
		case <-ctx.Done():
			return timeoutOutcome(ref, last)
		case <-ticker.C:
		}
	}
}

func timeoutOutcome(ref model.WorkloadRef, last model.RolloutOutcome) model.RolloutOutcome {
	reason := "timed out waiting for rollout"
	if last.Reason != "" {
		reason += ": " + last.Reason
	}
	return model.RolloutOutcome{Ref: ref, Reason: reason}
}
