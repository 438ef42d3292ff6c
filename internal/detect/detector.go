package detect

import (
	"context"
	"time"

	"github.com/syncgate-sh/syncgate/internal/model"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Lister re-reads the tracked workload set from the cluster. Implemented by
// the cluster reader bound to the run's namespace, selector, and kinds.
type Lister interface {
	Snapshots(ctx context.Context) ([]model.WorkloadSnapshot, error)
}

// Detector is the sync detection state machine: it polls workload snapshots
// until the active strategy's predicate matches or the deadline passes. One
// instance per run; all state is owned by the single polling goroutine, so no
// synchronization is needed.
type Detector struct {
	lister   Lister
	cfg      Config
	strategy Strategy
	baseline map[model.WorkloadRef]model.WorkloadSnapshot
}

// NewDetector selects the strategy from the baseline snapshots and returns a
// detector ready to run.
func NewDetector(lister Lister, cfg Config, baseline []model.WorkloadSnapshot) *Detector {
	byRef := make(map[model.WorkloadRef]model.WorkloadSnapshot, len(baseline))
	for _, snap := range baseline {
		byRef[snap.Ref] = snap
	}

	return &Detector{
		lister:   lister,
		cfg:      cfg,
		strategy: SelectStrategy(cfg, baseline),
		baseline: byRef,
	}
}

// Strategy returns the strategy selected at construction.
func (d *Detector) Strategy() Strategy {
	return d.strategy
}

// Run polls until the strategy matches or the deadline passes. All errors
// from the lister are recovered locally: the next tick is the retry. The
// returned result is always terminal; Run never returns an error.
func (d *Detector) Run(ctx context.Context, deadline time.Time) model.DetectionResult {
	logger := log.FromContext(ctx).WithName("sync-detector")

	start := time.Now()
	fallbackAt := start.Add(d.cfg.FallbackTimeout)

	logger.Info("Starting sync detection",
		"strategy", d.strategy,
		"workloads", len(d.baseline),
		"deadline", deadline.Format(time.RFC3339),
	)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	var lastObserved []model.WorkloadSnapshot

	// Evaluate immediately, then on every tick. The deadline is checked at
	// the top of every iteration so budget drift cannot accumulate.
	for {
		if time.Now().After(deadline) {
			logger.Info("Sync detection timed out",
				"strategy", d.strategy,
				"elapsed", time.Since(start),
				"lastObserved", model.DescribeSnapshots(lastObserved),
			)
			return model.DetectionResult{
				Matched:      false,
				Method:       model.MethodTimeout,
				Elapsed:      time.Since(start),
				LastObserved: lastObserved,
			}
		}

		current, err := d.lister.Snapshots(ctx)
		if err != nil {
			// Transient read error: log and retry on the next tick.
			logger.Error(err, "Failed to read workload snapshots, will retry")
		} else {
			lastObserved = current

			if d.strategy.Matched(d.cfg, d.baseline, current) {
				method := d.strategy.Method()
				logger.Info("Sync detected",
					"strategy", d.strategy,
					"method", method,
					"elapsed", time.Since(start),
				)
				return model.DetectionResult{
					Matched:      true,
					Method:       method,
					Elapsed:      time.Since(start),
					LastObserved: current,
				}
			}

			if d.strategy.UsesFallbackWindow() && time.Now().After(fallbackAt) && allRolloutsComplete(current) {
				logger.Info("No change observed within fallback window and all rollouts are complete, assuming sync happened before this run",
					"strategy", d.strategy,
					"fallbackTimeout", d.cfg.FallbackTimeout,
				)
				return model.DetectionResult{
					Matched:      true,
					Method:       model.MethodAlreadySynced,
					Elapsed:      time.Since(start),
					LastObserved: current,
				}
			}
		}

		select {
		case <-ctx.Done():
			logger.Info("Sync detection cancelled", "elapsed", time.Since(start))
			return model.DetectionResult{
				Matched:      false,
				Method:       model.MethodTimeout,
				Elapsed:      time.Since(start),
				LastObserved: lastObserved,
			}
		case <-ticker.C:
		}
	}
}

func allRolloutsComplete(snapshots []model.WorkloadSnapshot) bool {
	if len(snapshots) == 0 {
		return false
	}
	for _, snap := range snapshots {
		if !snap.RolloutComplete {
			return false
		}
	}
	return true
}
