package progress

import (
	"context"
	"sync"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Reporter periodically logs that the gate is still waiting, so long CI runs
// show liveness. The detector and tracker update the phase as the run moves
// along.
type Reporter struct {
	interval time.Duration
	started  time.Time
	stopCh   chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	phase string
}

func NewReporter(interval time.Duration) *Reporter {
	return &Reporter{
		interval: interval,
		started:  time.Now(),
		stopCh:   make(chan struct{}),
		phase:    "starting",
	}
}

// SetPhase records the phase reported on the next tick.
func (r *Reporter) SetPhase(phase string) {
	r.mu.Lock()
	r.phase = phase
	r.mu.Unlock()
}

// Start runs the reporting loop until Stop is called or the context ends.
func (r *Reporter) Start(ctx context.Context) {
	logger := log.FromContext(ctx).WithName("progress")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.mu.Lock()
			phase := r.phase
			r.mu.Unlock()
			logger.Info("Still waiting",
				"phase", phase,
				"elapsed", time.Since(r.started).Round(time.Second),
			)
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the reporting loop.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
}
