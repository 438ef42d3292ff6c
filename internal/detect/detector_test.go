package detect

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/syncgate-sh/syncgate/internal/model"
)

// scriptedLister replays a sequence of snapshot sets, one per poll, and keeps
// returning the last one once the script is exhausted.
type scriptedLister struct {
	script [][]model.WorkloadSnapshot
	errs   []error
	calls  int
}

func (l *scriptedLister) Snapshots(_ context.Context) ([]model.WorkloadSnapshot, error) {
	i := l.calls
	l.calls++
	if i < len(l.errs) && l.errs[i] != nil {
		return nil, l.errs[i]
	}
	if i >= len(l.script) {
		i = len(l.script) - 1
	}
	return l.script[i], nil
}

var _ = Describe("Detector", func() {
	var cfg Config

	BeforeEach(func() {
		cfg = Config{
			OverallTimeout:  500 * time.Millisecond,
			FallbackTimeout: 100 * time.Millisecond,
			PollInterval:    10 * time.Millisecond,
		}
	})

	run := func(lister Lister, cfg Config, baseline []model.WorkloadSnapshot) (model.DetectionResult, Strategy) {
		detector := NewDetector(lister, cfg, baseline)
		deadline := time.Now().Add(cfg.OverallTimeout)
		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		defer cancel()
		return detector.Run(ctx, deadline), detector.Strategy()
	}

	It("matches once every workload carries the expected deployment id", func() {
		cfg.ExpectedDeploymentID = "42"
		baseline := []model.WorkloadSnapshot{snapshot("api", "41", "v1", 3)}
		lister := &scriptedLister{script: [][]model.WorkloadSnapshot{
			{snapshot("api", "41", "v1", 3)},
			{snapshot("api", "41", "v1", 3)},
			{snapshot("api", "42", "v1", 4)},
		}}

		result, strategy := run(lister, cfg, baseline)

		Expect(strategy).To(Equal(StrategyExactDeploymentID))
		Expect(result.Matched).To(BeTrue())
		Expect(result.Method).To(Equal(model.MethodExpectedMatch))
		Expect(result.LastObserved).To(HaveLen(1))
		Expect(result.LastObserved[0].DeploymentID).To(Equal("42"))
	})

	It("keeps polling while only part of the workload set has updated", func() {
		cfg.ExpectedDeploymentID = "42"
		baseline := []model.WorkloadSnapshot{
			snapshot("api", "41", "v1", 3),
			snapshot("worker", "41", "v1", 7),
		}
		lister := &scriptedLister{script: [][]model.WorkloadSnapshot{
			{snapshot("api", "42", "v1", 4), snapshot("worker", "41", "v1", 7)},
			{snapshot("api", "42", "v1", 4), snapshot("worker", "41", "v1", 7)},
			{snapshot("api", "42", "v1", 4), snapshot("worker", "42", "v1", 8)},
		}}

		result, _ := run(lister, cfg, baseline)

		Expect(result.Matched).To(BeTrue())
		Expect(lister.calls).To(BeNumerically(">=", 3))
	})

	It("times out when the expected version never appears", func() {
		cfg.ExpectedVersion = "v3"
		cfg.OverallTimeout = 80 * time.Millisecond
		cfg.FallbackTimeout = 50 * time.Millisecond
		baseline := []model.WorkloadSnapshot{snapshot("api", "41", "v1", 3)}
		lister := &scriptedLister{script: [][]model.WorkloadSnapshot{
			{snapshot("api", "41", "v1", 3)},
		}}

		result, strategy := run(lister, cfg, baseline)

		Expect(strategy).To(Equal(StrategyExactVersion))
		Expect(result.Matched).To(BeFalse())
		Expect(result.Method).To(Equal(model.MethodTimeout))
		Expect(result.LastObserved).NotTo(BeEmpty())
	})

	It("assumes already synced when the fallback window closes on completed rollouts", func() {
		cfg.ExpectedVersion = "v2"
		cfg.FallbackTimeout = 50 * time.Millisecond
		complete := snapshot("api", "41", "v2", 3)
		complete.ObservedGeneration = 3
		complete.RolloutComplete = true
		baseline := []model.WorkloadSnapshot{complete}
		lister := &scriptedLister{script: [][]model.WorkloadSnapshot{{complete}}}

		result, strategy := run(lister, cfg, baseline)

		Expect(strategy).To(Equal(StrategyChangeDetection))
		Expect(result.Matched).To(BeTrue())
		Expect(result.Method).To(Equal(model.MethodAlreadySynced))
	})

	It("does not assume already synced while a rollout is still in progress", func() {
		cfg.FallbackTimeout = 30 * time.Millisecond
		cfg.OverallTimeout = 100 * time.Millisecond
		incomplete := snapshot("api", "41", "v1", 3)
		baseline := []model.WorkloadSnapshot{incomplete}
		lister := &scriptedLister{script: [][]model.WorkloadSnapshot{{incomplete}}}

		result, strategy := run(lister, cfg, baseline)

		Expect(strategy).To(Equal(StrategyFallback))
		Expect(result.Matched).To(BeFalse())
		Expect(result.Method).To(Equal(model.MethodTimeout))
	})

	It("recovers from transient read errors on the next tick", func() {
		cfg.ExpectedDeploymentID = "42"
		baseline := []model.WorkloadSnapshot{snapshot("api", "41", "v1", 3)}
		lister := &scriptedLister{
			errs: []error{errors.New("connection refused"), errors.New("connection refused")},
			script: [][]model.WorkloadSnapshot{
				nil,
				nil,
				{snapshot("api", "42", "v1", 4)},
			},
		}

		result, _ := run(lister, cfg, baseline)

		Expect(result.Matched).To(BeTrue())
	})

	It("stops promptly on cancellation and reports a timeout", func() {
		cfg.OverallTimeout = 10 * time.Second
		cfg.FallbackTimeout = 5 * time.Second
		baseline := []model.WorkloadSnapshot{snapshot("api", "41", "v1", 3)}
		lister := &scriptedLister{script: [][]model.WorkloadSnapshot{
			{snapshot("api", "41", "v1", 3)},
		}}

		detector := NewDetector(lister, cfg, baseline)
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(30 * time.Millisecond)
			cancel()
		}()

		done := make(chan model.DetectionResult, 1)
		go func() {
			done <- detector.Run(ctx, time.Now().Add(cfg.OverallTimeout))
		}()

		var result model.DetectionResult
		Eventually(done, "1s").Should(Receive(&result))
		Expect(result.Matched).To(BeFalse())
		Expect(result.Method).To(Equal(model.MethodTimeout))
	})
})
