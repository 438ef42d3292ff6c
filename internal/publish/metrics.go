package publish

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/syncgate-sh/syncgate/internal/model"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

const metricsJobName = "syncgate"

// PushgatewayPublisher pushes gate result metrics to a Prometheus
// Pushgateway. A one-shot CI job cannot be scraped, so push is the only way
// to land its metrics in Prometheus.
type PushgatewayPublisher struct {
	url       string
	namespace string
	app       string
}

func NewPushgatewayPublisher(url, namespace, app string) *PushgatewayPublisher {
	return &PushgatewayPublisher{url: url, namespace: namespace, app: app}
}

func (p *PushgatewayPublisher) Publish(ctx context.Context, report model.FinalReport) error {
	logger := log.FromContext(ctx)

	resultGauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "syncgate_check_result",
		Help: "Terminal status of the last gate run (1 for the active status label)",
	}, []string{"status"})

	foundGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "syncgate_workloads_found",
		Help: "Workloads matched by the selector in the last gate run",
	})

	readyGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "syncgate_workloads_ready",
		Help: "Workloads that finished rolling out in the last gate run",
	})

	durationGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "syncgate_check_duration_seconds",
		Help: "Wall-clock duration of the last gate run",
	})

	resultGauge.WithLabelValues(string(report.Status)).Set(1)
	foundGauge.Set(float64(report.WorkloadsFound))
	readyGauge.Set(float64(report.WorkloadsReady))
	durationGauge.Set(report.Elapsed.Seconds())

	pusher := push.New(p.url, metricsJobName).
		Collector(resultGauge).
		Collector(foundGauge).
		Collector(readyGauge).
		Collector(durationGauge).
		Grouping("namespace", p.namespace)
	if p.app != "" {
		pusher = pusher.Grouping("app", p.app)
	}

	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", p.url, err)
	}

	logger.Info("Metrics pushed", "pushgateway", p.url, "status", report.Status)
	return nil
}
