package publish

import (
	"context"

	"github.com/syncgate-sh/syncgate/internal/model"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// ReportPublisher delivers the final report to one destination.
type ReportPublisher interface {
	Publish(ctx context.Context, report model.FinalReport) error
}

// Fanout publishes the report to every publisher, logging failures instead of
// aborting: a broken destination must not change the gate's verdict.
func Fanout(ctx context.Context, publishers []ReportPublisher, report model.FinalReport) {
	logger := log.FromContext(ctx)

	for _, publisher := range publishers {
		if err := publisher.Publish(ctx, report); err != nil {
			logger.Error(err, "failed to publish report",
				"status", report.Status,
				"checkID", report.CheckID,
			)
		}
	}
}
