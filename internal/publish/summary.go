package publish

import (
	"context"
	"fmt"
	"io"

	"github.com/syncgate-sh/syncgate/internal/model"
)

// SummaryWriter prints a human-readable summary of the report, intended for
// the CI job log.
type SummaryWriter struct {
	out io.Writer
}

func NewSummaryWriter(out io.Writer) *SummaryWriter {
	return &SummaryWriter{out: out}
}

func (w *SummaryWriter) Publish(_ context.Context, report model.FinalReport) error {
	fmt.Fprintf(w.out, "status:                %s\n", report.Status)
	fmt.Fprintf(w.out, "message:               %s\n", report.Message)
	fmt.Fprintf(w.out, "workloads found/ready: %d/%d\n", report.WorkloadsFound, report.WorkloadsReady)
	fmt.Fprintf(w.out, "sync detection method: %s\n", report.DetectionMethod)
	fmt.Fprintf(w.out, "deployment id matched: %s\n", report.DeploymentIDMatched)
	fmt.Fprintf(w.out, "version matched:       %s\n", report.VersionMatched)
	if report.ClusterID != "" {
		fmt.Fprintf(w.out, "cluster:               %s\n", report.ClusterID)
	}
	for _, outcome := range report.FailedWorkloads {
		fmt.Fprintf(w.out, "failed:                %s (%s)\n", outcome.Ref, outcome.Reason)
	}
	return nil
}
