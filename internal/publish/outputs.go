package publish

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/syncgate-sh/syncgate/internal/model"
)

// OutputsWriter appends the report fields to a key=value outputs file, the
// format GitHub Actions and compatible CI systems read step outputs from.
type OutputsWriter struct {
	path string
}

func NewOutputsWriter(path string) *OutputsWriter {
	return &OutputsWriter{path: path}
}

func (w *OutputsWriter) Publish(_ context.Context, report model.FinalReport) error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open outputs file %s: %w", w.path, err)
	}
	defer f.Close()

	failed := make([]string, 0, len(report.FailedWorkloads))
	for _, outcome := range report.FailedWorkloads {
		failed = append(failed, outcome.Ref.String())
	}

	lines := []string{
		fmt.Sprintf("workloads_found=%d", report.WorkloadsFound),
		fmt.Sprintf("workloads_ready=%d", report.WorkloadsReady),
		fmt.Sprintf("version_matched=%s", report.VersionMatched),
		fmt.Sprintf("deployment_id_matched=%s", report.DeploymentIDMatched),
		fmt.Sprintf("sync_detection_method=%s", report.DetectionMethod),
		fmt.Sprintf("status=%s", report.Status),
		fmt.Sprintf("message=%s", sanitizeOutputValue(report.Message)),
		fmt.Sprintf("failed_workloads=%s", strings.Join(failed, ",")),
	}

	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		return fmt.Errorf("failed to write outputs file %s: %w", w.path, err)
	}

	return nil
}

// sanitizeOutputValue keeps a value on one line; the key=value format has no
// escape syntax for newlines.
func sanitizeOutputValue(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
