package publish

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/syncgate-sh/syncgate/internal/model"
)

func sampleReport() model.FinalReport {
	return model.FinalReport{
		CheckID:             "check-1",
		WorkloadsFound:      2,
		WorkloadsReady:      1,
		VersionMatched:      model.MatchTrue,
		DeploymentIDMatched: model.MatchSkipped,
		DetectionMethod:     model.MethodExpectedMatch,
		Status:              model.StatusFailed,
		Message:             "rollout failed for 1 of 2 workloads",
		FailedWorkloads: []model.RolloutOutcome{{
			Ref:    model.WorkloadRef{Kind: model.WorkloadKindDeployment, Namespace: "default", Name: "worker"},
			Failed: true,
			Reason: "ImagePullBackOff",
		}},
	}
}

func TestOutputsWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outputs")

	writer := NewOutputsWriter(path)
	if err := writer.Publish(context.Background(), sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read outputs file: %v", err)
	}
	content := string(raw)

	expected := []string{
		"workloads_found=2",
		"workloads_ready=1",
		"version_matched=true",
		"deployment_id_matched=skipped",
		"sync_detection_method=expected_match",
		"status=Failed",
		"message=rollout failed for 1 of 2 workloads",
		"failed_workloads=deployment/default/worker",
	}
	for _, line := range expected {
		if !strings.Contains(content, line+"\n") {
			t.Errorf("expected line %q in outputs file, got:\n%s", line, content)
		}
	}
}

func TestOutputsWriterAppends(t *testing.T) {
	// GITHUB_OUTPUT is shared with other steps; existing content must survive.
	path := filepath.Join(t.TempDir(), "outputs")
	if err := os.WriteFile(path, []byte("previous_step=done\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	writer := NewOutputsWriter(path)
	if err := writer.Publish(context.Background(), sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(raw), "previous_step=done\n") {
		t.Errorf("existing outputs must be preserved, got:\n%s", raw)
	}
}

func TestSanitizeOutputValue(t *testing.T) {
	report := sampleReport()
	report.Message = "line one\nline two\r\nline three"

	path := filepath.Join(t.TempDir(), "outputs")
	writer := NewOutputsWriter(path)
	if err := writer.Publish(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, _ := os.ReadFile(path)
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.HasPrefix(line, "message=") && strings.Count(line, "line") != 3 {
			t.Errorf("multi-line message must be flattened onto one line, got %q", line)
		}
	}
}
