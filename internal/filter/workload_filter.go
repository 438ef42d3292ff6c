package filter

import (
	"path/filepath"
	"strings"

	"github.com/syncgate-sh/syncgate/internal/model"
)

// Config holds the label-based narrowing applied to the workload set after
// the selector list.
type Config struct {
	// RequireLabels lists label keys that must be present (e.g., "app.kubernetes.io/managed-by")
	RequireLabels []string
	// ExcludeLabels lists label key=value pairs that cause exclusion
	// (e.g., "syncgate.sh/ignore=true"); values support * globs.
	ExcludeLabels []string
}

// WorkloadFilter narrows the candidate workload set by labels.
type WorkloadFilter struct {
	config Config
}

func NewWorkloadFilter(config Config) *WorkloadFilter {
	return &WorkloadFilter{config: config}
}

// Empty reports whether the filter passes everything through.
func (f *WorkloadFilter) Empty() bool {
	return len(f.config.RequireLabels) == 0 && len(f.config.ExcludeLabels) == 0
}

// Keep returns true if the workload should be tracked.
func (f *WorkloadFilter) Keep(snapshot model.WorkloadSnapshot) bool {
	for _, requiredKey := range f.config.RequireLabels {
		if _, exists := snapshot.Labels[requiredKey]; !exists {
			return false
		}
	}

	for _, exclusion := range f.config.ExcludeLabels {
		key, value := parseKeyValue(exclusion)
		if labelValue, exists := snapshot.Labels[key]; exists {
			if value == "" || matchGlob(value, labelValue) {
				return false
			}
		}
	}

	return true
}

// Apply returns the snapshots that pass the filter, preserving order.
func (f *WorkloadFilter) Apply(snapshots []model.WorkloadSnapshot) []model.WorkloadSnapshot {
	if f.Empty() {
		return snapshots
	}
	kept := make([]model.WorkloadSnapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if f.Keep(snap) {
			kept = append(kept, snap)
		}
	}
	return kept
}

// matchGlob performs a simple glob match (supports * wildcard)
func matchGlob(pattern, s string) bool {
	matched, err := filepath.Match(pattern, s)
	if err != nil {
		return false
	}
	return matched
}

// parseKeyValue parses a "key=value" or "key" string
func parseKeyValue(s string) (key, value string) {
	parts := strings.SplitN(s, "=", 2)
	key = parts[0]
	if len(parts) > 1 {
		value = parts[1]
	}
	return
}
