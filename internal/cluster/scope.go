package cluster

import (
	"context"

	"github.com/syncgate-sh/syncgate/internal/model"
	"k8s.io/apimachinery/pkg/labels"
)

// ScopedLister binds a Reader to one run's namespace, selector, and workload
// kinds, and applies the optional keep filter to every listing.
type ScopedLister struct {
	reader    *Reader
	kinds     []model.WorkloadKind
	namespace string
	selector  labels.Selector
	keep      func(model.WorkloadSnapshot) bool
}

// Scoped returns a lister for the given scope. keep may be nil.
func (r *Reader) Scoped(kinds []model.WorkloadKind, namespace string, selector labels.Selector, keep func(model.WorkloadSnapshot) bool) *ScopedLister {
	return &ScopedLister{
		reader:    r,
		kinds:     kinds,
		namespace: namespace,
		selector:  selector,
		keep:      keep,
	}
}

// Snapshots lists the scope's workloads and returns their snapshots.
func (l *ScopedLister) Snapshots(ctx context.Context) ([]model.WorkloadSnapshot, error) {
	snapshots, err := l.reader.ListSnapshots(ctx, l.kinds, l.namespace, l.selector)
	if err != nil {
		return nil, err
	}
	if l.keep == nil {
		return snapshots, nil
	}
	kept := make([]model.WorkloadSnapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if l.keep(snap) {
			kept = append(kept, snap)
		}
	}
	return kept, nil
}
