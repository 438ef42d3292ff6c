package cluster

import (
	"context"
	"fmt"

	"github.com/syncgate-sh/syncgate/internal/model"
	v1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// MarkerKeys names the annotation and label the gate reads as sync markers.
type MarkerKeys struct {
	// DeploymentIDAnnotation carries the CI run identifier stamped on the
	// manifest by the delivery pipeline.
	DeploymentIDAnnotation string
	// VersionLabel carries the application version string.
	VersionLabel string
}

// DefaultMarkerKeys returns the conventional marker keys.
func DefaultMarkerKeys() MarkerKeys {
	return MarkerKeys{
		DeploymentIDAnnotation: "syncgate.sh/deployment-id",
		VersionLabel:           "app.kubernetes.io/version",
	}
}

// Reader performs read-only queries against the cluster and converts workloads
// into immutable snapshots. It assumes eventual consistency and makes no
// caching guarantees.
type Reader struct {
	client  client.Reader
	markers MarkerKeys
}

func NewReader(c client.Reader, markers MarkerKeys) *Reader {
	return &Reader{client: c, markers: markers}
}

// ListSnapshots lists the workloads of the given kinds matching the selector
// in the namespace and captures a snapshot of each. Zero matches is not an
// error.
func (r *Reader) ListSnapshots(ctx context.Context, kinds []model.WorkloadKind, namespace string, selector labels.Selector) ([]model.WorkloadSnapshot, error) {
	var snapshots []model.WorkloadSnapshot

	opts := []client.ListOption{
		client.InNamespace(namespace),
		client.MatchingLabelsSelector{Selector: selector},
	}

	for _, kind := range kinds {
		adapters, err := r.listKind(ctx, kind, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list %ss: %w", kind, err)
		}
		for _, adapter := range adapters {
			snapshots = append(snapshots, r.snapshot(adapter))
		}
	}

	return snapshots, nil
}

// RolloutStatus fetches the workload and reports its current rollout state:
// ready, failed with a reason, or still in progress. Failures without an
// explicit workload condition are diagnosed from the workload's pods.
func (r *Reader) RolloutStatus(ctx context.Context, ref model.WorkloadRef) (model.RolloutOutcome, error) {
	adapter, err := r.getWorkload(ctx, ref)
	if err != nil {
		return model.RolloutOutcome{}, err
	}

	if failed, reason := adapter.HasFailed(); failed {
		return model.RolloutOutcome{Ref: ref, Failed: true, Reason: reason}, nil
	}

	if adapter.RolloutComplete() {
		return model.RolloutOutcome{Ref: ref, Ready: true}, nil
	}

	// In progress. Check the pods for terminal container problems the
	// workload status does not surface (image pull errors, crash loops).
	if reason, found := r.diagnosePods(ctx, adapter); found {
		return model.RolloutOutcome{Ref: ref, Failed: true, Reason: reason}, nil
	}

	return model.RolloutOutcome{Ref: ref, Reason: "rollout in progress"}, nil
}

func (r *Reader) listKind(ctx context.Context, kind model.WorkloadKind, opts []client.ListOption) ([]workloadAdapter, error) {
	var adapters []workloadAdapter

	switch kind {
	case model.WorkloadKindDeployment:
		list := &v1.DeploymentList{}
		if err := r.client.List(ctx, list, opts...); err != nil {
			return nil, err
		}
		for i := range list.Items {
			adapters = append(adapters, &DeploymentAdapter{Deployment: &list.Items[i]})
		}
	case model.WorkloadKindStatefulSet:
		list := &v1.StatefulSetList{}
		if err := r.client.List(ctx, list, opts...); err != nil {
			return nil, err
		}
		for i := range list.Items {
			adapters = append(adapters, &StatefulSetAdapter{StatefulSet: &list.Items[i]})
		}
	case model.WorkloadKindDaemonSet:
		list := &v1.DaemonSetList{}
		if err := r.client.List(ctx, list, opts...); err != nil {
			return nil, err
		}
		for i := range list.Items {
			adapters = append(adapters, &DaemonSetAdapter{DaemonSet: &list.Items[i]})
		}
	default:
		return nil, fmt.Errorf("unsupported workload kind %q", kind)
	}

	return adapters, nil
}

func (r *Reader) getWorkload(ctx context.Context, ref model.WorkloadRef) (workloadAdapter, error) {
	key := types.NamespacedName{Namespace: ref.Namespace, Name: ref.Name}

	switch ref.Kind {
	case model.WorkloadKindDeployment:
		obj := &v1.Deployment{}
		if err := r.client.Get(ctx, key, obj); err != nil {
			return nil, err
		}
		return &DeploymentAdapter{Deployment: obj}, nil
	case model.WorkloadKindStatefulSet:
		obj := &v1.StatefulSet{}
		if err := r.client.Get(ctx, key, obj); err != nil {
			return nil, err
		}
		return &StatefulSetAdapter{StatefulSet: obj}, nil
	case model.WorkloadKindDaemonSet:
		obj := &v1.DaemonSet{}
		if err := r.client.Get(ctx, key, obj); err != nil {
			return nil, err
		}
		return &DaemonSetAdapter{DaemonSet: obj}, nil
	default:
		return nil, fmt.Errorf("unsupported workload kind %q", ref.Kind)
	}
}

func (r *Reader) snapshot(adapter workloadAdapter) model.WorkloadSnapshot {
	workloadLabels := make(map[string]string, len(adapter.GetLabels()))
	for k, v := range adapter.GetLabels() {
		workloadLabels[k] = v
	}

	return model.WorkloadSnapshot{
		Ref:                adapter.Ref(),
		DeploymentID:       adapter.GetAnnotations()[r.markers.DeploymentIDAnnotation],
		Version:            adapter.GetLabels()[r.markers.VersionLabel],
		Generation:         adapter.GetGeneration(),
		ObservedGeneration: adapter.GetObservedGeneration(),
		RolloutComplete:    adapter.RolloutComplete(),
		Labels:             workloadLabels,
	}
}
