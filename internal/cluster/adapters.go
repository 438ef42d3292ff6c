package cluster

import (
	"fmt"

	"github.com/syncgate-sh/syncgate/internal/model"
	v1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
)

// workloadAdapter abstracts the fields the gate reads across Deployments,
// StatefulSets, and DaemonSets.
type workloadAdapter interface {
	Ref() model.WorkloadRef
	GetLabels() map[string]string
	GetAnnotations() map[string]string
	GetGeneration() int64
	GetObservedGeneration() int64

	// RolloutComplete reports whether the controller has observed the current
	// generation and all replicas are updated and ready.
	RolloutComplete() bool

	// HasFailed reports an explicit failure condition from Kubernetes, with a
	// reason when available.
	HasFailed() (bool, string)

	// PodSelector returns the selector for the workload's pods, used to
	// diagnose rollouts that are stuck without an explicit failure condition.
	PodSelector() (labels.Selector, error)
}

// DeploymentAdapter wraps a Deployment to implement workloadAdapter
type DeploymentAdapter struct {
	Deployment *v1.Deployment
}

func (d *DeploymentAdapter) Ref() model.WorkloadRef {
	return model.WorkloadRef{
		Kind:      model.WorkloadKindDeployment,
		Namespace: d.Deployment.Namespace,
		Name:      d.Deployment.Name,
	}
}

func (d *DeploymentAdapter) GetLabels() map[string]string {
	return d.Deployment.Labels
}

func (d *DeploymentAdapter) GetAnnotations() map[string]string {
	return d.Deployment.Annotations
}

func (d *DeploymentAdapter) GetGeneration() int64 {
	return d.Deployment.Generation
}

func (d *DeploymentAdapter) GetObservedGeneration() int64 {
	return d.Deployment.Status.ObservedGeneration
}

func (d *DeploymentAdapter) RolloutComplete() bool {
	status := d.Deployment.Status
	if status.ObservedGeneration < d.Deployment.Generation {
		return false
	}
	return status.UpdatedReplicas == status.Replicas &&
		status.ReadyReplicas == status.Replicas &&
		status.AvailableReplicas == status.Replicas
}

func (d *DeploymentAdapter) HasFailed() (bool, string) {
	for _, condition := range d.Deployment.Status.Conditions {
		switch condition.Type {
		case v1.DeploymentProgressing:
			if condition.Status == "False" || condition.Reason == "ProgressDeadlineExceeded" {
				return true, conditionReason(condition.Reason, condition.Message)
			}
		case v1.DeploymentReplicaFailure:
			if condition.Status == "True" {
				return true, conditionReason(condition.Reason, condition.Message)
			}
		}
	}
	return false, ""
}

func (d *DeploymentAdapter) PodSelector() (labels.Selector, error) {
	return metav1.LabelSelectorAsSelector(d.Deployment.Spec.Selector)
}

// StatefulSetAdapter wraps a StatefulSet to implement workloadAdapter
type StatefulSetAdapter struct {
	StatefulSet *v1.StatefulSet
}

func (s *StatefulSetAdapter) Ref() model.WorkloadRef {
	return model.WorkloadRef{
		Kind:      model.WorkloadKindStatefulSet,
		Namespace: s.StatefulSet.Namespace,
		Name:      s.StatefulSet.Name,
	}
}

func (s *StatefulSetAdapter) GetLabels() map[string]string {
	return s.StatefulSet.Labels
}

func (s *StatefulSetAdapter) GetAnnotations() map[string]string {
	return s.StatefulSet.Annotations
}

func (s *StatefulSetAdapter) GetGeneration() int64 {
	return s.StatefulSet.Generation
}

func (s *StatefulSetAdapter) GetObservedGeneration() int64 {
	return s.StatefulSet.Status.ObservedGeneration
}

func (s *StatefulSetAdapter) RolloutComplete() bool {
	if s.StatefulSet.Status.ObservedGeneration < s.StatefulSet.Generation {
		return false
	}
	if s.StatefulSet.Spec.Replicas == nil {
		return true
	}
	desired := *s.StatefulSet.Spec.Replicas
	return s.StatefulSet.Status.UpdatedReplicas == desired &&
		s.StatefulSet.Status.ReadyReplicas == desired
}

func (s *StatefulSetAdapter) HasFailed() (bool, string) {
	// StatefulSets don't have explicit failure conditions like Deployments.
	// Stuck rollouts are diagnosed through pod inspection instead.
	return false, ""
}

func (s *StatefulSetAdapter) PodSelector() (labels.Selector, error) {
	return metav1.LabelSelectorAsSelector(s.StatefulSet.Spec.Selector)
}

// DaemonSetAdapter wraps a DaemonSet to implement workloadAdapter
type DaemonSetAdapter struct {
	DaemonSet *v1.DaemonSet
}

func (d *DaemonSetAdapter) Ref() model.WorkloadRef {
	return model.WorkloadRef{
		Kind:      model.WorkloadKindDaemonSet,
		Namespace: d.DaemonSet.Namespace,
		Name:      d.DaemonSet.Name,
	}
}

func (d *DaemonSetAdapter) GetLabels() map[string]string {
	return d.DaemonSet.Labels
}

func (d *DaemonSetAdapter) GetAnnotations() map[string]string {
	return d.DaemonSet.Annotations
}

func (d *DaemonSetAdapter) GetGeneration() int64 {
	return d.DaemonSet.Generation
}

func (d *DaemonSetAdapter) GetObservedGeneration() int64 {
	return d.DaemonSet.Status.ObservedGeneration
}

func (d *DaemonSetAdapter) RolloutComplete() bool {
	status := d.DaemonSet.Status
	if status.ObservedGeneration < d.DaemonSet.Generation {
		return false
	}
	// DaemonSets use DesiredNumberScheduled instead of Replicas
	return status.UpdatedNumberScheduled == status.DesiredNumberScheduled &&
		status.NumberReady == status.DesiredNumberScheduled
}

func (d *DaemonSetAdapter) HasFailed() (bool, string) {
	// DaemonSets don't have explicit failure conditions.
	// Stuck rollouts are diagnosed through pod inspection instead.
	return false, ""
}

func (d *DaemonSetAdapter) PodSelector() (labels.Selector, error) {
	return metav1.LabelSelectorAsSelector(d.DaemonSet.Spec.Selector)
}

func conditionReason(reason, message string) string {
	if message == "" {
		return reason
	}
	if reason == "" {
		return message
	}
	return fmt.Sprintf("%s: %s", reason, message)
}
