package cluster

import (
	"testing"

	v1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func int32Ptr(v int32) *int32 { return &v }

func TestDeploymentAdapterRolloutComplete(t *testing.T) {
	base := func() *v1.Deployment {
		return &v1.Deployment{
			ObjectMeta: metav1.ObjectMeta{
				Name:       "api",
				Namespace:  "default",
				Generation: 2,
			},
			Status: v1.DeploymentStatus{
				ObservedGeneration: 2,
				Replicas:           3,
				UpdatedReplicas:    3,
				ReadyReplicas:      3,
				AvailableReplicas:  3,
			},
		}
	}

	tests := []struct {
		name     string
		modify   func(d *v1.Deployment)
		expected bool
	}{
		{
			name:     "fully rolled out",
			modify:   func(d *v1.Deployment) {},
			expected: true,
		},
		{
			name:     "generation not yet observed",
			modify:   func(d *v1.Deployment) { d.Status.ObservedGeneration = 1 },
			expected: false,
		},
		{
			name:     "replicas not updated",
			modify:   func(d *v1.Deployment) { d.Status.UpdatedReplicas = 2 },
			expected: false,
		},
		{
			name:     "replicas not ready",
			modify:   func(d *v1.Deployment) { d.Status.ReadyReplicas = 2 },
			expected: false,
		},
		{
			name:     "replicas not available",
			modify:   func(d *v1.Deployment) { d.Status.AvailableReplicas = 2 },
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deployment := base()
			tt.modify(deployment)
			adapter := &DeploymentAdapter{Deployment: deployment}
			if got := adapter.RolloutComplete(); got != tt.expected {
				t.Errorf("RolloutComplete() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestDeploymentAdapterHasFailed(t *testing.T) {
	tests := []struct {
		name       string
		conditions []v1.DeploymentCondition
		expected   bool
	}{
		{
			name: "progressing",
			conditions: []v1.DeploymentCondition{
				{Type: v1.DeploymentProgressing, Status: corev1.ConditionTrue, Reason: "NewReplicaSetAvailable"},
			},
			expected: false,
		},
		{
			name: "progress deadline exceeded",
			conditions: []v1.DeploymentCondition{
				{Type: v1.DeploymentProgressing, Status: corev1.ConditionFalse, Reason: "ProgressDeadlineExceeded", Message: "ReplicaSet has timed out progressing"},
			},
			expected: true,
		},
		{
			name: "replica failure",
			conditions: []v1.DeploymentCondition{
				{Type: v1.DeploymentReplicaFailure, Status: corev1.ConditionTrue, Reason: "FailedCreate"},
			},
			expected: true,
		},
		{
			name:       "no conditions",
			conditions: nil,
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := &DeploymentAdapter{Deployment: &v1.Deployment{
				Status: v1.DeploymentStatus{Conditions: tt.conditions},
			}}
			failed, reason := adapter.HasFailed()
			if failed != tt.expected {
				t.Errorf("HasFailed() = %v, expected %v", failed, tt.expected)
			}
			if failed && reason == "" {
				t.Error("a failure must carry a reason")
			}
		})
	}
}

func TestStatefulSetAdapterRolloutComplete(t *testing.T) {
	base := func() *v1.StatefulSet {
		return &v1.StatefulSet{
			ObjectMeta: metav1.ObjectMeta{Generation: 5},
			Spec:       v1.StatefulSetSpec{Replicas: int32Ptr(3)},
			Status: v1.StatefulSetStatus{
				ObservedGeneration: 5,
				UpdatedReplicas:    3,
				ReadyReplicas:      3,
			},
		}
	}

	tests := []struct {
		name     string
		modify   func(s *v1.StatefulSet)
		expected bool
	}{
		{
			name:     "fully rolled out",
			modify:   func(s *v1.StatefulSet) {},
			expected: true,
		},
		{
			name:     "stale observed generation",
			modify:   func(s *v1.StatefulSet) { s.Status.ObservedGeneration = 4 },
			expected: false,
		},
		{
			name:     "not all replicas updated",
			modify:   func(s *v1.StatefulSet) { s.Status.UpdatedReplicas = 1 },
			expected: false,
		},
		{
			name:     "nil replicas treated as complete",
			modify:   func(s *v1.StatefulSet) { s.Spec.Replicas = nil },
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sts := base()
			tt.modify(sts)
			adapter := &StatefulSetAdapter{StatefulSet: sts}
			if got := adapter.RolloutComplete(); got != tt.expected {
				t.Errorf("RolloutComplete() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestDaemonSetAdapterRolloutComplete(t *testing.T) {
	base := func() *v1.DaemonSet {
		return &v1.DaemonSet{
			ObjectMeta: metav1.ObjectMeta{Generation: 1},
			Status: v1.DaemonSetStatus{
				ObservedGeneration:     1,
				DesiredNumberScheduled: 4,
				UpdatedNumberScheduled: 4,
				NumberReady:            4,
			},
		}
	}

	tests := []struct {
		name     string
		modify   func(d *v1.DaemonSet)
		expected bool
	}{
		{
			name:     "fully rolled out",
			modify:   func(d *v1.DaemonSet) {},
			expected: true,
		},
		{
			name:     "pods not updated on every node",
			modify:   func(d *v1.DaemonSet) { d.Status.UpdatedNumberScheduled = 3 },
			expected: false,
		},
		{
			name:     "pods not ready on every node",
			modify:   func(d *v1.DaemonSet) { d.Status.NumberReady = 3 },
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := base()
			tt.modify(ds)
			adapter := &DaemonSetAdapter{DaemonSet: ds}
			if got := adapter.RolloutComplete(); got != tt.expected {
				t.Errorf("RolloutComplete() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestPodFailureReason(t *testing.T) {
	tests := []struct {
		name     string
		pod      *corev1.Pod
		expected bool
	}{
		{
			name: "image pull backoff",
			pod: &corev1.Pod{
				ObjectMeta: metav1.ObjectMeta{Name: "api-abc"},
				Status: corev1.PodStatus{
					ContainerStatuses: []corev1.ContainerStatus{{
						Name: "app",
						State: corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{
							Reason:  "ImagePullBackOff",
							Message: "Back-off pulling image",
						}},
					}},
				},
			},
			expected: true,
		},
		{
			name: "init container crash loop",
			pod: &corev1.Pod{
				ObjectMeta: metav1.ObjectMeta{Name: "api-abc"},
				Status: corev1.PodStatus{
					InitContainerStatuses: []corev1.ContainerStatus{{
						Name:  "migrate",
						State: corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{Reason: "CrashLoopBackOff"}},
					}},
				},
			},
			expected: true,
		},
		{
			name: "benign waiting reason",
			pod: &corev1.Pod{
				ObjectMeta: metav1.ObjectMeta{Name: "api-abc"},
				Status: corev1.PodStatus{
					ContainerStatuses: []corev1.ContainerStatus{{
						Name:  "app",
						State: corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{Reason: "ContainerCreating"}},
					}},
				},
			},
			expected: false,
		},
		{
			name: "running",
			pod: &corev1.Pod{
				ObjectMeta: metav1.ObjectMeta{Name: "api-abc"},
				Status: corev1.PodStatus{
					ContainerStatuses: []corev1.ContainerStatus{{
						Name:  "app",
						State: corev1.ContainerState{Running: &corev1.ContainerStateRunning{}},
					}},
				},
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, found := podFailureReason(tt.pod)
			if found != tt.expected {
				t.Errorf("podFailureReason() found = %v, expected %v (reason %q)", found, tt.expected, reason)
			}
			if found && reason == "" {
				t.Error("a detected failure must carry a reason")
			}
		})
	}
}
