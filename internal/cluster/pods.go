package cluster

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// terminalWaitingReasons are container waiting states that a rollout will not
// recover from without a new manifest.
var terminalWaitingReasons = map[string]bool{
	"ImagePullBackOff":           true,
	"ErrImagePull":               true,
	"InvalidImageName":           true,
	"CrashLoopBackOff":           true,
	"CreateContainerConfigError": true,
	"CreateContainerError":       true,
	"RunContainerError":          true,
}

// diagnosePods scans the workload's pods for terminal container problems.
// Errors here are swallowed: diagnosis is best-effort and the rollout poll
// will come around again.
func (r *Reader) diagnosePods(ctx context.Context, adapter workloadAdapter) (string, bool) {
	logger := log.FromContext(ctx)

	selector, err := adapter.PodSelector()
	if err != nil {
		logger.Error(err, "failed to build pod selector", "workload", adapter.Ref())
		return "", false
	}

	pods := &corev1.PodList{}
	err = r.client.List(ctx, pods,
		client.InNamespace(adapter.Ref().Namespace),
		client.MatchingLabelsSelector{Selector: selector},
	)
	if err != nil {
		logger.Error(err, "failed to list pods for diagnosis", "workload", adapter.Ref())
		return "", false
	}

	for i := range pods.Items {
		pod := &pods.Items[i]
		if reason, found := podFailureReason(pod); found {
			return reason, true
		}
	}

	return "", false
}

func podFailureReason(pod *corev1.Pod) (string, bool) {
	statuses := make([]corev1.ContainerStatus, 0, len(pod.Status.ContainerStatuses)+len(pod.Status.InitContainerStatuses))
	statuses = append(statuses, pod.Status.InitContainerStatuses...)
	statuses = append(statuses, pod.Status.ContainerStatuses...)

	for _, cs := range statuses {
		if cs.State.Waiting == nil {
			continue
		}
		reason := cs.State.Waiting.Reason
		if !terminalWaitingReasons[reason] {
			continue
		}
		if cs.State.Waiting.Message != "" {
			return fmt.Sprintf("pod %s container %s: %s (%s)", pod.Name, cs.Name, reason, cs.State.Waiting.Message), true
		}
		return fmt.Sprintf("pod %s container %s: %s", pod.Name, cs.Name, reason), true
	}

	return "", false
}
