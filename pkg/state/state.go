// Package state derives normalized snapshots from raw workload objects.
package state

import (
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/adityassharma-ss/kubefix/pkg/model"
)

// ContainerStateType classifies the current state of a container.
type ContainerStateType string

const (
	StateRunning    ContainerStateType = "running"
	StateWaiting    ContainerStateType = "waiting"
	StateTerminated ContainerStateType = "terminated"
)

// ContainerState is a flattened view of one container's status.
type ContainerState struct {
	Name         string             `json:"name"`
	Ready        bool               `json:"ready"`
	RestartCount int32              `json:"restart_count"`
	State        ContainerStateType `json:"state"`
	Reason       string             `json:"reason,omitempty"`
	Message      string             `json:"message,omitempty"`
	ExitCode     int32              `json:"exit_code,omitempty"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
}

// PodState is a read-only snapshot of a pod, recomputed every scan.
type PodState struct {
	Name            string            `json:"name"`
	Namespace       string            `json:"namespace"`
	Phase           string            `json:"phase"`
	Conditions      []model.Condition `json:"conditions"`
	ContainerStates []ContainerState  `json:"container_states"`
	HostIP          string            `json:"host_ip,omitempty"`
	PodIP           string            `json:"pod_ip,omitempty"`
	QOSClass        string            `json:"qos_class,omitempty"`
	StartTime       *time.Time        `json:"start_time,omitempty"`
}

// FromPod normalizes a pod into a PodState. Absent status fields map to
// zero values; normalization never fails.
func FromPod(pod *corev1.Pod) PodState {
	ps := PodState{
		Name:      pod.Name,
		Namespace: pod.Namespace,
		Phase:     string(pod.Status.Phase),
		HostIP:    pod.Status.HostIP,
		PodIP:     pod.Status.PodIP,
		QOSClass:  string(pod.Status.QOSClass),
	}

	if pod.Status.StartTime != nil {
		t := pod.Status.StartTime.Time
		ps.StartTime = &t
	}

	for _, cond := range pod.Status.Conditions {
		ps.Conditions = append(ps.Conditions, model.Condition{
			Type:    string(cond.Type),
			Status:  string(cond.Status),
			Reason:  cond.Reason,
			Message: cond.Message,
		})
	}

	for _, cs := range pod.Status.ContainerStatuses {
		ps.ContainerStates = append(ps.ContainerStates, normalizeContainer(cs))
	}

	return ps
}

func normalizeContainer(cs corev1.ContainerStatus) ContainerState {
	out := ContainerState{
		Name:         cs.Name,
		Ready:        cs.Ready,
		RestartCount: cs.RestartCount,
	}

	switch {
	case cs.State.Running != nil:
		out.State = StateRunning
		t := cs.State.Running.StartedAt.Time
		out.StartedAt = &t
	case cs.State.Waiting != nil:
		out.State = StateWaiting
		out.Reason = cs.State.Waiting.Reason
		out.Message = cs.State.Waiting.Message
	case cs.State.Terminated != nil:
		out.State = StateTerminated
		out.Reason = cs.State.Terminated.Reason
		out.Message = cs.State.Terminated.Message
		out.ExitCode = cs.State.Terminated.ExitCode
	}

	return out
}
