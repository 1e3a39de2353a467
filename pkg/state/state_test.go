package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestFromPodEmptyStatus(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "bare", Namespace: "default"},
	}

	ps := FromPod(pod)

	assert.Equal(t, "bare", ps.Name)
	assert.Equal(t, "default", ps.Namespace)
	assert.Empty(t, ps.Phase)
	assert.Nil(t, ps.Conditions)
	assert.Nil(t, ps.ContainerStates)
	assert.Nil(t, ps.StartTime)
}

func TestFromPodNormalizesContainerStates(t *testing.T) {
	started := metav1.NewTime(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "app", Namespace: "prod"},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{
				{
					Name:         "web",
					Ready:        true,
					RestartCount: 1,
					State: corev1.ContainerState{
						Running: &corev1.ContainerStateRunning{StartedAt: started},
					},
				},
				{
					Name:         "sidecar",
					RestartCount: 7,
					State: corev1.ContainerState{
						Waiting: &corev1.ContainerStateWaiting{
							Reason:  "CrashLoopBackOff",
							Message: "back-off 5m0s restarting failed container",
						},
					},
				},
				{
					Name: "init-db",
					State: corev1.ContainerState{
						Terminated: &corev1.ContainerStateTerminated{
							Reason:   "Error",
							ExitCode: 137,
						},
					},
				},
			},
		},
	}

	ps := FromPod(pod)
	require.Len(t, ps.ContainerStates, 3)

	web := ps.ContainerStates[0]
	assert.Equal(t, StateRunning, web.State)
	assert.True(t, web.Ready)
	require.NotNil(t, web.StartedAt)
	assert.Equal(t, started.Time, *web.StartedAt)

	sidecar := ps.ContainerStates[1]
	assert.Equal(t, StateWaiting, sidecar.State)
	assert.Equal(t, "CrashLoopBackOff", sidecar.Reason)
	assert.Equal(t, int32(7), sidecar.RestartCount)

	initDB := ps.ContainerStates[2]
	assert.Equal(t, StateTerminated, initDB.State)
	assert.Equal(t, int32(137), initDB.ExitCode)
}

func TestFromPodCopiesConditions(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "pending", Namespace: "default"},
		Status: corev1.PodStatus{
			Phase: corev1.PodPending,
			Conditions: []corev1.PodCondition{
				{
					Type:    corev1.PodScheduled,
					Status:  corev1.ConditionFalse,
					Reason:  "Unschedulable",
					Message: "persistentvolumeclaim \"data\" not found",
				},
			},
		},
	}

	ps := FromPod(pod)
	require.Len(t, ps.Conditions, 1)
	assert.Equal(t, "PodScheduled", ps.Conditions[0].Type)
	assert.Equal(t, "False", ps.Conditions[0].Status)
	assert.Contains(t, ps.Conditions[0].Message, "persistentvolumeclaim")
}
