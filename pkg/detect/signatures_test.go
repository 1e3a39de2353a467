package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"

	"github.com/adityassharma-ss/kubefix/pkg/model"
	"github.com/adityassharma-ss/kubefix/pkg/state"
)

func crashLoopPod(restarts int32, containerState state.ContainerStateType, reason string) state.PodState {
	return state.PodState{
		Name:      "app",
		Namespace: "default",
		ContainerStates: []state.ContainerState{
			{
				Name:         "web",
				RestartCount: restarts,
				State:        containerState,
				Reason:       reason,
				Message:      "back-off 5m0s restarting failed container",
			},
		},
	}
}

func TestDetectCrashLoop(t *testing.T) {
	c := DetectCrashLoop(crashLoopPod(4, state.StateWaiting, "CrashLoopBackOff"))
	require.NotNil(t, c)
	assert.Equal(t, model.IssueCrashLoop, c.Type)
	assert.Equal(t, model.SeverityHigh, c.Severity)

	ev, ok := c.Evidence.(model.CrashLoopEvidence)
	require.True(t, ok)
	assert.Equal(t, "web", ev.Container)
	assert.Equal(t, int32(4), ev.RestartCount)
}

func TestDetectCrashLoopThresholdIsStrict(t *testing.T) {
	// Exactly at the threshold does not fire.
	assert.Nil(t, DetectCrashLoop(crashLoopPod(3, state.StateWaiting, "CrashLoopBackOff")))
	assert.NotNil(t, DetectCrashLoop(crashLoopPod(4, state.StateWaiting, "CrashLoopBackOff")))
}

func TestDetectCrashLoopRequiresWaitingBackOff(t *testing.T) {
	assert.Nil(t, DetectCrashLoop(crashLoopPod(10, state.StateRunning, "")))
	assert.Nil(t, DetectCrashLoop(crashLoopPod(10, state.StateWaiting, "ImagePullBackOff")))
	assert.Nil(t, DetectCrashLoop(crashLoopPod(10, state.StateTerminated, "CrashLoopBackOff")))
}

func TestDetectOOMKill(t *testing.T) {
	events := []corev1.Event{
		{Reason: "Scheduled", Message: "Successfully assigned default/app"},
		{Reason: "OOMKilled", Message: "Container web exceeded its memory limit"},
	}
	podMetrics := map[string]float64{"memory": 512e6}

	c := DetectOOMKill(events, podMetrics)
	require.NotNil(t, c)
	assert.Equal(t, model.IssueOOMKill, c.Type)
	assert.Equal(t, model.SeverityHigh, c.Severity)

	ev, ok := c.Evidence.(model.OOMKillEvidence)
	require.True(t, ok)
	require.Len(t, ev.Events, 1)
	assert.Equal(t, "OOMKilled", ev.Events[0].Reason)
	assert.Equal(t, podMetrics, ev.Metrics)
}

func TestDetectOOMKillMatchesKernelMessage(t *testing.T) {
	events := []corev1.Event{
		{Reason: "SystemOOM", Message: "System OOM encountered, victim process: OOMKilling pid 1234"},
	}
	c := DetectOOMKill(events, nil)
	require.NotNil(t, c)

	ev := c.Evidence.(model.OOMKillEvidence)
	assert.Len(t, ev.Events, 1)
}

func TestDetectOOMKillNoMatchingEvents(t *testing.T) {
	events := []corev1.Event{
		{Reason: "Pulled", Message: "Container image already present"},
		{Reason: "Killing", Message: "Stopping container web"},
	}
	assert.Nil(t, DetectOOMKill(events, nil))
	assert.Nil(t, DetectOOMKill(nil, nil))
}

func TestDetectPVMountError(t *testing.T) {
	ps := state.PodState{
		Name: "db",
		Conditions: []model.Condition{
			{Type: "PodScheduled", Status: "False", Message: "0/3 nodes are available: PersistentVolumeClaim \"data\" not found"},
		},
	}

	c := DetectPVMountError(ps)
	require.NotNil(t, c)
	assert.Equal(t, model.IssuePVMountError, c.Type)

	ev := c.Evidence.(model.PVMountEvidence)
	require.Len(t, ev.Conditions, 1)
}

func TestDetectPVMountErrorIgnoresOtherConditions(t *testing.T) {
	for _, ps := range []state.PodState{
		// Scheduled fine.
		{Conditions: []model.Condition{{Type: "PodScheduled", Status: "True", Message: "persistentvolumeclaim bound"}}},
		// Unschedulable for a different reason.
		{Conditions: []model.Condition{{Type: "PodScheduled", Status: "False", Message: "insufficient cpu"}}},
		// PVC mentioned on an unrelated condition type.
		{Conditions: []model.Condition{{Type: "Ready", Status: "False", Message: "persistentvolumeclaim pending"}}},
	} {
		assert.Nil(t, DetectPVMountError(ps))
	}
}
