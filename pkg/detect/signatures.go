package detect

import (
	"context"
	"strings"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"

	"github.com/adityassharma-ss/kubefix/pkg/model"
	"github.com/adityassharma-ss/kubefix/pkg/state"
)

// crashLoopRestartThreshold: a container must restart strictly more than
// this many times before it counts as a crash loop.
const crashLoopRestartThreshold = 3

// DetectCrashLoop reports a container stuck in CrashLoopBackOff with an
// elevated restart count.
func DetectCrashLoop(ps state.PodState) *model.Candidate {
	for _, container := range ps.ContainerStates {
		if container.RestartCount > crashLoopRestartThreshold &&
			container.State == state.StateWaiting &&
			container.Reason == "CrashLoopBackOff" {
			return &model.Candidate{
				Type:     model.IssueCrashLoop,
				Severity: model.SeverityHigh,
				Message:  container.Message,
				Evidence: model.CrashLoopEvidence{
					Container:    container.Name,
					RestartCount: container.RestartCount,
					Message:      container.Message,
				},
			}
		}
	}
	return nil
}

// DetectOOMKill reports a pod whose events show the kernel or runtime
// killed a container for exceeding its memory limit.
func DetectOOMKill(events []corev1.Event, podMetrics map[string]float64) *model.Candidate {
	var oomEvents []corev1.Event
	for _, e := range events {
		if e.Reason == "OOMKilled" || strings.Contains(e.Message, "OOMKilling") {
			oomEvents = append(oomEvents, e)
		}
	}

	if len(oomEvents) == 0 {
		return nil
	}

	return &model.Candidate{
		Type:     model.IssueOOMKill,
		Severity: model.SeverityHigh,
		Message:  "Container was killed due to memory constraints",
		Evidence: model.OOMKillEvidence{
			Events:  oomEvents,
			Metrics: podMetrics,
		},
	}
}

// DetectPVMountError reports a pod that cannot be scheduled because of a
// persistent volume claim problem.
func DetectPVMountError(ps state.PodState) *model.Candidate {
	var mountConditions []model.Condition
	for _, c := range ps.Conditions {
		if c.Type == "PodScheduled" && c.Status == "False" &&
			strings.Contains(strings.ToLower(c.Message), "persistentvolumeclaim") {
			mountConditions = append(mountConditions, c)
		}
	}

	if len(mountConditions) == 0 {
		return nil
	}

	return &model.Candidate{
		Type:     model.IssuePVMountError,
		Severity: model.SeverityHigh,
		Message:  "Pod cannot be scheduled due to PV mount issues",
		Evidence: model.PVMountEvidence{Conditions: mountConditions},
	}
}

func (d *Detector) detectOOMKill(ctx context.Context, podName, namespace string) *model.Candidate {
	if !d.wait(ctx) {
		return nil
	}
	events, err := d.cluster.GetPodEvents(ctx, podName, namespace)
	if err != nil {
		d.logger.Warn("failed to fetch pod events",
			zap.String("pod", podName), zap.String("namespace", namespace), zap.Error(err))
		return nil
	}

	return DetectOOMKill(events, d.podMetrics(ctx, podName, namespace))
}

// detectHPAMisconfig reports autoscalers whose desired replica count is
// set but whose current count never came up.
func (d *Detector) detectHPAMisconfig(ctx context.Context, namespace string) []Finding {
	hpas, err := d.cluster.ListAutoscalers(ctx, namespace)
	if err != nil {
		d.logger.Error("failed to list autoscalers", zap.String("namespace", namespace), zap.Error(err))
		return nil
	}

	var findings []Finding
	for _, hpa := range hpas {
		if hpa.Status.CurrentReplicas != 0 || hpa.Status.DesiredReplicas == 0 {
			continue
		}

		target := hpa.Spec.ScaleTargetRef.Name
		findings = append(findings, Finding{
			Candidate: model.Candidate{
				Type:     model.IssueHPAMisconfig,
				Severity: model.SeverityMedium,
				Message:  "HPA unable to scale target resource",
				Evidence: model.HPAEvidence{
					HPAName:         hpa.Name,
					TargetResource:  target,
					DesiredReplicas: hpa.Status.DesiredReplicas,
					CurrentMetrics:  d.podMetrics(ctx, target, namespace),
				},
			},
			Namespace:    namespace,
			ResourceName: hpa.Name,
			ResourceType: "HorizontalPodAutoscaler",
		})
	}

	return findings
}
