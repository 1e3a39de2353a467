// Package detect turns raw cluster observations into typed issue candidates.
package detect

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	autoscalingv1 "k8s.io/api/autoscaling/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/adityassharma-ss/kubefix/pkg/metrics"
	"github.com/adityassharma-ss/kubefix/pkg/model"
	"github.com/adityassharma-ss/kubefix/pkg/state"
)

const (
	// Pod log and event fetches are paced to avoid hammering the API
	// server during large scans.
	fetchRateLimit = 50
	fetchRateBurst = 100
)

// Cluster is the slice of the Kubernetes API the detector consumes.
type Cluster interface {
	ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error)
	GetPodEvents(ctx context.Context, name, namespace string) ([]corev1.Event, error)
	GetPodLogs(ctx context.Context, name, namespace string) (string, error)
	ListAutoscalers(ctx context.Context, namespace string) ([]autoscalingv1.HorizontalPodAutoscaler, error)
}

// Finding is a candidate tagged with the identity of the resource it
// was observed on.
type Finding struct {
	model.Candidate
	Namespace    string
	ResourceName string
	ResourceType string
}

// Detector runs every detection signature over a namespace.
type Detector struct {
	cluster Cluster
	metrics metrics.Source
	logger  *zap.Logger
	limiter *rate.Limiter
}

// New creates a Detector. The metrics source may be nil; metric-backed
// signatures then yield no candidates.
func New(cluster Cluster, source metrics.Source, logger *zap.Logger) *Detector {
	return &Detector{
		cluster: cluster,
		metrics: source,
		logger:  logger.Named("detect"),
		limiter: rate.NewLimiter(fetchRateLimit, fetchRateBurst),
	}
}

// ScanNamespace runs all per-pod and namespace-scoped signatures over a
// namespace. Observation failures on individual resources are logged and
// skipped; they never abort the scan.
func (d *Detector) ScanNamespace(ctx context.Context, namespace string) []Finding {
	var findings []Finding

	pods, err := d.cluster.ListPods(ctx, namespace)
	if err != nil {
		d.logger.Error("failed to list pods", zap.String("namespace", namespace), zap.Error(err))
		pods = nil
	}

	for i := range pods {
		pod := &pods[i]
		ps := state.FromPod(pod)

		findings = append(findings, d.scanPod(ctx, namespace, pod.Name, ps)...)
	}

	findings = append(findings, d.detectHPAMisconfig(ctx, namespace)...)
	findings = append(findings, d.analyzeClusterNetworkHealth(ctx, namespace)...)

	return findings
}

// scanPod evaluates the per-pod signatures in order: crash loop, OOM
// kill, PV mount, DNS failure, CNI failure.
func (d *Detector) scanPod(ctx context.Context, namespace, podName string, ps state.PodState) []Finding {
	var findings []Finding

	tag := func(c *model.Candidate) {
		if c == nil {
			return
		}
		findings = append(findings, Finding{
			Candidate:    *c,
			Namespace:    namespace,
			ResourceName: podName,
			ResourceType: "Pod",
		})
	}

	tag(DetectCrashLoop(ps))
	tag(d.detectOOMKill(ctx, podName, namespace))
	tag(DetectPVMountError(ps))
	tag(d.detectDNSFailure(ctx, podName, namespace))
	tag(DetectCNIFailure(ps))

	return findings
}

// podMetrics reads current cpu/memory for a pod, tolerating a missing
// metrics source.
func (d *Detector) podMetrics(ctx context.Context, podName, namespace string) map[string]float64 {
	if d.metrics == nil {
		return nil
	}
	return metrics.PodMetrics(ctx, d.metrics, podName, namespace)
}

func (d *Detector) wait(ctx context.Context) bool {
	if err := d.limiter.Wait(ctx); err != nil {
		return false
	}
	return true
}
