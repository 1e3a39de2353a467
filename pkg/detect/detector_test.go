package detect

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	autoscalingv1 "k8s.io/api/autoscaling/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/adityassharma-ss/kubefix/pkg/k8s"
	"github.com/adityassharma-ss/kubefix/pkg/metrics"
	"github.com/adityassharma-ss/kubefix/pkg/model"
)

func TestScanNamespaceFindsCrashLoop(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "app", Namespace: "prod"},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{
				{
					Name:         "web",
					RestartCount: 6,
					State: corev1.ContainerState{
						Waiting: &corev1.ContainerStateWaiting{
							Reason:  "CrashLoopBackOff",
							Message: "back-off restarting failed container",
						},
					},
				},
			},
		},
	}

	clientset := fake.NewSimpleClientset(pod)
	d := New(k8s.NewWithClientset(clientset), nil, zap.NewNop())

	findings := d.ScanNamespace(context.Background(), "prod")
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, model.IssueCrashLoop, f.Type)
	assert.Equal(t, "prod", f.Namespace)
	assert.Equal(t, "app", f.ResourceName)
	assert.Equal(t, "Pod", f.ResourceType)
}

func TestScanNamespaceFindsHPAMisconfig(t *testing.T) {
	hpa := &autoscalingv1.HorizontalPodAutoscaler{
		ObjectMeta: metav1.ObjectMeta{Name: "web-hpa", Namespace: "prod"},
		Spec: autoscalingv1.HorizontalPodAutoscalerSpec{
			ScaleTargetRef: autoscalingv1.CrossVersionObjectReference{Kind: "Deployment", Name: "web"},
		},
		Status: autoscalingv1.HorizontalPodAutoscalerStatus{
			CurrentReplicas: 0,
			DesiredReplicas: 3,
		},
	}

	clientset := fake.NewSimpleClientset(hpa)
	d := New(k8s.NewWithClientset(clientset), nil, zap.NewNop())

	findings := d.ScanNamespace(context.Background(), "prod")
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, model.IssueHPAMisconfig, f.Type)
	assert.Equal(t, "web-hpa", f.ResourceName)
	assert.Equal(t, "HorizontalPodAutoscaler", f.ResourceType)

	ev := f.Evidence.(model.HPAEvidence)
	assert.Equal(t, "web", ev.TargetResource)
	assert.Equal(t, int32(3), ev.DesiredReplicas)
}

func TestScanNamespaceIgnoresHealthyHPA(t *testing.T) {
	healthy := &autoscalingv1.HorizontalPodAutoscaler{
		ObjectMeta: metav1.ObjectMeta{Name: "ok-hpa", Namespace: "prod"},
		Status: autoscalingv1.HorizontalPodAutoscalerStatus{
			CurrentReplicas: 2,
			DesiredReplicas: 2,
		},
	}
	idle := &autoscalingv1.HorizontalPodAutoscaler{
		ObjectMeta: metav1.ObjectMeta{Name: "idle-hpa", Namespace: "prod"},
		Status: autoscalingv1.HorizontalPodAutoscalerStatus{
			CurrentReplicas: 0,
			DesiredReplicas: 0,
		},
	}

	clientset := fake.NewSimpleClientset(healthy, idle)
	d := New(k8s.NewWithClientset(clientset), nil, zap.NewNop())

	assert.Empty(t, d.ScanNamespace(context.Background(), "prod"))
}

func TestScanNamespaceEmptyCluster(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	d := New(k8s.NewWithClientset(clientset), nil, zap.NewNop())

	assert.Empty(t, d.ScanNamespace(context.Background(), "prod"))
}

// countingSource records every expression it is asked to evaluate.
type countingSource struct {
	exprs []string
}

func (s *countingSource) Query(ctx context.Context, expr string) ([]metrics.Sample, error) {
	s.exprs = append(s.exprs, expr)
	return nil, nil
}

// stubCluster serves fixed pods and logs so log-driven paths can be
// exercised without a clientset.
type stubCluster struct {
	pods []corev1.Pod
	logs string
}

func (c *stubCluster) ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error) {
	return c.pods, nil
}

func (c *stubCluster) GetPodEvents(ctx context.Context, name, namespace string) ([]corev1.Event, error) {
	return nil, nil
}

func (c *stubCluster) GetPodLogs(ctx context.Context, name, namespace string) (string, error) {
	return c.logs, nil
}

func (c *stubCluster) ListAutoscalers(ctx context.Context, namespace string) ([]autoscalingv1.HorizontalPodAutoscaler, error) {
	return nil, nil
}

func TestScanNamespaceCleanLogsSkipResolverMetrics(t *testing.T) {
	cluster := &stubCluster{
		pods: []corev1.Pod{{ObjectMeta: metav1.ObjectMeta{Name: "app", Namespace: "prod"}}},
		logs: "request completed in 12ms\nall good here",
	}
	source := &countingSource{}
	d := New(cluster, source, zap.NewNop())

	findings := d.ScanNamespace(context.Background(), "prod")
	assert.Empty(t, findings)

	// Only the namespace-level health queries run; no per-pod coredns
	// metric fetches without a matching log line.
	for _, expr := range source.exprs {
		assert.NotContains(t, expr, `pod="coredns"`)
	}
}

func TestScanNamespaceResolverErrorsFetchCorednsMetrics(t *testing.T) {
	cluster := &stubCluster{
		pods: []corev1.Pod{{ObjectMeta: metav1.ObjectMeta{Name: "app", Namespace: "prod"}}},
		logs: "dial tcp: lookup db.internal on 10.96.0.10:53: no such host",
	}
	source := &countingSource{}
	d := New(cluster, source, zap.NewNop())

	findings := d.ScanNamespace(context.Background(), "prod")
	require.Len(t, findings, 1)
	assert.Equal(t, model.IssueDNSFailure, findings[0].Type)

	var corednsQueries int
	for _, expr := range source.exprs {
		if strings.Contains(expr, `pod="coredns"`) {
			corednsQueries++
		}
	}
	assert.NotZero(t, corednsQueries)
}

func TestScanNamespaceMetricFindings(t *testing.T) {
	expr := strings.ReplaceAll(metrics.PacketDropQuery, "NAMESPACE", "prod")
	source := &stubSource{samples: map[string][]metrics.Sample{
		expr: {{Labels: map[string]string{"pod": "lossy"}, Value: 0.5}},
	}}

	clientset := fake.NewSimpleClientset()
	d := New(k8s.NewWithClientset(clientset), source, zap.NewNop())

	findings := d.ScanNamespace(context.Background(), "prod")
	require.Len(t, findings, 1)
	assert.Equal(t, model.IssueNetworkPerformance, findings[0].Type)
	assert.Equal(t, "lossy", findings[0].ResourceName)
}
