package detect

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/adityassharma-ss/kubefix/pkg/metrics"
	"github.com/adityassharma-ss/kubefix/pkg/model"
	"github.com/adityassharma-ss/kubefix/pkg/state"
)

// Exact resolver-error substrings matched against pod logs. Matching is
// case-sensitive.
var dnsErrorPatterns = []string{
	"dial tcp: lookup",
	"Could not resolve host",
	"Name or service not known",
	"temporary error in name resolution",
	"nslookup failed",
}

const (
	// maxDNSLogLines caps how many matching log lines are kept as evidence.
	maxDNSLogLines = 5

	// packetDropThreshold is the per-pod dropped-packet rate above which
	// (strictly) a network performance issue is raised.
	packetDropThreshold = 0.1

	// dnsErrorRateThreshold is the SERVFAIL rate above which (strictly)
	// DNS health is flagged.
	dnsErrorRateThreshold = 0.01

	// dnsLatencyThreshold is the p95 DNS latency in seconds above which
	// (strictly) DNS performance is flagged.
	dnsLatencyThreshold = 0.1
)

// DetectDNSFailure scans pod logs for resolver errors. The first
// maxDNSLogLines matching lines are retained as evidence.
func DetectDNSFailure(logs string, dnsMetrics map[string]float64) *model.Candidate {
	var found []string
	for _, line := range strings.Split(logs, "\n") {
		for _, pattern := range dnsErrorPatterns {
			if strings.Contains(line, pattern) {
				found = append(found, line)
				break
			}
		}
	}

	if len(found) == 0 {
		return nil
	}
	if len(found) > maxDNSLogLines {
		found = found[:maxDNSLogLines]
	}

	return &model.Candidate{
		Type:     model.IssueDNSFailure,
		Severity: model.SeverityHigh,
		Message:  "DNS resolution failures detected",
		Evidence: model.DNSFailureEvidence{
			Logs:    found,
			Metrics: dnsMetrics,
		},
	}
}

// DetectCNIFailure reports pod networking failures, either from a
// scheduling condition mentioning the network or from a waiting container
// whose message points at the CNI layer.
func DetectCNIFailure(ps state.PodState) *model.Candidate {
	var conditions []model.Condition
	for _, c := range ps.Conditions {
		if c.Type == "PodScheduled" && c.Status == "False" &&
			strings.Contains(strings.ToLower(c.Message), "network") {
			conditions = append(conditions, c)
		}
	}

	var containerIssues []model.CNIContainerIssue
	for _, container := range ps.ContainerStates {
		if container.State != state.StateWaiting {
			continue
		}
		msg := strings.ToLower(container.Message)
		for _, keyword := range []string{"network", "cni", "ip allocation"} {
			if strings.Contains(msg, keyword) {
				containerIssues = append(containerIssues, model.CNIContainerIssue{
					Container: container.Name,
					Message:   container.Message,
				})
				break
			}
		}
	}

	if len(conditions) == 0 && len(containerIssues) == 0 {
		return nil
	}

	return &model.Candidate{
		Type:     model.IssueCNIFailure,
		Severity: model.SeverityHigh,
		Message:  "CNI network configuration or connectivity issues detected",
		Evidence: model.CNIFailureEvidence{
			Conditions:      conditions,
			ContainerIssues: containerIssues,
		},
	}
}

// CheckNetworkMetrics raises a network performance candidate for every
// pod in the namespace whose packet drop rate exceeds the threshold.
func CheckNetworkMetrics(ctx context.Context, source metrics.Source, namespace string) ([]Finding, error) {
	expr := strings.ReplaceAll(metrics.PacketDropQuery, "NAMESPACE", namespace)
	samples, err := source.Query(ctx, expr)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, sample := range samples {
		podName := sample.Labels["pod"]
		dropRate := sample.Value

		if dropRate <= packetDropThreshold {
			continue
		}

		findings = append(findings, Finding{
			Candidate: model.Candidate{
				Type:     model.IssueNetworkPerformance,
				Severity: model.SeverityMedium,
				Message:  fmt.Sprintf("High packet drop rate detected: %.2f%%", dropRate*100),
				Evidence: model.NetworkPerformanceEvidence{PacketDropRate: dropRate},
			},
			Namespace:    namespace,
			ResourceName: podName,
			ResourceType: "Pod",
		})
	}

	return findings, nil
}

// AnalyzeDNSMetrics checks cluster DNS health: an elevated SERVFAIL rate
// and p95 resolution latency produce separate candidates.
func AnalyzeDNSMetrics(ctx context.Context, source metrics.Source) ([]model.Candidate, error) {
	var candidates []model.Candidate

	errorSamples, err := source.Query(ctx, metrics.DNSErrorRateQuery)
	if err != nil {
		return nil, err
	}
	if len(errorSamples) > 0 && errorSamples[0].Value > dnsErrorRateThreshold {
		candidates = append(candidates, model.Candidate{
			Type:     model.IssueDNSHealth,
			Severity: model.SeverityMedium,
			Message:  "Elevated DNS error rate detected",
			Evidence: model.DNSHealthEvidence{ErrorRate: errorSamples[0].Value},
		})
	}

	latencySamples, err := source.Query(ctx, metrics.DNSLatencyQuery)
	if err != nil {
		return nil, err
	}
	if len(latencySamples) > 0 && latencySamples[0].Value > dnsLatencyThreshold {
		candidates = append(candidates, model.Candidate{
			Type:     model.IssueDNSPerformance,
			Severity: model.SeverityLow,
			Message:  "High DNS resolution latency detected",
			Evidence: model.DNSPerformanceEvidence{P95Latency: latencySamples[0].Value},
		})
	}

	return candidates, nil
}

func (d *Detector) detectDNSFailure(ctx context.Context, podName, namespace string) *model.Candidate {
	if !d.wait(ctx) {
		return nil
	}
	logs, err := d.cluster.GetPodLogs(ctx, podName, namespace)
	if err != nil {
		d.logger.Warn("failed to fetch pod logs",
			zap.String("pod", podName), zap.String("namespace", namespace), zap.Error(err))
		return nil
	}
	if logs == "" {
		return nil
	}

	candidate := DetectDNSFailure(logs, nil)
	if candidate == nil {
		return nil
	}

	// coredns metrics add context when the resolver itself is degraded;
	// fetched only once the logs actually show resolver errors.
	ev := candidate.Evidence.(model.DNSFailureEvidence)
	ev.Metrics = d.podMetrics(ctx, "coredns", "kube-system")
	candidate.Evidence = ev
	return candidate
}

// analyzeClusterNetworkHealth runs the namespace-scoped metric checks.
func (d *Detector) analyzeClusterNetworkHealth(ctx context.Context, namespace string) []Finding {
	if d.metrics == nil {
		return nil
	}

	var findings []Finding

	netFindings, err := CheckNetworkMetrics(ctx, d.metrics, namespace)
	if err != nil {
		d.logger.Error("failed to check network metrics", zap.String("namespace", namespace), zap.Error(err))
	} else {
		findings = append(findings, netFindings...)
	}

	dnsCandidates, err := AnalyzeDNSMetrics(ctx, d.metrics)
	if err != nil {
		d.logger.Error("failed to analyze DNS metrics", zap.String("namespace", namespace), zap.Error(err))
	} else {
		for _, c := range dnsCandidates {
			findings = append(findings, Finding{
				Candidate:    c,
				Namespace:    namespace,
				ResourceName: "coredns",
				ResourceType: "Cluster",
			})
		}
	}

	return findings
}
