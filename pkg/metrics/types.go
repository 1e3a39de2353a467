package metrics

import (
	"context"
	"time"
)

// Sample is one labeled value from a metrics query.
type Sample struct {
	Labels    map[string]string `json:"labels"`
	Value     float64           `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
}

// Source answers PromQL-style queries. An empty result is a valid answer,
// not an error.
type Source interface {
	Query(ctx context.Context, expr string) ([]Sample, error)
}

// Queries the detection signatures run against the metrics source.
// NAMESPACE, POD_NAME placeholders are substituted before execution.
const (
	// PacketDropQuery reports per-pod dropped-packet rates over 5m.
	PacketDropQuery = `sum(rate(container_network_receive_packets_dropped_total{namespace="NAMESPACE"}[5m])) by (pod) > 0`

	// DNSErrorRateQuery reports the cluster-wide SERVFAIL response rate.
	DNSErrorRateQuery = `sum(rate(coredns_dns_responses_total{rcode="SERVFAIL"}[5m]))`

	// DNSLatencyQuery reports p95 DNS request latency in seconds.
	DNSLatencyQuery = `histogram_quantile(0.95, sum(rate(coredns_dns_request_duration_seconds_bucket[5m])) by (le))`

	// PodCPUQuery reports a pod's CPU usage counter.
	PodCPUQuery = `container_cpu_usage_seconds_total{pod="POD_NAME", namespace="NAMESPACE"}`

	// PodMemoryQuery reports a pod's working memory in bytes.
	PodMemoryQuery = `container_memory_usage_bytes{pod="POD_NAME", namespace="NAMESPACE"}`
)
