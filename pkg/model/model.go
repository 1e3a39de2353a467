package model

import (
	"time"

	corev1 "k8s.io/api/core/v1"
)

// IssueType identifies the class of a detected issue.
type IssueType string

const (
	IssueCrashLoop          IssueType = "crash_loop"
	IssueOOMKill            IssueType = "oom_kill"
	IssuePVMountError       IssueType = "pv_mount_error"
	IssueHPAMisconfig       IssueType = "hpa_misconfig"
	IssueDNSFailure         IssueType = "dns_failure"
	IssueCNIFailure         IssueType = "cni_failure"
	IssueNetworkPerformance IssueType = "network_performance"
	IssueDNSHealth          IssueType = "dns_health"
	IssueDNSPerformance     IssueType = "dns_performance"
)

// Severity ranks how urgent an issue is.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Status tracks the lifecycle of a registered issue.
type Status string

const (
	StatusActive     Status = "active"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

// Evidence is the typed per-kind payload attached to a candidate or issue.
// Each detector produces its own concrete evidence type so consumers can
// switch on the payload without digging through untyped maps.
type Evidence interface {
	Kind() IssueType
}

// Candidate is a detection result that has not yet been assigned an
// identity or timestamp. The registry turns candidates into Issues.
type Candidate struct {
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Evidence Evidence  `json:"evidence,omitempty"`
}

// Issue is a registered finding. Owned exclusively by the registry and
// mutated only through its operations.
type Issue struct {
	ID           string     `json:"id"`
	Type         IssueType  `json:"type"`
	Status       Status     `json:"status"`
	Namespace    string     `json:"namespace"`
	ResourceName string     `json:"resource_name"`
	ResourceType string     `json:"resource_type"`
	Severity     Severity   `json:"severity"`
	Message      string     `json:"message"`
	Evidence     Evidence   `json:"evidence,omitempty"`
	DetectedAt   time.Time  `json:"detected_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// Condition is a normalized pod condition.
type Condition struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// CrashLoopEvidence records the container stuck in CrashLoopBackOff.
type CrashLoopEvidence struct {
	Container    string `json:"container"`
	RestartCount int32  `json:"restart_count"`
	Message      string `json:"message,omitempty"`
}

func (CrashLoopEvidence) Kind() IssueType { return IssueCrashLoop }

// OOMKillEvidence carries the OOM events and whatever metrics were
// available when the kill was observed.
type OOMKillEvidence struct {
	Events  []corev1.Event     `json:"events"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

func (OOMKillEvidence) Kind() IssueType { return IssueOOMKill }

// PVMountEvidence carries the scheduling conditions that mention a PVC.
type PVMountEvidence struct {
	Conditions []Condition `json:"conditions"`
}

func (PVMountEvidence) Kind() IssueType { return IssuePVMountError }

// HPAEvidence identifies an autoscaler that cannot reach its target.
type HPAEvidence struct {
	HPAName         string             `json:"hpa_name"`
	TargetResource  string             `json:"target_resource"`
	DesiredReplicas int32              `json:"desired_replicas"`
	CurrentMetrics  map[string]float64 `json:"current_metrics,omitempty"`
}

func (HPAEvidence) Kind() IssueType { return IssueHPAMisconfig }

// DNSFailureEvidence keeps the first matching resolver-error log lines.
type DNSFailureEvidence struct {
	Logs    []string           `json:"logs"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

func (DNSFailureEvidence) Kind() IssueType { return IssueDNSFailure }

// CNIContainerIssue pairs a container with its network-related wait message.
type CNIContainerIssue struct {
	Container string `json:"container"`
	Message   string `json:"message"`
}

// CNIFailureEvidence records the conditions and container states that
// indicate a pod networking failure.
type CNIFailureEvidence struct {
	Conditions      []Condition         `json:"conditions,omitempty"`
	ContainerIssues []CNIContainerIssue `json:"container_issues,omitempty"`
}

func (CNIFailureEvidence) Kind() IssueType { return IssueCNIFailure }

// NetworkPerformanceEvidence records the observed packet drop rate.
type NetworkPerformanceEvidence struct {
	PacketDropRate float64 `json:"packet_drop_rate"`
}

func (NetworkPerformanceEvidence) Kind() IssueType { return IssueNetworkPerformance }

// DNSHealthEvidence records the cluster-wide DNS SERVFAIL rate.
type DNSHealthEvidence struct {
	ErrorRate float64 `json:"error_rate"`
}

func (DNSHealthEvidence) Kind() IssueType { return IssueDNSHealth }

// DNSPerformanceEvidence records p95 DNS resolution latency in seconds.
type DNSPerformanceEvidence struct {
	P95Latency float64 `json:"p95_latency"`
}

func (DNSPerformanceEvidence) Kind() IssueType { return IssueDNSPerformance }
