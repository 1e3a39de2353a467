package remediate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adityassharma-ss/kubefix/pkg/model"
)

// Per-issue-type focus sections appended to the base analysis prompt.
var focusSections = map[model.IssueType]string{
	model.IssueCrashLoop: `Focus on:
- Container startup failures
- Configuration issues
- Resource constraints
- Dependencies and initialization`,
	model.IssueOOMKill: `Focus on:
- Memory usage patterns
- Resource limit configurations
- Memory leaks
- JVM/runtime configurations`,
	model.IssueDNSFailure: `Focus on:
- DNS configuration
- CoreDNS performance
- Network policies
- Service discovery issues`,
	model.IssueCNIFailure: `Focus on:
- CNI plugin health
- IP address pool exhaustion
- Node network configuration
- Pod network attachment`,
	model.IssuePVMountError: `Focus on:
- PVC binding and storage class configuration
- Volume node affinity
- CSI driver health
- Access mode conflicts`,
	model.IssueHPAMisconfig: `Focus on:
- Metrics server availability
- Target resource requests
- Scaling thresholds
- Replica bounds`,
}

// BuildAnalysisPrompt formats an issue into the analysis prompt. The
// evidence payload is embedded as JSON so the model sees exactly what
// the detector saw.
func BuildAnalysisPrompt(issue model.Issue) (string, error) {
	evidence, err := json.MarshalIndent(issue.Evidence, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal evidence: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `You are an expert Kubernetes administrator analyzing a cluster issue.

Issue Details:
Type: %s
Severity: %s
Resource: %s/%s
Namespace: %s

Context:
%s

Evidence:
%s

Based on this information:
1. Analyze the root cause of the issue
2. Determine the potential impact on the cluster/application
3. Suggest possible remediation steps
4. Identify any preventive measures
`,
		issue.Type, issue.Severity, issue.ResourceType, issue.ResourceName,
		issue.Namespace, issue.Message, string(evidence))

	if focus, ok := focusSections[issue.Type]; ok {
		b.WriteString("\n")
		b.WriteString(focus)
		b.WriteString("\n")
	}

	b.WriteString(`
Respond in JSON format with this structure:
{
  "root_cause": {
    "cause": "the identified root cause",
    "confidence": 0.0,
    "contributing_factors": ["factor"],
    "impact": "potential impact on the cluster/application"
  },
  "remediation_steps": [
    {
      "description": "detailed description of the step",
      "action_type": "yaml|terraform|command",
      "content": "patch or command content if applicable",
      "estimated_impact": "potential impact of applying this step",
      "rollback_procedure": "how to roll back this change",
      "validation_steps": ["step to validate the fix"]
    }
  ],
  "preventive_measures": [
    {
      "description": "description of the measure",
      "implementation": "how to implement it",
      "resource_type": "resource type it applies to"
    }
  ]
}

Be concise but thorough.`)

	return b.String(), nil
}

// BuildFixPrompt asks for concrete configuration changes implementing an
// analysis.
func BuildFixPrompt(issue model.Issue, analysis *Analysis) string {
	var steps []string
	for _, step := range analysis.RemediationSteps {
		steps = append(steps, step.Description)
	}

	return fmt.Sprintf(`Based on the following analysis, generate specific fixes in YAML/Terraform format:

Root Cause: %s
Impact: %s
Resource: %s/%s in namespace %s

Required Changes:
%s

Generate the necessary configuration changes to implement these fixes.
Include both the original and modified configurations, along with validation steps.`,
		analysis.RootCause.Cause,
		analysis.RootCause.Impact,
		issue.ResourceType, issue.ResourceName, issue.Namespace,
		strings.Join(steps, "\n"))
}
