package remediate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adityassharma-ss/kubefix/pkg/model"
)

// scriptedLLM returns canned responses and records the prompts it saw.
type scriptedLLM struct {
	responses []string
	prompts   []string
	err       error
}

func (s *scriptedLLM) Chat(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	i := len(s.prompts) - 1
	if i >= len(s.responses) {
		return "", fmt.Errorf("no scripted response %d", i)
	}
	return s.responses[i], nil
}

func (s *scriptedLLM) Model() string { return "scripted" }

func testIssue() model.Issue {
	return model.Issue{
		ID:           "issue-1",
		Type:         model.IssueOOMKill,
		Severity:     model.SeverityHigh,
		Namespace:    "prod",
		ResourceName: "app",
		ResourceType: "Pod",
		Message:      "Container was killed due to memory constraints",
		Evidence:     model.OOMKillEvidence{},
	}
}

func TestAnalyzeIssue(t *testing.T) {
	client := &scriptedLLM{responses: []string{
		`{"root_cause": {"cause": "memory limit too low", "confidence": 0.85}}`,
	}}
	e := New(client, zap.NewNop())

	analysis, err := e.AnalyzeIssue(testIssue())
	require.NoError(t, err)
	assert.Equal(t, "memory limit too low", analysis.RootCause.Cause)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "oom_kill")
	assert.Contains(t, client.prompts[0], "Memory usage patterns")
}

func TestAnalyzeIssueChatError(t *testing.T) {
	e := New(&scriptedLLM{err: fmt.Errorf("rate limited")}, zap.NewNop())
	_, err := e.AnalyzeIssue(testIssue())
	assert.Error(t, err)
}

func TestGenerateFixCollectsProcedures(t *testing.T) {
	client := &scriptedLLM{responses: []string{
		"```yaml\nresources:\n  limits:\n    memory: 512Mi\n```",
	}}
	e := New(client, zap.NewNop())

	analysis := &Analysis{
		RootCause: RootCause{Cause: "memory limit too low"},
		RemediationSteps: []Step{
			{
				Description:       "raise limit",
				RollbackProcedure: "restore previous limit",
				ValidationSteps:   []string{"kubectl top pod app"},
			},
			{
				Description:     "add requests",
				ValidationSteps: []string{"kubectl describe pod app"},
			},
		},
	}

	fix, err := e.GenerateFix(testIssue(), analysis)
	require.NoError(t, err)

	// Fences are stripped from the generated content.
	assert.NotContains(t, fix.Content, "```")
	assert.Contains(t, fix.Content, "memory: 512Mi")

	assert.Equal(t, []string{"kubectl top pod app", "kubectl describe pod app"}, fix.ValidationSteps)
	assert.Equal(t, []string{"restore previous limit"}, fix.RollbackProcedures)
}
