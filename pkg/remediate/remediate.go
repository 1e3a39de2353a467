// Package remediate turns registered issues into root-cause analyses and
// remediation fix content through an LLM provider. The detection core is
// agnostic to everything in this package.
package remediate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/adityassharma-ss/kubefix/pkg/llm"
	"github.com/adityassharma-ss/kubefix/pkg/model"
)

// RootCause is the reasoned explanation for an issue.
type RootCause struct {
	Cause               string   `json:"cause"`
	Confidence          float64  `json:"confidence"`
	ContributingFactors []string `json:"contributing_factors"`
	Impact              string   `json:"impact"`
}

// Step is one remediation action with its safety rails.
type Step struct {
	Description       string   `json:"description"`
	ActionType        string   `json:"action_type"` // yaml, terraform, command
	Content           string   `json:"content,omitempty"`
	EstimatedImpact   string   `json:"estimated_impact"`
	RollbackProcedure string   `json:"rollback_procedure"`
	ValidationSteps   []string `json:"validation_steps"`
}

// PreventiveMeasure describes how to keep the issue from recurring.
type PreventiveMeasure struct {
	Description    string `json:"description"`
	Implementation string `json:"implementation"`
	ResourceType   string `json:"resource_type"`
}

// Analysis is the structured output of issue reasoning.
type Analysis struct {
	RootCause          RootCause           `json:"root_cause"`
	RemediationSteps   []Step              `json:"remediation_steps"`
	PreventiveMeasures []PreventiveMeasure `json:"preventive_measures"`
	FullAnalysis       string              `json:"full_analysis,omitempty"`
}

// Fix is generated patch content plus the follow-up procedures pulled
// from the remediation steps.
type Fix struct {
	Content            string   `json:"content"`
	ValidationSteps    []string `json:"validation_steps"`
	RollbackProcedures []string `json:"rollback_procedures"`
}

// Engine reasons about issues through a chat model.
type Engine struct {
	llm    llm.LLM
	logger *zap.Logger
}

// New creates an Engine around an existing LLM client.
func New(l llm.LLM, logger *zap.Logger) *Engine {
	return &Engine{llm: l, logger: logger.Named("remediate")}
}

// NewFromEnv builds the LLM client from environment configuration.
func NewFromEnv(provider, modelName string, logger *zap.Logger) (*Engine, error) {
	client, err := llm.CreateFromEnv(provider, modelName)
	if err != nil {
		return nil, err
	}
	return New(client, logger), nil
}

// AnalyzeIssue asks the model for a root-cause analysis of the issue.
func (e *Engine) AnalyzeIssue(issue model.Issue) (*Analysis, error) {
	prompt, err := BuildAnalysisPrompt(issue)
	if err != nil {
		return nil, err
	}

	raw, err := e.llm.Chat(prompt)
	if err != nil {
		return nil, fmt.Errorf("LLM chat: %w", err)
	}

	return ParseAnalysis(raw), nil
}

// GenerateFix asks the model for concrete configuration changes
// implementing the analysis, and collects the validation and rollback
// procedures of its steps.
func (e *Engine) GenerateFix(issue model.Issue, analysis *Analysis) (*Fix, error) {
	prompt := BuildFixPrompt(issue, analysis)

	raw, err := e.llm.Chat(prompt)
	if err != nil {
		return nil, fmt.Errorf("LLM chat: %w", err)
	}

	fix := &Fix{Content: stripFences(raw)}
	for _, step := range analysis.RemediationSteps {
		fix.ValidationSteps = append(fix.ValidationSteps, step.ValidationSteps...)
		if step.RollbackProcedure != "" {
			fix.RollbackProcedures = append(fix.RollbackProcedures, step.RollbackProcedure)
		}
	}
	return fix, nil
}
