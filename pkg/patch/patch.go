// Package patch renders, validates and applies remediation patches for
// Kubernetes manifests and Terraform configurations.
package patch

import (
	"go.uber.org/zap"
)

// Type selects the patch flavor.
type Type string

const (
	TypeManifest  Type = "manifest"
	TypeTerraform Type = "terraform"
)

// Request describes a patch to evaluate or apply.
type Request struct {
	Type         Type              `json:"type"`
	Content      string            `json:"content"`
	Namespace    string            `json:"namespace,omitempty"`
	TemplateVars map[string]string `json:"template_vars,omitempty"`
	DryRun       bool              `json:"dry_run"`
}

// Result reports the outcome of a patch operation. Failures never escape
// the pipeline as panics or errors; they land here with Success=false.
type Result struct {
	Success            bool     `json:"success"`
	Original           string   `json:"original,omitempty"`
	Patched            string   `json:"patched,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
	ValidationCommands []string `json:"validation_commands,omitempty"`
	AppliedResources   []string `json:"applied_resources,omitempty"`
	Output             string   `json:"output,omitempty"`
	Error              string   `json:"error,omitempty"`
	DryRun             bool     `json:"dry_run"`
}

// ExitPolicy maps an external tool's exit codes to success. Terraform
// plan -detailed-exitcode reports 0 for "no changes" and 2 for "changes
// present"; both are successful outcomes.
type ExitPolicy map[int]bool

// DefaultExitPolicy accepts exit codes 0 and 2.
func DefaultExitPolicy() ExitPolicy {
	return ExitPolicy{0: true, 2: true}
}

// Success reports whether the exit code counts as success.
func (p ExitPolicy) Success(code int) bool {
	return p[code]
}

// Pipeline runs the render → validate → apply stages. Either backend may
// be nil when the corresponding patch flavor is not configured.
type Pipeline struct {
	applier ManifestApplier
	runner  TerraformRunner
	policy  ExitPolicy
	logger  *zap.Logger
}

// New creates a Pipeline with the default exit policy.
func New(applier ManifestApplier, runner TerraformRunner, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		applier: applier,
		runner:  runner,
		policy:  DefaultExitPolicy(),
		logger:  logger.Named("patch"),
	}
}

// WithExitPolicy replaces the exit-code-to-success mapping.
func (p *Pipeline) WithExitPolicy(policy ExitPolicy) *Pipeline {
	p.policy = policy
	return p
}

func failure(err error, dryRun bool) *Result {
	return &Result{Success: false, Error: err.Error(), DryRun: dryRun}
}
