package patch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

var terraformValidationCommands = []string{
	"terraform fmt",
	"terraform validate",
	"terraform plan",
}

// TerraformRunner drives an external plan/apply tool against a workspace
// directory. Exit code, stdout and stderr are surfaced so the pipeline's
// exit policy can judge the outcome.
type TerraformRunner interface {
	Init(ctx context.Context, dir string) error
	Validate(ctx context.Context, dir string) (int, string, string, error)
	Plan(ctx context.Context, dir string) (int, string, string, error)
	Apply(ctx context.Context, dir string) (int, string, string, error)
}

// GenerateTerraformPatch renders the resource block against the template
// variables, appends it to the original document, and validates the
// result in an isolated workspace.
func (p *Pipeline) GenerateTerraformPatch(ctx context.Context, original, resourceBlock string, vars map[string]string) *Result {
	rendered, err := renderTemplate(resourceBlock, vars)
	if err != nil {
		return failure(err, false)
	}

	patched := original + "\n" + rendered

	if p.runner == nil {
		return failure(errors.New("no terraform runner configured"), false)
	}

	workspace, cleanup, err := p.workspace(patched)
	if err != nil {
		return failure(err, false)
	}
	defer cleanup()

	if err := p.runner.Init(ctx, workspace); err != nil {
		return failure(fmt.Errorf("terraform init failed: %w", err), false)
	}

	code, _, stderr, err := p.runner.Validate(ctx, workspace)
	if err != nil {
		return failure(fmt.Errorf("terraform validate failed: %w", err), false)
	}
	if code != 0 {
		return failure(fmt.Errorf("generated terraform patch is invalid: %s", stderr), false)
	}

	return &Result{
		Success:            true,
		Original:           original,
		Patched:            patched,
		ValidationCommands: terraformValidationCommands,
	}
}

// ApplyTerraform plans (dry run) or applies terraform content in a fresh
// workspace. The workspace is removed unconditionally afterwards.
func (p *Pipeline) ApplyTerraform(ctx context.Context, content string, dryRun bool) *Result {
	if p.runner == nil {
		return failure(errors.New("no terraform runner configured"), dryRun)
	}

	workspace, cleanup, err := p.workspace(content)
	if err != nil {
		return failure(err, dryRun)
	}
	defer cleanup()

	if err := p.runner.Init(ctx, workspace); err != nil {
		return failure(fmt.Errorf("terraform init failed: %w", err), dryRun)
	}

	var (
		code           int
		stdout, stderr string
	)
	if dryRun {
		code, stdout, stderr, err = p.runner.Plan(ctx, workspace)
	} else {
		code, stdout, stderr, err = p.runner.Apply(ctx, workspace)
	}
	if err != nil {
		return failure(err, dryRun)
	}

	if !p.policy.Success(code) {
		p.logger.Error("terraform run failed",
			zap.Int("exit_code", code), zap.Bool("dry_run", dryRun))
		return &Result{
			Success: false,
			Output:  stdout,
			Error:   stderr,
			DryRun:  dryRun,
		}
	}

	return &Result{
		Success:            true,
		Patched:            content,
		Output:             stdout,
		ValidationCommands: terraformValidationCommands,
		DryRun:             dryRun,
	}
}

// workspace writes content into a fresh temp directory. The cleanup
// function removes it regardless of the operation's outcome.
func (p *Pipeline) workspace(content string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "kubefix-tf-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	if err := os.WriteFile(filepath.Join(dir, "main.tf"), []byte(content), 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write workspace: %w", err)
	}
	return dir, cleanup, nil
}

// ExecRunner shells out to the terraform binary.
type ExecRunner struct {
	// Binary is the tool to invoke; defaults to "terraform".
	Binary string

	// Timeout bounds every invocation; in-flight runs are not otherwise
	// preemptible.
	Timeout time.Duration
}

// NewExecRunner creates an ExecRunner with a 10 minute per-command timeout.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Binary: "terraform", Timeout: 10 * time.Minute}
}

func (r *ExecRunner) Init(ctx context.Context, dir string) error {
	code, _, stderr, err := r.run(ctx, dir, "init", "-input=false", "-no-color")
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("exit code %d: %s", code, stderr)
	}
	return nil
}

func (r *ExecRunner) Validate(ctx context.Context, dir string) (int, string, string, error) {
	return r.run(ctx, dir, "validate", "-no-color")
}

func (r *ExecRunner) Plan(ctx context.Context, dir string) (int, string, string, error) {
	return r.run(ctx, dir, "plan", "-input=false", "-no-color", "-detailed-exitcode")
}

func (r *ExecRunner) Apply(ctx context.Context, dir string) (int, string, string, error) {
	return r.run(ctx, dir, "apply", "-input=false", "-no-color", "-auto-approve")
}

func (r *ExecRunner) run(ctx context.Context, dir string, args ...string) (int, string, string, error) {
	binary := r.Binary
	if binary == "" {
		binary = "terraform"
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), stdout.String(), stderr.String(), nil
		}
		return -1, stdout.String(), stderr.String(), fmt.Errorf("failed to run %s: %w", binary, err)
	}

	return 0, stdout.String(), stderr.String(), nil
}
