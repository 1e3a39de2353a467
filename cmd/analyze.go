package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/adityassharma-ss/kubefix/pkg/formatter"
	"github.com/adityassharma-ss/kubefix/pkg/patch"
	"github.com/adityassharma-ss/kubefix/pkg/remediate"
)

var (
	analyzeAPIURL       string
	analyzeOutputFormat string

	fixAPIURL       string
	fixType         string
	fixDryRun       bool
	fixOutputFile   string
	fixOutputFormat string
)

func defaultAPIURL() string {
	if url := os.Getenv("KUBEFIX_API_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <issue-id>",
		Short: "Get a root-cause analysis for a detected issue",
		Long: `Ask the running kubefix service for an AI root-cause analysis of a
registered issue. Issue ids come from the serve process ('kubefix scan'
output or GET /api/v1/issues).

Examples:
  kubefix analyze 3f2a1c9e-...
  kubefix analyze 3f2a1c9e-... -o json`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().StringVar(&analyzeAPIURL, "api-url", defaultAPIURL(), "Base URL of the kubefix API")
	cmd.Flags().StringVarP(&analyzeOutputFormat, "output", "o", "human", "Output format (human, json, yaml)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Suffix = " Analyzing issue..."
	s.Start()

	var analysis remediate.Analysis
	err := callAPI(analyzeAPIURL, http.MethodPost, "/api/v1/analyze/"+args[0], nil, &analysis)
	s.Stop()
	if err != nil {
		return err
	}

	return formatter.DisplayAnalysis(&analysis, analyzeOutputFormat)
}

// remediateResponse mirrors the serve process's remediation payload.
type remediateResponse struct {
	IssueID     string              `json:"issue_id"`
	Analysis    *remediate.Analysis `json:"analysis"`
	Fix         *remediate.Fix      `json:"fix"`
	Precautions []string            `json:"precautions"`
}

func NewFixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix <issue-id>",
		Short: "Generate (and optionally apply) a remediation for an issue",
		Long: `Ask the running kubefix service for generated fix content. Dry-run is
the default; pass --dry-run=false to push the fix through the patch
pipeline after review.

Examples:
  # Review the generated fix
  kubefix fix 3f2a1c9e-...

  # Save it for editing
  kubefix fix 3f2a1c9e-... --output fix.yaml

  # Apply it through the patch pipeline
  kubefix fix 3f2a1c9e-... --dry-run=false`,
		Args: cobra.ExactArgs(1),
		RunE: runFix,
	}

	cmd.Flags().StringVar(&fixAPIURL, "api-url", defaultAPIURL(), "Base URL of the kubefix API")
	cmd.Flags().StringVar(&fixType, "type", string(patch.TypeManifest), "Patch type for apply (manifest, terraform)")
	cmd.Flags().BoolVar(&fixDryRun, "dry-run", true, "Generate without applying changes")
	cmd.Flags().StringVar(&fixOutputFile, "output", "", "Save fix content to a file")
	cmd.Flags().StringVarP(&fixOutputFormat, "output-format", "f", "human", "Output format (human, json, yaml)")

	return cmd
}

func runFix(cmd *cobra.Command, args []string) error {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Suffix = " Generating remediation..."
	s.Start()

	var resp remediateResponse
	err := callAPI(fixAPIURL, http.MethodPost, "/api/v1/remediate",
		map[string]string{"issue_id": args[0]}, &resp)
	s.Stop()
	if err != nil {
		return err
	}

	if resp.Analysis != nil {
		if err := formatter.DisplayAnalysis(resp.Analysis, fixOutputFormat); err != nil {
			return err
		}
	}

	if resp.Fix == nil || resp.Fix.Content == "" {
		printWarning("No fix content was generated")
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Println("🔧 GENERATED FIX:")
	fmt.Println(resp.Fix.Content)

	if len(resp.Precautions) > 0 {
		yellow := color.New(color.FgYellow, color.Bold)
		fmt.Println()
		yellow.Println("⚠️  PRECAUTIONS:")
		for _, p := range resp.Precautions {
			fmt.Printf("   - %s\n", p)
		}
	}

	if fixOutputFile != "" {
		if err := os.WriteFile(fixOutputFile, []byte(resp.Fix.Content), 0o600); err != nil {
			return fmt.Errorf("failed to save fix: %w", err)
		}
		printSuccess(fmt.Sprintf("Fix saved to %s", fixOutputFile))
	}

	if fixDryRun {
		fmt.Println()
		fmt.Printf("💡 %s\n", color.HiBlackString("Re-run with --dry-run=false to apply through the patch pipeline"))
		return nil
	}

	s.Suffix = " Applying fix..."
	s.Start()

	var result patch.Result
	err = callAPI(fixAPIURL, http.MethodPost, "/api/v1/apply-patch", patch.Request{
		Type:    patch.Type(fixType),
		Content: resp.Fix.Content,
		DryRun:  false,
	}, &result)
	s.Stop()
	if err != nil {
		return err
	}

	if err := formatter.DisplayPatchResult(&result, fixOutputFormat); err != nil {
		return err
	}
	if !result.Success {
		printError("Fix apply failed")
		os.Exit(1)
	}
	return nil
}

// callAPI posts an optional JSON body to the kubefix API and decodes the
// JSON response into out.
func callAPI(baseURL, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	url := strings.TrimSuffix(baseURL, "/") + path
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach kubefix API at %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return json.Unmarshal(raw, out)
}
