package formatter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/adityassharma-ss/kubefix/pkg/model"
	"github.com/adityassharma-ss/kubefix/pkg/patch"
	"github.com/adityassharma-ss/kubefix/pkg/remediate"
)

// DisplayIssues renders detected issues in the requested format.
func DisplayIssues(issues []model.Issue, format string) error {
	switch format {
	case "json":
		return displayJSON(issues)
	case "yaml":
		return displayYAML(issues)
	case "human":
		fallthrough
	default:
		displayIssuesHuman(issues)
	}
	return nil
}

// DisplayPatchResult renders a patch pipeline result.
func DisplayPatchResult(result *patch.Result, format string) error {
	switch format {
	case "json":
		return displayJSON(result)
	case "yaml":
		return displayYAML(result)
	case "human":
		fallthrough
	default:
		displayPatchHuman(result)
	}
	return nil
}

// DisplayAnalysis renders a remediation analysis.
func DisplayAnalysis(analysis *remediate.Analysis, format string) error {
	switch format {
	case "json":
		return displayJSON(analysis)
	case "yaml":
		return displayYAML(analysis)
	case "human":
		fallthrough
	default:
		displayAnalysisHuman(analysis)
	}
	return nil
}

func displayJSON(v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}

func displayYAML(v interface{}) error {
	output, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}

func displayIssuesHuman(issues []model.Issue) {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Println()

	if len(issues) == 0 {
		green := color.New(color.FgGreen, color.Bold)
		green.Println("✓ No active issues detected")
		return
	}

	cyan.Printf("⚠️  %d ACTIVE ISSUES:\n\n", len(issues))
	for i, issue := range issues {
		icon := getSeverityIcon(string(issue.Severity))
		fmt.Printf("   %d. %s [%s] %s/%s (%s)\n", i+1, icon,
			strings.ToUpper(string(issue.Severity)),
			issue.ResourceType, issue.ResourceName, issue.Namespace)
		fmt.Printf("      Type: %s\n", issue.Type)
		if issue.Message != "" {
			fmt.Printf("      %s\n", issue.Message)
		}
		fmt.Printf("      ID: %s  Detected: %s\n", issue.ID, issue.DetectedAt.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}

	fmt.Println(strings.Repeat("─", 80))
	fmt.Printf("💡 %s\n", color.HiBlackString("Run with -o json or -o yaml for machine-readable output"))
}

func displayPatchHuman(result *patch.Result) {
	fmt.Println()
	if result.Success {
		green := color.New(color.FgGreen, color.Bold)
		if result.DryRun {
			green.Println("✓ DRY RUN SUCCEEDED (no changes were made)")
		} else {
			green.Println("✓ PATCH APPLIED")
		}
	} else {
		red := color.New(color.FgRed, color.Bold)
		red.Println("✗ PATCH FAILED:")
		fmt.Printf("   %s\n", result.Error)
	}

	if len(result.Warnings) > 0 {
		yellow := color.New(color.FgYellow, color.Bold)
		fmt.Println()
		yellow.Println("⚠️  WARNINGS:")
		for _, w := range result.Warnings {
			fmt.Printf("   - %s\n", color.YellowString(w))
		}
	}

	if len(result.AppliedResources) > 0 {
		fmt.Println()
		fmt.Println("Applied resources:")
		for _, r := range result.AppliedResources {
			fmt.Printf("   - %s\n", r)
		}
	}

	if result.Output != "" {
		fmt.Println()
		fmt.Println(result.Output)
	}

	if len(result.ValidationCommands) > 0 {
		cyan := color.New(color.FgCyan, color.Bold)
		fmt.Println()
		cyan.Println("💡 FOLLOW-UP VALIDATION:")
		for _, cmd := range result.ValidationCommands {
			fmt.Printf("   %s\n", color.CyanString(cmd))
		}
	}
	fmt.Println()
}

func displayAnalysisHuman(analysis *remediate.Analysis) {
	red := color.New(color.FgRed, color.Bold)
	cyan := color.New(color.FgCyan, color.Bold)
	white := color.New(color.FgWhite, color.Bold)

	fmt.Println()
	red.Println("💡 ROOT CAUSE IDENTIFIED:")
	fmt.Printf("   %s\n", analysis.RootCause.Cause)
	if analysis.RootCause.Confidence > 0 {
		fmt.Printf("   Confidence: %.0f%%\n", analysis.RootCause.Confidence*100)
	}
	if analysis.RootCause.Impact != "" {
		fmt.Printf("   Impact: %s\n", analysis.RootCause.Impact)
	}
	fmt.Println()

	if len(analysis.RemediationSteps) > 0 {
		cyan.Println("🔧 REMEDIATION STEPS:")
		for i, step := range analysis.RemediationSteps {
			fmt.Printf("   %d. %s\n", i+1, step.Description)
			if step.Content != "" {
				fmt.Printf("      %s\n", color.CyanString(step.Content))
			}
			if step.RollbackProcedure != "" {
				fmt.Printf("      Rollback: %s\n", step.RollbackProcedure)
			}
			fmt.Println()
		}
	}

	if analysis.FullAnalysis != "" {
		white.Println("📄 DETAILED ANALYSIS:")
		fmt.Println(wrapText(analysis.FullAnalysis, 80, "   "))
		fmt.Println()
	}
}

func getSeverityIcon(severity string) string {
	switch strings.ToLower(severity) {
	case "critical":
		return "🔴"
	case "high":
		return "🟠"
	case "medium":
		return "🟡"
	case "low":
		return "🟢"
	default:
		return "⚪"
	}
}

func wrapText(text string, width int, indent string) string {
	var result strings.Builder
	lines := strings.Split(text, "\n")

	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			result.WriteString("\n")
			continue
		}

		currentLine := indent
		for _, word := range words {
			if len(currentLine)+len(word)+1 > width {
				result.WriteString(currentLine + "\n")
				currentLine = indent + word
			} else if currentLine == indent {
				currentLine += word
			} else {
				currentLine += " " + word
			}
		}

		if currentLine != indent {
			result.WriteString(currentLine + "\n")
		}
	}

	return strings.TrimSuffix(result.String(), "\n")
}
