package main

import (
	"fmt"
	"os"

	"github.com/adityassharma-ss/kubefix/cmd"
	"github.com/spf13/cobra"
)

var (
	version = "v1.0.0" // Overwritten at build time
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kubefix",
		Short: "AI-driven Kubernetes diagnostics and auto-remediation",
		Long: `kubefix continuously scans a cluster for operational anomalies (crash
loops, OOM kills, DNS/CNI failures, PV mount errors, autoscaler
misconfiguration), tracks them as issues, and generates, validates and
applies remediation patches with dry-run support.`,
		SilenceUsage: true,
	}

	// Disable automatic 'completion' command added by cobra
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Add subcommands
	rootCmd.AddCommand(
		cmd.NewScanCmd(),
		cmd.NewServeCmd(),
		cmd.NewAnalyzeCmd(),
		cmd.NewFixCmd(),
		cmd.NewPatchCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kubefix version %s\n", version)
		},
	}
}
