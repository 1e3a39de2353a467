package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"k8s.io/client-go/util/homedir"

	"github.com/adityassharma-ss/kubefix/pkg/detect"
	"github.com/adityassharma-ss/kubefix/pkg/formatter"
	"github.com/adityassharma-ss/kubefix/pkg/k8s"
	"github.com/adityassharma-ss/kubefix/pkg/metrics"
	"github.com/adityassharma-ss/kubefix/pkg/registry"
)

var (
	scanKubeconfig    string
	scanNamespace     string
	scanAllNamespaces bool
	scanPromURL       string
	scanPromNamespace string
	scanOutputFormat  string
	scanVerbose       bool
)

func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the cluster for operational issues",
		Long: `Run one detection cycle over the cluster and report the issues found.

Examples:
  # Scan a single namespace
  kubefix scan -n production

  # Scan every namespace
  kubefix scan --all

  # Scan with an explicit Prometheus endpoint for metric-backed checks
  kubefix scan --all --prometheus-url http://localhost:9090

  # Machine-readable output
  kubefix scan -n production -o json`,
		Args: cobra.NoArgs,
		RunE: runScan,
	}

	if home := homedir.HomeDir(); home != "" {
		cmd.Flags().StringVar(&scanKubeconfig, "kubeconfig", filepath.Join(home, ".kube", "config"), "Path to kubeconfig file")
	}

	cmd.Flags().StringVarP(&scanNamespace, "namespace", "n", "default", "Kubernetes namespace to scan")
	cmd.Flags().BoolVar(&scanAllNamespaces, "all", false, "Scan all namespaces")
	cmd.Flags().StringVar(&scanPromURL, "prometheus-url", "", "Prometheus URL (auto-detected when empty)")
	cmd.Flags().StringVar(&scanPromNamespace, "prometheus-namespace", "", "Namespace to search for the Prometheus service")
	cmd.Flags().StringVarP(&scanOutputFormat, "output", "o", "human", "Output format (human, json, yaml)")
	cmd.Flags().BoolVarP(&scanVerbose, "verbose", "v", false, "Verbose output")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := zap.NewNop()
	if scanVerbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
	}

	printScanHeader()

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Suffix = " Connecting to Kubernetes cluster..."
	s.Start()

	client, err := k8s.NewClient(scanKubeconfig)
	if err != nil {
		s.Stop()
		return fmt.Errorf("failed to connect to cluster: %w", err)
	}
	s.Stop()
	printSuccess("Connected to Kubernetes cluster")

	// Metric-backed signatures are skipped when Prometheus is unreachable.
	var source metrics.Source
	promClient, err := metrics.NewClient(scanPromURL, scanPromNamespace, client.GetClientset())
	if err == nil && promClient.TestConnection(ctx) == nil {
		source = promClient
		printSuccess(fmt.Sprintf("Connected to Prometheus: %s", promClient.GetURL()))
	} else {
		printWarning("Prometheus unavailable, skipping metric-backed checks")
	}

	s.Suffix = " Scanning for issues..."
	s.Start()

	namespaces := []string{scanNamespace}
	if scanAllNamespaces {
		namespaces, err = client.ListNamespaces(ctx)
		if err != nil {
			s.Stop()
			return fmt.Errorf("failed to list namespaces: %w", err)
		}
	}

	detector := detect.New(client, source, logger)
	reg := registry.New()
	for _, namespace := range namespaces {
		for _, f := range detector.ScanNamespace(ctx, namespace) {
			reg.Ingest(f.Candidate, f.Namespace, f.ResourceName, f.ResourceType)
		}
	}

	s.Stop()
	issues := reg.ListActive("")
	printSuccess(fmt.Sprintf("Scanned %d namespaces, found %d issues", len(namespaces), len(issues)))

	return formatter.DisplayIssues(issues, scanOutputFormat)
}

func printScanHeader() {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Println()
	cyan.Println("🔍 KubeFix Cluster Scanner")
	if scanAllNamespaces {
		fmt.Println("📍 Namespaces: all")
	} else {
		fmt.Printf("📍 Namespace: %s\n", scanNamespace)
	}
	fmt.Println()
}

func printSuccess(msg string) {
	green := color.New(color.FgGreen)
	green.Printf("✓ %s\n", msg)
}

func printWarning(msg string) {
	yellow := color.New(color.FgYellow)
	yellow.Printf("! %s\n", msg)
}

func printError(msg string) {
	red := color.New(color.FgRed)
	red.Printf("✗ %s\n", msg)
}
