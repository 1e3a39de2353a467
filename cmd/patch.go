package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"k8s.io/client-go/discovery"
	memcache "k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/util/homedir"

	"github.com/adityassharma-ss/kubefix/pkg/formatter"
	"github.com/adityassharma-ss/kubefix/pkg/k8s"
	"github.com/adityassharma-ss/kubefix/pkg/patch"
)

var (
	patchKubeconfig   string
	patchFile         string
	patchType         string
	patchNamespace    string
	patchDryRun       bool
	patchOutputFormat string
)

func NewPatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Validate and apply a remediation patch",
		Long: `Run a patch file through the pipeline: validation, safety checks and
application. Dry-run is the default; pass --dry-run=false to apply.

Examples:
  # Server-side dry run of a manifest patch
  kubefix patch -f fix.yaml -n production

  # Actually apply it
  kubefix patch -f fix.yaml -n production --dry-run=false

  # Plan a terraform patch
  kubefix patch -f fix.tf --type terraform`,
		Args: cobra.NoArgs,
		RunE: runPatch,
	}

	if home := homedir.HomeDir(); home != "" {
		cmd.Flags().StringVar(&patchKubeconfig, "kubeconfig", filepath.Join(home, ".kube", "config"), "Path to kubeconfig file")
	}

	cmd.Flags().StringVarP(&patchFile, "file", "f", "", "Patch file to apply (required)")
	cmd.Flags().StringVar(&patchType, "type", "manifest", "Patch type (manifest, terraform)")
	cmd.Flags().StringVarP(&patchNamespace, "namespace", "n", "default", "Namespace for namespaced resources")
	cmd.Flags().BoolVar(&patchDryRun, "dry-run", true, "Validate without making changes")
	cmd.Flags().StringVarP(&patchOutputFormat, "output", "o", "human", "Output format (human, json, yaml)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func runPatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	content, err := os.ReadFile(patchFile)
	if err != nil {
		return fmt.Errorf("failed to read patch file: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Println()
	cyan.Println("🩹 KubeFix Patch Pipeline")
	fmt.Printf("📄 File: %s (%s)\n", patchFile, patchType)
	if patchDryRun {
		fmt.Println("🔒 Mode: dry run")
	} else {
		printWarning("Mode: live apply")
	}
	fmt.Println()

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Suffix = " Connecting to Kubernetes cluster..."
	s.Start()

	client, err := k8s.NewClient(patchKubeconfig)
	if err != nil {
		s.Stop()
		return fmt.Errorf("failed to connect to cluster: %w", err)
	}

	dc, err := discovery.NewDiscoveryClientForConfig(client.RESTConfig())
	if err != nil {
		s.Stop()
		return fmt.Errorf("failed to create discovery client: %w", err)
	}
	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memcache.NewMemCacheClient(dc))

	pipeline := patch.New(patch.NewDynamicApplier(client.Dynamic(), mapper), patch.NewExecRunner(), zap.NewNop())

	s.Suffix = " Running patch pipeline..."

	var result *patch.Result
	switch patchType {
	case string(patch.TypeTerraform):
		result = pipeline.ApplyTerraform(ctx, string(content), patchDryRun)
	case string(patch.TypeManifest):
		result = pipeline.ApplyManifest(ctx, string(content), patchNamespace, patchDryRun)
	default:
		s.Stop()
		return fmt.Errorf("unknown patch type: %s", patchType)
	}
	s.Stop()

	if err := formatter.DisplayPatchResult(result, patchOutputFormat); err != nil {
		return err
	}
	if !result.Success {
		printError("Patch pipeline failed")
		os.Exit(1)
	}
	return nil
}
