package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"k8s.io/client-go/discovery"
	memcache "k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/restmapper"

	"github.com/adityassharma-ss/kubefix/pkg/config"
	"github.com/adityassharma-ss/kubefix/pkg/detect"
	"github.com/adityassharma-ss/kubefix/pkg/k8s"
	"github.com/adityassharma-ss/kubefix/pkg/metrics"
	"github.com/adityassharma-ss/kubefix/pkg/patch"
	"github.com/adityassharma-ss/kubefix/pkg/registry"
	"github.com/adityassharma-ss/kubefix/pkg/remediate"
	"github.com/adityassharma-ss/kubefix/pkg/scanner"
	"github.com/adityassharma-ss/kubefix/pkg/server"
)

var serveConfigPath string

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the continuous scanner and HTTP API",
		Long: `Start the long-running kubefix service: a background scanner that
sweeps every namespace on an interval and an HTTP API exposing the
issue registry, LLM analysis and the patch pipeline.

Configuration is read from an optional file plus KUBEFIX_* environment
variables (KUBEFIX_SERVER_ADDR, KUBEFIX_SCAN_INTERVAL, ...).`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to config file")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return err
	}

	app := fx.New(
		fx.Supply(cfg),
		fx.Provide(
			newLogger,
			newKubeClient,
			newMetricsSource,
			registry.New,
			newDetector,
			newScanner,
			newPipeline,
			newEngine,
			newServer,
		),
		fx.Invoke(registerHooks),
		fx.NopLogger,
	)

	app.Run()
	return nil
}

func newLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

func newKubeClient(cfg *config.Config) (*k8s.Client, error) {
	return k8s.NewClient(cfg.Kubernetes.Kubeconfig)
}

// newMetricsSource returns nil when no Prometheus endpoint is reachable;
// metric-backed signatures are then skipped.
func newMetricsSource(cfg *config.Config, client *k8s.Client, logger *zap.Logger) metrics.Source {
	promClient, err := metrics.NewClient(cfg.Prometheus.URL, cfg.Prometheus.Namespace, client.GetClientset())
	if err != nil {
		logger.Warn("prometheus unavailable, metric-backed checks disabled", zap.Error(err))
		return nil
	}
	if err := promClient.TestConnection(context.Background()); err != nil {
		logger.Warn("prometheus unreachable, metric-backed checks disabled",
			zap.String("url", promClient.GetURL()), zap.Error(err))
		return nil
	}
	logger.Info("connected to prometheus", zap.String("url", promClient.GetURL()))
	return promClient
}

func newDetector(client *k8s.Client, source metrics.Source, logger *zap.Logger) *detect.Detector {
	return detect.New(client, source, logger)
}

func newScanner(cfg *config.Config, client *k8s.Client, detector *detect.Detector, reg *registry.Registry, logger *zap.Logger) *scanner.Scanner {
	return scanner.New(client, detector, reg, logger,
		scanner.WithInterval(cfg.Scan.Interval),
		scanner.WithErrorBackoff(cfg.Scan.ErrorBackoff),
	)
}

func newPipeline(cfg *config.Config, client *k8s.Client, logger *zap.Logger) (*patch.Pipeline, error) {
	restConfig := client.RESTConfig()
	if restConfig == nil {
		return nil, fmt.Errorf("kubernetes client has no rest config")
	}

	dc, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}
	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memcache.NewMemCacheClient(dc))

	runner := patch.NewExecRunner()
	runner.Binary = cfg.Terraform.Binary
	runner.Timeout = cfg.Terraform.Timeout

	return patch.New(patch.NewDynamicApplier(client.Dynamic(), mapper), runner, logger), nil
}

// newEngine degrades to nil when no LLM provider is configured; the
// analyze and remediate endpoints then answer 503.
func newEngine(cfg *config.Config, logger *zap.Logger) *remediate.Engine {
	engine, err := remediate.NewFromEnv(cfg.LLM.Provider, cfg.LLM.Model, logger)
	if err != nil {
		logger.Warn("remediation engine disabled", zap.Error(err))
		return nil
	}
	return engine
}

func newServer(cfg *config.Config, reg *registry.Registry, pipeline *patch.Pipeline, engine *remediate.Engine, logger *zap.Logger) *server.Server {
	return server.New(cfg.Server.Addr, reg, pipeline, engine, logger)
}

func registerHooks(lc fx.Lifecycle, srv *server.Server, sc *scanner.Scanner, logger *zap.Logger) {
	scanCtx, cancelScan := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := sc.Run(scanCtx); err != nil && scanCtx.Err() == nil {
					logger.Error("scanner stopped", zap.Error(err))
				}
			}()
			go func() {
				if err := srv.Start(); err != nil {
					logger.Warn("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancelScan()
			return srv.Shutdown(ctx)
		},
	})
}
