// Package scanner drives the continuous detection loop across the cluster.
package scanner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/adityassharma-ss/kubefix/pkg/detect"
	"github.com/adityassharma-ss/kubefix/pkg/registry"
)

const (
	// DefaultInterval is the sleep between successful scan cycles.
	DefaultInterval = 60 * time.Second

	// DefaultErrorBackoff is the shortened sleep after a failed cycle.
	DefaultErrorBackoff = 5 * time.Second
)

// NamespaceLister enumerates the namespaces a cycle will scan.
type NamespaceLister interface {
	ListNamespaces(ctx context.Context) ([]string, error)
}

// Scanner runs detection cycles at a fixed interval, ingesting every
// finding into the registry and pruning after each cycle.
type Scanner struct {
	cluster  NamespaceLister
	detector *detect.Detector
	registry *registry.Registry
	logger   *zap.Logger

	interval     time.Duration
	errorBackoff time.Duration
}

// Option adjusts scanner timing.
type Option func(*Scanner)

// WithInterval overrides the inter-cycle sleep.
func WithInterval(d time.Duration) Option {
	return func(s *Scanner) { s.interval = d }
}

// WithErrorBackoff overrides the post-error sleep.
func WithErrorBackoff(d time.Duration) Option {
	return func(s *Scanner) { s.errorBackoff = d }
}

// New creates a Scanner.
func New(cluster NamespaceLister, detector *detect.Detector, reg *registry.Registry, logger *zap.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		cluster:      cluster,
		detector:     detector,
		registry:     reg,
		logger:       logger.Named("scanner"),
		interval:     DefaultInterval,
		errorBackoff: DefaultErrorBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run loops until the context is cancelled. A failed cycle is logged and
// retried after the error backoff; the loop is never fatal because of a
// single cycle's failure.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("starting scanner",
		zap.Duration("interval", s.interval),
		zap.Duration("error_backoff", s.errorBackoff))

	for {
		delay := s.interval
		if err := s.ScanOnce(ctx); err != nil {
			if ctx.Err() != nil {
				s.logger.Info("scanner stopped")
				return nil
			}
			s.logger.Error("scan cycle failed", zap.Error(err))
			delay = s.errorBackoff
		}

		select {
		case <-ctx.Done():
			s.logger.Info("scanner stopped")
			return nil
		case <-time.After(delay):
		}
	}
}

// ScanOnce runs one full cycle: every namespace is scanned in turn, all
// of a namespace's findings are ingested before the next namespace is
// visited, and resolved issues are pruned at the end.
func (s *Scanner) ScanOnce(ctx context.Context) error {
	namespaces, err := s.cluster.ListNamespaces(ctx)
	if err != nil {
		return err
	}

	total := 0
	for _, namespace := range namespaces {
		findings := s.detector.ScanNamespace(ctx, namespace)
		for _, f := range findings {
			s.registry.Ingest(f.Candidate, f.Namespace, f.ResourceName, f.ResourceType)
		}
		total += len(findings)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	pruned := s.registry.Prune()
	s.logger.Info("scan cycle complete",
		zap.Int("namespaces", len(namespaces)),
		zap.Int("findings", total),
		zap.Int("pruned", pruned))

	return nil
}
