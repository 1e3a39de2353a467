package patch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/dynamic"
	sigsyaml "sigs.k8s.io/yaml"
)

var manifestValidationCommands = []string{
	"kubectl diff -f <file>",
	"kubectl apply --dry-run=server -f <file>",
}

// Kinds whose modification always warrants explicit operator review.
var sensitiveKinds = map[string]bool{
	"Node":      true,
	"Namespace": true,
}

var systemNamespaces = map[string]bool{
	"kube-system":     true,
	"kube-public":     true,
	"kube-node-lease": true,
}

// ManifestApplier creates resources in the cluster, optionally as a
// server-side dry run.
type ManifestApplier interface {
	Apply(ctx context.Context, docs []*unstructured.Unstructured, namespace string, dryRun bool) ([]string, error)
}

// GenerateManifestPatch renders changes against the template variables,
// deep-merges them into the original resource, and validates the result.
// Safety warnings are advisory; they never fail the generation.
func (p *Pipeline) GenerateManifestPatch(original, changes map[string]interface{}, vars map[string]string) *Result {
	rendered, err := renderChanges(changes, vars)
	if err != nil {
		return failure(err, false)
	}

	patched := deepMerge(original, rendered)

	originalYAML, err := yaml.Marshal(original)
	if err != nil {
		return failure(fmt.Errorf("failed to encode original resource: %w", err), false)
	}
	patchedYAML, err := yaml.Marshal(patched)
	if err != nil {
		return failure(fmt.Errorf("failed to encode patched resource: %w", err), false)
	}

	if err := ValidateManifest(string(patchedYAML)); err != nil {
		return failure(fmt.Errorf("generated manifest patch is invalid: %w", err), false)
	}

	return &Result{
		Success:            true,
		Original:           string(originalYAML),
		Patched:            string(patchedYAML),
		Warnings:           SafetyWarnings(patched),
		ValidationCommands: manifestValidationCommands,
	}
}

// renderChanges templates the change set through its JSON encoding so
// variables can appear in both keys and values.
func renderChanges(changes map[string]interface{}, vars map[string]string) (map[string]interface{}, error) {
	raw, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode changes: %w", err)
	}

	rendered, err := renderTemplate(string(raw), vars)
	if err != nil {
		return nil, err
	}

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(rendered), &out); err != nil {
		return nil, fmt.Errorf("rendered changes are not valid JSON: %w", err)
	}
	return out, nil
}

// ValidateManifest checks that every document in the stream parses and
// carries the required top-level fields.
func ValidateManifest(content string) error {
	docs, err := decodeDocuments(content)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return errors.New("manifest contains no documents")
	}

	for i, doc := range docs {
		for _, field := range []string{"apiVersion", "kind", "metadata"} {
			if _, ok := doc[field]; !ok {
				return fmt.Errorf("document %d missing required field: %s", i+1, field)
			}
		}
	}
	return nil
}

// SafetyWarnings flags operations that need careful review: sensitive
// cluster-scoped kinds, deletion markers, and system namespaces. Warnings
// never block an apply.
func SafetyWarnings(resource map[string]interface{}) []string {
	var warnings []string

	if kind, _ := resource["kind"].(string); sensitiveKinds[kind] {
		warnings = append(warnings, fmt.Sprintf("Operation affects %s - requires careful review", kind))
	}

	metadata, _ := resource["metadata"].(map[string]interface{})
	if metadata != nil {
		if ts, ok := metadata["deletionTimestamp"]; ok && ts != nil {
			warnings = append(warnings, "Operation involves deletion - requires careful review")
		}
		if ns, _ := metadata["namespace"].(string); systemNamespaces[ns] {
			warnings = append(warnings, fmt.Sprintf("Operation affects system namespace %s", ns))
		}
	}

	return warnings
}

// ApplyManifest validates and applies manifest content. With dryRun the
// apply is evaluated server-side without mutating cluster state.
func (p *Pipeline) ApplyManifest(ctx context.Context, content, namespace string, dryRun bool) *Result {
	if err := ValidateManifest(content); err != nil {
		return failure(err, dryRun)
	}

	docs, err := decodeDocuments(content)
	if err != nil {
		return failure(err, dryRun)
	}

	var warnings []string
	objs := make([]*unstructured.Unstructured, 0, len(docs))
	for _, doc := range docs {
		warnings = append(warnings, SafetyWarnings(doc)...)

		obj, err := toUnstructured(doc)
		if err != nil {
			return failure(err, dryRun)
		}
		objs = append(objs, obj)
	}

	if p.applier == nil {
		return failure(errors.New("no manifest applier configured"), dryRun)
	}

	applied, err := p.applier.Apply(ctx, objs, namespace, dryRun)
	if err != nil {
		p.logger.Error("manifest apply failed", zap.Bool("dry_run", dryRun), zap.Error(err))
		result := failure(err, dryRun)
		result.Warnings = warnings
		return result
	}

	return &Result{
		Success:            true,
		Patched:            content,
		Warnings:           warnings,
		ValidationCommands: manifestValidationCommands,
		AppliedResources:   applied,
		DryRun:             dryRun,
	}
}

func decodeDocuments(content string) ([]map[string]interface{}, error) {
	decoder := yaml.NewDecoder(strings.NewReader(content))

	var docs []map[string]interface{}
	for {
		var doc interface{}
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		if doc == nil {
			continue
		}

		m, ok := toStringMap(doc)
		if !ok {
			return nil, errors.New("resource must be a mapping")
		}
		docs = append(docs, m)
	}
	return docs, nil
}

// toStringMap normalizes yaml.v3's interface-keyed maps into string-keyed
// maps so documents can round-trip through JSON.
func toStringMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[k] = normalizeValue(val)
		}
		return out, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = normalizeValue(val)
		}
		return out, true
	default:
		return nil, false
	}
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}, map[interface{}]interface{}:
		if m, ok := toStringMap(val); ok {
			return m
		}
		return val
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return val
	}
}

func toUnstructured(doc map[string]interface{}) (*unstructured.Unstructured, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	// Round-trip through sigs yaml so k8s-typed fields normalize the way
	// the API machinery expects.
	jsonBytes, err := sigsyaml.YAMLToJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document: %w", err)
	}

	obj := &unstructured.Unstructured{}
	if err := obj.UnmarshalJSON(jsonBytes); err != nil {
		return nil, fmt.Errorf("document is not a Kubernetes object: %w", err)
	}
	return obj, nil
}

// DynamicApplier applies unstructured objects through the dynamic client.
type DynamicApplier struct {
	client dynamic.Interface
	mapper meta.RESTMapper
}

// NewDynamicApplier creates a DynamicApplier.
func NewDynamicApplier(client dynamic.Interface, mapper meta.RESTMapper) *DynamicApplier {
	return &DynamicApplier{client: client, mapper: mapper}
}

// Apply creates each object, honoring server-side dry run. It stops at
// the first failure; nothing is rolled back (apply is not transactional).
func (a *DynamicApplier) Apply(ctx context.Context, docs []*unstructured.Unstructured, namespace string, dryRun bool) ([]string, error) {
	opts := metav1.CreateOptions{}
	if dryRun {
		opts.DryRun = []string{metav1.DryRunAll}
	}

	var applied []string
	for _, obj := range docs {
		gvk := obj.GroupVersionKind()
		mapping, err := a.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
		if err != nil {
			return applied, fmt.Errorf("no mapping for %s: %w", gvk, err)
		}

		var ri dynamic.ResourceInterface = a.client.Resource(mapping.Resource)
		if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
			ns := obj.GetNamespace()
			if ns == "" {
				ns = namespace
			}
			if ns == "" {
				ns = "default"
			}
			ri = a.client.Resource(mapping.Resource).Namespace(ns)
		}

		created, err := ri.Create(ctx, obj, opts)
		if err != nil {
			return applied, fmt.Errorf("failed to create %s/%s: %w", gvk.Kind, obj.GetName(), err)
		}
		applied = append(applied, fmt.Sprintf("%s/%s", created.GetKind(), created.GetName()))
	}

	return applied, nil
}
