package k8s

import (
	"context"
	"fmt"

	autoscalingv1 "k8s.io/api/autoscaling/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps the Kubernetes API surface the scanner and patch pipeline
// consume. It is built on kubernetes.Interface so the fake clientset can
// stand in for tests.
type Client struct {
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
	config    *rest.Config
}

// NewClient creates a new Kubernetes client, preferring in-cluster
// configuration and falling back to the given kubeconfig.
func NewClient(kubeconfig string) (*Client, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	return &Client{
		clientset: clientset,
		dynamic:   dynamicClient,
		config:    config,
	}, nil
}

// NewWithClientset wraps an existing clientset. Used by tests with the
// fake clientset and by callers that manage their own config.
func NewWithClientset(clientset kubernetes.Interface) *Client {
	return &Client{clientset: clientset}
}

// GetClientset exposes the underlying clientset for collaborators that
// need raw API access (Prometheus service auto-detection).
func (c *Client) GetClientset() kubernetes.Interface {
	return c.clientset
}

// RESTConfig returns the client's rest config, or nil when the client was
// built from a bare clientset.
func (c *Client) RESTConfig() *rest.Config {
	return c.config
}

// Dynamic returns the dynamic client for unstructured resource access.
func (c *Client) Dynamic() dynamic.Interface {
	return c.dynamic
}

// ListNamespaces returns the names of all namespaces in the cluster.
func (c *Client) ListNamespaces(ctx context.Context) ([]string, error) {
	nsList, err := c.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}

	names := make([]string, 0, len(nsList.Items))
	for _, ns := range nsList.Items {
		names = append(names, ns.Name)
	}
	return names, nil
}

// ListPods returns all pods in a namespace.
func (c *Client) ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error) {
	podList, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods in %s: %w", namespace, err)
	}
	return podList.Items, nil
}

// GetPodEvents returns the events involving a specific pod.
func (c *Client) GetPodEvents(ctx context.Context, name, namespace string) ([]corev1.Event, error) {
	events, err := c.clientset.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{
		FieldSelector: fmt.Sprintf("involvedObject.name=%s", name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get events for pod %s/%s: %w", namespace, name, err)
	}
	return events.Items, nil
}

// GetPodLogs returns the current log of a pod's default container.
func (c *Client) GetPodLogs(ctx context.Context, name, namespace string) (string, error) {
	req := c.clientset.CoreV1().Pods(namespace).GetLogs(name, &corev1.PodLogOptions{})
	raw, err := req.DoRaw(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get logs for pod %s/%s: %w", namespace, name, err)
	}
	return string(raw), nil
}

// ListAutoscalers returns the horizontal pod autoscalers in a namespace.
func (c *Client) ListAutoscalers(ctx context.Context, namespace string) ([]autoscalingv1.HorizontalPodAutoscaler, error) {
	hpaList, err := c.clientset.AutoscalingV1().HorizontalPodAutoscalers(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list autoscalers in %s: %w", namespace, err)
	}
	return hpaList.Items, nil
}
