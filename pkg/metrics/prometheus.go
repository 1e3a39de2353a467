package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Client queries the Prometheus HTTP API.
type Client struct {
	url    string
	client *http.Client
}

// PrometheusResponse represents the response from the Prometheus API.
type PrometheusResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Value  []interface{}     `json:"value,omitempty"`
		} `json:"result"`
	} `json:"data"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
}

// NewClient creates a Prometheus client. When prometheusURL is empty the
// service is auto-detected through the Kubernetes API.
func NewClient(prometheusURL, prometheusNamespace string, clientset kubernetes.Interface) (*Client, error) {
	finalURL := prometheusURL
	if finalURL == "" {
		serviceName, serviceNamespace, servicePort, err := detectPrometheusService(clientset, prometheusNamespace)
		if err != nil {
			return nil, fmt.Errorf("failed to auto-detect Prometheus: %w", err)
		}
		finalURL = fmt.Sprintf("http://%s.%s.svc.cluster.local:%d", serviceName, serviceNamespace, servicePort)
	}

	if !strings.HasPrefix(finalURL, "http") {
		finalURL = "http://" + finalURL
	}
	if !strings.HasSuffix(finalURL, "/") {
		finalURL += "/"
	}

	return &Client{
		url:    finalURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// GetURL returns the Prometheus base URL.
func (p *Client) GetURL() string {
	return p.url
}

// IsRunningInCluster checks for the standard service account token.
func IsRunningInCluster() bool {
	if _, err := os.Stat("/var/run/secrets/kubernetes.io/serviceaccount/token"); err == nil {
		return true
	}
	return false
}

// detectPrometheusService finds the Prometheus service by trying common
// service names across common namespaces.
func detectPrometheusService(clientset kubernetes.Interface, prometheusNamespace string) (string, string, int, error) {
	servicePatterns := []string{
		"prometheus-server",
		"prometheus-service",
		"prometheus",
		"kube-prometheus-stack-prometheus",
		"prometheus-kube-prometheus-prometheus",
	}

	namespaces := []string{
		"prometheus-system",
		"prometheus",
		"monitoring",
		"kube-prometheus-stack",
		"observability",
		"default",
	}

	if prometheusNamespace != "" {
		namespaces = []string{prometheusNamespace}
	}

	for _, ns := range namespaces {
		for _, pattern := range servicePatterns {
			service, err := clientset.CoreV1().Services(ns).Get(context.TODO(), pattern, metav1.GetOptions{})
			if err == nil {
				port := 80
				if len(service.Spec.Ports) > 0 {
					port = int(service.Spec.Ports[0].Port)
				}
				return service.Name, ns, port, nil
			}
		}
	}

	return "", "", 0, fmt.Errorf("could not auto-detect Prometheus service in any of the following namespaces: %v", namespaces)
}

// TestConnection verifies the Prometheus API answers a trivial query.
func (p *Client) TestConnection(ctx context.Context) error {
	_, err := p.Query(ctx, "up")
	return err
}

// Query executes an instant query and returns the labeled samples.
// A query that matches nothing returns an empty slice and no error.
func (p *Client) Query(ctx context.Context, expr string) ([]Sample, error) {
	params := url.Values{}
	params.Add("query", expr)
	fullURL := p.url + "api/v1/query?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	var promResp PrometheusResponse
	if err := json.NewDecoder(resp.Body).Decode(&promResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if promResp.Status != "success" {
		return nil, fmt.Errorf("Prometheus API error: %s", promResp.Error)
	}

	var samples []Sample
	for _, result := range promResp.Data.Result {
		if len(result.Value) < 2 {
			continue
		}
		ts, _ := result.Value[0].(float64)
		valueStr, _ := result.Value[1].(string)
		value, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			continue
		}
		samples = append(samples, Sample{
			Labels:    result.Metric,
			Value:     value,
			Timestamp: time.Unix(int64(ts), 0),
		})
	}

	return samples, nil
}

// PodMetrics returns the current CPU and memory readings for a pod,
// keyed by metric name. Pods with no samples yield an empty map.
func PodMetrics(ctx context.Context, source Source, podName, namespace string) map[string]float64 {
	out := make(map[string]float64)

	for name, query := range map[string]string{
		"cpu":    PodCPUQuery,
		"memory": PodMemoryQuery,
	} {
		expr := strings.ReplaceAll(query, "POD_NAME", podName)
		expr = strings.ReplaceAll(expr, "NAMESPACE", namespace)

		samples, err := source.Query(ctx, expr)
		if err != nil || len(samples) == 0 {
			continue
		}
		out[name] = samples[0].Value
	}

	return out
}
