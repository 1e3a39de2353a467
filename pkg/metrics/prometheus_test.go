package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func prometheusStub(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestQueryParsesSamples(t *testing.T) {
	server := prometheusStub(t, `{
		"status": "success",
		"data": {
			"resultType": "vector",
			"result": [
				{"metric": {"pod": "app"}, "value": [1755993600, "0.25"]},
				{"metric": {"pod": "db"}, "value": [1755993600, "0.5"]}
			]
		}
	}`)

	client, err := NewClient(server.URL, "", nil)
	require.NoError(t, err)

	samples, err := client.Query(context.Background(), "rate(container_network_transmit_packets_dropped_total[5m])")
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, "app", samples[0].Labels["pod"])
	assert.InDelta(t, 0.25, samples[0].Value, 1e-9)
	assert.Equal(t, int64(1755993600), samples[0].Timestamp.Unix())
}

func TestQueryEmptyResult(t *testing.T) {
	server := prometheusStub(t, `{"status": "success", "data": {"resultType": "vector", "result": []}}`)

	client, err := NewClient(server.URL, "", nil)
	require.NoError(t, err)

	samples, err := client.Query(context.Background(), "up")
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestQueryAPIError(t *testing.T) {
	server := prometheusStub(t, `{"status": "error", "error": "parse error at char 5"}`)

	client, err := NewClient(server.URL, "", nil)
	require.NoError(t, err)

	_, err = client.Query(context.Background(), "up{")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse error")
}

func TestQuerySkipsMalformedValues(t *testing.T) {
	server := prometheusStub(t, `{
		"status": "success",
		"data": {
			"resultType": "vector",
			"result": [
				{"metric": {"pod": "bad"}, "value": [1755993600, "NaN-ish-garbage"]},
				{"metric": {"pod": "good"}, "value": [1755993600, "1"]}
			]
		}
	}`)

	client, err := NewClient(server.URL, "", nil)
	require.NoError(t, err)

	samples, err := client.Query(context.Background(), "up")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "good", samples[0].Labels["pod"])
}

func TestNewClientNormalizesURL(t *testing.T) {
	client, err := NewClient("localhost:9090", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9090/", client.GetURL())
}

func TestNewClientAutoDetectsService(t *testing.T) {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: "prometheus-server", Namespace: "monitoring"},
		Spec: corev1.ServiceSpec{
			Ports: []corev1.ServicePort{{Port: 9090}},
		},
	}

	client, err := NewClient("", "", fake.NewSimpleClientset(svc))
	require.NoError(t, err)
	assert.Equal(t, "http://prometheus-server.monitoring.svc.cluster.local:9090/", client.GetURL())
}

func TestNewClientAutoDetectFailure(t *testing.T) {
	_, err := NewClient("", "", fake.NewSimpleClientset())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auto-detect")
}

func TestPodMetricsSubstitutesPlaceholders(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("query"))
		w.Write([]byte(`{"status": "success", "data": {"resultType": "vector", "result": [{"metric": {}, "value": [1755993600, "42"]}]}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "", nil)
	require.NoError(t, err)

	out := PodMetrics(context.Background(), client, "app", "prod")
	assert.Equal(t, map[string]float64{"cpu": 42, "memory": 42}, out)

	require.Len(t, queries, 2)
	for _, q := range queries {
		assert.Contains(t, q, "app")
		assert.Contains(t, q, "prod")
		assert.NotContains(t, q, "POD_NAME")
		assert.NotContains(t, q, "NAMESPACE")
	}
}
