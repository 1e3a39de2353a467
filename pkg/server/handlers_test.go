package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adityassharma-ss/kubefix/pkg/model"
	"github.com/adityassharma-ss/kubefix/pkg/patch"
	"github.com/adityassharma-ss/kubefix/pkg/registry"
)

func newTestServer(reg *registry.Registry) *Server {
	pipeline := patch.New(nil, nil, zap.NewNop())
	return New(":0", reg, pipeline, nil, zap.NewNop())
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func seedIssue(reg *registry.Registry, namespace string) model.Issue {
	return reg.Ingest(model.Candidate{
		Type:     model.IssueCrashLoop,
		Severity: model.SeverityHigh,
		Message:  "back-off restarting failed container",
	}, namespace, "app", "Pod")
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(registry.New())
	rec := doRequest(s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestListIssues(t *testing.T) {
	reg := registry.New()
	seedIssue(reg, "prod")
	seedIssue(reg, "staging")

	s := newTestServer(reg)

	rec := doRequest(s, http.MethodGet, "/api/v1/issues", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var issues []model.Issue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issues))
	assert.Len(t, issues, 2)

	rec = doRequest(s, http.MethodGet, "/api/v1/issues?namespace=prod", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issues))
	require.Len(t, issues, 1)
	assert.Equal(t, "prod", issues[0].Namespace)
}

func TestGetIssue(t *testing.T) {
	reg := registry.New()
	issue := seedIssue(reg, "prod")
	s := newTestServer(reg)

	rec := doRequest(s, http.MethodGet, "/api/v1/issues/"+issue.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Issue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, issue.ID, got.ID)

	rec = doRequest(s, http.MethodGet, "/api/v1/issues/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolveIssue(t *testing.T) {
	reg := registry.New()
	issue := seedIssue(reg, "prod")
	s := newTestServer(reg)

	rec := doRequest(s, http.MethodPost, "/api/v1/issues/"+issue.ID+"/resolve", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Issue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.StatusResolved, got.Status)
	require.NotNil(t, got.ResolvedAt)

	rec = doRequest(s, http.MethodPost, "/api/v1/issues/missing/resolve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeWithoutEngineAnswers503(t *testing.T) {
	reg := registry.New()
	issue := seedIssue(reg, "prod")
	s := newTestServer(reg)

	rec := doRequest(s, http.MethodPost, "/api/v1/analyze/"+issue.ID, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/v1/remediate", `{"issue_id":"`+issue.ID+`"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestApplyPatchUnknownType(t *testing.T) {
	s := newTestServer(registry.New())

	rec := doRequest(s, http.MethodPost, "/api/v1/apply-patch",
		`{"type":"helm","content":"x","dry_run":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyPatchManifestValidationFailure(t *testing.T) {
	s := newTestServer(registry.New())

	// Pipeline failures surface in the result body, not as HTTP errors.
	rec := doRequest(s, http.MethodPost, "/api/v1/apply-patch",
		`{"type":"manifest","content":"apiVersion: v1\nmetadata:\n  name: x\n","dry_run":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result patch.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "missing required field")
}
