package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/adityassharma-ss/kubefix/pkg/patch"
	"github.com/adityassharma-ss/kubefix/pkg/registry"
	"github.com/adityassharma-ss/kubefix/pkg/remediate"
)

// Handler serves the kubefix API endpoints.
type Handler struct {
	registry *registry.Registry
	pipeline *patch.Pipeline
	engine   *remediate.Engine
	logger   *zap.Logger
}

// SetupRoutes registers all API routes on the echo engine.
func (h *Handler) SetupRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	api := e.Group("/api/v1")
	api.GET("/issues", h.ListIssues)
	api.GET("/issues/:id", h.GetIssue)
	api.POST("/issues/:id/resolve", h.ResolveIssue)
	api.POST("/analyze/:id", h.AnalyzeIssue)
	api.POST("/remediate", h.Remediate)
	api.POST("/apply-patch", h.ApplyPatch)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "healthy",
	})
}

func (h *Handler) ListIssues(c echo.Context) error {
	namespace := c.QueryParam("namespace")
	issues := h.registry.ListActive(namespace)
	return c.JSON(http.StatusOK, issues)
}

func (h *Handler) GetIssue(c echo.Context) error {
	issue, ok := h.registry.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Issue not found")
	}
	return c.JSON(http.StatusOK, issue)
}

func (h *Handler) ResolveIssue(c echo.Context) error {
	id := c.Param("id")
	if !h.registry.MarkResolved(id) {
		return echo.NewHTTPError(http.StatusNotFound, "Issue not found")
	}
	issue, _ := h.registry.Get(id)
	return c.JSON(http.StatusOK, issue)
}

func (h *Handler) AnalyzeIssue(c echo.Context) error {
	if h.engine == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "remediation engine not configured")
	}

	issue, ok := h.registry.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Issue not found")
	}

	analysis, err := h.engine.AnalyzeIssue(issue)
	if err != nil {
		h.logger.Error("issue analysis failed", zap.String("issue_id", issue.ID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, analysis)
}

// RemediateRequest asks for generated fix content for an issue.
type RemediateRequest struct {
	IssueID string `json:"issue_id"`
}

// RemediateResponse carries the generated fix plus standing precautions.
type RemediateResponse struct {
	IssueID     string              `json:"issue_id"`
	Analysis    *remediate.Analysis `json:"analysis"`
	Fix         *remediate.Fix      `json:"fix"`
	Precautions []string            `json:"precautions"`
}

func (h *Handler) Remediate(c echo.Context) error {
	if h.engine == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "remediation engine not configured")
	}

	var req RemediateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	issue, ok := h.registry.Get(req.IssueID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Issue not found")
	}

	analysis, err := h.engine.AnalyzeIssue(issue)
	if err != nil {
		h.logger.Error("issue analysis failed", zap.String("issue_id", issue.ID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	fix, err := h.engine.GenerateFix(issue, analysis)
	if err != nil {
		h.logger.Error("fix generation failed", zap.String("issue_id", issue.ID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, RemediateResponse{
		IssueID:  issue.ID,
		Analysis: analysis,
		Fix:      fix,
		Precautions: []string{
			"Always review generated changes before applying",
			"Ensure you have recent backups",
			"Consider running in dry-run mode first",
		},
	})
}

func (h *Handler) ApplyPatch(c echo.Context) error {
	var req patch.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()

	var result *patch.Result
	switch req.Type {
	case patch.TypeTerraform:
		result = h.pipeline.ApplyTerraform(ctx, req.Content, req.DryRun)
	case patch.TypeManifest, "":
		result = h.pipeline.ApplyManifest(ctx, req.Content, req.Namespace, req.DryRun)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown patch type: "+string(req.Type))
	}

	return c.JSON(http.StatusOK, result)
}
