package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/alliefeldman/climatecoachbot/internal/engine"
	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
	"github.com/alliefeldman/climatecoachbot/internal/models"
)

// ReportService is the part of the engine the API serves
type ReportService interface {
	RunReport(ctx context.Context, owner, repo string) (*models.Report, error)
	LatestReport(ctx context.Context, owner, repo string) (*models.Report, error)
	ListReports(ctx context.Context, owner, repo string, limit int) ([]*models.Report, error)
	GetStatus(owner, repo string) (*models.RunStatus, error)
	ListStatuses() []*models.RunStatus
}

const (
	defaultReportLimit = 10
	maxReportLimit     = 100
)

// Handler handles HTTP requests
type Handler struct {
	service     ReportService
	persistence bool
	logger      *logrus.Logger
}

// NewHandler creates a new API handler
func NewHandler(service ReportService, persistence bool, logger *logrus.Logger) *Handler {
	return &Handler{
		service:     service,
		persistence: persistence,
		logger:      logger,
	}
}

// Health godoc
// @Summary Health check
// @Description Reports that the service is up
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Timestamp:   time.Now().UTC(),
		Persistence: h.persistence,
	})
}

// RunReport godoc
// @Summary Run a metrics report
// @Description Computes the last and current snapshots of a repository and their trend
// @Tags reports
// @Produce json
// @Param owner path string true "Repository owner"
// @Param repo path string true "Repository name"
// @Success 201 {object} models.Report
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /repos/{owner}/{repo}/reports [post]
func (h *Handler) RunReport(c *gin.Context) {
	owner, repo := c.Param("owner"), c.Param("repo")
	logger := h.logger.WithFields(logrus.Fields{
		"owner": owner,
		"repo":  repo,
	})

	report, err := h.service.RunReport(c.Request.Context(), owner, repo)
	if err != nil {
		var runErr *apperrors.RunError
		switch {
		case apperrors.IsRunInProgress(err):
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		case errors.As(err, &runErr):
			logger.WithError(err).WithField("stage", runErr.Stage).Error("Report run failed")
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		case apperrors.IsInvalidInput(err):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			logger.WithError(err).Error("Report run failed")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to run report"})
		}
		return
	}

	c.JSON(http.StatusCreated, report)
}

// GetLatestReport godoc
// @Summary Get the latest report
// @Description Returns the most recently persisted report of a repository
// @Tags reports
// @Produce json
// @Param owner path string true "Repository owner"
// @Param repo path string true "Repository name"
// @Success 200 {object} models.Report
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /repos/{owner}/{repo}/reports/latest [get]
func (h *Handler) GetLatestReport(c *gin.Context) {
	owner, repo := c.Param("owner"), c.Param("repo")

	report, err := h.service.LatestReport(c.Request.Context(), owner, repo)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNoStore):
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Report persistence is not configured"})
		case apperrors.IsNotFound(err):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "No report found for repository"})
		default:
			h.logger.WithFields(logrus.Fields{
				"owner": owner,
				"repo":  repo,
			}).WithError(err).Error("Failed to get latest report")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to get latest report"})
		}
		return
	}

	c.JSON(http.StatusOK, report)
}

// ListReports godoc
// @Summary List reports
// @Description Returns the persisted reports of a repository, newest first
// @Tags reports
// @Produce json
// @Param owner path string true "Repository owner"
// @Param repo path string true "Repository name"
// @Param limit query int false "Maximum number of reports (1-100)" default(10)
// @Success 200 {array} models.Report
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /repos/{owner}/{repo}/reports [get]
func (h *Handler) ListReports(c *gin.Context) {
	owner, repo := c.Param("owner"), c.Param("repo")

	limit := defaultReportLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxReportLimit {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be an integer between 1 and 100"})
			return
		}
		limit = n
	}

	reports, err := h.service.ListReports(c.Request.Context(), owner, repo, limit)
	if err != nil {
		if errors.Is(err, engine.ErrNoStore) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Report persistence is not configured"})
			return
		}
		h.logger.WithFields(logrus.Fields{
			"owner": owner,
			"repo":  repo,
		}).WithError(err).Error("Failed to list reports")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list reports"})
		return
	}

	c.JSON(http.StatusOK, reports)
}

// GetStatus godoc
// @Summary Get run status
// @Description Returns the latest run status of a repository
// @Tags status
// @Produce json
// @Param owner path string true "Repository owner"
// @Param repo path string true "Repository name"
// @Success 200 {object} RunStatus
// @Failure 404 {object} ErrorResponse
// @Router /repos/{owner}/{repo}/status [get]
func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.service.GetStatus(c.Param("owner"), c.Param("repo"))
	if err != nil {
		if apperrors.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Repository has not been run"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to get run status"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// ListStatuses godoc
// @Summary List run statuses
// @Description Returns the latest run status of every repository that ran
// @Tags status
// @Produce json
// @Success 200 {array} RunStatus
// @Router /status [get]
func (h *Handler) ListStatuses(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.ListStatuses())
}
