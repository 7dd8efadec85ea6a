package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go-wsi-cohort/internal/config"
	apperrors "go-wsi-cohort/internal/errors"
	"go-wsi-cohort/internal/export"
	"go-wsi-cohort/internal/logger"
	"go-wsi-cohort/internal/observer"
	"go-wsi-cohort/internal/repository"
	"go-wsi-cohort/internal/service"
	"go-wsi-cohort/pkg/models"
	"go-wsi-cohort/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Handler serves cohort extraction over posted descriptors
type Handler struct {
	service   service.CohortService
	cfg       *config.Config
	metrics   *observer.MetricsObserver
	validator *validation.URLValidator
}

// NewHandler builds the gin engine. metrics and gatherer may be nil, in which
// case /health carries no counters and /metrics is not registered.
func NewHandler(svc service.CohortService, cfg *config.Config, metrics *observer.MetricsObserver, gatherer prometheus.Gatherer) http.Handler {
	h := &Handler{
		service:   svc,
		cfg:       cfg,
		metrics:   metrics,
		validator: validation.NewURLValidatorWithOptions([]string{"http", "https"}, cfg.Server.AllowedSourceHosts),
	}

	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.Server.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", h.healthCheck)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1/cohort")
	v1.POST("/extract", h.extract)
	v1.POST("/table", h.table)

	return r
}

func (h *Handler) exporter(project string) *export.Exporter {
	if project == "" {
		project = h.cfg.ProjectName
	}
	return export.NewExporter(export.Options{
		Precision:            h.cfg.Output.FloatPrecision,
		ToolVersion:          config.Version,
		ProjectName:          project,
		IncludeSummary:       h.cfg.Output.IncludeDetailedSummary,
		IncludeProcessingLog: h.cfg.Output.IncludeProcessingLog,
	})
}

func (h *Handler) extract(c *gin.Context) {
	req, result, ok := h.run(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "application/json; charset=utf-8")
	c.Status(http.StatusOK)
	if err := h.exporter(req.ProjectName).WriteJSON(c.Writer, result); err != nil {
		logger.WithError(err).Error("Failed to write cohort document")
	}
}

func (h *Handler) table(c *gin.Context) {
	req, result, ok := h.run(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("X-Cohort-Run-ID", result.Summary.RunID)
	c.Status(http.StatusOK)
	if err := h.exporter(req.ProjectName).WriteCSV(c.Writer, result.Records); err != nil {
		logger.WithError(err).Error("Failed to write cohort table")
	}
}

// run binds and validates the request, then processes the posted descriptors
func (h *Handler) run(c *gin.Context) (*models.ExtractRequest, *models.CohortResult, bool) {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.Server.RequestTimeout)
	defer cancel()

	// Log request start
	logger.WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}).Info("Processing cohort extraction request")

	var req models.ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return nil, nil, false
	}

	for i, img := range req.Images {
		if img.ImageName == "" {
			err := apperrors.NewValidationError(fmt.Sprintf("images[%d] has no name", i), nil)
			respondError(c, apperrors.GetStatusCode(err), "invalid descriptor", err)
			return nil, nil, false
		}
		for _, uri := range img.Sources {
			if err := h.validator.ValidateSlideLocation(uri); err != nil {
				respondError(c, apperrors.GetStatusCode(err), fmt.Sprintf("invalid location for %s", img.ImageName), err)
				return nil, nil, false
			}
		}
	}

	project := req.ProjectName
	if project == "" {
		project = h.cfg.ProjectName
	}
	repo := repository.NewMemoryRepository(project, req.Images)

	result, err := h.service.ProcessCollection(ctx, repo)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "cohort extraction failed", err)
		return nil, nil, false
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && result.Summary.Partial {
		err := apperrors.NewTimeoutError("cohort extraction exceeded the request timeout", ctx.Err())
		respondError(c, err.StatusCode, "cohort extraction timed out", err)
		return nil, nil, false
	}

	// Log successful completion
	logger.WithFields(logrus.Fields{
		"run_id":             result.Summary.RunID,
		"images":             len(req.Images),
		"records":            len(result.Records),
		"failed":             result.Summary.Failed,
		"field_errors":       result.Summary.FieldErrors,
		"partial":            result.Summary.Partial,
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	}).Info("Cohort extraction completed")

	return &req, result, true
}

func (h *Handler) healthCheck(c *gin.Context) {
	body := gin.H{
		"status":  "available",
		"version": config.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.GetMetrics()
	}
	c.JSON(http.StatusOK, body)
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
