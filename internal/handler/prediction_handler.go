package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edupredict-api/internal/middleware"
	"github.com/noah-isme/edupredict-api/internal/service"
	appErrors "github.com/noah-isme/edupredict-api/pkg/errors"
	"github.com/noah-isme/edupredict-api/pkg/jobs"
	"github.com/noah-isme/edupredict-api/pkg/response"
)

// CoursePredictionJobType identifies queued roster-wide prediction runs.
const CoursePredictionJobType = "course_prediction"

// PredictionHandler exposes the prediction pipeline over HTTP.
type PredictionHandler struct {
	predictions *service.PredictionService
	features    *service.FeatureCalculator
	exports     *service.ExportService
	metrics     *service.MetricsService
	queue       *jobs.Queue
	logger      *zap.Logger
}

// NewPredictionHandler creates a new handler.
func NewPredictionHandler(
	predictions *service.PredictionService,
	features *service.FeatureCalculator,
	exports *service.ExportService,
	metrics *service.MetricsService,
	queue *jobs.Queue,
	logger *zap.Logger,
) *PredictionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PredictionHandler{
		predictions: predictions,
		features:    features,
		exports:     exports,
		metrics:     metrics,
		queue:       queue,
		logger:      logger,
	}
}

// Health godoc
// @Summary Prediction pipeline health
// @Description Reports model availability and runtime counters
// @Tags Predictions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /predictions/health [get]
func (h *PredictionHandler) Health(c *gin.Context) {
	info := h.predictions.ModelInfo()
	payload := gin.H{
		"status":        "ok",
		"model_loaded":  true,
		"model_name":    info.ModelName,
		"feature_count": info.FeatureCount,
	}
	if h.metrics != nil {
		payload["metrics"] = h.metrics.Snapshot()
	}
	response.JSON(c, http.StatusOK, payload, nil)
}

// ModelInfo godoc
// @Summary Model metadata
// @Description Describes the loaded classifier artifacts
// @Tags Predictions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /predictions/model-info [get]
func (h *PredictionHandler) ModelInfo(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.predictions.ModelInfo(), nil)
}

// Generate godoc
// @Summary Generate a prediction
// @Description Runs the pipeline for one enrollment and appends a new prediction
// @Tags Predictions
// @Produce json
// @Param enrollmentId path string true "Enrollment ID"
// @Param as_of query string false "Cutoff date (YYYY-MM-DD)"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /predictions/enrollments/{enrollmentId} [post]
func (h *PredictionHandler) Generate(c *gin.Context) {
	enrollmentID := c.Param("enrollmentId")

	var asOf *time.Time
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "as_of must be formatted YYYY-MM-DD"))
			return
		}
		asOf = &parsed
	}

	result, err := h.predictions.Predict(c.Request.Context(), enrollmentID, asOf)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// GetLatest godoc
// @Summary Latest prediction
// @Description Returns the most recent prediction for an enrollment
// @Tags Predictions
// @Produce json
// @Param enrollmentId path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /predictions/enrollments/{enrollmentId} [get]
func (h *PredictionHandler) GetLatest(c *gin.Context) {
	enrollmentID := c.Param("enrollmentId")
	prediction, cacheHit, err := h.predictions.GetLatestPrediction(c.Request.Context(), enrollmentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, prediction, nil, middleware.ExtractMeta(c))
}

// GetHistory godoc
// @Summary Prediction history
// @Description Lists predictions for an enrollment, most recent first
// @Tags Predictions
// @Produce json
// @Param enrollmentId path string true "Enrollment ID"
// @Param limit query int false "Maximum rows (default 20, max 100)"
// @Success 200 {object} response.Envelope
// @Router /predictions/enrollments/{enrollmentId}/history [get]
func (h *PredictionHandler) GetHistory(c *gin.Context) {
	enrollmentID := c.Param("enrollmentId")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	history, err := h.predictions.GetPredictionHistory(c.Request.Context(), enrollmentID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// GetFeatures godoc
// @Summary Calculated features
// @Description Returns the feature vector for an enrollment with validation info
// @Tags Predictions
// @Produce json
// @Param enrollmentId path string true "Enrollment ID"
// @Param as_of query string false "Cutoff date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /predictions/enrollments/{enrollmentId}/features [get]
func (h *PredictionHandler) GetFeatures(c *gin.Context) {
	enrollmentID := c.Param("enrollmentId")

	var asOf *time.Time
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "as_of must be formatted YYYY-MM-DD"))
			return
		}
		asOf = &parsed
	}

	features, err := h.features.CalculateFeatures(c.Request.Context(), enrollmentID, asOf)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"enrollment_id": enrollmentID,
		"features":      features,
		"validation":    h.predictions.ValidateFeatures(features),
	}, nil)
}

// GetCoursePredictions godoc
// @Summary Stored course predictions
// @Description Returns the latest stored prediction per enrolled student
// @Tags Predictions
// @Produce json
// @Param offeringId path string true "Course offering ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /predictions/courses/{offeringId} [get]
func (h *PredictionHandler) GetCoursePredictions(c *gin.Context) {
	offeringID := c.Param("offeringId")
	result, err := h.predictions.OfferingPredictions(c.Request.Context(), offeringID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GenerateCourse godoc
// @Summary Generate course predictions
// @Description Runs the pipeline for every enrolled student. With async=true the run is queued.
// @Tags Predictions
// @Produce json
// @Param offeringId path string true "Course offering ID"
// @Param async query bool false "Queue the run instead of waiting"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /predictions/courses/{offeringId} [post]
func (h *PredictionHandler) GenerateCourse(c *gin.Context) {
	offeringID := c.Param("offeringId")

	if c.Query("async") == "true" && h.queue != nil {
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    CoursePredictionJobType,
			Payload: offeringID,
		}
		if err := h.queue.Enqueue(job); err != nil {
			h.logger.Error("enqueue course prediction run", zap.String("offering_id", offeringID), zap.Error(err))
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue prediction run"))
			return
		}
		response.JSON(c, http.StatusAccepted, gin.H{
			"job_id":             job.ID,
			"course_offering_id": offeringID,
			"status":             "queued",
		}, nil)
		return
	}

	summary, err := h.predictions.PredictOffering(c.Request.Context(), offeringID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// AtRisk godoc
// @Summary At-risk students
// @Description Lists students whose latest prediction carries high or medium risk
// @Tags Predictions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /predictions/at-risk [get]
func (h *PredictionHandler) AtRisk(c *gin.Context) {
	summary, cacheHit, err := h.predictions.AtRisk(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// ExportAtRisk godoc
// @Summary Export at-risk roster
// @Description Downloads the at-risk roster as CSV or PDF
// @Tags Predictions
// @Produce octet-stream
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /predictions/at-risk/export [get]
func (h *PredictionHandler) ExportAtRisk(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.AtRiskReport(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
