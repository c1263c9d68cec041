package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupredict-api/internal/models"
	"github.com/noah-isme/edupredict-api/internal/service"
	appErrors "github.com/noah-isme/edupredict-api/pkg/errors"
	"github.com/noah-isme/edupredict-api/pkg/response"
)

// AssessmentHandler exposes submission grading endpoints.
type AssessmentHandler struct {
	service *service.AssessmentService
}

// NewAssessmentHandler creates a new handler.
func NewAssessmentHandler(svc *service.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{service: svc}
}

// Grade godoc
// @Summary Grade a submission
// @Description Applies a score to a submission; the stored percentage is derived from the assessment's max score
// @Tags Assessments
// @Accept json
// @Produce json
// @Param submissionId path string true "Submission ID"
// @Param payload body models.GradeSubmissionRequest true "Grading payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assessments/submissions/{submissionId}/grade [post]
func (h *AssessmentHandler) Grade(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.GradeSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grading payload"))
		return
	}

	submission, err := h.service.GradeSubmission(c.Request.Context(), c.Param("submissionId"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}
