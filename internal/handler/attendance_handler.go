package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupredict-api/internal/models"
	"github.com/noah-isme/edupredict-api/internal/service"
	appErrors "github.com/noah-isme/edupredict-api/pkg/errors"
	"github.com/noah-isme/edupredict-api/pkg/response"
)

// AttendanceHandler exposes attendance recording endpoints.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Upsert godoc
// @Summary Record attendance
// @Description Records or corrects attendance for one enrollment and date
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.UpsertAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance [put]
func (h *AttendanceHandler) Upsert(c *gin.Context) {
	var req models.UpsertAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}

	record, err := h.service.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// List godoc
// @Summary List attendance
// @Description Lists attendance rows for an enrollment, newest first
// @Tags Attendance
// @Produce json
// @Param enrollmentId path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/enrollments/{enrollmentId} [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	records, err := h.service.List(c.Request.Context(), c.Param("enrollmentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
