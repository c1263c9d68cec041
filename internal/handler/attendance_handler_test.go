package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edupredict-api/internal/models"
	"github.com/noah-isme/edupredict-api/internal/service"
)

type stubAttendanceRepo struct {
	records []models.AttendanceRecord
}

func (s *stubAttendanceRepo) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	record.ID = "a1"
	return nil
}

func (s *stubAttendanceRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.AttendanceRecord, error) {
	return s.records, nil
}

type stubEnrollmentExists struct {
	exists bool
}

func (s *stubEnrollmentExists) Exists(ctx context.Context, enrollmentID string) (bool, error) {
	return s.exists, nil
}

func newAttendanceRouter(exists bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewAttendanceService(&stubAttendanceRepo{}, &stubEnrollmentExists{exists: exists}, nil, nil, nil)
	h := NewAttendanceHandler(svc)

	r := gin.New()
	r.PUT("/attendance", h.Upsert)
	r.GET("/attendance/enrollments/:enrollmentId", h.List)
	return r
}

func TestAttendanceHandlerUpsert(t *testing.T) {
	r := newAttendanceRouter(true)

	body := `{"enrollment_id":"e1","date":"2026-03-02","status":"present"}`
	req := httptest.NewRequest(http.MethodPut, "/attendance", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"enrollment_id":"e1"`)
	assert.Contains(t, w.Body.String(), `"status":"present"`)
}

func TestAttendanceHandlerUpsertUnknownEnrollment(t *testing.T) {
	r := newAttendanceRouter(false)

	body := `{"enrollment_id":"missing","date":"2026-03-02","status":"present"}`
	req := httptest.NewRequest(http.MethodPut, "/attendance", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ENROLLMENT_NOT_FOUND")
}

func TestAttendanceHandlerUpsertMalformedBody(t *testing.T) {
	r := newAttendanceRouter(true)

	req := httptest.NewRequest(http.MethodPut, "/attendance", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
