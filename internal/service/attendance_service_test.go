package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edupredict-api/internal/models"
	appErrors "github.com/noah-isme/edupredict-api/pkg/errors"
)

type mockAttendanceWriteRepo struct {
	upserted *models.AttendanceRecord
	records  []models.AttendanceRecord
}

func (m *mockAttendanceWriteRepo) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	m.upserted = record
	return nil
}

func (m *mockAttendanceWriteRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.AttendanceRecord, error) {
	return m.records, nil
}

type mockExistsRepo struct {
	exists bool
}

func (m *mockExistsRepo) Exists(ctx context.Context, enrollmentID string) (bool, error) {
	return m.exists, nil
}

func TestAttendanceUpsert(t *testing.T) {
	repo := &mockAttendanceWriteRepo{}
	svc := NewAttendanceService(repo, &mockExistsRepo{exists: true}, nil, validator.New(), zap.NewNop())

	checkIn := "2026-03-02T09:05:00Z"
	record, err := svc.Upsert(context.Background(), models.UpsertAttendanceRequest{
		EnrollmentID: "e1",
		Date:         "2026-03-02",
		Status:       "late",
		CheckInTime:  &checkIn,
	})
	require.NoError(t, err)

	assert.Equal(t, models.AttendanceStatusLate, record.Status)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), record.Date)
	require.NotNil(t, record.CheckInTime)
	assert.Equal(t, 9, record.CheckInTime.Hour())
	assert.Same(t, record, repo.upserted)
}

func TestAttendanceUpsertUnknownEnrollment(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceWriteRepo{}, &mockExistsRepo{exists: false}, nil, validator.New(), zap.NewNop())

	_, err := svc.Upsert(context.Background(), models.UpsertAttendanceRequest{
		EnrollmentID: "missing",
		Date:         "2026-03-02",
		Status:       "present",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentNotFound)
}

func TestAttendanceUpsertRejectsBadStatus(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceWriteRepo{}, &mockExistsRepo{exists: true}, nil, validator.New(), zap.NewNop())

	_, err := svc.Upsert(context.Background(), models.UpsertAttendanceRequest{
		EnrollmentID: "e1",
		Date:         "2026-03-02",
		Status:       "tardy",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAttendanceList(t *testing.T) {
	repo := &mockAttendanceWriteRepo{records: []models.AttendanceRecord{
		{ID: "a1", EnrollmentID: "e1", Status: models.AttendanceStatusPresent},
	}}
	svc := NewAttendanceService(repo, &mockExistsRepo{exists: true}, nil, validator.New(), zap.NewNop())

	records, err := svc.List(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a1", records[0].ID)
}
