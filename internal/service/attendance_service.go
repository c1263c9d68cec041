package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edupredict-api/internal/models"
	appErrors "github.com/noah-isme/edupredict-api/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.AttendanceRecord, error)
}

type attendanceEnrollmentRepository interface {
	Exists(ctx context.Context, enrollmentID string) (bool, error)
}

// AttendanceService records daily attendance. Attendance rows feed the
// activity feature group, so writes invalidate any cached prediction for the
// enrollment.
type AttendanceService struct {
	repo        attendanceRepository
	enrollments attendanceEnrollmentRepository
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs the service.
func NewAttendanceService(repo attendanceRepository, enrollments attendanceEnrollmentRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AttendanceService{repo: repo, enrollments: enrollments, cache: cache, validator: validate, logger: logger}
}

// Upsert records or corrects attendance for one enrollment and date.
func (s *AttendanceService) Upsert(ctx context.Context, req models.UpsertAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	exists, err := s.enrollments.Exists(ctx, req.EnrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify enrollment")
	}
	if !exists {
		return nil, appErrors.ErrEnrollmentNotFound
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance date")
	}

	record := &models.AttendanceRecord{
		EnrollmentID: req.EnrollmentID,
		Date:         date,
		Status:       models.AttendanceStatus(req.Status),
		Notes:        req.Notes,
	}
	if req.CheckInTime != nil {
		checkIn, err := time.Parse(time.RFC3339, *req.CheckInTime)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in time")
		}
		record.CheckInTime = &checkIn
	}

	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, appErrors.ErrPersistence.Message)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "prediction:latest:"+req.EnrollmentID); err != nil {
			s.logger.Warn("invalidate prediction cache after attendance write", zap.Error(err))
		}
	}

	s.logger.Info("attendance recorded",
		zap.String("enrollment_id", req.EnrollmentID),
		zap.String("date", req.Date),
		zap.String("status", req.Status))
	return record, nil
}

// List returns all attendance rows for an enrollment, newest first.
func (s *AttendanceService) List(ctx context.Context, enrollmentID string) ([]models.AttendanceRecord, error) {
	exists, err := s.enrollments.Exists(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify enrollment")
	}
	if !exists {
		return nil, appErrors.ErrEnrollmentNotFound
	}
	return s.repo.ListByEnrollment(ctx, enrollmentID)
}
