package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edupredict-api/internal/models"
	appErrors "github.com/noah-isme/edupredict-api/pkg/errors"
)

type submissionRepository interface {
	FindSubmissionByID(ctx context.Context, id string) (*models.AssessmentSubmission, float64, error)
	Grade(ctx context.Context, id string, score, percentage float64, gradedBy string, feedback *string) error
}

// AssessmentService grades submissions. The stored percentage is always
// derived from score and the assessment's max score, never taken from input.
type AssessmentService struct {
	repo      submissionRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssessmentService constructs the service.
func NewAssessmentService(repo submissionRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AssessmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssessmentService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// GradeSubmission applies a score and derived percentage to a submission.
func (s *AssessmentService) GradeSubmission(ctx context.Context, submissionID, gradedBy string, req models.GradeSubmissionRequest) (*models.AssessmentSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grading payload")
	}

	submission, maxScore, err := s.repo.FindSubmissionByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	if maxScore <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assessment has no positive max score")
	}
	if req.Score > maxScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score exceeds assessment max score")
	}

	percentage := req.Score / maxScore * 100
	if err := s.repo.Grade(ctx, submissionID, req.Score, percentage, gradedBy, req.Feedback); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, appErrors.ErrPersistence.Message)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "prediction:latest:"+submission.EnrollmentID); err != nil {
			s.logger.Warn("invalidate prediction cache after grading", zap.Error(err))
		}
	}

	submission.Score = &req.Score
	submission.Percentage = &percentage
	submission.Feedback = req.Feedback
	s.logger.Info("submission graded",
		zap.String("submission_id", submissionID),
		zap.Float64("score", req.Score),
		zap.Float64("percentage", percentage))
	return submission, nil
}
