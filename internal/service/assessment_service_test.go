package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edupredict-api/internal/models"
	appErrors "github.com/noah-isme/edupredict-api/pkg/errors"
)

type mockSubmissionGradeRepo struct {
	submission *models.AssessmentSubmission
	maxScore   float64
	findErr    error
	gradeErr   error

	gradedScore      float64
	gradedPercentage float64
	gradedBy         string
}

func (m *mockSubmissionGradeRepo) FindSubmissionByID(ctx context.Context, id string) (*models.AssessmentSubmission, float64, error) {
	if m.findErr != nil {
		return nil, 0, m.findErr
	}
	return m.submission, m.maxScore, nil
}

func (m *mockSubmissionGradeRepo) Grade(ctx context.Context, id string, score, percentage float64, gradedBy string, feedback *string) error {
	if m.gradeErr != nil {
		return m.gradeErr
	}
	m.gradedScore = score
	m.gradedPercentage = percentage
	m.gradedBy = gradedBy
	return nil
}

func TestGradeSubmissionDerivesPercentage(t *testing.T) {
	repo := &mockSubmissionGradeRepo{
		submission: &models.AssessmentSubmission{ID: "sub1", EnrollmentID: "e1"},
		maxScore:   40,
	}
	svc := NewAssessmentService(repo, nil, validator.New(), zap.NewNop())

	result, err := svc.GradeSubmission(context.Background(), "sub1", "u1", models.GradeSubmissionRequest{Score: 30})
	require.NoError(t, err)

	assert.Equal(t, 30.0, repo.gradedScore)
	assert.Equal(t, 75.0, repo.gradedPercentage)
	assert.Equal(t, "u1", repo.gradedBy)
	require.NotNil(t, result.Percentage)
	assert.Equal(t, 75.0, *result.Percentage)
}

func TestGradeSubmissionRejectsScoreAboveMax(t *testing.T) {
	repo := &mockSubmissionGradeRepo{
		submission: &models.AssessmentSubmission{ID: "sub1", EnrollmentID: "e1"},
		maxScore:   40,
	}
	svc := NewAssessmentService(repo, nil, validator.New(), zap.NewNop())

	_, err := svc.GradeSubmission(context.Background(), "sub1", "u1", models.GradeSubmissionRequest{Score: 41})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestGradeSubmissionNotFound(t *testing.T) {
	repo := &mockSubmissionGradeRepo{findErr: sql.ErrNoRows}
	svc := NewAssessmentService(repo, nil, validator.New(), zap.NewNop())

	_, err := svc.GradeSubmission(context.Background(), "missing", "u1", models.GradeSubmissionRequest{Score: 10})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
