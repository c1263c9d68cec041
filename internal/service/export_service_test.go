package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edupredict-api/internal/models"
	appErrors "github.com/noah-isme/edupredict-api/pkg/errors"
)

type mockAtRiskProvider struct {
	summary *models.AtRiskSummary
}

func (m *mockAtRiskProvider) AtRisk(ctx context.Context) (*models.AtRiskSummary, bool, error) {
	return m.summary, false, nil
}

type mockArchive struct {
	savedName string
	savedData []byte
}

func (m *mockArchive) Save(filename string, data []byte) (string, error) {
	m.savedName = filename
	m.savedData = data
	return filename, nil
}

func atRiskFixture() *models.AtRiskSummary {
	return &models.AtRiskSummary{
		Students: []models.AtRiskStudent{
			{
				StudentID:       "s1",
				StudentName:     "Ada Lovelace",
				CourseCode:      "CS101",
				CourseName:      "Intro CS",
				PredictedGrade:  models.GradeFail,
				ConfidenceScore: 0.61,
				RiskLevel:       models.RiskHigh,
				PredictionDate:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			},
		},
		TotalAtRisk: 1,
		HighRisk:    1,
	}
}

func TestExportAtRiskCSV(t *testing.T) {
	archive := &mockArchive{}
	svc := NewExportService(&mockAtRiskProvider{summary: atRiskFixture()}, nil, nil, archive, zap.NewNop())

	result, err := svc.AtRiskReport(context.Background(), ExportFormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasPrefix(result.Filename, "at_risk_students_"))
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))

	body := string(result.Payload)
	assert.Contains(t, body, "Student ID,Student Name,Course Code")
	assert.Contains(t, body, "Ada Lovelace")
	assert.Contains(t, body, "high")

	assert.Equal(t, "reports/"+result.Filename, archive.savedName)
	assert.Equal(t, result.Payload, archive.savedData)
}

func TestExportAtRiskPDF(t *testing.T) {
	svc := NewExportService(&mockAtRiskProvider{summary: atRiskFixture()}, nil, nil, nil, zap.NewNop())

	result, err := svc.AtRiskReport(context.Background(), ExportFormatPDF)
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".pdf"))
	assert.NotEmpty(t, result.Payload)
}

func TestExportAtRiskUnsupportedFormat(t *testing.T) {
	svc := NewExportService(&mockAtRiskProvider{summary: atRiskFixture()}, nil, nil, nil, zap.NewNop())

	_, err := svc.AtRiskReport(context.Background(), ExportFormat("xlsx"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
