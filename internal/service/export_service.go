package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edupredict-api/internal/models"
	"github.com/noah-isme/edupredict-api/pkg/export"
	appErrors "github.com/noah-isme/edupredict-api/pkg/errors"
)

type atRiskProvider interface {
	AtRisk(ctx context.Context) (*models.AtRiskSummary, bool, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFormat identifies supported download formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries a rendered download payload.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

type reportArchive interface {
	Save(filename string, data []byte) (string, error)
}

// ExportService renders the at-risk roster as a downloadable file. When an
// archive is configured, a copy of every rendered report is kept on disk.
type ExportService struct {
	predictions atRiskProvider
	csv         csvRenderer
	pdf         pdfRenderer
	archive     reportArchive
	logger      *zap.Logger
}

// NewExportService constructs an ExportService. The archive may be nil.
func NewExportService(predictions atRiskProvider, csv csvRenderer, pdf pdfRenderer, archive reportArchive, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{predictions: predictions, csv: csv, pdf: pdf, archive: archive, logger: logger}
}

// AtRiskReport renders the current at-risk roster in the requested format.
func (s *ExportService) AtRiskReport(ctx context.Context, format ExportFormat) (*ExportResult, error) {
	summary, _, err := s.predictions.AtRisk(ctx)
	if err != nil {
		return nil, err
	}

	dataset := buildAtRiskDataset(summary)
	timestamp := time.Now().UTC().Format("20060102_150405")

	var result *ExportResult
	switch format {
	case ExportFormatCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render csv report")
		}
		result = &ExportResult{
			Filename:    fmt.Sprintf("at_risk_students_%s.csv", timestamp),
			ContentType: "text/csv",
			Payload:     payload,
		}
	case ExportFormatPDF:
		payload, err := s.pdf.Render(dataset, "At-Risk Students Report")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render pdf report")
		}
		result = &ExportResult{
			Filename:    fmt.Sprintf("at_risk_students_%s.pdf", timestamp),
			ContentType: "application/pdf",
			Payload:     payload,
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	if s.archive != nil {
		if _, err := s.archive.Save("reports/"+result.Filename, result.Payload); err != nil {
			s.logger.Warn("archive report copy", zap.Error(err))
		}
	}

	return result, nil
}

func buildAtRiskDataset(summary *models.AtRiskSummary) export.Dataset {
	headers := []string{"Student ID", "Student Name", "Course Code", "Course Name", "Predicted Grade", "Confidence", "Risk Level", "Prediction Date"}
	rows := make([]map[string]string, 0, len(summary.Students))
	for _, st := range summary.Students {
		rows = append(rows, map[string]string{
			"Student ID":      st.StudentID,
			"Student Name":    st.StudentName,
			"Course Code":     st.CourseCode,
			"Course Name":     st.CourseName,
			"Predicted Grade": string(st.PredictedGrade),
			"Confidence":      fmt.Sprintf("%.2f", st.ConfidenceScore),
			"Risk Level":      string(st.RiskLevel),
			"Prediction Date": st.PredictionDate.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
