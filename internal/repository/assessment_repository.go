package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edupredict-api/internal/models"
)

// AssessmentRepository handles assessments and their submissions.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs the repository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// ListSubmissions returns submission rows for an enrollment up to the cutoff,
// joined with the mapped assessment type.
func (r *AssessmentRepository) ListSubmissions(ctx context.Context, enrollmentID string, until time.Time) ([]models.SubmissionRow, error) {
	const query = `SELECT sub.score, sub.submission_date, sub.is_late,
        COALESCE(a.assessment_type_mapped, 'TMA') AS assessment_type
        FROM assessment_submissions sub
        JOIN assessments a ON a.id = sub.assessment_id
        WHERE sub.enrollment_id = $1 AND sub.submission_date <= $2`
	var rows []models.SubmissionRow
	if err := r.db.SelectContext(ctx, &rows, query, enrollmentID, until); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return rows, nil
}

// CountDue returns how many assessments for the enrollment's offering were due
// by the cutoff date.
func (r *AssessmentRepository) CountDue(ctx context.Context, enrollmentID string, until time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM assessments a
        JOIN enrollments e ON e.offering_id = a.offering_id
        WHERE e.id = $1 AND a.due_date <= $2`
	var total int
	if err := r.db.GetContext(ctx, &total, query, enrollmentID, until); err != nil {
		return 0, fmt.Errorf("count due assessments: %w", err)
	}
	return total, nil
}

// FindSubmissionByID loads a submission together with the parent assessment's
// max score, which grading needs to derive the percentage.
func (r *AssessmentRepository) FindSubmissionByID(ctx context.Context, id string) (*models.AssessmentSubmission, float64, error) {
	const query = `SELECT sub.id, sub.enrollment_id, sub.assessment_id, sub.submission_date,
        sub.score, sub.percentage, sub.is_late, sub.graded_date, sub.graded_by, sub.feedback, sub.attempt_number,
        a.max_score
        FROM assessment_submissions sub
        JOIN assessments a ON a.id = sub.assessment_id
        WHERE sub.id = $1`
	var row struct {
		models.AssessmentSubmission
		MaxScore float64 `db:"max_score"`
	}
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, 0, err
	}
	return &row.AssessmentSubmission, row.MaxScore, nil
}

// Grade stores the score, derived percentage and grading metadata.
func (r *AssessmentRepository) Grade(ctx context.Context, id string, score, percentage float64, gradedBy string, feedback *string) error {
	const query = `UPDATE assessment_submissions
        SET score = $2, percentage = $3, graded_by = $4, feedback = $5, graded_date = $6
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, score, percentage, gradedBy, feedback, time.Now().UTC()); err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	return nil
}
