package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edupredict-api/internal/models"
)

// PredictionRepository handles the append-only prediction history.
type PredictionRepository struct {
	db *sqlx.DB
}

// NewPredictionRepository constructs the repository.
func NewPredictionRepository(db *sqlx.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// Insert appends a prediction row. Predictions are immutable; there is no
// update path.
func (r *PredictionRepository) Insert(ctx context.Context, prediction *models.Prediction) error {
	if prediction.ID == "" {
		prediction.ID = uuid.NewString()
	}
	if prediction.PredictionDate.IsZero() {
		prediction.PredictionDate = time.Now().UTC()
	}
	const query = `INSERT INTO predictions (id, enrollment_id, prediction_date, predicted_grade,
        confidence_score, risk_level, model_version, feature_snapshot)
        VALUES (:id, :enrollment_id, :prediction_date, :predicted_grade,
        :confidence_score, :risk_level, :model_version, :feature_snapshot)`
	if _, err := r.db.NamedExecContext(ctx, query, prediction); err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// Latest returns the most recent prediction for an enrollment, or nil when
// none exists.
func (r *PredictionRepository) Latest(ctx context.Context, enrollmentID string) (*models.Prediction, error) {
	const query = `SELECT id, enrollment_id, prediction_date, predicted_grade,
        confidence_score, risk_level, model_version, feature_snapshot
        FROM predictions WHERE enrollment_id = $1
        ORDER BY prediction_date DESC LIMIT 1`
	var prediction models.Prediction
	if err := r.db.GetContext(ctx, &prediction, query, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest prediction: %w", err)
	}
	return &prediction, nil
}

// History returns predictions for an enrollment, most recent first.
func (r *PredictionRepository) History(ctx context.Context, enrollmentID string, limit int) ([]models.Prediction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT id, enrollment_id, prediction_date, predicted_grade,
        confidence_score, risk_level, model_version, feature_snapshot
        FROM predictions WHERE enrollment_id = $1
        ORDER BY prediction_date DESC LIMIT $2`
	var predictions []models.Prediction
	if err := r.db.SelectContext(ctx, &predictions, query, enrollmentID, limit); err != nil {
		return nil, fmt.Errorf("prediction history: %w", err)
	}
	return predictions, nil
}

// LatestByOffering returns the newest prediction per enrolled student of a
// course offering.
func (r *PredictionRepository) LatestByOffering(ctx context.Context, offeringID string) ([]models.Prediction, error) {
	const query = `SELECT DISTINCT ON (p.enrollment_id)
        p.id, p.enrollment_id, p.prediction_date, p.predicted_grade,
        p.confidence_score, p.risk_level, p.model_version, p.feature_snapshot
        FROM predictions p
        JOIN enrollments e ON e.id = p.enrollment_id
        WHERE e.offering_id = $1 AND e.status = $2
        ORDER BY p.enrollment_id, p.prediction_date DESC`
	var predictions []models.Prediction
	if err := r.db.SelectContext(ctx, &predictions, query, offeringID, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("latest offering predictions: %w", err)
	}
	return predictions, nil
}

// AtRisk lists students whose latest prediction carries high or medium risk,
// joined with student and course info. High risk sorts before medium, then
// ascending confidence so the least certain cases surface first.
func (r *PredictionRepository) AtRisk(ctx context.Context) ([]models.AtRiskStudent, error) {
	const query = `SELECT p.id AS prediction_id, p.enrollment_id, e.student_id,
        s.first_name || ' ' || s.last_name AS student_name,
        c.course_code, c.course_name,
        p.predicted_grade, p.confidence_score, p.risk_level, p.prediction_date
        FROM predictions p
        JOIN enrollments e ON e.id = p.enrollment_id
        JOIN students s ON s.id = e.student_id
        JOIN course_offerings co ON co.id = e.offering_id
        JOIN courses c ON c.id = co.course_id
        WHERE p.risk_level IN ('high', 'medium')
        AND p.id IN (
            SELECT DISTINCT ON (enrollment_id) id
            FROM predictions
            ORDER BY enrollment_id, prediction_date DESC
        )
        ORDER BY CASE p.risk_level WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
            p.confidence_score ASC`
	var students []models.AtRiskStudent
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list at-risk students: %w", err)
	}
	return students, nil
}
