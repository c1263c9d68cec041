package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edupredict-api/internal/models"
)

// ActivityRepository handles the append-only LMS activity log.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Insert appends one activity event. Rows are never updated afterwards.
func (r *ActivityRepository) Insert(ctx context.Context, activity *models.LMSActivity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now().UTC()
	}
	const query = `INSERT INTO lms_activities (id, enrollment_id, activity_timestamp, activity_type, resource_id)
        VALUES (:id, :enrollment_id, :activity_timestamp, :activity_type, :resource_id)`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("insert lms activity: %w", err)
	}
	return nil
}

// Rollup aggregates activity per (date, type, resource) up to the cutoff.
func (r *ActivityRepository) Rollup(ctx context.Context, enrollmentID string, until time.Time) ([]models.ActivityRollup, error) {
	const query = `SELECT DATE(activity_timestamp) AS activity_date, activity_type, resource_id, COUNT(*) AS click_count
        FROM lms_activities
        WHERE enrollment_id = $1 AND activity_timestamp <= $2
        GROUP BY DATE(activity_timestamp), activity_type, resource_id
        ORDER BY activity_date`
	var rollups []models.ActivityRollup
	if err := r.db.SelectContext(ctx, &rollups, query, enrollmentID, until); err != nil {
		return nil, fmt.Errorf("rollup lms activity: %w", err)
	}
	return rollups, nil
}
