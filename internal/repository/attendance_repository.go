package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edupredict-api/internal/models"
)

// AttendanceRepository handles persistence of attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert writes the attendance record for (enrollment, date), replacing any
// existing row for that date.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	const query = `INSERT INTO attendance (id, enrollment_id, attendance_date, status, check_in_time, notes, created_at, updated_at)
        VALUES (:id, :enrollment_id, :attendance_date, :status, :check_in_time, :notes, :created_at, :updated_at)
        ON CONFLICT (enrollment_id, attendance_date)
        DO UPDATE SET status = EXCLUDED.status, check_in_time = EXCLUDED.check_in_time,
            notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// ListDays returns attendance rows for the enrollment up to the cutoff date,
// oldest first.
func (r *AttendanceRepository) ListDays(ctx context.Context, enrollmentID string, until time.Time) ([]models.AttendanceDay, error) {
	const query = `SELECT attendance_date, status FROM attendance
        WHERE enrollment_id = $1 AND attendance_date <= $2
        ORDER BY attendance_date`
	var days []models.AttendanceDay
	if err := r.db.SelectContext(ctx, &days, query, enrollmentID, until); err != nil {
		return nil, fmt.Errorf("list attendance days: %w", err)
	}
	return days, nil
}

// ListByEnrollment returns full attendance records for an enrollment.
func (r *AttendanceRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.AttendanceRecord, error) {
	const query = `SELECT id, enrollment_id, attendance_date, status, check_in_time, notes, created_at, updated_at
        FROM attendance WHERE enrollment_id = $1 ORDER BY attendance_date DESC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}
