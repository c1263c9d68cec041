package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edupredict-api/internal/models"
)

// EnrollmentRepository handles read access to enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, offering_id, status, final_grade, enrollment_date FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with student and course context.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.offering_id, e.status, e.final_grade, e.enrollment_date,
        s.first_name || ' ' || s.last_name AS student_name, c.course_code, c.course_name
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN course_offerings co ON co.id = e.offering_id
        JOIN courses c ON c.id = co.course_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Exists reports whether the enrollment is present without loading it.
func (r *EnrollmentRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE id = $1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// ListEnrolledByOffering returns active enrollments for a course offering.
func (r *EnrollmentRepository) ListEnrolledByOffering(ctx context.Context, offeringID string) ([]models.Enrollment, error) {
	const query = `SELECT id, student_id, offering_id, status, final_grade, enrollment_date
        FROM enrollments WHERE offering_id = $1 AND status = $2 ORDER BY enrollment_date`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, offeringID, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list offering enrollments: %w", err)
	}
	return enrollments, nil
}
