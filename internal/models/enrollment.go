package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
	EnrollmentStatusWithdrawn EnrollmentStatus = "withdrawn"
)

// Valid returns true when the status is a supported value.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusEnrolled, EnrollmentStatusCompleted, EnrollmentStatusDropped, EnrollmentStatusWithdrawn:
		return true
	default:
		return false
	}
}

// Enrollment captures a student's registration to a course offering.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	OfferingID     string           `db:"offering_id" json:"offering_id"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	FinalGrade     *string          `db:"final_grade" json:"final_grade,omitempty"`
	EnrollmentDate time.Time        `db:"enrollment_date" json:"enrollment_date"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseName  string `db:"course_name" json:"course_name"`
}
