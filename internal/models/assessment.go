package models

import "time"

// AssessmentType is the closed set of mapped assessment categories the model
// was trained on.
type AssessmentType string

const (
	AssessmentTypeCMA  AssessmentType = "CMA"
	AssessmentTypeTMA  AssessmentType = "TMA"
	AssessmentTypeExam AssessmentType = "Exam"
)

// Assessment describes a graded activity within a course offering.
type Assessment struct {
	ID         string         `db:"id" json:"id"`
	OfferingID string         `db:"offering_id" json:"offering_id"`
	TypeMapped AssessmentType `db:"assessment_type_mapped" json:"assessment_type"`
	Title      string         `db:"title" json:"title"`
	MaxScore   float64        `db:"max_score" json:"max_score"`
	DueDate    *time.Time     `db:"due_date" json:"due_date,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// AssessmentSubmission records one attempt against an assessment. Score stays
// null until graded; percentage is derived from score and max_score and is
// recomputed whenever the score changes.
type AssessmentSubmission struct {
	ID             string     `db:"id" json:"id"`
	EnrollmentID   string     `db:"enrollment_id" json:"enrollment_id"`
	AssessmentID   string     `db:"assessment_id" json:"assessment_id"`
	SubmissionDate time.Time  `db:"submission_date" json:"submission_date"`
	Score          *float64   `db:"score" json:"score,omitempty"`
	Percentage     *float64   `db:"percentage" json:"percentage,omitempty"`
	IsLate         bool       `db:"is_late" json:"is_late"`
	GradedDate     *time.Time `db:"graded_date" json:"graded_date,omitempty"`
	GradedBy       *string    `db:"graded_by" json:"graded_by,omitempty"`
	Feedback       *string    `db:"feedback" json:"feedback,omitempty"`
	AttemptNumber  int        `db:"attempt_number" json:"attempt_number"`
}

// SubmissionRow is the joined projection the feature calculator aggregates.
type SubmissionRow struct {
	Score          *float64       `db:"score"`
	SubmissionDate time.Time      `db:"submission_date"`
	IsLate         bool           `db:"is_late"`
	AssessmentType AssessmentType `db:"assessment_type"`
}

// GradeSubmissionRequest applies a score to a submission.
type GradeSubmissionRequest struct {
	Score    float64 `json:"score" validate:"required,gte=0"`
	Feedback *string `json:"feedback,omitempty"`
}
