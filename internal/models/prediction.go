package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// GradeLabel is the closed class-label domain fixed by the trained model.
type GradeLabel string

const (
	GradeFail        GradeLabel = "Fail"
	GradePass        GradeLabel = "Pass"
	GradeDistinction GradeLabel = "Distinction"
	GradeWithdrawn   GradeLabel = "Withdrawn"
)

// RiskLevel is the coarse classification derived from grade and confidence.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// FeatureMap holds the named feature values for one enrollment. It is stored
// as JSONB on prediction rows for auditability.
type FeatureMap map[string]float64

// Merge copies all entries from other into the map.
func (m FeatureMap) Merge(other FeatureMap) {
	for name, value := range other {
		m[name] = value
	}
}

// Value implements driver.Valuer.
func (m FeatureMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *FeatureMap) Scan(src interface{}) error {
	if src == nil {
		*m = FeatureMap{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported feature snapshot type %T", src)
	}
	return json.Unmarshal(raw, m)
}

// Prediction is an immutable record of one pipeline run. Rows are append-only;
// the current prediction is the most recent row by prediction_date.
type Prediction struct {
	ID              string     `db:"id" json:"prediction_id"`
	EnrollmentID    string     `db:"enrollment_id" json:"enrollment_id"`
	PredictionDate  time.Time  `db:"prediction_date" json:"prediction_date"`
	PredictedGrade  GradeLabel `db:"predicted_grade" json:"predicted_grade"`
	ConfidenceScore float64    `db:"confidence_score" json:"confidence_score"`
	RiskLevel       RiskLevel  `db:"risk_level" json:"risk_level"`
	ModelVersion    string     `db:"model_version" json:"model_version"`
	FeatureSnapshot FeatureMap `db:"feature_snapshot" json:"feature_snapshot,omitempty"`
}

// PredictionResult is the full payload returned by a prediction run.
type PredictionResult struct {
	PredictionID       string                `json:"prediction_id"`
	EnrollmentID       string                `json:"enrollment_id"`
	PredictedGrade     GradeLabel            `json:"predicted_grade"`
	ConfidenceScore    float64               `json:"confidence_score"`
	RiskLevel          RiskLevel             `json:"risk_level"`
	PredictionDate     time.Time             `json:"prediction_date"`
	ModelVersion       string                `json:"model_version"`
	FeaturesUsed       FeatureMap            `json:"features_used"`
	ClassProbabilities map[GradeLabel]float64 `json:"class_probabilities"`
}

// BatchPredictionItem is one entry in a batch result. Exactly one of Result or
// Error is populated; a failed item never aborts its siblings.
type BatchPredictionItem struct {
	EnrollmentID string            `json:"enrollment_id"`
	Result       *PredictionResult `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// BatchSummary wraps the outcome of a roster-wide prediction run.
type BatchSummary struct {
	OfferingID     string                `json:"course_offering_id"`
	TotalStudents  int                   `json:"total_students"`
	Successful     int                   `json:"successful_predictions"`
	Failed         int                   `json:"failed_predictions"`
	Predictions    []BatchPredictionItem `json:"predictions"`
}

// ModelInfo describes the loaded artifacts.
type ModelInfo struct {
	ModelName    string   `json:"model_name"`
	ModelType    string   `json:"model_type"`
	FeatureCount int      `json:"feature_count"`
	ExportDate   string   `json:"export_date"`
	Features     []string `json:"features"`
}

// FeatureValidation reports completeness of a calculated feature map against
// the model's declared order.
type FeatureValidation struct {
	IsValid         bool     `json:"is_valid"`
	ExpectedCount   int      `json:"expected_count"`
	ProvidedCount   int      `json:"provided_count"`
	MissingFeatures []string `json:"missing_features"`
	ExtraFeatures   []string `json:"extra_features"`
}

// AtRiskStudent is one row of the at-risk roster: the latest high or medium
// risk prediction joined with student and course info.
type AtRiskStudent struct {
	PredictionID    string     `db:"prediction_id" json:"prediction_id"`
	EnrollmentID    string     `db:"enrollment_id" json:"enrollment_id"`
	StudentID       string     `db:"student_id" json:"student_id"`
	StudentName     string     `db:"student_name" json:"student_name"`
	CourseCode      string     `db:"course_code" json:"course_code"`
	CourseName      string     `db:"course_name" json:"course_name"`
	PredictedGrade  GradeLabel `db:"predicted_grade" json:"predicted_grade"`
	ConfidenceScore float64    `db:"confidence_score" json:"confidence_score"`
	RiskLevel       RiskLevel  `db:"risk_level" json:"risk_level"`
	PredictionDate  time.Time  `db:"prediction_date" json:"prediction_date"`
}

// AtRiskSummary aggregates the roster for API responses.
type AtRiskSummary struct {
	TotalAtRisk int             `json:"total_at_risk"`
	HighRisk    int             `json:"high_risk"`
	MediumRisk  int             `json:"medium_risk"`
	Students    []AtRiskStudent `json:"students"`
}

// OfferingPredictions lists the latest prediction per enrollment in a course.
type OfferingPredictions struct {
	OfferingID           string       `json:"course_offering_id"`
	TotalStudents        int          `json:"total_students"`
	PredictionsAvailable int          `json:"predictions_available"`
	Predictions          []Prediction `json:"predictions"`
}
