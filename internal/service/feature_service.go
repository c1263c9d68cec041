package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edupredict-api/internal/models"
	appErrors "github.com/noah-isme/edupredict-api/pkg/errors"
)

// FeatureEnrollmentRepository describes enrollment access required by the calculator.
type FeatureEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// FeatureAttendanceRepository provides attendance rows up to a cutoff date.
type FeatureAttendanceRepository interface {
	ListDays(ctx context.Context, enrollmentID string, until time.Time) ([]models.AttendanceDay, error)
}

// FeatureActivityRepository provides aggregated LMS activity.
type FeatureActivityRepository interface {
	Rollup(ctx context.Context, enrollmentID string, until time.Time) ([]models.ActivityRollup, error)
}

// FeatureAssessmentRepository provides submission data for feature derivation.
type FeatureAssessmentRepository interface {
	ListSubmissions(ctx context.Context, enrollmentID string, until time.Time) ([]models.SubmissionRow, error)
	CountDue(ctx context.Context, enrollmentID string, until time.Time) (int, error)
}

// FeatureStudentRepository provides demographic attributes.
type FeatureStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// FeaturePolicy groups the fixed weights and encodings used by feature
// derivation. Values match the dataset the classifier was trained on.
type FeaturePolicy struct {
	CourseLengthDays     int
	PresentClickWeight   int
	LateClickWeight      int
	ActivityClickWeights map[string]int
	DefaultClickWeight   int
	AgeBandEncoding      map[string]float64
	EducationEncoding    map[string]float64
	Defaults             DemographicDefaults
}

// DemographicDefaults substitute for a missing student record.
type DemographicDefaults struct {
	AgeBandEncoded          float64
	HighestEducationEncoded float64
	NumPrevAttempts         float64
	StudiedCredits          float64
	HasDisability           float64
}

// DefaultFeaturePolicy returns the trained-model policy constants.
func DefaultFeaturePolicy() FeaturePolicy {
	return FeaturePolicy{
		// 16-week term. Data spanning a longer window can push activity_rate
		// past 100; that boundary is intentionally not clamped.
		CourseLengthDays:   112,
		PresentClickWeight: 30,
		LateClickWeight:    15,
		ActivityClickWeights: map[string]int{
			"resource_view":   1,
			"forum_post":      5,
			"forum_reply":     3,
			"assignment_view": 2,
			"quiz_attempt":    10,
			"video_watch":     1,
			"file_download":   2,
			"page_view":       1,
		},
		DefaultClickWeight: 1,
		AgeBandEncoding: map[string]float64{
			"0-35":  0,
			"35-55": 1,
			"55+":   2,
		},
		EducationEncoding: map[string]float64{
			"No Formal quals":             0,
			"Lower Than A Level":          1,
			"A Level or Equivalent":       2,
			"HE Qualification":            3,
			"Post Graduate Qualification": 4,
		},
		Defaults: DemographicDefaults{
			AgeBandEncoded:          0,
			HighestEducationEncoded: 2,
			NumPrevAttempts:         0,
			StudiedCredits:          60,
			HasDisability:           0,
		},
	}
}

// FeatureCalculator derives the fixed-order feature vector for one enrollment
// as of a given timestamp. Each feature group fails soft: an erroring data
// source zeroes that group only, it never aborts the vector.
type FeatureCalculator struct {
	enrollments  FeatureEnrollmentRepository
	attendance   FeatureAttendanceRepository
	activity     FeatureActivityRepository
	assessments  FeatureAssessmentRepository
	students     FeatureStudentRepository
	featureOrder []string
	policy       FeaturePolicy
	logger       *zap.Logger
}

// NewFeatureCalculator constructs the calculator with its feature-order manifest.
func NewFeatureCalculator(
	enrollments FeatureEnrollmentRepository,
	attendance FeatureAttendanceRepository,
	activity FeatureActivityRepository,
	assessments FeatureAssessmentRepository,
	students FeatureStudentRepository,
	featureOrder []string,
	policy FeaturePolicy,
	logger *zap.Logger,
) *FeatureCalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeatureCalculator{
		enrollments:  enrollments,
		attendance:   attendance,
		activity:     activity,
		assessments:  assessments,
		students:     students,
		featureOrder: featureOrder,
		policy:       policy,
		logger:       logger,
	}
}

// FeatureOrder returns the declared feature names in canonical order.
func (c *FeatureCalculator) FeatureOrder() []string {
	return c.featureOrder
}

// CalculateFeatures derives all declared features for one enrollment. The
// returned map always contains every declared feature name; names no group
// produced default to 0. A missing enrollment is terminal.
func (c *FeatureCalculator) CalculateFeatures(ctx context.Context, enrollmentID string, asOf *time.Time) (models.FeatureMap, error) {
	cutoff := time.Now().UTC()
	if asOf != nil {
		cutoff = asOf.UTC()
	}

	enrollment, err := c.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrEnrollmentNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load enrollment")
	}

	features := models.FeatureMap{}
	c.mergeGroup(features, c.activityFeatures(ctx, enrollment, cutoff), enrollmentID, "activity")
	c.mergeGroup(features, c.assessmentFeatures(ctx, enrollmentID, cutoff), enrollmentID, "assessment")
	c.mergeGroup(features, c.temporalFeatures(ctx, enrollmentID, cutoff), enrollmentID, "temporal")
	features.Merge(c.demographicFeatures(ctx, enrollment.StudentID))

	ordered := make(models.FeatureMap, len(c.featureOrder))
	for _, name := range c.featureOrder {
		ordered[name] = features[name]
	}
	return ordered, nil
}

func (c *FeatureCalculator) mergeGroup(dst models.FeatureMap, group models.FeatureMap, enrollmentID, name string) {
	if group == nil {
		c.logger.Warn("feature group fell back to zeros",
			zap.String("enrollment_id", enrollmentID),
			zap.String("group", name))
		return
	}
	dst.Merge(group)
}

// activityFeatures derives engagement features from attendance and LMS data.
// A nil return signals group failure; the caller zero-fills.
func (c *FeatureCalculator) activityFeatures(ctx context.Context, enrollment *models.Enrollment, cutoff time.Time) models.FeatureMap {
	days, err := c.attendance.ListDays(ctx, enrollment.ID, cutoff)
	if err != nil {
		c.logger.Warn("attendance lookup failed", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		return nil
	}
	rollups, err := c.activity.Rollup(ctx, enrollment.ID, cutoff)
	if err != nil {
		c.logger.Warn("activity rollup failed", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		return nil
	}

	activeDates := map[string]time.Time{}
	attendedDates := map[string]struct{}{}
	totalClicks := 0
	for _, day := range days {
		if day.Status == models.AttendanceStatusPresent || day.Status == models.AttendanceStatusLate {
			key := dateKey(day.Date)
			activeDates[key] = day.Date
			attendedDates[key] = struct{}{}
		}
		switch day.Status {
		case models.AttendanceStatusPresent:
			totalClicks += c.policy.PresentClickWeight
		case models.AttendanceStatusLate:
			totalClicks += c.policy.LateClickWeight
		}
	}

	uniqueResources := map[string]struct{}{}
	for _, rollup := range rollups {
		activeDates[dateKey(rollup.ActivityDate)] = rollup.ActivityDate
		weight, ok := c.policy.ActivityClickWeights[rollup.ActivityType]
		if !ok {
			weight = c.policy.DefaultClickWeight
		}
		totalClicks += rollup.ClickCount * weight
		if rollup.ResourceID != nil && *rollup.ResourceID != "" {
			uniqueResources[*rollup.ResourceID] = struct{}{}
		}
	}

	daysActive := len(activeDates)
	features := models.FeatureMap{
		"days_active":  float64(daysActive),
		"total_clicks": float64(totalClicks),
		// Every attended date counts as one synthetic material on top of the
		// distinct LMS resources.
		"unique_materials": float64(len(uniqueResources) + len(attendedDates)),
		"activity_rate":    float64(daysActive) / float64(c.policy.CourseLengthDays) * 100,
	}
	if daysActive > 0 {
		features["avg_clicks_per_active_day"] = float64(totalClicks) / float64(daysActive)
	} else {
		features["avg_clicks_per_active_day"] = 0
	}

	features["first_activity_day"] = 0
	features["last_activity_day"] = 0
	if daysActive > 0 {
		var first, last time.Time
		for _, d := range activeDates {
			if first.IsZero() || d.Before(first) {
				first = d
			}
			if last.IsZero() || d.After(last) {
				last = d
			}
		}
		features["first_activity_day"] = float64(daysBetween(enrollment.EnrollmentDate, first))
		features["last_activity_day"] = float64(daysBetween(enrollment.EnrollmentDate, last))
	}
	return features
}

// assessmentFeatures derives submission metrics up to the cutoff.
func (c *FeatureCalculator) assessmentFeatures(ctx context.Context, enrollmentID string, cutoff time.Time) models.FeatureMap {
	rows, err := c.assessments.ListSubmissions(ctx, enrollmentID, cutoff)
	if err != nil {
		c.logger.Warn("submission lookup failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		return nil
	}

	features := models.FeatureMap{
		"submitted_assessments": 0, "submission_rate": 0, "avg_score": 0,
		"avg_score_cma": 0, "avg_score_tma": 0, "avg_score_exam": 0,
		"on_time_submissions": 0, "avg_days_early": 0, "late_submission_count": 0,
	}
	if len(rows) == 0 {
		return features
	}

	totalDue, err := c.assessments.CountDue(ctx, enrollmentID, cutoff)
	if err != nil {
		c.logger.Warn("due-count lookup failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		totalDue = 1
	}
	if totalDue <= 0 {
		totalDue = 1
	}

	features["submitted_assessments"] = float64(len(rows))
	features["submission_rate"] = float64(len(rows)) / float64(totalDue) * 100

	byType := map[models.AssessmentType][]float64{}
	var graded []float64
	onTime, late := 0, 0
	for _, row := range rows {
		if row.IsLate {
			late++
		} else {
			onTime++
		}
		if row.Score == nil {
			continue
		}
		graded = append(graded, *row.Score)
		byType[row.AssessmentType] = append(byType[row.AssessmentType], *row.Score)
	}
	features["avg_score"] = mean(graded)
	features["avg_score_cma"] = mean(byType[models.AssessmentTypeCMA])
	features["avg_score_tma"] = mean(byType[models.AssessmentTypeTMA])
	features["avg_score_exam"] = mean(byType[models.AssessmentTypeExam])
	features["on_time_submissions"] = float64(onTime)
	features["late_submission_count"] = float64(late)
	return features
}

// temporalFeatures derives regularity metrics over the distinct active dates.
func (c *FeatureCalculator) temporalFeatures(ctx context.Context, enrollmentID string, cutoff time.Time) models.FeatureMap {
	days, err := c.attendance.ListDays(ctx, enrollmentID, cutoff)
	if err != nil {
		c.logger.Warn("attendance lookup failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		return nil
	}
	rollups, err := c.activity.Rollup(ctx, enrollmentID, cutoff)
	if err != nil {
		c.logger.Warn("activity rollup failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		return nil
	}

	seen := map[string]time.Time{}
	for _, day := range days {
		if day.Status == models.AttendanceStatusPresent || day.Status == models.AttendanceStatusLate {
			seen[dateKey(day.Date)] = day.Date
		}
	}
	for _, rollup := range rollups {
		seen[dateKey(rollup.ActivityDate)] = rollup.ActivityDate
	}

	features := models.FeatureMap{
		"weekly_activity_std": 0, "activity_regularity": 0,
		"longest_inactivity_gap": 0, "weekend_activity_ratio": 0,
		"activity_trend": 0,
	}
	if len(seen) == 0 {
		return features
	}

	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	weekly := map[string]int{}
	weekend := 0
	for _, d := range dates {
		year, week := d.ISOWeek()
		weekly[weekKey(year, week)]++
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			weekend++
		}
	}

	counts := make([]float64, 0, len(weekly))
	for _, n := range weekly {
		counts = append(counts, float64(n))
	}
	if len(counts) > 1 {
		std := sampleStd(counts)
		features["weekly_activity_std"] = std
		if m := mean(counts); m > 0 {
			features["activity_regularity"] = 1 / (1 + std/m)
		}
	}

	if len(dates) > 1 {
		maxGap := 0
		for i := 1; i < len(dates); i++ {
			if gap := daysBetween(dates[i-1], dates[i]); gap > maxGap {
				maxGap = gap
			}
		}
		features["longest_inactivity_gap"] = float64(maxGap)
	}
	features["weekend_activity_ratio"] = float64(weekend) / float64(len(dates))
	return features
}

// demographicFeatures maps static student attributes through the fixed
// ordinal encodings. A missing student record yields the documented defaults.
func (c *FeatureCalculator) demographicFeatures(ctx context.Context, studentID string) models.FeatureMap {
	defaults := models.FeatureMap{
		"age_band_encoded":          c.policy.Defaults.AgeBandEncoded,
		"highest_education_encoded": c.policy.Defaults.HighestEducationEncoded,
		"num_of_prev_attempts":      c.policy.Defaults.NumPrevAttempts,
		"studied_credits":           c.policy.Defaults.StudiedCredits,
		"has_disability":            c.policy.Defaults.HasDisability,
	}

	student, err := c.students.FindByID(ctx, studentID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.logger.Warn("student lookup failed", zap.String("student_id", studentID), zap.Error(err))
		}
		return defaults
	}

	features := models.FeatureMap{}
	features["age_band_encoded"] = c.policy.Defaults.AgeBandEncoded
	if student.AgeBand != nil {
		if encoded, ok := c.policy.AgeBandEncoding[*student.AgeBand]; ok {
			features["age_band_encoded"] = encoded
		}
	}
	features["highest_education_encoded"] = c.policy.Defaults.HighestEducationEncoded
	if student.HighestEducation != nil {
		if encoded, ok := c.policy.EducationEncoding[*student.HighestEducation]; ok {
			features["highest_education_encoded"] = encoded
		}
	}
	features["num_of_prev_attempts"] = 0
	if student.NumPrevAttempts != nil {
		features["num_of_prev_attempts"] = float64(*student.NumPrevAttempts)
	}
	features["studied_credits"] = c.policy.Defaults.StudiedCredits
	if student.StudiedCredits != nil {
		features["studied_credits"] = float64(*student.StudiedCredits)
	}
	features["has_disability"] = 0
	if student.HasDisability != nil && *student.HasDisability {
		features["has_disability"] = 1
	}
	return features
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func weekKey(year, week int) string {
	return fmt.Sprintf("%d-%02d", year, week)
}

func daysBetween(from, to time.Time) int {
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toDay.Sub(fromDay).Hours() / 24)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd is the n-1 standard deviation, matching the training pipeline.
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		diff := v - m
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
