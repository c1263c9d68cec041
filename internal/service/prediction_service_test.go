package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edupredict-api/internal/ml"
	"github.com/noah-isme/edupredict-api/internal/models"
	appErrors "github.com/noah-isme/edupredict-api/pkg/errors"
)

type mockPredictionStore struct {
	inserted  []*models.Prediction
	insertErr error
	latest    *models.Prediction
	latestErr error
	history   []models.Prediction
	byCourse  []models.Prediction
	atRisk    []models.AtRiskStudent
}

func (m *mockPredictionStore) Insert(ctx context.Context, p *models.Prediction) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, p)
	return nil
}

func (m *mockPredictionStore) Latest(ctx context.Context, enrollmentID string) (*models.Prediction, error) {
	return m.latest, m.latestErr
}

func (m *mockPredictionStore) History(ctx context.Context, enrollmentID string, limit int) ([]models.Prediction, error) {
	return m.history, nil
}

func (m *mockPredictionStore) LatestByOffering(ctx context.Context, offeringID string) ([]models.Prediction, error) {
	return m.byCourse, nil
}

func (m *mockPredictionStore) AtRisk(ctx context.Context) ([]models.AtRiskStudent, error) {
	return m.atRisk, nil
}

type mockRosterRepo struct {
	enrollments []models.Enrollment
	err         error
}

func (m *mockRosterRepo) ListEnrolledByOffering(ctx context.Context, offeringID string) ([]models.Enrollment, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.enrollments, nil
}

type perIDEnrollmentRepo struct {
	known map[string]*models.Enrollment
}

func (m *perIDEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.known[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func leafOnly(value float64) ml.Tree {
	return ml.Tree{Nodes: []ml.TreeNode{{Feature: -1, Threshold: 0, Left: -1, Right: -1, Value: value}}}
}

// artifactsFavoring builds a 4-class ensemble whose class margins are fixed
// leaf weights, independent of the input vector.
func artifactsFavoring(order []string, classWeights [4]float64) *ml.Artifacts {
	trees := make([]ml.Tree, 4)
	for i, w := range classWeights {
		trees[i] = leafOnly(w)
	}
	n := len(order)
	return &ml.Artifacts{
		Classifier: &ml.TreeEnsemble{NumClasses: 4, NumFeatures: n, Trees: trees},
		Scaler:     &ml.StandardScaler{Mean: make([]float64, n), Scale: onesVector(n)},
		Metadata: &ml.ModelMetadata{
			ModelName:    "grade_predictor_xgb",
			ModelType:    "gradient_boosted_trees",
			FeatureOrder: order,
			FeatureCount: n,
		},
		FeatureOrder: order,
	}
}

func onesVector(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

func softmaxTop(weights [4]float64) float64 {
	maxW := weights[0]
	for _, w := range weights[1:] {
		if w > maxW {
			maxW = w
		}
	}
	var sum float64
	for _, w := range weights {
		sum += math.Exp(w - maxW)
	}
	return 1 / sum
}

func newTestPredictionService(store *mockPredictionStore, roster RosterRepository, artifacts *ml.Artifacts, enrollments FeatureEnrollmentRepository, batchLimit int) *PredictionService {
	calc := NewFeatureCalculator(enrollments,
		&mockAttendanceRepo{}, &mockActivityRepo{}, &mockSubmissionRepo{},
		&mockStudentRepo{err: sql.ErrNoRows},
		artifacts.FeatureOrder, DefaultFeaturePolicy(), zap.NewNop())
	return NewPredictionService(calc, store, roster, artifacts, nil, nil, zap.NewNop(), batchLimit, 0)
}

func TestRiskLevelFor(t *testing.T) {
	cases := []struct {
		name       string
		grade      models.GradeLabel
		confidence float64
		want       models.RiskLevel
	}{
		{"fail is high regardless of confidence", models.GradeFail, 0.99, models.RiskHigh},
		{"withdrawn is high", models.GradeWithdrawn, 0.2, models.RiskHigh},
		{"uncertain pass is medium", models.GradePass, 0.69, models.RiskMedium},
		{"confident pass is low", models.GradePass, 0.7, models.RiskLow},
		{"distinction is low", models.GradeDistinction, 0.3, models.RiskLow},
		{"unknown grade is medium", models.GradeLabel("Unknown"), 0.9, models.RiskMedium},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RiskLevelFor(tc.grade, tc.confidence))
		})
	}
}

func TestPredictAppendsNewRow(t *testing.T) {
	order := []string{"days_active", "total_clicks"}
	weights := [4]float64{0, 2, 0, 0} // Pass wins decisively
	store := &mockPredictionStore{}
	svc := newTestPredictionService(store, &mockRosterRepo{}, artifactsFavoring(order, weights),
		&mockEnrollmentRepo{enrollment: testEnrollment()}, 0)

	result, err := svc.Predict(context.Background(), "e1", nil)
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	row := store.inserted[0]
	assert.Equal(t, "e1", row.EnrollmentID)
	assert.Equal(t, models.GradePass, row.PredictedGrade)
	assert.Equal(t, models.RiskLow, row.RiskLevel)
	assert.Equal(t, "grade_predictor_xgb", row.ModelVersion)
	require.Len(t, row.FeatureSnapshot, len(order))

	assert.InDelta(t, softmaxTop(weights), result.ConfidenceScore, 1e-9)
	assert.Len(t, result.ClassProbabilities, 4)

	// A second run appends rather than replacing.
	_, err = svc.Predict(context.Background(), "e1", nil)
	require.NoError(t, err)
	assert.Len(t, store.inserted, 2)
}

func TestPredictRecordsQueryTimings(t *testing.T) {
	order := []string{"days_active", "total_clicks"}
	store := &mockPredictionStore{latest: &models.Prediction{ID: "p1", EnrollmentID: "e1"}}
	metrics := NewMetricsService()
	calc := NewFeatureCalculator(&mockEnrollmentRepo{enrollment: testEnrollment()},
		&mockAttendanceRepo{}, &mockActivityRepo{}, &mockSubmissionRepo{},
		&mockStudentRepo{err: sql.ErrNoRows},
		order, DefaultFeaturePolicy(), zap.NewNop())
	svc := NewPredictionService(calc, store, &mockRosterRepo{},
		artifactsFavoring(order, [4]float64{0, 2, 0, 0}),
		nil, metrics, zap.NewNop(), 0, 0)

	_, err := svc.Predict(context.Background(), "e1", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), metrics.Snapshot().DBQueryCount)

	_, _, err = svc.GetLatestPrediction(context.Background(), "e1")
	require.NoError(t, err)

	_, _, err = svc.AtRisk(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), metrics.Snapshot().DBQueryCount)
}

type capturingCacheRepo struct {
	setKey string
	setTTL time.Duration
}

func (m *capturingCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (m *capturingCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.setKey = key
	m.setTTL = ttl
	return nil
}

func (m *capturingCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	return nil
}

func TestAtRiskUsesConfiguredCacheTTL(t *testing.T) {
	order := []string{"days_active", "total_clicks"}
	repo := &capturingCacheRepo{}
	cacheSvc := NewCacheService(repo, nil, 10*time.Minute, zap.NewNop(), true)
	svc := NewPredictionService(nil, &mockPredictionStore{}, &mockRosterRepo{},
		artifactsFavoring(order, [4]float64{0, 2, 0, 0}),
		cacheSvc, nil, zap.NewNop(), 0, 5*time.Minute)

	_, _, err := svc.AtRisk(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "prediction:atrisk", repo.setKey)
	assert.Equal(t, 5*time.Minute, repo.setTTL)
}

func TestPredictUncertainPassIsMediumRisk(t *testing.T) {
	order := []string{"days_active", "total_clicks"}
	weights := [4]float64{0, 1, 0, 0} // Pass wins with ~0.48 confidence
	store := &mockPredictionStore{}
	svc := newTestPredictionService(store, &mockRosterRepo{}, artifactsFavoring(order, weights),
		&mockEnrollmentRepo{enrollment: testEnrollment()}, 0)

	result, err := svc.Predict(context.Background(), "e1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.GradePass, result.PredictedGrade)
	assert.Less(t, result.ConfidenceScore, 0.7)
	assert.Equal(t, models.RiskMedium, result.RiskLevel)
}

func TestPredictFailGradeIsHighRisk(t *testing.T) {
	order := []string{"days_active", "total_clicks"}
	weights := [4]float64{3, 0, 0, 0}
	store := &mockPredictionStore{}
	svc := newTestPredictionService(store, &mockRosterRepo{}, artifactsFavoring(order, weights),
		&mockEnrollmentRepo{enrollment: testEnrollment()}, 0)

	result, err := svc.Predict(context.Background(), "e1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.GradeFail, result.PredictedGrade)
	assert.Equal(t, models.RiskHigh, result.RiskLevel)
}

func TestPredictWrapsPersistenceFailure(t *testing.T) {
	order := []string{"days_active"}
	store := &mockPredictionStore{insertErr: errors.New("insert refused")}
	svc := newTestPredictionService(store, &mockRosterRepo{}, artifactsFavoring(order, [4]float64{0, 1, 0, 0}),
		&mockEnrollmentRepo{enrollment: testEnrollment()}, 0)

	_, err := svc.Predict(context.Background(), "e1", nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPersistence.Code, appErr.Code)
}

func TestPredictMissingEnrollment(t *testing.T) {
	order := []string{"days_active"}
	svc := newTestPredictionService(&mockPredictionStore{}, &mockRosterRepo{},
		artifactsFavoring(order, [4]float64{0, 1, 0, 0}),
		&perIDEnrollmentRepo{known: map[string]*models.Enrollment{}}, 0)

	_, err := svc.Predict(context.Background(), "ghost", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentNotFound)
}

func TestPredictBatchNeverFails(t *testing.T) {
	order := []string{"days_active"}
	store := &mockPredictionStore{}
	svc := newTestPredictionService(store, &mockRosterRepo{},
		artifactsFavoring(order, [4]float64{0, 2, 0, 0}),
		&perIDEnrollmentRepo{known: map[string]*models.Enrollment{"e1": testEnrollment()}}, 0)

	items := svc.PredictBatch(context.Background(), []string{"e1", "ghost"}, nil)
	require.Len(t, items, 2)
	assert.NotNil(t, items[0].Result)
	assert.Empty(t, items[0].Error)
	assert.Nil(t, items[1].Result)
	assert.NotEmpty(t, items[1].Error)
	assert.Len(t, store.inserted, 1)
}

func TestPredictOfferingEmptyRoster(t *testing.T) {
	order := []string{"days_active"}
	svc := newTestPredictionService(&mockPredictionStore{}, &mockRosterRepo{},
		artifactsFavoring(order, [4]float64{0, 1, 0, 0}),
		&mockEnrollmentRepo{enrollment: testEnrollment()}, 0)

	_, err := svc.PredictOffering(context.Background(), "o-empty")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, "no active enrollments found for this course", appErr.Message)
}

func TestPredictOfferingBatchLimit(t *testing.T) {
	order := []string{"days_active"}
	roster := &mockRosterRepo{enrollments: []models.Enrollment{
		{ID: "e1"}, {ID: "e2"}, {ID: "e3"},
	}}
	svc := newTestPredictionService(&mockPredictionStore{}, roster,
		artifactsFavoring(order, [4]float64{0, 1, 0, 0}),
		&mockEnrollmentRepo{enrollment: testEnrollment()}, 2)

	_, err := svc.PredictOffering(context.Background(), "o1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrBatchLimitExceeded.Code, appErr.Code)
}

func TestPredictOfferingSummaryCounts(t *testing.T) {
	order := []string{"days_active"}
	store := &mockPredictionStore{}
	roster := &mockRosterRepo{enrollments: []models.Enrollment{{ID: "e1"}, {ID: "ghost"}}}
	svc := newTestPredictionService(store, roster,
		artifactsFavoring(order, [4]float64{0, 2, 0, 0}),
		&perIDEnrollmentRepo{known: map[string]*models.Enrollment{"e1": testEnrollment()}}, 0)

	summary, err := svc.PredictOffering(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalStudents)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, summary.Predictions, 2)
}

func TestGetLatestPredictionNotFound(t *testing.T) {
	order := []string{"days_active"}
	svc := newTestPredictionService(&mockPredictionStore{latest: nil}, &mockRosterRepo{},
		artifactsFavoring(order, [4]float64{0, 1, 0, 0}),
		&mockEnrollmentRepo{enrollment: testEnrollment()}, 0)

	_, _, err := svc.GetLatestPrediction(context.Background(), "e1")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrPredictionNotFound)
}

func TestGetLatestPredictionReturnsStoredRow(t *testing.T) {
	order := []string{"days_active"}
	stored := &models.Prediction{
		ID: "p1", EnrollmentID: "e1",
		PredictedGrade: models.GradePass, RiskLevel: models.RiskLow,
		PredictionDate: time.Now().UTC(),
	}
	svc := newTestPredictionService(&mockPredictionStore{latest: stored}, &mockRosterRepo{},
		artifactsFavoring(order, [4]float64{0, 1, 0, 0}),
		&mockEnrollmentRepo{enrollment: testEnrollment()}, 0)

	got, cacheHit, err := svc.GetLatestPrediction(context.Background(), "e1")
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, stored, got)
}

func TestAtRiskSummaryCounts(t *testing.T) {
	order := []string{"days_active"}
	store := &mockPredictionStore{atRisk: []models.AtRiskStudent{
		{StudentID: "s1", RiskLevel: models.RiskHigh},
		{StudentID: "s2", RiskLevel: models.RiskHigh},
		{StudentID: "s3", RiskLevel: models.RiskMedium},
	}}
	svc := newTestPredictionService(store, &mockRosterRepo{},
		artifactsFavoring(order, [4]float64{0, 1, 0, 0}),
		&mockEnrollmentRepo{enrollment: testEnrollment()}, 0)

	summary, cacheHit, err := svc.AtRisk(context.Background())
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 3, summary.TotalAtRisk)
	assert.Equal(t, 2, summary.HighRisk)
	assert.Equal(t, 1, summary.MediumRisk)
}

func TestValidateFeatures(t *testing.T) {
	order := []string{"days_active", "total_clicks"}
	svc := newTestPredictionService(&mockPredictionStore{}, &mockRosterRepo{},
		artifactsFavoring(order, [4]float64{0, 1, 0, 0}),
		&mockEnrollmentRepo{enrollment: testEnrollment()}, 0)

	v := svc.ValidateFeatures(models.FeatureMap{"days_active": 1, "bogus": 2})
	assert.False(t, v.IsValid)
	assert.Equal(t, 2, v.ExpectedCount)
	assert.Equal(t, 2, v.ProvidedCount)
	assert.Equal(t, []string{"total_clicks"}, v.MissingFeatures)
	assert.Equal(t, []string{"bogus"}, v.ExtraFeatures)

	full := svc.ValidateFeatures(models.FeatureMap{"days_active": 1, "total_clicks": 2})
	assert.True(t, full.IsValid)
}
