package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edupredict-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPredictionRepositoryInsertAssignsIDAndDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPredictionRepository(db)

	mock.ExpectExec("INSERT INTO predictions").
		WillReturnResult(sqlmock.NewResult(1, 1))

	prediction := &models.Prediction{
		EnrollmentID:    "e1",
		PredictedGrade:  models.GradePass,
		ConfidenceScore: 0.82,
		RiskLevel:       models.RiskLow,
		ModelVersion:    "grade_predictor_xgb",
		FeatureSnapshot: models.FeatureMap{"days_active": 12},
	}
	require.NoError(t, repo.Insert(context.Background(), prediction))
	assert.NotEmpty(t, prediction.ID)
	assert.False(t, prediction.PredictionDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPredictionRepositoryLatestReturnsNilWhenEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPredictionRepository(db)

	mock.ExpectQuery("SELECT id, enrollment_id, prediction_date").
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	prediction, err := repo.Latest(context.Background(), "e1")
	require.NoError(t, err)
	assert.Nil(t, prediction)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPredictionRepositoryLatest(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPredictionRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "enrollment_id", "prediction_date", "predicted_grade",
		"confidence_score", "risk_level", "model_version", "feature_snapshot",
	}).AddRow("p1", "e1", now, "Pass", 0.9, "low", "grade_predictor_xgb", []byte(`{"days_active":12}`))
	mock.ExpectQuery("SELECT id, enrollment_id, prediction_date").
		WithArgs("e1").
		WillReturnRows(rows)

	prediction, err := repo.Latest(context.Background(), "e1")
	require.NoError(t, err)
	require.NotNil(t, prediction)
	assert.Equal(t, models.GradePass, prediction.PredictedGrade)
	assert.Equal(t, 12.0, prediction.FeatureSnapshot["days_active"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPredictionRepositoryHistoryClampsLimit(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPredictionRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "enrollment_id", "prediction_date", "predicted_grade",
		"confidence_score", "risk_level", "model_version", "feature_snapshot",
	}).AddRow("p1", "e1", time.Now(), "Fail", 0.6, "high", "m", []byte(`{}`))

	// A limit beyond the cap falls back to the default of 20.
	mock.ExpectQuery("SELECT id, enrollment_id, prediction_date").
		WithArgs("e1", 20).
		WillReturnRows(rows)

	history, err := repo.History(context.Background(), "e1", 500)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPredictionRepositoryAtRisk(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPredictionRepository(db)

	rows := sqlmock.NewRows([]string{
		"prediction_id", "enrollment_id", "student_id", "student_name",
		"course_code", "course_name", "predicted_grade", "confidence_score",
		"risk_level", "prediction_date",
	}).
		AddRow("p1", "e1", "s1", "Ada Lovelace", "CS101", "Intro CS", "Fail", 0.55, "high", time.Now()).
		AddRow("p2", "e2", "s2", "Alan Turing", "CS101", "Intro CS", "Pass", 0.62, "medium", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.risk_level IN ('high', 'medium')")).
		WillReturnRows(rows)

	students, err := repo.AtRisk(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, models.RiskHigh, students[0].RiskLevel)
	assert.Equal(t, "Ada Lovelace", students[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
