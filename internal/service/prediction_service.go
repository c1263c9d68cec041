package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edupredict-api/internal/ml"
	"github.com/noah-isme/edupredict-api/internal/models"
	appErrors "github.com/noah-isme/edupredict-api/pkg/errors"
)

// gradeLabels maps the model's class indexes onto the closed label domain.
var gradeLabels = []models.GradeLabel{
	models.GradeFail,
	models.GradePass,
	models.GradeDistinction,
	models.GradeWithdrawn,
}

// GradeLabelFor maps a class index to its grade label.
func GradeLabelFor(classIdx int) (models.GradeLabel, error) {
	if classIdx < 0 || classIdx >= len(gradeLabels) {
		return "", fmt.Errorf("class index %d outside label domain", classIdx)
	}
	return gradeLabels[classIdx], nil
}

// RiskLevelFor derives the risk level from predicted grade and confidence.
// It is a pure function over the fixed policy table.
func RiskLevelFor(grade models.GradeLabel, confidence float64) models.RiskLevel {
	switch {
	case grade == models.GradeFail || grade == models.GradeWithdrawn:
		return models.RiskHigh
	case grade == models.GradePass && confidence < 0.7:
		return models.RiskMedium
	case grade == models.GradePass:
		return models.RiskLow
	case grade == models.GradeDistinction:
		return models.RiskLow
	default:
		return models.RiskMedium
	}
}

// PredictionStore describes the persistence layer required by PredictionService.
type PredictionStore interface {
	Insert(ctx context.Context, prediction *models.Prediction) error
	Latest(ctx context.Context, enrollmentID string) (*models.Prediction, error)
	History(ctx context.Context, enrollmentID string, limit int) ([]models.Prediction, error)
	LatestByOffering(ctx context.Context, offeringID string) ([]models.Prediction, error)
	AtRisk(ctx context.Context) ([]models.AtRiskStudent, error)
}

// RosterRepository lists the active enrollments of a course offering.
type RosterRepository interface {
	ListEnrolledByOffering(ctx context.Context, offeringID string) ([]models.Enrollment, error)
}

// PredictionService turns feature vectors into persisted, risk-classified
// predictions. The model artifacts are injected at construction and shared
// read-only across requests.
type PredictionService struct {
	features  *FeatureCalculator
	store     PredictionStore
	roster    RosterRepository
	artifacts *ml.Artifacts
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger

	batchLimit int
	atRiskTTL  time.Duration
}

// NewPredictionService constructs the service.
func NewPredictionService(
	features *FeatureCalculator,
	store PredictionStore,
	roster RosterRepository,
	artifacts *ml.Artifacts,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
	batchLimit int,
	atRiskTTL time.Duration,
) *PredictionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PredictionService{
		features:   features,
		store:      store,
		roster:     roster,
		artifacts:  artifacts,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		batchLimit: batchLimit,
		atRiskTTL:  atRiskTTL,
	}
}

// observeQuery feeds store call timings into the db query histogram.
func (s *PredictionService) observeQuery(label string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

// Predict runs the full pipeline for one enrollment: features, scaling,
// inference, risk scoring, persistence. A new immutable row is appended on
// every call.
func (s *PredictionService) Predict(ctx context.Context, enrollmentID string, asOf *time.Time) (*models.PredictionResult, error) {
	start := time.Now()
	features, err := s.features.CalculateFeatures(ctx, enrollmentID, asOf)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObservePipelineStage("features", time.Since(start))
	}

	vector := make([]float64, len(s.artifacts.Metadata.FeatureOrder))
	for i, name := range s.artifacts.Metadata.FeatureOrder {
		vector[i] = features[name]
	}

	inferenceStart := time.Now()
	scaled, err := s.artifacts.Scaler.Transform(vector)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "scale features")
	}
	probs, err := s.artifacts.Classifier.PredictProba(scaled)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "classify features")
	}
	classIdx, err := s.artifacts.Classifier.Predict(scaled)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "classify features")
	}
	if s.metrics != nil {
		s.metrics.ObservePipelineStage("inference", time.Since(inferenceStart))
	}

	grade, err := GradeLabelFor(classIdx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "map predicted class")
	}

	confidence := 0.0
	for _, p := range probs {
		if p > confidence {
			confidence = p
		}
	}
	risk := RiskLevelFor(grade, confidence)

	prediction := &models.Prediction{
		EnrollmentID:    enrollmentID,
		PredictionDate:  time.Now().UTC(),
		PredictedGrade:  grade,
		ConfidenceScore: confidence,
		RiskLevel:       risk,
		ModelVersion:    s.artifacts.Metadata.ModelName,
		FeatureSnapshot: features,
	}
	insertStart := time.Now()
	if err := s.store.Insert(ctx, prediction); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, appErrors.ErrPersistence.Message)
	}
	s.observeQuery("predictions_insert", insertStart)
	s.invalidateCaches(ctx, enrollmentID)

	classProbs := make(map[models.GradeLabel]float64, len(gradeLabels))
	for i, label := range gradeLabels {
		if i < len(probs) {
			classProbs[label] = probs[i]
		} else {
			classProbs[label] = 0
		}
	}

	s.logger.Info("prediction completed",
		zap.String("enrollment_id", enrollmentID),
		zap.String("predicted_grade", string(grade)),
		zap.Float64("confidence", confidence),
		zap.String("risk_level", string(risk)))
	if s.metrics != nil {
		s.metrics.CountPrediction(string(risk))
	}

	return &models.PredictionResult{
		PredictionID:       prediction.ID,
		EnrollmentID:       enrollmentID,
		PredictedGrade:     grade,
		ConfidenceScore:    confidence,
		RiskLevel:          risk,
		PredictionDate:     prediction.PredictionDate,
		ModelVersion:       prediction.ModelVersion,
		FeaturesUsed:       features,
		ClassProbabilities: classProbs,
	}, nil
}

// PredictBatch runs predictions sequentially for each enrollment. A failing
// item yields an error entry; the batch itself never fails.
func (s *PredictionService) PredictBatch(ctx context.Context, enrollmentIDs []string, asOf *time.Time) []models.BatchPredictionItem {
	items := make([]models.BatchPredictionItem, 0, len(enrollmentIDs))
	for _, id := range enrollmentIDs {
		result, err := s.Predict(ctx, id, asOf)
		if err != nil {
			s.logger.Warn("batch prediction item failed", zap.String("enrollment_id", id), zap.Error(err))
			items = append(items, models.BatchPredictionItem{EnrollmentID: id, Error: err.Error()})
			continue
		}
		items = append(items, models.BatchPredictionItem{EnrollmentID: id, Result: result})
	}
	return items
}

// PredictOffering generates predictions for every enrolled student of a
// course offering.
func (s *PredictionService) PredictOffering(ctx context.Context, offeringID string) (*models.BatchSummary, error) {
	enrollments, err := s.roster.ListEnrolledByOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	if len(enrollments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no active enrollments found for this course")
	}
	if s.batchLimit > 0 && len(enrollments) > s.batchLimit {
		return nil, appErrors.Clone(appErrors.ErrBatchLimitExceeded,
			fmt.Sprintf("course has %d enrollments, limit is %d", len(enrollments), s.batchLimit))
	}

	ids := make([]string, len(enrollments))
	for i, e := range enrollments {
		ids[i] = e.ID
	}
	items := s.PredictBatch(ctx, ids, nil)

	summary := &models.BatchSummary{
		OfferingID:    offeringID,
		TotalStudents: len(enrollments),
		Predictions:   items,
	}
	for _, item := range items {
		if item.Error != "" {
			summary.Failed++
		} else {
			summary.Successful++
		}
	}
	return summary, nil
}

// GetLatestPrediction returns the newest prediction for an enrollment. The
// boolean indicates whether the payload originated from cache.
func (s *PredictionService) GetLatestPrediction(ctx context.Context, enrollmentID string) (*models.Prediction, bool, error) {
	cacheKey := "prediction:latest:" + enrollmentID
	var cached models.Prediction
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	queryStart := time.Now()
	prediction, err := s.store.Latest(ctx, enrollmentID)
	if err != nil {
		return nil, false, err
	}
	s.observeQuery("predictions_latest", queryStart)
	if prediction == nil {
		return nil, false, appErrors.ErrPredictionNotFound
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, prediction, 0); err != nil {
			s.logger.Warn("cache latest prediction", zap.Error(err))
		}
	}
	return prediction, false, nil
}

// GetPredictionHistory returns predictions for an enrollment, most recent first.
func (s *PredictionService) GetPredictionHistory(ctx context.Context, enrollmentID string, limit int) ([]models.Prediction, error) {
	queryStart := time.Now()
	history, err := s.store.History(ctx, enrollmentID, limit)
	if err != nil {
		return nil, err
	}
	s.observeQuery("predictions_history", queryStart)
	return history, nil
}

// OfferingPredictions returns the latest stored prediction per enrolled
// student without generating new ones.
func (s *PredictionService) OfferingPredictions(ctx context.Context, offeringID string) (*models.OfferingPredictions, error) {
	enrollments, err := s.roster.ListEnrolledByOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	if len(enrollments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no active enrollments found for this course")
	}

	queryStart := time.Now()
	predictions, err := s.store.LatestByOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	s.observeQuery("predictions_by_offering", queryStart)
	return &models.OfferingPredictions{
		OfferingID:           offeringID,
		TotalStudents:        len(enrollments),
		PredictionsAvailable: len(predictions),
		Predictions:          predictions,
	}, nil
}

// AtRisk returns the latest high/medium risk roster. The boolean indicates a
// cache hit.
func (s *PredictionService) AtRisk(ctx context.Context) (*models.AtRiskSummary, bool, error) {
	const cacheKey = "prediction:atrisk"
	var cached models.AtRiskSummary
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	queryStart := time.Now()
	students, err := s.store.AtRisk(ctx)
	if err != nil {
		return nil, false, err
	}
	s.observeQuery("predictions_at_risk", queryStart)
	summary := &models.AtRiskSummary{
		TotalAtRisk: len(students),
		Students:    students,
	}
	for _, st := range students {
		switch st.RiskLevel {
		case models.RiskHigh:
			summary.HighRisk++
		case models.RiskMedium:
			summary.MediumRisk++
		}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.atRiskTTL); err != nil {
			s.logger.Warn("cache at-risk roster", zap.Error(err))
		}
	}
	return summary, false, nil
}

// ModelInfo describes the loaded artifacts.
func (s *PredictionService) ModelInfo() models.ModelInfo {
	meta := s.artifacts.Metadata
	return models.ModelInfo{
		ModelName:    meta.ModelName,
		ModelType:    meta.ModelType,
		FeatureCount: meta.FeatureCount,
		ExportDate:   meta.ExportDate,
		Features:     meta.FeatureOrder,
	}
}

// ValidateFeatures reports completeness of a feature map against the model's
// declared order.
func (s *PredictionService) ValidateFeatures(features models.FeatureMap) models.FeatureValidation {
	expected := make(map[string]struct{}, len(s.artifacts.Metadata.FeatureOrder))
	for _, name := range s.artifacts.Metadata.FeatureOrder {
		expected[name] = struct{}{}
	}

	var missing, extra []string
	for name := range expected {
		if _, ok := features[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range features {
		if _, ok := expected[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)

	return models.FeatureValidation{
		IsValid:         len(missing) == 0,
		ExpectedCount:   len(expected),
		ProvidedCount:   len(features),
		MissingFeatures: missing,
		ExtraFeatures:   extra,
	}
}

func (s *PredictionService) invalidateCaches(ctx context.Context, enrollmentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "prediction:latest:"+enrollmentID); err != nil {
		s.logger.Warn("invalidate latest prediction cache", zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx, "prediction:atrisk*"); err != nil {
		s.logger.Warn("invalidate at-risk cache", zap.Error(err))
	}
}
