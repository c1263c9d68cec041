package ml

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edupredict-api/pkg/config"
)

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))
}

func writeArtifacts(t *testing.T, dir string, metaOrder, listOrder []string) config.ModelConfig {
	t.Helper()
	writeJSON(t, filepath.Join(dir, "model_metadata.json"), map[string]interface{}{
		"model_name":    "grade_predictor_xgb",
		"model_type":    "gradient_boosted_trees",
		"feature_order": metaOrder,
		"feature_count": len(metaOrder),
		"export_date":   "2026-07-14T09:30:00Z",
	})
	writeJSON(t, filepath.Join(dir, "feature_list.json"), listOrder)

	n := len(metaOrder)
	mean := make([]float64, n)
	scale := make([]float64, n)
	for i := range scale {
		scale[i] = 1
	}
	writeJSON(t, filepath.Join(dir, "scaler.json"), map[string]interface{}{"mean": mean, "scale": scale})

	leafTree := map[string]interface{}{"nodes": []map[string]interface{}{
		{"feature": -1, "threshold": 0, "left": -1, "right": -1, "value": 0.1},
	}}
	writeJSON(t, filepath.Join(dir, "grade_predictor.json"), map[string]interface{}{
		"num_classes":  2,
		"num_features": n,
		"base_score":   0.0,
		"trees":        []interface{}{leafTree, leafTree},
	})

	return config.ModelConfig{
		Dir:             dir,
		ClassifierFile:  "grade_predictor.json",
		ScalerFile:      "scaler.json",
		MetadataFile:    "model_metadata.json",
		FeatureListFile: "feature_list.json",
	}
}

func TestLoadArtifactsSuccess(t *testing.T) {
	order := []string{"days_active", "total_clicks", "avg_score"}
	cfg := writeArtifacts(t, t.TempDir(), order, order)

	artifacts, err := LoadArtifacts(cfg)
	require.NoError(t, err)
	assert.Equal(t, order, artifacts.FeatureOrder)
	assert.Equal(t, 3, artifacts.Scaler.Dim())
	assert.Equal(t, 3, artifacts.Classifier.NumFeatures)
}

func TestLoadArtifactsRejectsManifestMismatch(t *testing.T) {
	meta := []string{"days_active", "total_clicks", "avg_score"}
	list := []string{"days_active", "avg_score", "total_clicks"}
	cfg := writeArtifacts(t, t.TempDir(), meta, list)

	_, err := LoadArtifacts(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disagree at position 1")
}

func TestLoadArtifactsRejectsLengthMismatch(t *testing.T) {
	meta := []string{"days_active", "total_clicks"}
	list := []string{"days_active"}
	dir := t.TempDir()
	cfg := writeArtifacts(t, dir, meta, meta)
	writeJSON(t, filepath.Join(dir, "feature_list.json"), list)

	_, err := LoadArtifacts(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declares 1 features")
}

func TestLoadArtifactsRejectsScalerDimMismatch(t *testing.T) {
	order := []string{"days_active", "total_clicks"}
	dir := t.TempDir()
	cfg := writeArtifacts(t, dir, order, order)
	writeJSON(t, filepath.Join(dir, "scaler.json"), map[string]interface{}{
		"mean": []float64{0}, "scale": []float64{1},
	})

	_, err := LoadArtifacts(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scaler dimension")
}

func TestLoadArtifactsRejectsMissingFile(t *testing.T) {
	cfg := config.ModelConfig{
		Dir:             t.TempDir(),
		ClassifierFile:  "grade_predictor.json",
		ScalerFile:      "scaler.json",
		MetadataFile:    "model_metadata.json",
		FeatureListFile: "feature_list.json",
	}
	_, err := LoadArtifacts(cfg)
	require.Error(t, err)
}
