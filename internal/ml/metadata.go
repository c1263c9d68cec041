package ml

import (
	"encoding/json"
	"fmt"
	"os"
)

// ModelMetadata mirrors the model_metadata.json artifact exported alongside
// the trained classifier.
type ModelMetadata struct {
	ModelName    string   `json:"model_name"`
	ModelType    string   `json:"model_type"`
	FeatureOrder []string `json:"feature_order"`
	FeatureCount int      `json:"feature_count"`
	ExportDate   string   `json:"export_date"`
}

// LoadMetadata reads and validates the metadata artifact.
func LoadMetadata(path string) (*ModelMetadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model metadata %s: %w", path, err)
	}
	var meta ModelMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse model metadata %s: %w", path, err)
	}
	if len(meta.FeatureOrder) == 0 {
		return nil, fmt.Errorf("model metadata %s declares no feature order", path)
	}
	if meta.FeatureCount != len(meta.FeatureOrder) {
		return nil, fmt.Errorf("model metadata %s: feature_count %d does not match feature_order length %d",
			path, meta.FeatureCount, len(meta.FeatureOrder))
	}
	return &meta, nil
}

// LoadFeatureList reads the canonical feature-name ordering used by the
// feature calculator.
func LoadFeatureList(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature list %s: %w", path, err)
	}
	var features []string
	if err := json.Unmarshal(raw, &features); err != nil {
		return nil, fmt.Errorf("parse feature list %s: %w", path, err)
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("feature list %s is empty", path)
	}
	return features, nil
}
