package ml

import (
	"fmt"
	"path/filepath"

	"github.com/noah-isme/edupredict-api/pkg/config"
)

// Artifacts bundles everything loaded from the model export directory. The
// bundle is loaded once at process start, shared read-only afterwards; any
// failure here is fatal, never handled per request.
type Artifacts struct {
	Classifier   *TreeEnsemble
	Scaler       *StandardScaler
	Metadata     *ModelMetadata
	FeatureOrder []string
}

// LoadArtifacts reads the classifier, scaler and both manifests, then
// cross-validates them. The feature_list.json ordering must agree exactly
// with the metadata feature_order: the calculator emits by the former, the
// classifier consumes by the latter, and a silent mismatch would corrupt
// every prediction.
func LoadArtifacts(cfg config.ModelConfig) (*Artifacts, error) {
	meta, err := LoadMetadata(filepath.Join(cfg.Dir, cfg.MetadataFile))
	if err != nil {
		return nil, err
	}

	featureList, err := LoadFeatureList(filepath.Join(cfg.Dir, cfg.FeatureListFile))
	if err != nil {
		return nil, err
	}
	if len(featureList) != len(meta.FeatureOrder) {
		return nil, fmt.Errorf("feature list declares %d features, metadata declares %d",
			len(featureList), len(meta.FeatureOrder))
	}
	for i, name := range featureList {
		if meta.FeatureOrder[i] != name {
			return nil, fmt.Errorf("feature manifests disagree at position %d: %q vs %q",
				i, name, meta.FeatureOrder[i])
		}
	}

	scaler, err := LoadScaler(filepath.Join(cfg.Dir, cfg.ScalerFile))
	if err != nil {
		return nil, err
	}
	if scaler.Dim() != meta.FeatureCount {
		return nil, fmt.Errorf("scaler dimension %d does not match feature count %d",
			scaler.Dim(), meta.FeatureCount)
	}

	classifier, err := LoadClassifier(filepath.Join(cfg.Dir, cfg.ClassifierFile))
	if err != nil {
		return nil, err
	}
	if classifier.NumFeatures != meta.FeatureCount {
		return nil, fmt.Errorf("classifier expects %d features, metadata declares %d",
			classifier.NumFeatures, meta.FeatureCount)
	}

	return &Artifacts{
		Classifier:   classifier,
		Scaler:       scaler,
		Metadata:     meta,
		FeatureOrder: featureList,
	}, nil
}
