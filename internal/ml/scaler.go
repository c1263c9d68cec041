package ml

import (
	"encoding/json"
	"fmt"
	"os"
)

// StandardScaler applies the pre-fitted standardisation transform exported
// from training: (x - mean) / scale per feature.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// LoadScaler reads a scaler artifact from disk.
func LoadScaler(path string) (*StandardScaler, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler %s: %w", path, err)
	}
	var scaler StandardScaler
	if err := json.Unmarshal(raw, &scaler); err != nil {
		return nil, fmt.Errorf("parse scaler %s: %w", path, err)
	}
	if len(scaler.Mean) == 0 || len(scaler.Mean) != len(scaler.Scale) {
		return nil, fmt.Errorf("scaler %s: mean/scale length mismatch (%d vs %d)",
			path, len(scaler.Mean), len(scaler.Scale))
	}
	return &scaler, nil
}

// Dim returns the expected feature vector length.
func (s *StandardScaler) Dim() int {
	return len(s.Mean)
}

// Transform standardises the vector. A zero scale component degenerates to
// centering only, matching the exported training behaviour.
func (s *StandardScaler) Transform(vector []float64) ([]float64, error) {
	if len(vector) != len(s.Mean) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(s.Mean), len(vector))
	}
	scaled := make([]float64, len(vector))
	for i, v := range vector {
		centered := v - s.Mean[i]
		if s.Scale[i] != 0 {
			centered /= s.Scale[i]
		}
		scaled[i] = centered
	}
	return scaled, nil
}
