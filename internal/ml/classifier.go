package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// TreeNode is one node of a regression tree in the boosted ensemble. Interior
// nodes route on Feature < Threshold; leaves carry the additive weight.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// IsLeaf reports whether the node terminates traversal.
func (n TreeNode) IsLeaf() bool {
	return n.Feature < 0
}

// Tree is a single regression tree stored as a flat node array rooted at 0.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

func (t Tree) score(features []float64) (float64, error) {
	if len(t.Nodes) == 0 {
		return 0, fmt.Errorf("tree has no nodes")
	}
	idx := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		node := t.Nodes[idx]
		if node.IsLeaf() {
			return node.Value, nil
		}
		if node.Feature >= len(features) {
			return 0, fmt.Errorf("tree references feature %d beyond vector length %d", node.Feature, len(features))
		}
		if features[node.Feature] < node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
		if idx < 0 || idx >= len(t.Nodes) {
			return 0, fmt.Errorf("tree child index %d out of range", idx)
		}
	}
	return 0, fmt.Errorf("tree traversal did not terminate")
}

// TreeEnsemble is a gradient-boosted multiclass classifier exported from
// training as JSON. Trees are laid out round-robin over classes: tree i
// contributes its leaf weight to class i mod NumClasses.
type TreeEnsemble struct {
	NumClasses  int     `json:"num_classes"`
	NumFeatures int     `json:"num_features"`
	BaseScore   float64 `json:"base_score"`
	Trees       []Tree  `json:"trees"`
}

// LoadClassifier reads and validates a classifier artifact from disk.
func LoadClassifier(path string) (*TreeEnsemble, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier %s: %w", path, err)
	}
	var ensemble TreeEnsemble
	if err := json.Unmarshal(raw, &ensemble); err != nil {
		return nil, fmt.Errorf("parse classifier %s: %w", path, err)
	}
	if ensemble.NumClasses < 2 {
		return nil, fmt.Errorf("classifier %s: num_classes %d invalid", path, ensemble.NumClasses)
	}
	if ensemble.NumFeatures <= 0 {
		return nil, fmt.Errorf("classifier %s: num_features %d invalid", path, ensemble.NumFeatures)
	}
	if len(ensemble.Trees) == 0 || len(ensemble.Trees)%ensemble.NumClasses != 0 {
		return nil, fmt.Errorf("classifier %s: tree count %d is not a multiple of num_classes %d",
			path, len(ensemble.Trees), ensemble.NumClasses)
	}
	return &ensemble, nil
}

// Margins accumulates raw per-class scores for a scaled feature vector.
func (e *TreeEnsemble) Margins(features []float64) ([]float64, error) {
	if len(features) != e.NumFeatures {
		return nil, fmt.Errorf("classifier expects %d features, got %d", e.NumFeatures, len(features))
	}
	margins := make([]float64, e.NumClasses)
	for i := range margins {
		margins[i] = e.BaseScore
	}
	for i, tree := range e.Trees {
		weight, err := tree.score(features)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		margins[i%e.NumClasses] += weight
	}
	return margins, nil
}

// PredictProba returns the softmax-normalised class probability distribution.
func (e *TreeEnsemble) PredictProba(features []float64) ([]float64, error) {
	margins, err := e.Margins(features)
	if err != nil {
		return nil, err
	}
	// Shift by the max margin for numerical stability.
	maxMargin := margins[0]
	for _, m := range margins[1:] {
		if m > maxMargin {
			maxMargin = m
		}
	}
	probs := make([]float64, len(margins))
	var sum float64
	for i, m := range margins {
		probs[i] = math.Exp(m - maxMargin)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs, nil
}

// Predict returns the argmax class index.
func (e *TreeEnsemble) Predict(features []float64) (int, error) {
	probs, err := e.PredictProba(features)
	if err != nil {
		return 0, err
	}
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return best, nil
}
