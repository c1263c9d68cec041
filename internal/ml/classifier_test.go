package ml

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(value float64) TreeNode {
	return TreeNode{Feature: -1, Threshold: 0, Left: -1, Right: -1, Value: value}
}

// stumpOn builds a single-split tree on the given feature.
func stumpOn(feature int, threshold, left, right float64) Tree {
	return Tree{Nodes: []TreeNode{
		{Feature: feature, Threshold: threshold, Left: 1, Right: 2},
		leaf(left),
		leaf(right),
	}}
}

func testEnsemble() *TreeEnsemble {
	// Two classes, one boosting round. Class 0 scores high when feature 0 is
	// small, class 1 when it is large.
	return &TreeEnsemble{
		NumClasses:  2,
		NumFeatures: 2,
		BaseScore:   0.5,
		Trees: []Tree{
			stumpOn(0, 1.0, 2.0, -2.0),
			stumpOn(0, 1.0, -2.0, 2.0),
		},
	}
}

func TestTreeTraversalRoutesOnThreshold(t *testing.T) {
	tree := stumpOn(0, 5.0, -1.0, 1.0)

	left, err := tree.score([]float64{4.9})
	require.NoError(t, err)
	assert.Equal(t, -1.0, left)

	// Boundary value routes right: the split is strict less-than.
	right, err := tree.score([]float64{5.0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, right)
}

func TestTreeTraversalRejectsBadFeatureIndex(t *testing.T) {
	tree := stumpOn(7, 0, -1, 1)
	_, err := tree.score([]float64{1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature 7")
}

func TestEnsembleMarginsRoundRobin(t *testing.T) {
	e := testEnsemble()
	margins, err := e.Margins([]float64{0, 0})
	require.NoError(t, err)
	require.Len(t, margins, 2)
	assert.InDelta(t, 2.5, margins[0], 1e-12)
	assert.InDelta(t, -1.5, margins[1], 1e-12)
}

func TestPredictProbaSumsToOne(t *testing.T) {
	e := testEnsemble()
	for _, v := range []float64{-100, 0, 0.999, 1, 100} {
		probs, err := e.PredictProba([]float64{v, 0})
		require.NoError(t, err)
		var sum float64
		for _, p := range probs {
			assert.GreaterOrEqual(t, p, 0.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestPredictProbaIsStableForLargeMargins(t *testing.T) {
	e := &TreeEnsemble{
		NumClasses:  2,
		NumFeatures: 1,
		Trees: []Tree{
			{Nodes: []TreeNode{leaf(5000)}},
			{Nodes: []TreeNode{leaf(-5000)}},
		},
	}
	probs, err := e.PredictProba([]float64{0})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(probs[0]))
	assert.InDelta(t, 1.0, probs[0], 1e-9)
}

func TestPredictArgmax(t *testing.T) {
	e := testEnsemble()

	cls, err := e.Predict([]float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0, cls)

	cls, err = e.Predict([]float64{10, 0})
	require.NoError(t, err)
	assert.Equal(t, 1, cls)
}

func TestPredictRejectsWrongVectorLength(t *testing.T) {
	e := testEnsemble()
	_, err := e.PredictProba([]float64{1})
	require.Error(t, err)
}

func TestLoadClassifierValidatesTreeCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clf.json")
	// Three trees for two classes cannot be a complete boosting layout.
	payload := `{"num_classes":2,"num_features":1,"base_score":0,"trees":[
        {"nodes":[{"feature":-1,"threshold":0,"left":-1,"right":-1,"value":1}]},
        {"nodes":[{"feature":-1,"threshold":0,"left":-1,"right":-1,"value":1}]},
        {"nodes":[{"feature":-1,"threshold":0,"left":-1,"right":-1,"value":1}]}]}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	_, err := LoadClassifier(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a multiple")
}
