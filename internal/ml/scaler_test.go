package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalerTransform(t *testing.T) {
	s := &StandardScaler{Mean: []float64{10, 0}, Scale: []float64{2, 1}}
	out, err := s.Transform([]float64{14, -3})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, -3}, out)
}

func TestScalerZeroScaleCentersOnly(t *testing.T) {
	s := &StandardScaler{Mean: []float64{5}, Scale: []float64{0}}
	out, err := s.Transform([]float64{7})
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, out)
}

func TestScalerRejectsWrongLength(t *testing.T) {
	s := &StandardScaler{Mean: []float64{0, 0}, Scale: []float64{1, 1}}
	_, err := s.Transform([]float64{1})
	require.Error(t, err)
}
