package scaler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"soilsense/pkg/errors"
)

func TestFit_PopulationStatistics(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})

	s, err := Fit(X, []string{"a", "b"})
	require.NoError(t, err)

	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	// population std of 1..4 is sqrt(1.25)
	assert.InDelta(t, 1.118033988749895, s.Scale[0], 1e-12)

	assert.Equal(t, 10.0, s.Mean[1])
	assert.Equal(t, 1.0, s.Scale[1])
	assert.Equal(t, []string{"b"}, s.ConstantFeatures)
}

func TestFit_Errors(t *testing.T) {
	_, err := Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4}), []string{"a"})
	assert.True(t, errors.Is(err, errors.ErrInputShape))
}

func TestTransform_RoundTrip(t *testing.T) {
	X := mat.NewDense(3, 3, []float64{
		90, 42, 20.5,
		20, 60, 25.1,
		140, 10, 31.9,
	})
	s, err := Fit(X, []string{"N", "P", "temperature"})
	require.NoError(t, err)

	x := []float64{77, 33.3, 28.4}
	z, err := s.Transform(x)
	require.NoError(t, err)

	back, err := s.InverseTransform(z)
	require.NoError(t, err)
	assert.True(t, floats.EqualApprox(x, back, 1e-9))
}

func TestTransform_StandardizedColumnsHaveZeroMean(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		1, 100,
		5, 300,
		9, 800,
	})
	s, err := Fit(X, []string{"a", "b"})
	require.NoError(t, err)

	Z, err := s.TransformMatrix(X)
	require.NoError(t, err)

	col := make([]float64, 3)
	for j := 0; j < 2; j++ {
		mat.Col(col, j, Z)
		assert.InDelta(t, 0, floats.Sum(col), 1e-9)
	}

	back, err := s.InverseTransformMatrix(Z)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-9))
}

func TestTransform_ShapeMismatch(t *testing.T) {
	s := &Scaler{Features: []string{"a", "b"}, Mean: []float64{0, 0}, Scale: []float64{1, 1}}

	_, err := s.Transform([]float64{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInputShape))

	_, err = s.InverseTransform([]float64{1})
	assert.True(t, errors.Is(err, errors.ErrInputShape))
}
