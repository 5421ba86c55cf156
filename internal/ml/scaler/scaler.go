// Package scaler standardizes feature vectors to zero mean and unit variance.
package scaler

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"soilsense/pkg/errors"
)

// constantTolerance is the standard deviation below which a feature is treated as constant
const constantTolerance = 10 * 2.220446049250313e-16

// Scaler holds per-feature mean and scale learned from a training table.
// It is immutable after Fit.
type Scaler struct {
	RunID            string    `json:"run_id"`
	Features         []string  `json:"features"`
	Mean             []float64 `json:"mean"`
	Scale            []float64 `json:"scale"`
	ConstantFeatures []string  `json:"constant_features,omitempty"`
}

// Fit computes the mean and population standard deviation of every column of X.
// features names the columns of X in order.
func Fit(X mat.Matrix, features []string) (*Scaler, error) {
	rows, cols := X.Dims()
	if rows == 0 {
		return nil, errors.Wrap(errors.ErrInsufficientData, "scaler needs at least one row")
	}
	if cols != len(features) {
		return nil, errors.NewInputShapeError("features", "column count does not match feature names", cols)
	}

	s := &Scaler{
		Features: append([]string(nil), features...),
		Mean:     make([]float64, cols),
		Scale:    make([]float64, cols),
	}

	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		s.Mean[j] = mean
		if std < constantTolerance || math.IsNaN(std) {
			s.Scale[j] = 1
			s.ConstantFeatures = append(s.ConstantFeatures, features[j])
			continue
		}
		s.Scale[j] = std
	}

	return s, nil
}

// Dim returns the fitted dimensionality
func (s *Scaler) Dim() int {
	return len(s.Mean)
}

// Transform standardizes one vector: (x - mean) / scale
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if err := s.checkDim(x); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// InverseTransform maps a standardized vector back to original units
func (s *Scaler) InverseTransform(z []float64) ([]float64, error) {
	if err := s.checkDim(z); err != nil {
		return nil, err
	}
	out := make([]float64, len(z))
	for j, v := range z {
		out[j] = v*s.Scale[j] + s.Mean[j]
	}
	return out, nil
}

// TransformMatrix standardizes every row of X into a new matrix
func (s *Scaler) TransformMatrix(X mat.Matrix) (*mat.Dense, error) {
	rows, cols := X.Dims()
	if cols != s.Dim() {
		return nil, errors.NewInputShapeError("matrix", "column count does not match fitted scaler", cols)
	}
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return out, nil
}

// InverseTransformMatrix maps every standardized row of Z back to original units
func (s *Scaler) InverseTransformMatrix(Z mat.Matrix) (*mat.Dense, error) {
	rows, cols := Z.Dims()
	if cols != s.Dim() {
		return nil, errors.NewInputShapeError("matrix", "column count does not match fitted scaler", cols)
	}
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	}, Z)
	return out, nil
}

func (s *Scaler) checkDim(x []float64) error {
	if len(x) != s.Dim() {
		return errors.NewInputShapeError("vector", "length does not match fitted scaler", len(x))
	}
	return nil
}
