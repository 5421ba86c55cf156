package training

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// FeatureSummary describes the distribution of one training column
type FeatureSummary struct {
	Feature  string  `json:"feature" yaml:"feature"`
	Mean     float64 `json:"mean" yaml:"mean"`
	StdDev   float64 `json:"std_dev" yaml:"std_dev"`
	Min      float64 `json:"min" yaml:"min"`
	Max      float64 `json:"max" yaml:"max"`
	Skew     float64 `json:"skew" yaml:"skew"`
	Kurtosis float64 `json:"kurtosis" yaml:"kurtosis"` // excess kurtosis
}

// Summarize computes per-column statistics of the raw training table
func Summarize(X mat.Matrix, features []string) []FeatureSummary {
	rows, cols := X.Dims()
	out := make([]FeatureSummary, cols)
	col := make([]float64, rows)

	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		mean, std := stat.MeanStdDev(col, nil)
		out[j] = FeatureSummary{
			Feature:  features[j],
			Mean:     mean,
			StdDev:   std,
			Min:      floats.Min(col),
			Max:      floats.Max(col),
			Skew:     stat.Skew(col, nil),
			Kurtosis: stat.ExKurtosis(col, nil),
		}
	}
	return out
}
