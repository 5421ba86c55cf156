package testsupport

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"soilsense/internal/domain/soil"
	"soilsense/internal/ml/bundle"
	"soilsense/internal/ml/kmeans"
	"soilsense/internal/ml/profile"
	"soilsense/internal/ml/scaler"
	"soilsense/internal/ml/selection"
)

// NewTwoClusterBundle returns a bundle whose scaler has N mean 90 and std 20 and whose
// model splits soils along N only: cluster 0 is centered one std below the mean, cluster 1 one above.
func NewTwoClusterBundle(t *testing.T) *bundle.Bundle {
	t.Helper()

	return twoClusterBundle(t, &scaler.Scaler{
		Features: append([]string(nil), soil.FeatureNames...),
		Mean:     append([]float64(nil), twoClusterMean...),
		Scale:    append([]float64(nil), twoClusterStd...),
	})
}

// NewFittedTwoClusterBundle is NewTwoClusterBundle with its scaler fitted on TwoClusterTable
func NewFittedTwoClusterBundle(t *testing.T) *bundle.Bundle {
	t.Helper()

	s, err := scaler.Fit(TwoClusterTable(), soil.FeatureNames)
	if err != nil {
		t.Fatalf("failed to fit test scaler: %v", err)
	}
	return twoClusterBundle(t, s)
}

var (
	twoClusterMean = []float64{90, 50, 50, 25, 70, 6.5, 150}
	twoClusterStd  = []float64{20, 10, 10, 5, 10, 1, 50}
)

// TwoClusterTable returns 100 training rows whose per-feature population mean and std
// are those of NewTwoClusterBundle's scaler: every column alternates mean-std and mean+std.
func TwoClusterTable() *mat.Dense {
	const rows = 100
	X := mat.NewDense(rows, soil.NumFeatures, nil)
	for i := 0; i < rows; i++ {
		sign := 1.0
		if i%2 == 1 {
			sign = -1
		}
		for j := range twoClusterMean {
			X.Set(i, j, twoClusterMean[j]+sign*twoClusterStd[j])
		}
	}
	return X
}

func twoClusterBundle(t *testing.T, s *scaler.Scaler) *bundle.Bundle {
	t.Helper()

	m := &kmeans.Model{
		K:   2,
		Dim: soil.NumFeatures,
		Centers: [][]float64{
			{-1, 0, 0, 0, 0, 0, 0},
			{1, 0, 0, 0, 0, 0, 0},
		},
		Inertia:    120,
		Iterations: 3,
		Converged:  true,
	}
	p := &profile.Set{
		Features: append([]string(nil), soil.FeatureNames...),
		Profiles: []profile.Profile{
			{ClusterID: 0, Size: 60, Characteristics: map[string]float64{
				"N": 70, "P": 50, "K": 50, "temperature": 25, "humidity": 70, "ph": 6.5, "rainfall": 150,
			}},
			{ClusterID: 1, Size: 40, Characteristics: map[string]float64{
				"N": 110, "P": 50, "K": 50, "temperature": 25, "humidity": 70, "ph": 6.5, "rainfall": 150,
			}},
		},
	}
	r := &selection.Report{
		SelectedK: 2,
		Samples:   100,
		Seed:      42,
		Candidates: []selection.Candidate{
			{K: 2, Silhouette: 0.58, DaviesBouldin: 0.61, Inertia: 120, Iterations: 3, Converged: true},
			{K: 3, Silhouette: 0.41, DaviesBouldin: 0.87, Inertia: 95, Iterations: 5, Converged: true},
		},
	}

	b, err := bundle.New(s, m, p, r)
	if err != nil {
		t.Fatalf("failed to build test bundle: %v", err)
	}
	return b
}
