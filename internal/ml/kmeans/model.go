package kmeans

import (
	"gonum.org/v1/gonum/floats"

	"soilsense/pkg/errors"
)

// Model is a fitted partition: K centers in standardized space
type Model struct {
	RunID      string      `json:"run_id"`
	K          int         `json:"k"`
	Dim        int         `json:"dim"`
	Centers    [][]float64 `json:"centers"`
	Inertia    float64     `json:"inertia"`
	Iterations int         `json:"iterations"`
	Converged  bool        `json:"converged"`
}

// Nearest returns the index of the closest center and the Euclidean distance to it.
// Equidistant centers resolve to the lowest index.
func Nearest(centers [][]float64, x []float64) (int, float64) {
	best, bestDist := 0, floats.Distance(x, centers[0], 2)
	for c := 1; c < len(centers); c++ {
		if d := floats.Distance(x, centers[c], 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// Assign returns the nearest cluster for a standardized vector
func (m *Model) Assign(z []float64) (int, float64, error) {
	if len(z) != m.Dim {
		return 0, 0, errors.NewInputShapeError("vector", "length does not match model dimensionality", len(z))
	}
	id, dist := Nearest(m.Centers, z)
	return id, dist, nil
}

// Distances returns the Euclidean distance from z to every center, by cluster id
func (m *Model) Distances(z []float64) ([]float64, error) {
	if len(z) != m.Dim {
		return nil, errors.NewInputShapeError("vector", "length does not match model dimensionality", len(z))
	}
	out := make([]float64, len(m.Centers))
	for c, center := range m.Centers {
		out[c] = floats.Distance(z, center, 2)
	}
	return out, nil
}
