// Package profile summarizes each cluster in original feature units.
package profile

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"soilsense/pkg/errors"
)

// Profile describes one cluster by the mean of its members' raw readings
type Profile struct {
	ClusterID       int                `json:"cluster_id" yaml:"cluster_id"`
	Size            int                `json:"size" yaml:"size"`
	Characteristics map[string]float64 `json:"characteristics" yaml:"characteristics"`
}

// Set is the profile of every cluster of one fitted model, indexed by cluster id
type Set struct {
	RunID    string    `json:"run_id"`
	Features []string  `json:"features"`
	Profiles []Profile `json:"profiles"`
}

// Build computes per-cluster means of the original-scale rows of X in one pass
func Build(X mat.Matrix, labels []int, k int, features []string) (*Set, error) {
	n, dim := X.Dims()
	if len(labels) != n {
		return nil, errors.NewValidationError("labels", "length does not match row count", len(labels))
	}
	if dim != len(features) {
		return nil, errors.NewInputShapeError("features", "column count does not match feature names", dim)
	}

	sums := make([][]float64, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	sizes := make([]int, k)
	row := make([]float64, dim)
	for i, l := range labels {
		if l < 0 || l >= k {
			return nil, errors.NewValidationError("labels", "cluster id out of range", l)
		}
		mat.Row(row, i, X)
		floats.Add(sums[l], row)
		sizes[l]++
	}

	set := &Set{
		Features: append([]string(nil), features...),
		Profiles: make([]Profile, k),
	}
	for c := 0; c < k; c++ {
		if sizes[c] > 0 {
			floats.Scale(1/float64(sizes[c]), sums[c])
		}
		chars := make(map[string]float64, dim)
		for j, name := range features {
			chars[name] = sums[c][j]
		}
		set.Profiles[c] = Profile{ClusterID: c, Size: sizes[c], Characteristics: chars}
	}

	return set, nil
}

// Get returns the profile for a cluster id
func (s *Set) Get(clusterID int) (Profile, bool) {
	if clusterID < 0 || clusterID >= len(s.Profiles) {
		return Profile{}, false
	}
	return s.Profiles[clusterID], true
}
