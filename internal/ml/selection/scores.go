package selection

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"soilsense/pkg/errors"
)

// Silhouette returns the mean silhouette coefficient of a labeling.
// Points in singleton clusters score 0. sampleSize > 0 scores a seeded subsample of that many rows.
func Silhouette(X *mat.Dense, labels []int, k int, sampleSize int, seed uint64) (float64, error) {
	n, _ := X.Dims()
	if len(labels) != n {
		return 0, errors.NewValidationError("labels", "length does not match row count", len(labels))
	}
	if k < 2 {
		return 0, errors.NewValidationError("k", "silhouette needs at least 2 clusters", k)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if sampleSize > 0 && sampleSize < n {
		rng := rand.New(rand.NewPCG(seed, uint64(k)))
		idx = rng.Perm(n)[:sampleSize]
	}

	counts := make([]float64, k)
	for _, i := range idx {
		counts[labels[i]]++
	}

	sums := make([]float64, k)
	total := 0.0
	for _, i := range idx {
		for c := range sums {
			sums[c] = 0
		}
		xi := X.RawRowView(i)
		for _, j := range idx {
			if i == j {
				continue
			}
			sums[labels[j]] += floats.Distance(xi, X.RawRowView(j), 2)
		}

		own := labels[i]
		if counts[own] < 2 {
			continue
		}
		a := sums[own] / (counts[own] - 1)
		b := math.Inf(1)
		for c := range sums {
			if c == own || counts[c] == 0 {
				continue
			}
			b = math.Min(b, sums[c]/counts[c])
		}
		if math.IsInf(b, 1) {
			continue
		}
		if denom := math.Max(a, b); denom > 0 {
			total += (b - a) / denom
		}
	}

	return total / float64(len(idx)), nil
}

// DaviesBouldin returns the Davies-Bouldin index of a labeling. Lower is better.
func DaviesBouldin(X *mat.Dense, labels []int, centers [][]float64) float64 {
	k := len(centers)
	if k < 2 {
		return 0
	}

	spread := make([]float64, k)
	counts := make([]float64, k)
	for i, l := range labels {
		spread[l] += floats.Distance(X.RawRowView(i), centers[l], 2)
		counts[l]++
	}
	for c := range spread {
		if counts[c] > 0 {
			spread[c] /= counts[c]
		}
	}

	total := 0.0
	for i := 0; i < k; i++ {
		worst := 0.0
		for j := 0; j < k; j++ {
			if i == j {
				continue
			}
			sep := floats.Distance(centers[i], centers[j], 2)
			if sep == 0 {
				continue
			}
			worst = math.Max(worst, (spread[i]+spread[j])/sep)
		}
		total += worst
	}
	return total / float64(k)
}
