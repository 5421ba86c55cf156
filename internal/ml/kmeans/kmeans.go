// Package kmeans partitions standardized feature vectors into K clusters
// with k-means++ seeding and Lloyd iterations.
package kmeans

import (
	"context"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

// Options controls a fit
type Options struct {
	Seed        uint64
	Restarts    int
	MaxIter     int
	Tolerance   float64 // max squared center shift that counts as converged
	Parallelism int     // concurrent restarts, <=0 means one at a time
}

// DefaultOptions returns the settings used when the caller has no preference
func DefaultOptions() Options {
	return Options{
		Seed:        42,
		Restarts:    10,
		MaxIter:     300,
		Tolerance:   1e-4,
		Parallelism: 4,
	}
}

// Result is the best of all restarts
type Result struct {
	Model   *Model
	Labels  []int
	Reseeds int // empty clusters re-seeded during the winning restart
	Restart int // index of the winning restart
}

// Fit partitions the rows of X into k clusters.
// Restarts run concurrently; the lowest inertia wins and ties go to the lowest restart index,
// so the result depends only on X, k and opts.
func Fit(ctx context.Context, X *mat.Dense, k int, opts Options) (*Result, error) {
	if X == nil {
		return nil, errors.Wrap(errors.ErrInsufficientData, "no training rows")
	}
	n, _ := X.Dims()
	if k < 1 {
		return nil, errors.NewValidationError("k", "must be at least 1", k)
	}
	if n < k {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "%d rows cannot form %d clusters", n, k)
	}
	if opts.Restarts < 1 {
		opts.Restarts = 1
	}
	if opts.MaxIter < 1 {
		opts.MaxIter = DefaultOptions().MaxIter
	}

	points := rows(X)
	results := make([]*Result, opts.Restarts)

	g, gctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	} else {
		g.SetLimit(1)
	}
	for r := 0; r < opts.Restarts; r++ {
		g.Go(func() error {
			res, err := runOnce(gctx, points, k, opts, r)
			if err != nil {
				return err
			}
			results[r] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrapf(err, "fit k=%d", k)
	}

	best := results[0]
	for _, res := range results[1:] {
		if res.Model.Inertia < best.Model.Inertia {
			best = res
		}
	}

	if best.Reseeds > 0 {
		logger.Get().Debugw("Re-seeded empty clusters",
			"component", "kmeans",
			"k", k,
			"restart", best.Restart,
			"reseeds", best.Reseeds,
		)
	}

	return best, nil
}

func runOnce(ctx context.Context, points [][]float64, k int, opts Options, restart int) (*Result, error) {
	rng := rand.New(rand.NewPCG(opts.Seed, uint64(restart)))
	centers := seedPlusPlus(points, k, rng)

	n := len(points)
	labels := make([]int, n)
	reseeds := 0
	converged := false
	iterations := 0

	for iterations < opts.MaxIter {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iterations++

		assign(points, centers, labels)
		reseeds += fixEmpty(points, centers, labels, k)

		next := means(points, labels, k)
		shift := 0.0
		for c := range centers {
			d := floats.Distance(centers[c], next[c], 2)
			shift = math.Max(shift, d*d)
		}
		centers = next

		if shift <= opts.Tolerance {
			converged = true
			break
		}
	}

	// Final labels always refer to the returned centers.
	before := append([]int(nil), labels...)
	assign(points, centers, labels)
	reseeds += fixEmpty(points, centers, labels, k)
	if !equalLabels(before, labels) {
		centers = means(points, labels, k)
	}

	inertia := 0.0
	for i, p := range points {
		d := floats.Distance(p, centers[labels[i]], 2)
		inertia += d * d
	}

	return &Result{
		Model: &Model{
			K:          k,
			Dim:        len(points[0]),
			Centers:    centers,
			Inertia:    inertia,
			Iterations: iterations,
			Converged:  converged,
		},
		Labels:  labels,
		Reseeds: reseeds,
		Restart: restart,
	}, nil
}

// seedPlusPlus picks k initial centers, each drawn with probability proportional to its
// squared distance from the nearest center already chosen
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(points[rng.IntN(n)]))

	d2 := make([]float64, n)
	for i, p := range points {
		d := floats.Distance(p, centers[0], 2)
		d2[i] = d * d
	}

	for len(centers) < k {
		total := floats.Sum(d2)
		idx := -1
		if total > 0 {
			target := rng.Float64() * total
			cum := 0.0
			for i, w := range d2 {
				if w == 0 {
					continue
				}
				cum += w
				idx = i
				if cum > target {
					break
				}
			}
		}
		if idx < 0 {
			// every point coincides with a chosen center
			idx = rng.IntN(n)
		}

		c := clone(points[idx])
		centers = append(centers, c)
		for i, p := range points {
			d := floats.Distance(p, c, 2)
			d2[i] = math.Min(d2[i], d*d)
		}
	}

	return centers
}

func assign(points, centers [][]float64, labels []int) {
	for i, p := range points {
		labels[i], _ = Nearest(centers, p)
	}
}

// fixEmpty moves, for every empty cluster in ascending order, the point farthest from its own
// center into that cluster. Only clusters with more than one member donate. Returns the
// number of re-seeded clusters.
func fixEmpty(points, centers [][]float64, labels []int, k int) int {
	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}

	reseeds := 0
	for c := 0; c < k; c++ {
		if counts[c] > 0 {
			continue
		}

		far, farDist := -1, -1.0
		for i, p := range points {
			if counts[labels[i]] < 2 {
				continue
			}
			if d := floats.Distance(p, centers[labels[i]], 2); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			// unreachable while len(points) >= k
			continue
		}

		counts[labels[far]]--
		labels[far] = c
		counts[c]++
		centers[c] = clone(points[far])
		reseeds++
	}

	return reseeds
}

func means(points [][]float64, labels []int, k int) [][]float64 {
	dim := len(points[0])
	sums := make([][]float64, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	counts := make([]float64, k)
	for i, p := range points {
		floats.Add(sums[labels[i]], p)
		counts[labels[i]]++
	}
	for c := range sums {
		if counts[c] > 0 {
			floats.Scale(1/counts[c], sums[c])
		}
	}
	return sums
}

func rows(X *mat.Dense) [][]float64 {
	n, _ := X.Dims()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = X.RawRowView(i)
	}
	return out
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}

func equalLabels(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
