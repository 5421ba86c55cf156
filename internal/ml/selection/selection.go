// Package selection chooses the cluster count by fitting every candidate K
// and keeping the one with the highest mean silhouette.
package selection

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"soilsense/internal/ml/kmeans"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

// Options for a cluster-count sweep
type Options struct {
	KMin                 int
	KMax                 int
	Parallelism          int // concurrent candidate K values
	SilhouetteSampleSize int
	KMeans               kmeans.Options
}

// Candidate is the outcome of fitting one K
type Candidate struct {
	K             int     `json:"k" yaml:"k"`
	Silhouette    float64 `json:"silhouette" yaml:"silhouette"`
	DaviesBouldin float64 `json:"davies_bouldin" yaml:"davies_bouldin"`
	Inertia       float64 `json:"inertia" yaml:"inertia"`
	Iterations    int     `json:"iterations" yaml:"iterations"`
	Converged     bool    `json:"converged" yaml:"converged"`
	Reseeds       int     `json:"reseeds,omitempty" yaml:"reseeds,omitempty"`
	Failed        bool    `json:"failed,omitempty" yaml:"failed,omitempty"`
	Error         string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report records every candidate and the chosen K
type Report struct {
	RunID      string      `json:"run_id" yaml:"run_id"`
	SelectedK  int         `json:"selected_k" yaml:"selected_k"`
	Samples    int         `json:"samples" yaml:"samples"`
	Seed       uint64      `json:"seed" yaml:"seed"`
	Candidates []Candidate `json:"candidates" yaml:"candidates"`
}

// Selected returns the candidate for the chosen K
func (r *Report) Selected() (Candidate, bool) {
	for _, c := range r.Candidates {
		if c.K == r.SelectedK {
			return c, true
		}
	}
	return Candidate{}, false
}

// Selection is the report plus the fit of the chosen K
type Selection struct {
	Report *Report
	Best   *kmeans.Result
	// Failures holds one error per K that could not be fitted, nil when every K succeeded
	Failures error
}

// SelectK fits every K in [KMin, KMax] and picks the highest mean silhouette, ties to the
// smallest K. Non-converged fits compete; failed fits are excluded and reported.
func SelectK(ctx context.Context, X *mat.Dense, opts Options) (*Selection, error) {
	if opts.KMin < 2 {
		return nil, errors.NewValidationError("k_min", "must be at least 2", opts.KMin)
	}
	if opts.KMax < opts.KMin {
		return nil, errors.NewValidationError("k_max", "must not be below k_min", opts.KMax)
	}

	log := logger.Get().With("component", "selection")
	n, _ := X.Dims()
	count := opts.KMax - opts.KMin + 1
	candidates := make([]Candidate, count)
	fits := make([]*kmeans.Result, count)
	failures := make([]error, count)

	g, gctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	} else {
		g.SetLimit(1)
	}
	for i := 0; i < count; i++ {
		k := opts.KMin + i
		g.Go(func() error {
			candidates[i] = Candidate{K: k}

			res, err := kmeans.Fit(gctx, X, k, opts.KMeans)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				candidates[i].Failed = true
				candidates[i].Error = err.Error()
				failures[i] = err
				return nil
			}

			score, err := Silhouette(X, res.Labels, k, opts.SilhouetteSampleSize, opts.KMeans.Seed)
			if err != nil {
				candidates[i].Failed = true
				candidates[i].Error = err.Error()
				failures[i] = errors.Wrapf(err, "score k=%d", k)
				return nil
			}

			candidates[i].Silhouette = score
			candidates[i].DaviesBouldin = DaviesBouldin(X, res.Labels, res.Model.Centers)
			candidates[i].Inertia = res.Model.Inertia
			candidates[i].Iterations = res.Model.Iterations
			candidates[i].Converged = res.Model.Converged
			candidates[i].Reseeds = res.Reseeds
			fits[i] = res

			log.Debugw("Candidate scored",
				"k", k,
				"silhouette", score,
				"davies_bouldin", candidates[i].DaviesBouldin,
				"inertia", res.Model.Inertia,
				"converged", res.Model.Converged,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "cluster count sweep")
	}

	merr := &errors.MultiError{}
	best := -1
	for i := range candidates {
		if failures[i] != nil {
			merr.Add(failures[i])
			continue
		}
		if !candidates[i].Converged {
			log.Warnw("Candidate hit iteration cap", "k", candidates[i].K, "iterations", candidates[i].Iterations)
		}
		if best < 0 || candidates[i].Silhouette > candidates[best].Silhouette {
			best = i
		}
	}

	if best < 0 {
		return nil, errors.Wrapf(
			fmt.Errorf("%w: %w", errors.ErrInsufficientData, merr),
			"no K in [%d, %d] could be fitted on %d rows", opts.KMin, opts.KMax, n,
		)
	}

	return &Selection{
		Report: &Report{
			SelectedK:  candidates[best].K,
			Samples:    n,
			Seed:       opts.KMeans.Seed,
			Candidates: candidates,
		},
		Best:     fits[best],
		Failures: merr.ToError(),
	}, nil
}
