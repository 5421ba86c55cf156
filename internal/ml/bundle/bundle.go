// Package bundle groups the artifacts of one training run so they are always
// loaded and replaced together.
package bundle

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"soilsense/internal/ml/kmeans"
	"soilsense/internal/ml/profile"
	"soilsense/internal/ml/scaler"
	"soilsense/internal/ml/selection"
	"soilsense/pkg/errors"
)

// Bundle is the scaler, partition model and cluster profiles of one training run
type Bundle struct {
	Version   string            `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	Features  []string          `json:"features"`
	Scaler    *scaler.Scaler    `json:"-"`
	Model     *kmeans.Model     `json:"-"`
	Profiles  *profile.Set      `json:"-"`
	Report    *selection.Report `json:"-"`
}

// Store publishes and loads bundles
type Store interface {
	// Save writes every artifact of b and then marks b as current
	Save(ctx context.Context, b *Bundle) error
	// Load reads and validates one version
	Load(ctx context.Context, version string) (*Bundle, error)
	// Current returns the version last marked current, or ErrNoModel
	Current(ctx context.Context) (string, error)
	// Versions lists stored versions, oldest first
	Versions(ctx context.Context) ([]string, error)
}

// New stamps every artifact with a fresh run id and returns the validated bundle
func New(s *scaler.Scaler, m *kmeans.Model, p *profile.Set, r *selection.Report) (*Bundle, error) {
	if s == nil || m == nil || p == nil {
		return nil, errors.NewArtifactMismatch("bundle needs scaler, model and profiles")
	}

	b := &Bundle{
		Version:   uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Features:  append([]string(nil), s.Features...),
		Scaler:    s,
		Model:     m,
		Profiles:  p,
		Report:    r,
	}
	s.RunID = b.Version
	m.RunID = b.Version
	p.RunID = b.Version
	if r != nil {
		r.RunID = b.Version
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// LoadCurrent loads the version a store marks current
func LoadCurrent(ctx context.Context, store Store) (*Bundle, error) {
	version, err := store.Current(ctx)
	if err != nil {
		return nil, err
	}
	return store.Load(ctx, version)
}

// Validate checks that every artifact comes from the same run and that dimensionalities agree
func (b *Bundle) Validate() error {
	if b.Scaler == nil || b.Model == nil || b.Profiles == nil {
		return errors.NewArtifactMismatch("bundle %s is missing an artifact", b.Version)
	}

	ids := [][2]string{
		{"scaler", b.Scaler.RunID},
		{"model", b.Model.RunID},
		{"profiles", b.Profiles.RunID},
	}
	if b.Report != nil {
		ids = append(ids, [2]string{"report", b.Report.RunID})
	}
	for _, id := range ids {
		if id[1] != b.Version {
			return errors.NewArtifactMismatch("%s run id %q differs from bundle %q", id[0], id[1], b.Version)
		}
	}

	if !slices.Equal(b.Scaler.Features, b.Features) {
		return errors.NewArtifactMismatch("scaler features %v differ from bundle features %v", b.Scaler.Features, b.Features)
	}
	if !slices.Equal(b.Profiles.Features, b.Features) {
		return errors.NewArtifactMismatch("profile features %v differ from bundle features %v", b.Profiles.Features, b.Features)
	}

	dim := len(b.Features)
	if len(b.Scaler.Mean) != dim || len(b.Scaler.Scale) != dim {
		return errors.NewArtifactMismatch("scaler has %d means and %d scales for %d features", len(b.Scaler.Mean), len(b.Scaler.Scale), dim)
	}
	if b.Model.Dim != dim {
		return errors.NewArtifactMismatch("model dimensionality %d differs from scaler %d", b.Model.Dim, dim)
	}
	if b.Model.K < 1 || len(b.Model.Centers) != b.Model.K {
		return errors.NewArtifactMismatch("model declares k=%d with %d centers", b.Model.K, len(b.Model.Centers))
	}
	for c, center := range b.Model.Centers {
		if len(center) != dim {
			return errors.NewArtifactMismatch("center %d has %d values, expected %d", c, len(center), dim)
		}
	}
	if len(b.Profiles.Profiles) != b.Model.K {
		return errors.NewArtifactMismatch("%d profiles for k=%d", len(b.Profiles.Profiles), b.Model.K)
	}
	for c, p := range b.Profiles.Profiles {
		if p.ClusterID != c {
			return errors.NewArtifactMismatch("profile at position %d has cluster id %d", c, p.ClusterID)
		}
	}
	if b.Report != nil && b.Report.SelectedK != b.Model.K {
		return errors.NewArtifactMismatch("report selected k=%d, model has k=%d", b.Report.SelectedK, b.Model.K)
	}

	return nil
}

// K returns the number of clusters
func (b *Bundle) K() int {
	return b.Model.K
}

// CentersOriginal maps every center back to original feature units
func (b *Bundle) CentersOriginal() ([][]float64, error) {
	out := make([][]float64, len(b.Model.Centers))
	for c, z := range b.Model.Centers {
		x, err := b.Scaler.InverseTransform(z)
		if err != nil {
			return nil, errors.Wrapf(err, "center %d", c)
		}
		out[c] = x
	}
	return out, nil
}
