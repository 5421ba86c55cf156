package bundle

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"soilsense/internal/ml/kmeans"
	"soilsense/internal/ml/profile"
	"soilsense/internal/ml/scaler"
	"soilsense/internal/ml/selection"
	"soilsense/pkg/errors"
)

var testFeatures = []string{"N", "rainfall"}

func testBundle(t *testing.T) *Bundle {
	t.Helper()

	X := mat.NewDense(4, 2, []float64{
		10, 100,
		30, 120,
		150, 20,
		170, 40,
	})
	s, err := scaler.Fit(X, testFeatures)
	require.NoError(t, err)

	Z, err := s.TransformMatrix(X)
	require.NoError(t, err)
	labels := []int{0, 0, 1, 1}
	centers := [][]float64{
		{(Z.At(0, 0) + Z.At(1, 0)) / 2, (Z.At(0, 1) + Z.At(1, 1)) / 2},
		{(Z.At(2, 0) + Z.At(3, 0)) / 2, (Z.At(2, 1) + Z.At(3, 1)) / 2},
	}
	m := &kmeans.Model{K: 2, Dim: 2, Centers: centers, Converged: true, Iterations: 2}

	p, err := profile.Build(X, labels, 2, testFeatures)
	require.NoError(t, err)

	b, err := New(s, m, p, &selection.Report{SelectedK: 2, Samples: 4})
	require.NoError(t, err)
	return b
}

func TestNew_StampsRunID(t *testing.T) {
	b := testBundle(t)

	require.NotEmpty(t, b.Version)
	assert.Equal(t, b.Version, b.Scaler.RunID)
	assert.Equal(t, b.Version, b.Model.RunID)
	assert.Equal(t, b.Version, b.Profiles.RunID)
	assert.Equal(t, b.Version, b.Report.RunID)
	assert.Equal(t, testFeatures, b.Features)
	assert.Equal(t, 2, b.K())
}

func TestValidate_Mismatches(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *Bundle)
	}{
		{"scaler from another run", func(b *Bundle) { b.Scaler.RunID = "other" }},
		{"profiles from another run", func(b *Bundle) { b.Profiles.RunID = "other" }},
		{"feature order differs", func(b *Bundle) { b.Scaler.Features = []string{"rainfall", "N"} }},
		{"model dimensionality", func(b *Bundle) { b.Model.Dim = 3 }},
		{"center length", func(b *Bundle) { b.Model.Centers[1] = []float64{1} }},
		{"k disagrees with centers", func(b *Bundle) { b.Model.K = 3 }},
		{"profile count", func(b *Bundle) { b.Profiles.Profiles = b.Profiles.Profiles[:1] }},
		{"profile ids", func(b *Bundle) { b.Profiles.Profiles[0].ClusterID = 1 }},
		{"report k", func(b *Bundle) { b.Report.SelectedK = 5 }},
		{"missing model", func(b *Bundle) { b.Model = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBundle(t)
			tt.mutate(b)

			err := b.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrArtifactMismatch))

			var domainErr *errors.DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, "artifact_mismatch", domainErr.Code)
		})
	}
}

func TestCentersCSV(t *testing.T) {
	b := testBundle(t)

	var buf bytes.Buffer
	require.NoError(t, WriteCentersCSV(&buf, b))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"cluster", "N", "rainfall"}, records[0])
	assert.Equal(t, "0", records[1][0])
	assert.InDelta(t, 20, parseFloat(t, records[1][1]), 1e-9)
	assert.InDelta(t, 110, parseFloat(t, records[1][2]), 1e-9)
	assert.InDelta(t, 160, parseFloat(t, records[2][1]), 1e-9)
}

func TestFileStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Current(ctx)
	assert.ErrorIs(t, err, errors.ErrNoModel)

	b := testBundle(t)
	require.NoError(t, store.Save(ctx, b))

	current, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.Version, current)

	loaded, err := LoadCurrent(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, b.Version, loaded.Version)
	assert.True(t, b.CreatedAt.Equal(loaded.CreatedAt))
	assert.Equal(t, b.Scaler, loaded.Scaler)
	assert.Equal(t, b.Model, loaded.Model)
	assert.Equal(t, b.Profiles, loaded.Profiles)
	assert.Equal(t, b.Report, loaded.Report)

	assert.FileExists(t, filepath.Join(store.dir, b.Version, ArtifactCenters))
}

func TestFileStore_CurrentFollowsLatestSave(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	first := testBundle(t)
	second := testBundle(t)
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	current, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Version, current)

	versions, err := store.Versions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.Version, second.Version}, versions)

	// an older version stays loadable
	old, err := store.Load(ctx, first.Version)
	require.NoError(t, err)
	assert.Equal(t, first.Version, old.Version)
}

func TestFileStore_LoadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestFileStore_RejectsMixedArtifacts(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	a := testBundle(t)
	b := testBundle(t)
	require.NoError(t, store.Save(ctx, a))
	require.NoError(t, store.Save(ctx, b))

	// swap in the scaler of another run
	data, err := os.ReadFile(filepath.Join(store.dir, b.Version, ArtifactScaler))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.dir, a.Version, ArtifactScaler), data, 0o644))

	_, err = store.Load(ctx, a.Version)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrArtifactMismatch)
}

func parseFloat(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err)
	return v
}
