package training

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"soilsense/internal/domain/soil"
	"soilsense/internal/events"
	"soilsense/internal/ml/bundle"
	"soilsense/internal/ml/kmeans"
	"soilsense/internal/ml/selection"
	"soilsense/internal/testsupport"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

type mockRunRepository struct {
	mock.Mock
}

func (m *mockRunRepository) Store(ctx context.Context, run *soil.TrainingRun, centers []soil.ClusterCenter) error {
	return m.Called(ctx, run, centers).Error(0)
}

func (m *mockRunRepository) GetLatest(ctx context.Context) (*soil.TrainingRun, error) {
	args := m.Called(ctx)
	if run := args.Get(0); run != nil {
		return run.(*soil.TrainingRun), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRunRepository) GetCenters(ctx context.Context, runID string) ([]soil.ClusterCenter, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).([]soil.ClusterCenter), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishModelTrained(ctx context.Context, event events.ModelTrainedEvent) error {
	return m.Called(ctx, event).Error(0)
}

var blobCenters = [][]float64{
	{20, 20, 20, 20, 80, 6.0, 100},
	{100, 60, 60, 25, 60, 6.5, 200},
	{150, 120, 120, 30, 40, 7.0, 300},
}

// threeSoilGroups returns perSize samples around each of three well separated soil types
func threeSoilGroups(perSize int) []soil.Sample {
	rng := rand.New(rand.NewPCG(11, 13))
	samples := make([]soil.Sample, 0, perSize*len(blobCenters))
	for _, center := range blobCenters {
		for i := 0; i < perSize; i++ {
			values := make([]float64, len(center))
			for j, c := range center {
				values[j] = c + rng.NormFloat64()*0.02*(c+1)
			}
			fv, _ := soil.FromSlice(values)
			samples = append(samples, soil.Sample{ID: int64(len(samples) + 1), FeatureVector: fv})
		}
	}
	return samples
}

func testOptions() selection.Options {
	km := kmeans.DefaultOptions()
	km.Restarts = 3
	return selection.Options{KMin: 2, KMax: 5, Parallelism: 2, KMeans: km}
}

func TestService_Train(t *testing.T) {
	store, err := bundle.NewFileStore(t.TempDir())
	require.NoError(t, err)

	runs := &mockRunRepository{}
	runs.On("Store", mock.Anything, mock.AnythingOfType("*soil.TrainingRun"), mock.MatchedBy(func(c []soil.ClusterCenter) bool {
		return len(c) == 3
	})).Return(nil)

	publisher := &mockPublisher{}
	publisher.On("PublishModelTrained", mock.Anything, mock.MatchedBy(func(ev events.ModelTrainedEvent) bool {
		return ev.K == 3 && ev.Samples == 150 && ev.Store == "file" && ev.Silhouette > 0.5
	})).Return(nil)

	svc := NewService(store, "file", testOptions(), logger.NewNop(),
		WithRunRepository(runs),
		WithPublisher(publisher),
	)

	outcome, err := svc.Train(context.Background(), threeSoilGroups(50))
	require.NoError(t, err)

	b := outcome.Bundle
	assert.Equal(t, 3, b.K())
	assert.Nil(t, outcome.Failures)
	require.Len(t, outcome.Summary, soil.NumFeatures)
	assert.Equal(t, soil.FeatureN, outcome.Summary[0].Feature)

	current, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, b.Version, current)

	// every soil group becomes exactly one cluster of 50
	for _, p := range b.Profiles.Profiles {
		assert.Equal(t, 50, p.Size)
	}

	runs.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestService_TrainIsDeterministic(t *testing.T) {
	train := func() *bundle.Bundle {
		store, err := bundle.NewFileStore(t.TempDir())
		require.NoError(t, err)
		outcome, err := NewService(store, "file", testOptions(), logger.NewNop()).
			Train(context.Background(), threeSoilGroups(30))
		require.NoError(t, err)
		return outcome.Bundle
	}

	a, b := train(), train()
	assert.Equal(t, a.K(), b.K())
	assert.Equal(t, a.Model.Centers, b.Model.Centers)
	assert.Equal(t, a.Report.Candidates, b.Report.Candidates)
}

func TestService_TrainSideEffectFailuresAreBestEffort(t *testing.T) {
	store, err := bundle.NewFileStore(t.TempDir())
	require.NoError(t, err)

	runs := &mockRunRepository{}
	runs.On("Store", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("postgres down"))
	publisher := &mockPublisher{}
	publisher.On("PublishModelTrained", mock.Anything, mock.Anything).Return(errors.New("kafka down"))

	tracker := &testsupport.RecordingTracker{}
	svc := NewService(store, "file", testOptions(), logger.NewNop(),
		WithRunRepository(runs),
		WithPublisher(publisher),
		WithTracker(tracker),
	)

	outcome, err := svc.Train(context.Background(), threeSoilGroups(20))
	require.NoError(t, err)
	assert.NotNil(t, outcome.Bundle)

	require.Len(t, tracker.Errors(), 1)
	assert.Contains(t, tracker.Errors()[0].Error(), "postgres down")
}

func TestService_TrainLeavesStageBreadcrumbs(t *testing.T) {
	store, err := bundle.NewFileStore(t.TempDir())
	require.NoError(t, err)

	tracker := &testsupport.RecordingTracker{}
	svc := NewService(store, "file", testOptions(), logger.NewNop(), WithTracker(tracker))

	samples := threeSoilGroups(10)
	for i := range samples {
		samples[i].PH = 6.5
	}
	outcome, err := svc.Train(context.Background(), samples)
	require.NoError(t, err)

	crumbs := tracker.Breadcrumbs()
	require.Len(t, crumbs, 3)
	assert.Equal(t, "scaler fitted", crumbs[0].Message)
	assert.Equal(t, "cluster count selected", crumbs[1].Message)
	assert.Equal(t, outcome.Bundle.K(), crumbs[1].Data["k"])
	assert.Equal(t, "bundle saved", crumbs[2].Message)
	assert.Equal(t, outcome.Bundle.Version, crumbs[2].Data["version"])
	for _, c := range crumbs {
		assert.Equal(t, "training", c.Category)
	}

	assert.Equal(t, []string{soil.FeaturePH}, crumbs[0].Data["constant_features"])
	require.Len(t, tracker.Messages(), 1)
	assert.Contains(t, tracker.Messages()[0], "constant features")
}

func TestService_TrainRejectsSmallTable(t *testing.T) {
	store, err := bundle.NewFileStore(t.TempDir())
	require.NoError(t, err)
	svc := NewService(store, "file", testOptions(), logger.NewNop())

	_, err = svc.Train(context.Background(), threeSoilGroups(1))
	assert.ErrorIs(t, err, errors.ErrInsufficientData)

	_, err = store.Current(context.Background())
	assert.ErrorIs(t, err, errors.ErrNoModel, "nothing is published on failure")
}

func TestService_TrainRejectsNonFiniteSample(t *testing.T) {
	store, err := bundle.NewFileStore(t.TempDir())
	require.NoError(t, err)
	svc := NewService(store, "file", testOptions(), logger.NewNop())

	samples := threeSoilGroups(10)
	samples[4].PH = nan()

	_, err = svc.Train(context.Background(), samples)
	assert.ErrorIs(t, err, errors.ErrInputShape)
}

func TestRunFromBundle(t *testing.T) {
	store, err := bundle.NewFileStore(t.TempDir())
	require.NoError(t, err)
	outcome, err := NewService(store, "file", testOptions(), logger.NewNop()).
		Train(context.Background(), threeSoilGroups(20))
	require.NoError(t, err)

	run, centers, err := runFromBundle(outcome.Bundle)
	require.NoError(t, err)
	assert.Equal(t, outcome.Bundle.Version, run.ID.String())
	assert.Equal(t, 60, run.SampleCount)
	assert.Equal(t, int64(42), run.Seed)
	require.Len(t, centers, 3)

	// original-scale centers land near the soil types they came from
	found := 0
	for _, c := range centers {
		for _, want := range blobCenters {
			if abs(c.Center.N-want[0]) < 5 && abs(c.Center.Rainfall-want[6]) < 15 {
				found++
			}
		}
	}
	assert.Equal(t, 3, found)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
