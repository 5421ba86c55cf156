package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"soilsense/internal/domain/soil"
	"soilsense/internal/ml/bundle"
	"soilsense/internal/services/prediction"
	"soilsense/internal/services/training"
	"soilsense/internal/testsupport"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

type mockSamples struct {
	mock.Mock
}

func (m *mockSamples) List(ctx context.Context) ([]soil.Sample, error) {
	args := m.Called(ctx)
	return args.Get(0).([]soil.Sample), args.Error(1)
}

func (m *mockSamples) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockSamples) Insert(ctx context.Context, samples []soil.Sample) error {
	return m.Called(ctx, samples).Error(0)
}

type mockRuns struct {
	mock.Mock
}

func (m *mockRuns) Store(ctx context.Context, run *soil.TrainingRun, centers []soil.ClusterCenter) error {
	return m.Called(ctx, run, centers).Error(0)
}

func (m *mockRuns) GetLatest(ctx context.Context) (*soil.TrainingRun, error) {
	args := m.Called(ctx)
	if run := args.Get(0); run != nil {
		return run.(*soil.TrainingRun), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRuns) GetCenters(ctx context.Context, runID string) ([]soil.ClusterCenter, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).([]soil.ClusterCenter), args.Error(1)
}

type mockTrainer struct {
	mock.Mock
}

func (m *mockTrainer) TrainFrom(ctx context.Context, source training.SampleSource) (*training.Outcome, error) {
	args := m.Called(ctx, source)
	if out := args.Get(0); out != nil {
		return out.(*training.Outcome), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockLocker) ReleaseLock(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type mockReloader struct {
	mock.Mock
}

func (m *mockReloader) Reload(ctx context.Context, trigger string) (bool, error) {
	args := m.Called(ctx, trigger)
	return args.Bool(0), args.Error(1)
}

func outcome(t *testing.T) *training.Outcome {
	return &training.Outcome{Bundle: testsupport.NewTwoClusterBundle(t)}
}

func TestRetrainWorker_SkipsUnchangedTable(t *testing.T) {
	samples := &mockSamples{}
	samples.On("Count", mock.Anything).Return(2200, nil)
	runs := &mockRuns{}
	runs.On("GetLatest", mock.Anything).Return(&soil.TrainingRun{SampleCount: 2200}, nil)
	trainer := &mockTrainer{}

	w := NewRetrainWorker(samples, runs, nil, trainer, nil, time.Hour, true)
	require.NoError(t, w.Run(context.Background()))

	trainer.AssertNotCalled(t, "TrainFrom", mock.Anything, mock.Anything)
}

func TestRetrainWorker_TrainsWhenTableChanged(t *testing.T) {
	samples := &mockSamples{}
	samples.On("Count", mock.Anything).Return(2300, nil)
	runs := &mockRuns{}
	runs.On("GetLatest", mock.Anything).Return(&soil.TrainingRun{SampleCount: 2200}, nil)
	trainer := &mockTrainer{}
	trainer.On("TrainFrom", mock.Anything, samples).Return(outcome(t), nil).Once()
	locker := &mockLocker{}
	locker.On("AcquireLock", mock.Anything, retrainLockKey, 30*time.Minute).Return(true, nil)
	locker.On("ReleaseLock", mock.Anything, retrainLockKey).Return(nil)

	w := NewRetrainWorker(samples, runs, nil, trainer, locker, time.Hour, true)
	require.NoError(t, w.Run(context.Background()))

	trainer.AssertExpectations(t)
	locker.AssertExpectations(t)
}

func TestRetrainWorker_TrainsWithoutPreviousRun(t *testing.T) {
	samples := &mockSamples{}
	samples.On("Count", mock.Anything).Return(100, nil)
	runs := &mockRuns{}
	runs.On("GetLatest", mock.Anything).Return(nil, errors.ErrNotFound)
	trainer := &mockTrainer{}
	trainer.On("TrainFrom", mock.Anything, samples).Return(outcome(t), nil).Once()

	w := NewRetrainWorker(samples, runs, nil, trainer, nil, time.Hour, true)
	require.NoError(t, w.Run(context.Background()))

	trainer.AssertExpectations(t)
}

func TestRetrainWorker_LockHeldElsewhere(t *testing.T) {
	samples := &mockSamples{}
	samples.On("Count", mock.Anything).Return(10, nil)
	runs := &mockRuns{}
	runs.On("GetLatest", mock.Anything).Return(nil, errors.ErrNotFound)
	trainer := &mockTrainer{}
	locker := &mockLocker{}
	locker.On("AcquireLock", mock.Anything, retrainLockKey, mock.Anything).Return(false, nil)

	w := NewRetrainWorker(samples, runs, nil, trainer, locker, time.Hour, true)
	require.NoError(t, w.Run(context.Background()))

	trainer.AssertNotCalled(t, "TrainFrom", mock.Anything, mock.Anything)
	locker.AssertNotCalled(t, "ReleaseLock", mock.Anything, mock.Anything)
}

func TestRetrainWorker_TrainingFailureReleasesLock(t *testing.T) {
	samples := &mockSamples{}
	samples.On("Count", mock.Anything).Return(10, nil)
	runs := &mockRuns{}
	runs.On("GetLatest", mock.Anything).Return(nil, errors.ErrNotFound)
	trainer := &mockTrainer{}
	trainer.On("TrainFrom", mock.Anything, mock.Anything).Return(nil, errors.ErrInsufficientData)
	locker := &mockLocker{}
	locker.On("AcquireLock", mock.Anything, retrainLockKey, mock.Anything).Return(true, nil)
	locker.On("ReleaseLock", mock.Anything, retrainLockKey).Return(nil).Once()

	w := NewRetrainWorker(samples, runs, nil, trainer, locker, time.Hour, true)
	err := w.Run(context.Background())

	assert.ErrorIs(t, err, errors.ErrInsufficientData)
	locker.AssertExpectations(t)
}

type liveBundle struct{ b *bundle.Bundle }

func (l liveBundle) Current() *bundle.Bundle { return l.b }

func TestRetrainWorker_StaleRunRecordDoesNotLoop(t *testing.T) {
	live := testsupport.NewTwoClusterBundle(t)

	samples := &mockSamples{}
	samples.On("Count", mock.Anything).Return(live.Report.Samples, nil)
	runs := &mockRuns{}
	runs.On("GetLatest", mock.Anything).Return(&soil.TrainingRun{SampleCount: 40}, nil)
	trainer := &mockTrainer{}

	w := NewRetrainWorker(samples, runs, liveBundle{live}, trainer, nil, time.Hour, true)
	require.NoError(t, w.Run(context.Background()))
	require.NoError(t, w.Run(context.Background()))

	trainer.AssertNotCalled(t, "TrainFrom", mock.Anything, mock.Anything)
}

func TestRetrainWorker_MissingRunRecordDoesNotLoop(t *testing.T) {
	trained := outcome(t)

	samples := &mockSamples{}
	samples.On("Count", mock.Anything).Return(trained.Bundle.Report.Samples, nil)
	runs := &mockRuns{}
	// the run record failed to save, so the table always looks new
	runs.On("GetLatest", mock.Anything).Return(nil, errors.ErrNotFound)
	trainer := &mockTrainer{}
	trainer.On("TrainFrom", mock.Anything, samples).Return(trained, nil).Once()

	w := NewRetrainWorker(samples, runs, liveBundle{}, trainer, nil, time.Hour, true)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Run(context.Background()))
	}

	trainer.AssertNumberOfCalls(t, "TrainFrom", 1)
}

func TestRetrainWorker_LiveBundleFromOlderTable(t *testing.T) {
	live := testsupport.NewTwoClusterBundle(t)

	samples := &mockSamples{}
	samples.On("Count", mock.Anything).Return(live.Report.Samples+25, nil)
	runs := &mockRuns{}
	runs.On("GetLatest", mock.Anything).Return(nil, errors.ErrNotFound)
	trainer := &mockTrainer{}
	trainer.On("TrainFrom", mock.Anything, samples).Return(outcome(t), nil).Once()

	w := NewRetrainWorker(samples, runs, liveBundle{live}, trainer, nil, time.Hour, true)
	require.NoError(t, w.Run(context.Background()))

	trainer.AssertExpectations(t)
}

func TestBundleReloadWorker(t *testing.T) {
	t.Run("swapped", func(t *testing.T) {
		reg := &mockReloader{}
		reg.On("Reload", mock.Anything, prediction.TriggerPoll).Return(true, nil)
		require.NoError(t, NewBundleReloadWorker(reg, time.Minute, true).Run(context.Background()))
	})

	t.Run("nothing published yet", func(t *testing.T) {
		reg := &mockReloader{}
		reg.On("Reload", mock.Anything, prediction.TriggerPoll).Return(false, errors.Wrap(errors.ErrNoModel, "read current bundle version"))
		require.NoError(t, NewBundleReloadWorker(reg, time.Minute, true).Run(context.Background()))
	})

	t.Run("broken bundle", func(t *testing.T) {
		reg := &mockReloader{}
		reg.On("Reload", mock.Anything, prediction.TriggerPoll).Return(false, errors.NewArtifactMismatch("mixed runs"))
		err := NewBundleReloadWorker(reg, time.Minute, true).Run(context.Background())
		assert.ErrorIs(t, err, errors.ErrArtifactMismatch)
	})
}

func TestBundleReloadWorker_WithRegistry(t *testing.T) {
	store, err := bundle.NewFileStore(t.TempDir())
	require.NoError(t, err)
	reg := prediction.NewRegistry(store, logger.NewNop())
	w := NewBundleReloadWorker(reg, time.Minute, true)

	require.NoError(t, w.Run(context.Background()))
	assert.Nil(t, reg.Current())

	b := testsupport.NewTwoClusterBundle(t)
	require.NoError(t, store.Save(context.Background(), b))
	require.NoError(t, w.Run(context.Background()))
	require.NotNil(t, reg.Current())
	assert.Equal(t, b.Version, reg.Current().Version)
}
