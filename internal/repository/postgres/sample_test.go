package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soilsense/internal/domain/soil"
)

func TestSampleRepository_InsertAndList(t *testing.T) {
	testDB := newTestDB(t)
	repo := NewSampleRepository(testDB.Tx())
	ctx := context.Background()

	before, err := repo.Count(ctx)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	err = repo.Insert(ctx, []soil.Sample{
		sampleAt(90, now),
		sampleAt(20, now),
		sampleAt(55, time.Time{}),
	})
	require.NoError(t, err)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+3, count)

	samples, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, samples, count)

	last := samples[len(samples)-3:]
	assert.Equal(t, 90.0, last[0].N)
	assert.Equal(t, 20.0, last[1].N)
	assert.Equal(t, 55.0, last[2].N)
	assert.False(t, last[2].CollectedAt.IsZero(), "missing timestamps default to now")
	assert.Less(t, last[0].ID, last[1].ID)
}

func TestSampleRepository_InsertEmpty(t *testing.T) {
	testDB := newTestDB(t)
	repo := NewSampleRepository(testDB.Tx())

	require.NoError(t, repo.Insert(context.Background(), nil))
}
