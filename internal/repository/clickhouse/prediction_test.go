package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soilsense/internal/domain/soil"
	"soilsense/internal/testsupport"
)

func record(version string, cluster int32, at time.Time) soil.PredictionRecord {
	return soil.PredictionRecord{
		ID:                uuid.New(),
		Timestamp:         at,
		ModelVersion:      version,
		ClusterID:         cluster,
		DistanceToCenter:  0.8,
		FertilityScore:    65.5,
		FertilityCategory: "High",
		FeatureVector: soil.FeatureVector{
			N: 90, P: 42, K: 43, Temperature: 20.9, Humidity: 82, PH: 6.5, Rainfall: 202.9,
		},
	}
}

func TestPredictionRepository_StoreAndCount(t *testing.T) {
	helper := testsupport.NewClickHouseTestHelper(t)
	table := helper.CreateTempTable(t, CreatePredictionsTableSQL())

	repo := NewPredictionRepositoryForTable(helper.Client().Conn(), table)
	ctx := context.Background()
	now := time.Now().UTC()

	err := repo.Store(ctx, []soil.PredictionRecord{
		record("v1", 0, now),
		record("v1", 0, now),
		record("v1", 2, now),
		record("v1", 1, now.Add(-48*time.Hour)),
		record("v2", 1, now),
	})
	require.NoError(t, err)

	counts, err := repo.CountByCluster(ctx, "v1", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []soil.ClusterCount{
		{ClusterID: 0, Count: 2},
		{ClusterID: 2, Count: 1},
	}, counts)
}

func TestPredictionRepository_StoreEmpty(t *testing.T) {
	helper := testsupport.NewClickHouseTestHelper(t)
	repo := NewPredictionRepositoryForTable(helper.Client().Conn(), "unused")

	require.NoError(t, repo.Store(context.Background(), nil))
}
