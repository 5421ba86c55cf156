package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"soilsense/internal/domain/soil"
	"soilsense/internal/testsupport"
)

// newTestDB returns a rolled-back transaction with the schema applied
func newTestDB(t *testing.T) *testsupport.PostgresTestHelper {
	t.Helper()

	testDB := testsupport.NewTestPostgres(t)
	require.NoError(t, Migrate(context.Background(), testDB.Tx()))
	return testDB
}

func sampleAt(n float64, at time.Time) soil.Sample {
	return soil.Sample{
		FeatureVector: soil.FeatureVector{
			N: n, P: 40, K: 35, Temperature: 24.5, Humidity: 71, PH: 6.4, Rainfall: 110,
		},
		CollectedAt: at,
	}
}
