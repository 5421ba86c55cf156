package soil

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soilsense/pkg/errors"
)

func validInput() map[string]any {
	return map[string]any{
		"N": 90.0, "P": 42.0, "K": 43.0,
		"temperature": 20.8, "humidity": 82.0, "ph": 6.5, "rainfall": 202.9,
	}
}

func TestParseFeatureVector_Valid(t *testing.T) {
	fv, err := ParseFeatureVector(validInput())
	require.NoError(t, err)

	assert.Equal(t, []float64{90, 42, 43, 20.8, 82, 6.5, 202.9}, fv.ToSlice())
	assert.Empty(t, fv.OutOfRange())
}

func TestParseFeatureVector_AcceptsIntegersAndJSONNumbers(t *testing.T) {
	in := validInput()
	in["N"] = 90
	in["P"] = json.Number("42")
	in["K"] = int64(43)

	fv, err := ParseFeatureVector(in)
	require.NoError(t, err)
	assert.Equal(t, 90.0, fv.N)
	assert.Equal(t, 42.0, fv.P)
	assert.Equal(t, 43.0, fv.K)
}

func TestParseFeatureVector_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m map[string]any)
		field  string
	}{
		{"missing field", func(m map[string]any) { delete(m, "ph") }, "ph"},
		{"unknown field", func(m map[string]any) { m["moisture"] = 12.0 }, "moisture"},
		{"numeric string", func(m map[string]any) { m["N"] = "90" }, "N"},
		{"boolean", func(m map[string]any) { m["rainfall"] = true }, "rainfall"},
		{"nan", func(m map[string]any) { m["humidity"] = math.NaN() }, "humidity"},
		{"infinity", func(m map[string]any) { m["temperature"] = math.Inf(1) }, "temperature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(in)

			_, err := ParseFeatureVector(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInputShape))

			var shapeErr *errors.InputShapeError
			require.True(t, errors.As(err, &shapeErr))
			require.Len(t, shapeErr.Problems, 1)
			assert.Equal(t, tt.field, shapeErr.Problems[0].Field)
		})
	}
}

func TestParseFeatureVector_ReportsEveryProblem(t *testing.T) {
	_, err := ParseFeatureVector(map[string]any{"N": "x", "extra": 1.0})
	require.Error(t, err)

	var shapeErr *errors.InputShapeError
	require.True(t, errors.As(err, &shapeErr))
	// N is non-numeric, six features missing, one unknown key
	assert.Len(t, shapeErr.Problems, 8)
}

func TestFromSlice_WrongLength(t *testing.T) {
	_, err := FromSlice([]float64{1, 2, 3})
	assert.True(t, errors.Is(err, errors.ErrInputShape))
}

func TestFeatureVector_OutOfRange(t *testing.T) {
	fv := FeatureVector{N: 250, P: 42, K: 43, Temperature: -3, Humidity: 82, PH: 6.5, Rainfall: 202}
	assert.Equal(t, []string{FeatureN, FeatureTemperature}, fv.OutOfRange())
}

func TestFeatureVector_ToMap(t *testing.T) {
	fv := FeatureVector{N: 1, P: 2, K: 3, Temperature: 4, Humidity: 5, PH: 6, Rainfall: 7}
	m := fv.ToMap()
	assert.Len(t, m, NumFeatures)
	assert.Equal(t, 6.0, m[FeaturePH])
}
