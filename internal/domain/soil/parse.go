package soil

import (
	"encoding/json"
	"math"
	"sort"

	"soilsense/pkg/errors"
)

// ParseFeatureVector converts a loosely typed request mapping into a FeatureVector.
// The mapping must hold exactly the seven feature keys, each a finite number.
// Every problem is reported in one InputShapeError.
func ParseFeatureVector(raw map[string]any) (FeatureVector, error) {
	shapeErr := &errors.InputShapeError{}
	values := make([]float64, NumFeatures)

	for i, name := range FeatureNames {
		v, ok := raw[name]
		if !ok {
			shapeErr.Add(name, "missing field", nil)
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			shapeErr.Add(name, "must be a number", v)
			continue
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			shapeErr.Add(name, "must be a finite number", v)
			continue
		}
		values[i] = f
	}

	unknown := make([]string, 0)
	for key := range raw {
		if _, known := PhysicalRanges[key]; !known {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		shapeErr.Add(key, "unknown field", raw[key])
	}

	if err := shapeErr.ToError(); err != nil {
		return FeatureVector{}, err
	}

	return FromSlice(values)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
