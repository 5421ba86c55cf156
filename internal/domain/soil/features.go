package soil

import (
	"math"

	"soilsense/pkg/errors"
)

// Feature names in model order. Input mappings and stored columns use these keys.
const (
	FeatureN           = "N"
	FeatureP           = "P"
	FeatureK           = "K"
	FeatureTemperature = "temperature"
	FeatureHumidity    = "humidity"
	FeaturePH          = "ph"
	FeatureRainfall    = "rainfall"
)

// NumFeatures is the dimensionality of every feature vector
const NumFeatures = 7

// FeatureNames lists features in the order used by ToSlice and by the fitted scaler
var FeatureNames = []string{
	FeatureN, FeatureP, FeatureK, FeatureTemperature, FeatureHumidity, FeaturePH, FeatureRainfall,
}

// Range is a documented physical range for one reading
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies inside the closed range
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// PhysicalRanges documents the expected range of each reading. Values outside are still
// clustered; the result is an extrapolation beyond the training distribution.
var PhysicalRanges = map[string]Range{
	FeatureN:           {0, 200},
	FeatureP:           {0, 150},
	FeatureK:           {0, 150},
	FeatureTemperature: {0, 60},
	FeatureHumidity:    {0, 100},
	FeaturePH:          {0, 14},
	FeatureRainfall:    {0, 500},
}

// FeatureVector is one soil sample: NPK content (mg/kg), temperature (°C),
// relative humidity (%), pH and rainfall (mm)
type FeatureVector struct {
	N           float64 `json:"N" db:"n" ch:"n"`
	P           float64 `json:"P" db:"p" ch:"p"`
	K           float64 `json:"K" db:"k" ch:"k"`
	Temperature float64 `json:"temperature" db:"temperature" ch:"temperature"`
	Humidity    float64 `json:"humidity" db:"humidity" ch:"humidity"`
	PH          float64 `json:"ph" db:"ph" ch:"ph"`
	Rainfall    float64 `json:"rainfall" db:"rainfall" ch:"rainfall"`
}

// ToSlice converts the vector to model order (see FeatureNames)
func (f FeatureVector) ToSlice() []float64 {
	return []float64{f.N, f.P, f.K, f.Temperature, f.Humidity, f.PH, f.Rainfall}
}

// ToMap returns the readings keyed by feature name
func (f FeatureVector) ToMap() map[string]float64 {
	values := f.ToSlice()
	out := make(map[string]float64, NumFeatures)
	for i, name := range FeatureNames {
		out[name] = values[i]
	}
	return out
}

// FromSlice builds a vector from values in model order
func FromSlice(values []float64) (FeatureVector, error) {
	if len(values) != NumFeatures {
		return FeatureVector{}, errors.NewInputShapeError("vector", "expected 7 values in order N,P,K,temperature,humidity,ph,rainfall", len(values))
	}
	return FeatureVector{
		N:           values[0],
		P:           values[1],
		K:           values[2],
		Temperature: values[3],
		Humidity:    values[4],
		PH:          values[5],
		Rainfall:    values[6],
	}, nil
}

// Validate rejects non-finite readings
func (f FeatureVector) Validate() error {
	shapeErr := &errors.InputShapeError{}
	for i, v := range f.ToSlice() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			shapeErr.Add(FeatureNames[i], "must be a finite number", v)
		}
	}
	return shapeErr.ToError()
}

// OutOfRange lists features whose value lies outside PhysicalRanges, in model order
func (f FeatureVector) OutOfRange() []string {
	var out []string
	for i, v := range f.ToSlice() {
		name := FeatureNames[i]
		if !PhysicalRanges[name].Contains(v) {
			out = append(out, name)
		}
	}
	return out
}
