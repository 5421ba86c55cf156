package prediction

import (
	"fmt"

	"github.com/shopspring/decimal"

	"soilsense/internal/domain/soil"
	"soilsense/internal/ml/bundle"
	"soilsense/internal/ml/profile"
	"soilsense/pkg/errors"
)

// Result is the full-precision outcome of assigning one sample
type Result struct {
	ClusterID         int
	Distance          float64   // Euclidean distance to the assigned center in standardized space
	Distances         []float64 // distance to every center, by cluster id
	Fertility         decimal.Decimal
	FertilityCategory string
	Description       string
	Profile           profile.Profile
	ModelVersion      string
	OutOfRange        []string
}

// Predict assigns fv to the nearest center of b and derives its diagnostics.
// It reads nothing but its arguments.
func Predict(fv soil.FeatureVector, b *bundle.Bundle, policy Policy) (*Result, error) {
	if b == nil {
		return nil, errors.ErrNoModel
	}

	z, err := b.Scaler.Transform(fv.ToSlice())
	if err != nil {
		return nil, errors.Wrap(err, "standardize sample")
	}

	distances, err := b.Model.Distances(z)
	if err != nil {
		return nil, errors.Wrap(err, "measure distances")
	}
	id, dist, err := b.Model.Assign(z)
	if err != nil {
		return nil, errors.Wrap(err, "assign cluster")
	}

	p, ok := b.Profiles.Get(id)
	if !ok {
		return nil, errors.NewArtifactMismatch("no profile for cluster %d", id)
	}

	fertility := policy.Fertility(fv)

	return &Result{
		ClusterID:         id,
		Distance:          dist,
		Distances:         distances,
		Fertility:         fertility,
		FertilityCategory: policy.Category(fertility),
		Description:       Describe(id, p, policy),
		Profile:           p,
		ModelVersion:      b.Version,
		OutOfRange:        fv.OutOfRange(),
	}, nil
}

// Response is the wire form of a Result
type Response struct {
	Cluster                int                `json:"cluster"`
	ClusterName            string             `json:"cluster_name"`
	DistanceToCenter       float64            `json:"distance_to_center"`
	DistancesToCenters     []float64          `json:"distances_to_centers"`
	FertilityScore         float64            `json:"fertility_score"`
	FertilityCategory      string             `json:"fertility_category"`
	ClusterCharacteristics map[string]float64 `json:"cluster_characteristics"`
	ClusterDescription     string             `json:"cluster_description"`
	ModelVersion           string             `json:"model_version"`
	OutOfRangeFields       []string           `json:"out_of_range_fields"`
}

// Response rounds distances to 4 places and the fertility score to 2
func (r *Result) Response() *Response {
	distances := make([]float64, len(r.Distances))
	for i, d := range r.Distances {
		distances[i] = round(d, 4)
	}
	outOfRange := r.OutOfRange
	if outOfRange == nil {
		outOfRange = []string{}
	}

	return &Response{
		Cluster:                r.ClusterID,
		ClusterName:            ClusterName(r.ClusterID),
		DistanceToCenter:       round(r.Distance, 4),
		DistancesToCenters:     distances,
		FertilityScore:         r.Fertility.Round(2).InexactFloat64(),
		FertilityCategory:      r.FertilityCategory,
		ClusterCharacteristics: r.Profile.Characteristics,
		ClusterDescription:     r.Description,
		ModelVersion:           r.ModelVersion,
		OutOfRangeFields:       outOfRange,
	}
}

// ClusterName is the display name of a cluster id
func ClusterName(id int) string {
	return fmt.Sprintf("Cluster %d", id)
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
