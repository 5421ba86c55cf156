package prediction

import (
	"github.com/shopspring/decimal"

	"soilsense/internal/adapters/config"
	"soilsense/internal/domain/soil"
	"soilsense/pkg/errors"
)

// Fertility categories, lowest first
const (
	CategoryVeryLow  = "Very Low"
	CategoryLow      = "Low"
	CategoryModerate = "Moderate"
	CategoryHigh     = "High"
	CategoryVeryHigh = "Very High"
)

var categories = [5]string{CategoryVeryLow, CategoryLow, CategoryModerate, CategoryHigh, CategoryVeryHigh}

// Threshold turns one profile mean into a phrase. Mid is used between Low and High
// and may be empty, in which case the feature is omitted.
type Threshold struct {
	Feature string
	High    float64
	Low     float64
	HighTxt string
	LowTxt  string
	MidTxt  string
}

// Phrase returns the phrase for v, or "" when the feature is omitted
func (t Threshold) Phrase(v float64) string {
	switch {
	case v > t.High:
		return t.HighTxt
	case v < t.Low:
		return t.LowTxt
	default:
		return t.MidTxt
	}
}

// Policy holds the fixed scoring rules applied on top of the clustering.
// The weights and thresholds are heuristics, not learned values.
type Policy struct {
	WeightN decimal.Decimal
	WeightP decimal.Decimal
	WeightK decimal.Decimal
	// CategoryBounds are the lower bounds of Low, Moderate, High and Very High
	CategoryBounds [4]decimal.Decimal
	Description    []Threshold
}

// DefaultPolicy returns the rules the service ships with
func DefaultPolicy() Policy {
	return Policy{
		WeightN: decimal.RequireFromString("0.4"),
		WeightP: decimal.RequireFromString("0.3"),
		WeightK: decimal.RequireFromString("0.3"),
		CategoryBounds: [4]decimal.Decimal{
			decimal.NewFromInt(26),
			decimal.NewFromInt(60),
			decimal.NewFromInt(90),
			decimal.NewFromInt(120),
		},
		Description: []Threshold{
			{Feature: soil.FeatureN, High: 100, Low: 70, HighTxt: "high nitrogen", LowTxt: "low nitrogen", MidTxt: "medium nitrogen"},
			{Feature: soil.FeatureP, High: 60, Low: 40, HighTxt: "high phosphorus", LowTxt: "low phosphorus"},
			{Feature: soil.FeatureK, High: 60, Low: 40, HighTxt: "high potassium", LowTxt: "low potassium"},
			{Feature: soil.FeatureTemperature, High: 30, Low: 20, HighTxt: "high temperature", LowTxt: "low temperature"},
			{Feature: soil.FeatureRainfall, High: 200, Low: 150, HighTxt: "high rainfall", LowTxt: "low rainfall"},
		},
	}
}

// PolicyFromConfig overrides the default weights and bounds with configured values
func PolicyFromConfig(cfg config.PolicyConfig) (Policy, error) {
	p := DefaultPolicy()
	if len(cfg.FertilityWeights) != 3 {
		return p, errors.NewValidationError("fertility_weights", "expected weights for N,P,K", cfg.FertilityWeights)
	}
	if len(cfg.CategoryBounds) != 4 {
		return p, errors.NewValidationError("category_bounds", "expected four ascending bounds", cfg.CategoryBounds)
	}

	p.WeightN = decimal.NewFromFloat(cfg.FertilityWeights[0])
	p.WeightP = decimal.NewFromFloat(cfg.FertilityWeights[1])
	p.WeightK = decimal.NewFromFloat(cfg.FertilityWeights[2])
	for i, b := range cfg.CategoryBounds {
		p.CategoryBounds[i] = decimal.NewFromFloat(b)
	}
	return p, nil
}

// Fertility returns wN·N + wP·P + wK·K on raw readings.
// Decimal arithmetic keeps 0.4·65 at exactly 26.
func (p Policy) Fertility(fv soil.FeatureVector) decimal.Decimal {
	return decimal.NewFromFloat(fv.N).Mul(p.WeightN).
		Add(decimal.NewFromFloat(fv.P).Mul(p.WeightP)).
		Add(decimal.NewFromFloat(fv.K).Mul(p.WeightK))
}

// Category maps a fertility score to its band. Each bound belongs to the band above it.
func (p Policy) Category(score decimal.Decimal) string {
	band := 0
	for _, bound := range p.CategoryBounds {
		if score.LessThan(bound) {
			break
		}
		band++
	}
	return categories[band]
}
