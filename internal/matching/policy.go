package matching

import (
	"errors"
	"math"
)

// RuleWeights weight the six rule factors. They should sum to 1.
type RuleWeights struct {
	RequiredSkills  float64 `mapstructure:"required-skills"`
	Experience      float64 `mapstructure:"experience"`
	Location        float64 `mapstructure:"location"`
	Salary          float64 `mapstructure:"salary"`
	PreferredSkills float64 `mapstructure:"preferred-skills"`
	Availability    float64 `mapstructure:"availability"`
}

// HybridWeights weight the semantic, rule and boost terms. They should sum to 1.
type HybridWeights struct {
	Semantic float64 `mapstructure:"semantic"`
	Rule     float64 `mapstructure:"rule"`
	Boost    float64 `mapstructure:"boost"`
}

// Policy is the tunable scoring configuration.
type Policy struct {
	Rule            RuleWeights                 `mapstructure:"rule"`
	Hybrid          HybridWeights               `mapstructure:"hybrid"`
	ExperienceSigma float64                     `mapstructure:"experience-sigma"`
	ExperienceYears map[ExperienceLevel]float64 `mapstructure:"experience-years"`
}

// DefaultPolicy returns the stock weights.
func DefaultPolicy() Policy {
	return Policy{
		Rule: RuleWeights{
			RequiredSkills:  0.35,
			Experience:      0.20,
			Location:        0.15,
			Salary:          0.15,
			PreferredSkills: 0.10,
			Availability:    0.05,
		},
		Hybrid: HybridWeights{
			Semantic: 0.40,
			Rule:     0.50,
			Boost:    0.10,
		},
		ExperienceSigma: 2,
		ExperienceYears: map[ExperienceLevel]float64{
			LevelEntry:  0,
			LevelJunior: 1,
			LevelMid:    3,
			LevelSenior: 6,
			LevelLead:   10,
		},
	}
}

// Validate checks that weights are non-negative and sum to 1.
func (p Policy) Validate() error {
	rule := []float64{p.Rule.RequiredSkills, p.Rule.Experience, p.Rule.Location, p.Rule.Salary, p.Rule.PreferredSkills, p.Rule.Availability}
	hybrid := []float64{p.Hybrid.Semantic, p.Hybrid.Rule, p.Hybrid.Boost}

	if !validWeights(rule) {
		return errors.New("rule weights must be non-negative and sum to 1")
	}
	if !validWeights(hybrid) {
		return errors.New("hybrid weights must be non-negative and sum to 1")
	}
	if p.ExperienceSigma <= 0 {
		return errors.New("experience sigma must be positive")
	}
	return nil
}

func validWeights(weights []float64) bool {
	var sum float64
	for _, w := range weights {
		if w < 0 {
			return false
		}
		sum += w
	}
	return math.Abs(sum-1) < 1e-6
}
