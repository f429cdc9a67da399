package scoring

import (
	"fmt"
	"sort"

	"github.com/hubenschmidt/go-admissions/config"
	"github.com/hubenschmidt/go-admissions/core"
)

// Weights are the tunable constants of the scoring formulas.
type Weights struct {
	// AcademicCredit and CategoricalCredit split the eligibility
	// percentage between the minimum score and the required tags.
	AcademicCredit    float64
	CategoricalCredit float64

	// AcademicWeight and InterestWeight combine the two 0-100 components
	// into the match score.
	AcademicWeight float64
	InterestWeight float64

	// KeywordWeight and TextWeight split the interest component between
	// keyword hits and hits in the program name or description.
	KeywordWeight float64
	TextWeight    float64

	// NeutralInterest is the interest component for profiles without interests.
	NeutralInterest float64
}

// ScholarshipTier awards Percentage to scores at or above MinimumScore.
type ScholarshipTier struct {
	Name         string  `yaml:"name" json:"name"`
	MinimumScore float64 `yaml:"minimum_score" json:"minimum_score"`
	Percentage   float64 `yaml:"percentage" json:"percentage"`
}

type Policy struct {
	Weights
	TopN         int
	Scholarships []ScholarshipTier
}

func DefaultWeights() Weights {
	return Weights{
		AcademicCredit:    60,
		CategoricalCredit: 40,
		AcademicWeight:    0.5,
		InterestWeight:    0.5,
		KeywordWeight:     70,
		TextWeight:        30,
		NeutralInterest:   50,
	}
}

func DefaultScholarships() []ScholarshipTier {
	return []ScholarshipTier{
		{Name: "Presidential Scholarship", MinimumScore: 3.8, Percentage: 100},
		{Name: "Dean's Scholarship", MinimumScore: 3.5, Percentage: 75},
		{Name: "Merit Scholarship", MinimumScore: 3.2, Percentage: 50},
		{Name: "Achievement Scholarship", MinimumScore: 3.0, Percentage: 25},
	}
}

func DefaultPolicy() Policy {
	return Policy{
		Weights:      DefaultWeights(),
		TopN:         5,
		Scholarships: DefaultScholarships(),
	}
}

// PolicyFromConfig applies non-zero overrides to the default policy.
func PolicyFromConfig(cfg config.ScoringConfig) Policy {
	p := DefaultPolicy()
	override := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	override(&p.AcademicCredit, cfg.AcademicCredit)
	override(&p.CategoricalCredit, cfg.CategoricalCredit)
	override(&p.AcademicWeight, cfg.AcademicWeight)
	override(&p.InterestWeight, cfg.InterestWeight)
	override(&p.KeywordWeight, cfg.KeywordWeight)
	override(&p.TextWeight, cfg.TextWeight)
	override(&p.NeutralInterest, cfg.NeutralInterest)
	if cfg.TopN != 0 {
		p.TopN = cfg.TopN
	}
	return p
}

func (p Policy) validate() error {
	ws := map[string]float64{
		"academic credit":    p.AcademicCredit,
		"categorical credit": p.CategoricalCredit,
		"academic weight":    p.AcademicWeight,
		"interest weight":    p.InterestWeight,
		"keyword weight":     p.KeywordWeight,
		"text weight":        p.TextWeight,
		"neutral interest":   p.NeutralInterest,
	}
	for name, w := range ws {
		if w < 0 {
			return fmt.Errorf("%w: %s must not be negative", core.ErrInvalidConfig, name)
		}
	}
	if p.AcademicCredit+p.CategoricalCredit <= 0 {
		return fmt.Errorf("%w: eligibility credits must add up to more than zero", core.ErrInvalidConfig)
	}
	if p.TopN <= 0 {
		return fmt.Errorf("%w: top n must be positive", core.ErrInvalidConfig)
	}
	return nil
}

// sortedTiers returns a copy ordered from the highest threshold down, so
// the first tier a score reaches is the best one it qualifies for.
func sortedTiers(tiers []ScholarshipTier) []ScholarshipTier {
	out := append([]ScholarshipTier(nil), tiers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinimumScore > out[j].MinimumScore })
	return out
}
