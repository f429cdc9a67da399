package scoring

import (
	"sort"
	"strconv"
	"strings"
)

// Scholarship is the tier a score qualifies for. Eligible is false and the
// other fields are zero when no tier applies.
type Scholarship struct {
	Eligible   bool    `json:"eligible"`
	Name       string  `json:"name,omitempty"`
	Percentage float64 `json:"percentage"`
}

// Eligibility reports how well a profile meets one program's requirements.
type Eligibility struct {
	ProgramID         string      `json:"program_id"`
	ProgramName       string      `json:"program_name"`
	Eligible          bool        `json:"eligible"`
	Percentage        float64     `json:"percentage"`
	AcademicCredit    float64     `json:"academic_credit"`
	CategoricalCredit float64     `json:"categorical_credit"`
	MeetsMinimumScore bool        `json:"meets_minimum_score"`
	HasRequiredTags   bool        `json:"has_required_tags"`
	Scholarship       Scholarship `json:"scholarship"`
}

type Components struct {
	AcademicScore float64 `json:"academic_score"`
	InterestScore float64 `json:"interest_score"`
}

// Match is a program with its 0-100 match score for one profile.
type Match struct {
	Program    Program    `json:"program"`
	MatchScore float64    `json:"match_score"`
	Eligible   bool       `json:"eligible"`
	Components Components `json:"components"`
}

// Scorer applies a Policy. It holds no per-request state.
type Scorer struct {
	policy Policy
}

func NewScorer(policy Policy) (*Scorer, error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}
	policy.Scholarships = sortedTiers(policy.Scholarships)
	return &Scorer{policy: policy}, nil
}

func (s *Scorer) Policy() Policy {
	return s.policy
}

// Eligibility computes the academic and categorical credit of a
// normalized profile against one program.
func (s *Scorer) Eligibility(p Profile, prog Program) Eligibility {
	academic, meets := s.academicCredit(p, prog)
	categorical, hasTags := s.categoricalCredit(p, prog)

	return Eligibility{
		ProgramID:         prog.ID,
		ProgramName:       prog.Name,
		Eligible:          meets && hasTags,
		Percentage:        academic + categorical,
		AcademicCredit:    academic,
		CategoricalCredit: categorical,
		MeetsMinimumScore: meets,
		HasRequiredTags:   hasTags,
		Scholarship:       s.ScholarshipFor(p.Score),
	}
}

// academicCredit is full when the score reaches the minimum, linear below
// it, and zero when the score is unknown.
func (s *Scorer) academicCredit(p Profile, prog Program) (float64, bool) {
	if p.Score == nil {
		return 0, false
	}
	if *p.Score >= prog.MinimumScore || prog.MinimumScore <= 0 {
		return s.policy.AcademicCredit, true
	}
	return clamp(s.policy.AcademicCredit*(*p.Score/prog.MinimumScore), 0, s.policy.AcademicCredit), false
}

func (s *Scorer) categoricalCredit(p Profile, prog Program) (float64, bool) {
	if len(prog.RequiredTags) == 0 {
		return s.policy.CategoricalCredit, true
	}
	matched := 0
	for _, req := range prog.RequiredTags {
		if anyContains(p.Tags, req) {
			matched++
		}
	}
	credit := s.policy.CategoricalCredit * float64(matched) / float64(len(prog.RequiredTags))
	return credit, matched == len(prog.RequiredTags)
}

// Score computes the match of a normalized profile against one program.
func (s *Scorer) Score(p Profile, prog Program) Match {
	academic := s.academicScore(p, prog)
	interest := s.interestScore(p, prog)
	_, meets := s.academicCredit(p, prog)
	_, hasTags := s.categoricalCredit(p, prog)

	return Match{
		Program:    prog,
		MatchScore: clamp(academic*s.policy.AcademicWeight+interest*s.policy.InterestWeight, 0, 100),
		Eligible:   meets && hasTags,
		Components: Components{AcademicScore: academic, InterestScore: interest},
	}
}

// academicScore scales the earned credit to 0-100 over the axes that are
// known. An unknown score drops its axis from the denominator.
func (s *Scorer) academicScore(p Profile, prog Program) float64 {
	earned, possible := 0.0, 0.0
	if p.Score != nil {
		credit, _ := s.academicCredit(p, prog)
		earned += credit
		possible += s.policy.AcademicCredit
	}
	categorical, _ := s.categoricalCredit(p, prog)
	earned += categorical
	possible += s.policy.CategoricalCredit

	if possible == 0 {
		return 0
	}
	return clamp(100*earned/possible, 0, 100)
}

func (s *Scorer) interestScore(p Profile, prog Program) float64 {
	if len(p.Interests) == 0 {
		return s.policy.NeutralInterest
	}

	name := strings.ToLower(prog.Name)
	desc := strings.ToLower(prog.Description)

	keywordHits, textHits := 0, 0
	for _, raw := range p.Interests {
		interest := strings.ToLower(raw)
		for _, kw := range prog.Keywords {
			kw = strings.ToLower(kw)
			if strings.Contains(kw, interest) || strings.Contains(interest, kw) {
				keywordHits++
				break
			}
		}
		if strings.Contains(name, interest) || strings.Contains(desc, interest) {
			textHits++
		}
	}

	n := float64(len(p.Interests))
	score := float64(keywordHits)/n*s.policy.KeywordWeight + float64(textHits)/n*s.policy.TextWeight
	return min(score, 100)
}

// Recommend scores every program and returns the best TopN, highest score
// first and ties by ascending program id.
func (s *Scorer) Recommend(p Profile, programs []Program) []Match {
	matches := make([]Match, len(programs))
	for i, prog := range programs {
		matches[i] = s.Score(p, prog)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].MatchScore != matches[j].MatchScore {
			return matches[i].MatchScore > matches[j].MatchScore
		}
		return lessID(matches[i].Program.ID, matches[j].Program.ID)
	})

	if len(matches) > s.policy.TopN {
		matches = matches[:s.policy.TopN]
	}
	return matches
}

// ScholarshipFor returns the highest tier the score reaches.
func (s *Scorer) ScholarshipFor(score *float64) Scholarship {
	if score == nil {
		return Scholarship{}
	}
	for _, tier := range s.policy.Scholarships {
		if *score >= tier.MinimumScore {
			return Scholarship{Eligible: true, Name: tier.Name, Percentage: tier.Percentage}
		}
	}
	return Scholarship{}
}

func anyContains(tags []string, required string) bool {
	required = strings.ToLower(required)
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), required) {
			return true
		}
	}
	return false
}

// lessID puts numeric ids first in numeric order, then the rest lexically.
func lessID(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	}
	return a < b
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
