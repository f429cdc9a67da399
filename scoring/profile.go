// Package scoring matches student profiles against degree programs.
package scoring

import (
	"math"
	"strings"

	"github.com/hubenschmidt/go-admissions/core"
)

// Profile is a requester's academic record. A nil Score means unknown.
type Profile struct {
	Score     *float64 `json:"score" yaml:"score"`
	Tags      []string `json:"tags" yaml:"tags"`
	Interests []string `json:"interests" yaml:"interests"`
}

// Normalize validates the profile and returns a copy with trimmed,
// non-empty tags and interests. Scoring assumes a normalized profile.
func (p Profile) Normalize() (Profile, error) {
	out := Profile{
		Tags:      cleanList(p.Tags),
		Interests: cleanList(p.Interests),
	}
	if p.Score != nil {
		s := *p.Score
		if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
			return Profile{}, core.Validationf("score must be a non-negative number, got %v", s)
		}
		out.Score = &s
	}
	return out, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Float64 returns a pointer to v, for building profiles with a known score.
func Float64(v float64) *float64 {
	return &v
}
